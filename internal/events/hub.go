package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Host event types.
const (
	TypeHostReady         = "host.ready"
	TypeCommandDispatched = "command.dispatched"
	TypeTransportClosed   = "transport.closed"
)

const (
	defaultBacklog   = 100
	subscriberBuffer = 64
)

type Event struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

// Hub fans host events out to observers and keeps the last few for readers
// that connect late. It only observes the host; nothing here reaches the
// controller.
type Hub struct {
	dropped atomic.Uint64

	mu      sync.Mutex
	seq     int64
	backlog []Event
	limit   int
	subs    map[chan Event]struct{}
}

// NewHub keeps up to backlog events for SnapshotSince.
func NewHub(backlog int) *Hub {
	if backlog <= 0 {
		backlog = defaultBacklog
	}
	return &Hub{
		backlog: make([]Event, 0, backlog),
		limit:   backlog,
		subs:    make(map[chan Event]struct{}),
	}
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
// IDs are assigned under the lock, so every reader sees them in order.
func (h *Hub) Publish(eventType string, data any) {
	payload := marshalData(data)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	ev := Event{
		ID:   h.seq,
		Type: eventType,
		At:   time.Now().UTC(),
		Data: payload,
	}

	if len(h.backlog) == h.limit {
		copy(h.backlog, h.backlog[1:])
		h.backlog = h.backlog[:h.limit-1]
	}
	h.backlog = append(h.backlog, ev)

	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe returns a channel of future events and a cancel func that closes
// it. cancel is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// SnapshotSince returns kept events with ID > lastID, oldest first.
func (h *Hub) SnapshotSince(lastID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, len(h.backlog))
	for _, ev := range h.backlog {
		if ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}

// Dropped counts deliveries skipped because a subscriber was full.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func marshalData(data any) json.RawMessage {
	if data == nil {
		return json.RawMessage("{}")
	}
	b, err := json.Marshal(data)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}
