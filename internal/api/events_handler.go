package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/nidvy/host/internal/events"
)

const sseKeepAlive = 15 * time.Second

// sseStream writes server-sent event frames and flushes after each one.
type sseStream struct {
	w io.Writer
	f http.Flusher
}

func (s sseStream) send(ev events.Event) error {
	// Data is compact JSON, so it always fits on one data line.
	_, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, ev.Data)
	if err == nil {
		s.f.Flush()
	}
	return err
}

func (s sseStream) ping() error {
	_, err := io.WriteString(s.w, ": keep-alive\n\n")
	if err == nil {
		s.f.Flush()
	}
	return err
}

// handleEventStream handles GET /events/stream. Events after Last-Event-ID
// that are still in the hub are replayed before live ones.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Subscribing first means an event published during the replay is seen
	// twice at worst, never missed; the id check drops the duplicate.
	live, cancel := s.events.Subscribe()
	defer cancel()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream := sseStream{w: w, f: flusher}
	cursor := lastEventID(r)
	for _, ev := range s.events.SnapshotSince(cursor) {
		if stream.send(ev) != nil {
			return
		}
		cursor = ev.ID
	}

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if stream.ping() != nil {
				return
			}
		case ev, open := <-live:
			if !open {
				return
			}
			if ev.ID <= cursor {
				continue
			}
			if stream.send(ev) != nil {
				return
			}
			cursor = ev.ID
		}
	}
}

func lastEventID(r *http.Request) int64 {
	n, err := strconv.ParseInt(r.Header.Get("Last-Event-ID"), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
