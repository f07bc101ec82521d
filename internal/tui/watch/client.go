package watch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nidvy/host/internal/auth"
	"github.com/nidvy/host/internal/events"
)

// --- Message types ---

type eventMsg events.Event

// statusMsg mirrors GET /status.
type statusMsg struct {
	SessionID      string `json:"session_id"`
	Running        bool   `json:"running"`
	Dispatched     uint64 `json:"commands_dispatched"`
	Errors         uint64 `json:"commands_failed"`
	WindowActive   bool   `json:"window_active"`
	WindowsCreated uint64 `json:"windows_created"`
	QueueDepth     int    `json:"queue_depth"`
	Dropped        uint64 `json:"lines_dropped"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
}

type tickMsg time.Time

type errMsg error

type streamClosedMsg struct{ lastID int64 }
type reconnectMsg struct{}

// --- Commands ---

// subscribeToEvents follows GET /events/stream, resuming after lastID, and
// feeds events into ch. It returns streamClosedMsg when the stream ends.
func subscribeToEvents(apiURL, token string, lastID int64, ch chan<- events.Event) tea.Cmd {
	return func() tea.Msg {
		req, err := http.NewRequest(http.MethodGet, apiURL+"/events/stream", nil)
		if err != nil {
			return errMsg(err)
		}
		auth.SetBearer(req, token)
		if lastID > 0 {
			req.Header.Set("Last-Event-ID", strconv.FormatInt(lastID, 10))
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return streamClosedMsg{lastID: lastID}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return streamClosedMsg{lastID: lastID}
		}

		for ev := range readSSE(bufio.NewScanner(resp.Body)) {
			lastID = ev.ID
			ch <- ev
		}
		return streamClosedMsg{lastID: lastID}
	}
}

// readSSE yields each complete event frame from sc.
func readSSE(sc *bufio.Scanner) func(yield func(events.Event) bool) {
	return func(yield func(events.Event) bool) {
		var cur events.Event
		var data string
		for sc.Scan() {
			line := sc.Text()
			switch {
			case line == "":
				if data != "" {
					cur.Data = json.RawMessage(data)
					if cur.At.IsZero() {
						cur.At = time.Now()
					}
					if !yield(cur) {
						return
					}
				}
				cur, data = events.Event{}, ""
			case strings.HasPrefix(line, "id: "):
				if id, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
					cur.ID = id
				}
			case strings.HasPrefix(line, "event: "):
				cur.Type = line[7:]
			case strings.HasPrefix(line, "data: "):
				data = line[6:]
			}
		}
	}
}

// receiveNextEvent waits for the next event from the channel.
func receiveNextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

// fetchStatus queries GET /status.
func fetchStatus(apiURL, token string) tea.Msg {
	req, err := http.NewRequest(http.MethodGet, apiURL+"/status", nil)
	if err != nil {
		return errMsg(err)
	}
	auth.SetBearer(req, token)

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errMsg(fmt.Errorf("status: %s", resp.Status))
	}

	var s statusMsg
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return errMsg(err)
	}
	return s
}
