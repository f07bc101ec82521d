package api

import (
	"encoding/json"
	"time"

	"github.com/nidvy/host/internal/coordinator"
	"github.com/nidvy/host/internal/events"
)

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	coordinator.Stats
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// EventsResponse is returned by GET /events.
type EventsResponse struct {
	Events []events.Event `json:"events"`
}

// JournalEntry is one row of GET /journal.
type JournalEntry struct {
	Seq          uint64          `json:"seq"`
	RequestID    *uint64         `json:"request_id,omitempty"`
	Method       string          `json:"method"`
	Params       json.RawMessage `json:"params,omitempty"`
	Outcome      string          `json:"outcome"`
	ErrorKind    string          `json:"error_kind,omitempty"`
	Response     json.RawMessage `json:"response"`
	DispatchedAt time.Time       `json:"dispatched_at"`
	DurationUS   int64           `json:"duration_us"`
}

// JournalResponse is returned by GET /journal.
type JournalResponse struct {
	SessionID string         `json:"session_id"`
	Entries   []JournalEntry `json:"entries"`
}
