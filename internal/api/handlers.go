package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultJournalLimit = 50
	maxJournalLimit     = 1000
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.status.Stats()
	resp := StatusResponse{Stats: stats}
	if !stats.StartedAt.IsZero() {
		resp.UptimeSeconds = int64(time.Since(stats.StartedAt).Seconds())
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleEvents handles GET /events?since=N, returning buffered events with
// ID > N, oldest first.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	since := int64(0)
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = n
	}

	respondJSON(w, http.StatusOK, EventsResponse{Events: s.events.SnapshotSince(since)})
}

// handleJournal handles GET /journal?limit=N, newest first.
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, http.StatusNotFound, "journal disabled")
		return
	}

	limit := defaultJournalLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxJournalLimit)
	}

	records, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read journal", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}

	resp := JournalResponse{
		SessionID: s.status.Stats().SessionID,
		Entries:   make([]JournalEntry, 0, len(records)),
	}
	for _, rec := range records {
		resp.Entries = append(resp.Entries, JournalEntry{
			Seq:          rec.Seq,
			RequestID:    rec.RequestID,
			Method:       rec.Method,
			Params:       rec.Params,
			Outcome:      rec.Outcome,
			ErrorKind:    rec.ErrorKind,
			Response:     rec.Response,
			DispatchedAt: rec.DispatchedAt,
			DurationUS:   rec.Duration.Microseconds(),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
