// Package inspect renders a recorded host session from the command journal.
package inspect

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nidvy/host/internal/journal"
)

// ErrSessionNotFound is returned when the journal has no matching session.
var ErrSessionNotFound = errors.New("session not found")

// Report is the structured JSON representation of one session.
type Report struct {
	SessionID  string    `json:"session_id"`
	PID        int       `json:"pid"`
	StartedAt  time.Time `json:"started_at"`
	ConfigHash string    `json:"config_hash,omitempty"`
	Commands   int       `json:"commands"`
	Errors     int       `json:"errors"`
	Steps      []Step    `json:"steps"`
}

// Step is one dispatched command, oldest first.
type Step struct {
	Seq          uint64          `json:"seq"`
	RequestID    *uint64         `json:"request_id,omitempty"`
	Method       string          `json:"method"`
	Outcome      string          `json:"outcome"`
	ErrorKind    string          `json:"error_kind,omitempty"`
	DispatchedAt time.Time       `json:"dispatched_at"`
	DurationUS   int64           `json:"duration_us"`
	Params       json.RawMessage `json:"params,omitempty"`
	Response     json.RawMessage `json:"response"`
}

// BuildReport renders a terminal-friendly report. An empty sessionID selects
// the most recent session.
func BuildReport(ctx context.Context, db *sql.DB, sessionID string) (string, error) {
	report, err := gatherReportData(ctx, db, sessionID)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Session Report\n")
	fmt.Fprintf(&out, "Session ID  : %s\n", report.SessionID)
	fmt.Fprintf(&out, "PID         : %d\n", report.PID)
	fmt.Fprintf(&out, "Started     : %s\n", report.StartedAt.Format(time.RFC3339))
	if report.ConfigHash != "" {
		fmt.Fprintf(&out, "Config      : %s\n", report.ConfigHash)
	} else {
		fmt.Fprintf(&out, "Config      : <defaults>\n")
	}
	fmt.Fprintf(&out, "Commands    : %d (%d failed)\n", report.Commands, report.Errors)
	fmt.Fprintf(&out, "\n")

	for _, step := range report.Steps {
		id := "-"
		if step.RequestID != nil {
			id = fmt.Sprintf("%d", *step.RequestID)
		}
		fmt.Fprintf(&out, "[%d] %s (id %s)\n", step.Seq, step.Method, id)
		fmt.Fprintf(&out, "    at       : %s (%dus)\n", step.DispatchedAt.Format(time.RFC3339Nano), step.DurationUS)
		if step.ErrorKind != "" {
			fmt.Fprintf(&out, "    outcome  : %s %s\n", step.Outcome, step.ErrorKind)
		} else {
			fmt.Fprintf(&out, "    outcome  : %s\n", step.Outcome)
		}
		if len(step.Params) > 0 {
			fmt.Fprintf(&out, "    params   :\n")
			writeIndented(&out, prettyJSON(step.Params))
		}
		fmt.Fprintf(&out, "    response :\n")
		writeIndented(&out, prettyJSON(step.Response))
		fmt.Fprintf(&out, "\n")
	}

	return strings.TrimRight(out.String(), "\n") + "\n", nil
}

// BuildJSONReport returns the machine-readable report.
func BuildJSONReport(ctx context.Context, db *sql.DB, sessionID string) (string, error) {
	report, err := gatherReportData(ctx, db, sessionID)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal json report: %w", err)
	}
	return string(data), nil
}

// FormatSessions renders one line per session, newest first.
func FormatSessions(sessions []journal.Session) string {
	if len(sessions) == 0 {
		return "No sessions recorded.\n"
	}
	var out strings.Builder
	for _, s := range sessions {
		fmt.Fprintf(&out, "%s  %s  pid=%d  commands=%d  errors=%d\n",
			s.ID, s.StartedAt.Format(time.RFC3339), s.PID, s.Commands, s.Errors)
	}
	return out.String()
}

func gatherReportData(ctx context.Context, db *sql.DB, sessionID string) (*Report, error) {
	sessions, err := journal.Sessions(ctx, db)
	if err != nil {
		return nil, err
	}

	var session *journal.Session
	for i := range sessions {
		if sessionID == "" || sessions[i].ID == sessionID {
			session = &sessions[i]
			break
		}
	}
	if session == nil {
		if sessionID == "" {
			return nil, fmt.Errorf("%w: journal is empty", ErrSessionNotFound)
		}
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	records, err := journal.Read(ctx, db, session.ID, 0)
	if err != nil {
		return nil, err
	}
	slices.Reverse(records)

	report := &Report{
		SessionID:  session.ID,
		PID:        session.PID,
		StartedAt:  session.StartedAt,
		ConfigHash: session.ConfigHash,
		Commands:   session.Commands,
		Errors:     session.Errors,
		Steps:      make([]Step, 0, len(records)),
	}
	for _, rec := range records {
		report.Steps = append(report.Steps, Step{
			Seq:          rec.Seq,
			RequestID:    rec.RequestID,
			Method:       rec.Method,
			Outcome:      rec.Outcome,
			ErrorKind:    rec.ErrorKind,
			DispatchedAt: rec.DispatchedAt,
			DurationUS:   rec.Duration.Microseconds(),
			Params:       rec.Params,
			Response:     rec.Response,
		})
	}
	return report, nil
}

func writeIndented(out *strings.Builder, text string) {
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		fmt.Fprintf(out, "      %s\n", line)
	}
}

func prettyJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(out)
}
