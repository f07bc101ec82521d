// Package journal keeps an optional SQLite record of every command the host
// dispatched and the response it wrote.
//
// Record never blocks the caller: entries go through an unbounded queue to a
// single writer goroutine, so the event-loop thread does not wait on disk.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nidvy/host/internal/log"
	"github.com/nidvy/host/internal/protocol"
	"github.com/nidvy/host/internal/queue"
	"github.com/nidvy/host/internal/storage"
)

const writeTimeout = 5 * time.Second

// Fixed-width so timestamps sort correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one dispatched command and its response.
type Entry struct {
	Seq          uint64
	Command      protocol.Command
	Response     protocol.Response
	DispatchedAt time.Time
	Duration     time.Duration
}

// Record is a journal row as read back.
type Record struct {
	ID           string
	SessionID    string
	Seq          uint64
	RequestID    *uint64
	Method       string
	Params       json.RawMessage
	Outcome      string
	ErrorKind    string
	Response     json.RawMessage
	DispatchedAt time.Time
	Duration     time.Duration
}

type Journal struct {
	db        *sql.DB
	sessionID string
	pending   *queue.Queue[Entry]
	done      chan struct{}
	logger    *slog.Logger

	written atomic.Uint64
	failed  atomic.Uint64
}

// Open opens the journal database at path and registers the session.
func Open(ctx context.Context, path, sessionID, configHash string, logger *slog.Logger) (*Journal, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is empty")
	}
	if logger == nil {
		logger = log.WithComponent("journal")
	}

	db, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}

	_, err = db.ExecContext(ctx, `
INSERT INTO host_session(id, pid, started_at, config_hash)
VALUES(?, ?, ?, ?);
`, sessionID, os.Getpid(), time.Now().UTC().Format(timeLayout), nullIfEmpty(configHash))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("register session: %w", err)
	}

	j := &Journal{
		db:        db,
		sessionID: sessionID,
		pending:   queue.New[Entry](),
		done:      make(chan struct{}),
		logger:    logger,
	}
	go j.writeLoop()
	return j, nil
}

// Record queues e for writing.
func (j *Journal) Record(e Entry) {
	if !j.pending.Push(e) {
		j.logger.Warn("journal closed, entry dropped", "seq", e.Seq)
	}
}

// Written returns how many entries reached the database.
func (j *Journal) Written() uint64 { return j.written.Load() }

// Close writes everything already recorded, then closes the database.
func (j *Journal) Close() error {
	j.pending.Close()
	<-j.done
	return j.db.Close()
}

func (j *Journal) writeLoop() {
	defer close(j.done)
	for {
		select {
		case <-j.pending.Ready():
			j.flush()
		case <-j.pending.Done():
			j.flush()
			return
		}
	}
}

func (j *Journal) flush() {
	for {
		e, ok := j.pending.TryPop()
		if !ok {
			return
		}
		if err := j.insert(e); err != nil {
			j.failed.Add(1)
			j.logger.Error("failed to write journal entry", "seq", e.Seq, "error", err)
			continue
		}
		j.written.Add(1)
	}
}

func (j *Journal) insert(e Entry) error {
	resp, err := json.Marshal(e.Response)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}

	outcome := protocol.TypeResponse
	var errorKind any
	if e.Response.Error != nil {
		outcome = protocol.TypeError
		errorKind = protocol.ErrorKind(e.Response.Error.Message)
	}

	// Decimal text: SQLite integers are signed 64-bit and ids use the full
	// uint64 range.
	var requestID any
	if e.Command.ID != nil {
		requestID = strconv.FormatUint(*e.Command.ID, 10)
	}

	var params any
	if len(e.Command.Params) > 0 {
		params = string(e.Command.Params)
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err = j.db.ExecContext(ctx, `
INSERT INTO command_journal(
  id, session_id, seq, request_id, method, params, outcome, response, error_kind,
  dispatched_at, duration_us
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, uuid.NewString(), j.sessionID, int64(e.Seq), requestID, e.Command.Method, params, outcome, string(resp), errorKind,
		e.DispatchedAt.UTC().Format(timeLayout), e.Duration.Microseconds())
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries of this session, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	return Read(ctx, j.db, j.sessionID, limit)
}

// Session is a host_session row with its command totals.
type Session struct {
	ID         string
	PID        int
	StartedAt  time.Time
	ConfigHash string
	Commands   int
	Errors     int
}

// Sessions lists every session in db, newest first.
func Sessions(ctx context.Context, db *sql.DB) ([]Session, error) {
	rows, err := db.QueryContext(ctx, `
SELECT s.id, s.pid, s.started_at, s.config_hash,
       COUNT(c.id),
       COALESCE(SUM(CASE WHEN c.outcome = ? THEN 1 ELSE 0 END), 0)
FROM host_session s
LEFT JOIN command_journal c ON c.session_id = s.id
GROUP BY s.id
ORDER BY s.started_at DESC;
`, protocol.TypeError)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			s          Session
			startedAt  string
			configHash sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.PID, &startedAt, &configHash, &s.Commands, &s.Errors); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		s.StartedAt = t
		s.ConfigHash = configHash.String
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return out, nil
}

// Read returns up to limit entries of sessionID, newest first. A limit of
// zero or less returns all of them.
func Read(ctx context.Context, db *sql.DB, sessionID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.QueryContext(ctx, `
SELECT id, session_id, seq, request_id, method, params, outcome, error_kind, response, dispatched_at, duration_us
FROM command_journal
WHERE session_id = ?
ORDER BY seq DESC
LIMIT ?;
`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r            Record
			seq          int64
			requestID    sql.NullString
			params       sql.NullString
			errorKind    sql.NullString
			response     string
			dispatchedAt string
			durationUS   int64
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &seq, &requestID, &r.Method, &params, &r.Outcome, &errorKind, &response, &dispatchedAt, &durationUS); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}

		r.Seq = uint64(seq)
		if requestID.Valid {
			id, err := strconv.ParseUint(requestID.String, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse request_id %q: %w", requestID.String, err)
			}
			r.RequestID = &id
		}
		if params.Valid {
			r.Params = json.RawMessage(params.String)
		}
		r.ErrorKind = errorKind.String
		r.Response = json.RawMessage(response)
		r.Duration = time.Duration(durationUS) * time.Microsecond

		t, err := time.Parse(time.RFC3339Nano, dispatchedAt)
		if err != nil {
			return nil, fmt.Errorf("parse dispatched_at: %w", err)
		}
		r.DispatchedAt = t

		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal rows: %w", err)
	}
	return out, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
