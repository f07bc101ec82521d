package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nidvy/host/internal/dispatch"
	"github.com/nidvy/host/internal/events"
	"github.com/nidvy/host/internal/journal"
	"github.com/nidvy/host/internal/log"
	"github.com/nidvy/host/internal/native"
	"github.com/nidvy/host/internal/protocol"
	"github.com/nidvy/host/internal/state"
	"github.com/nidvy/host/internal/transport"
)

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("coordinator already running")

// Recorder receives every dispatched command. *journal.Journal implements it.
type Recorder interface {
	Record(journal.Entry)
}

// Publisher receives host events. *events.Hub implements it.
type Publisher interface {
	Publish(eventType string, data any)
}

type Options struct {
	Receiver   *transport.Receiver
	Writer     *transport.Writer
	Dispatcher *dispatch.Dispatcher
	Windowing  native.Windowing
	Engine     native.Engine

	// Optional.
	Journal   Recorder
	Events    Publisher
	Logger    *slog.Logger
	SessionID string
}

// Stats is a point-in-time view of the coordinator, safe to read from any
// goroutine.
type Stats struct {
	SessionID      string    `json:"session_id"`
	StartedAt      time.Time `json:"started_at"`
	Running        bool      `json:"running"`
	Dispatched     uint64    `json:"commands_dispatched"`
	Errors         uint64    `json:"commands_failed"`
	WindowActive   bool      `json:"window_active"`
	WindowsCreated uint64    `json:"windows_created"`
	Pending        int       `json:"queue_depth"`
	Received       uint64    `json:"lines_received"`
	Dropped        uint64    `json:"lines_dropped"`
}

type Coordinator struct {
	opts   Options
	logger *slog.Logger

	started   atomic.Bool
	running   atomic.Bool
	startedAt atomic.Pointer[time.Time]

	dispatched     atomic.Uint64
	failed         atomic.Uint64
	windowActive   atomic.Bool
	windowsCreated atomic.Uint64

	// Loop thread only.
	loop  native.EventLoop
	seq   uint64
	fatal bool
}

func New(opts Options) (*Coordinator, error) {
	switch {
	case opts.Receiver == nil:
		return nil, fmt.Errorf("receiver is required")
	case opts.Writer == nil:
		return nil, fmt.Errorf("writer is required")
	case opts.Dispatcher == nil:
		return nil, fmt.Errorf("dispatcher is required")
	case opts.Windowing == nil || opts.Engine == nil:
		return nil, fmt.Errorf("windowing and engine are required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithComponent("coordinator")
	}
	if opts.SessionID != "" {
		logger = logger.With("session_id", opts.SessionID)
	}

	return &Coordinator{opts: opts, logger: logger}, nil
}

// Run blocks until the native event loop exits and returns its exit code.
// Cancelling ctx asks the loop to exit with code 0. The only error is a
// failure to create the event loop, reported with exit code 1.
func (c *Coordinator) Run(ctx context.Context) (int, error) {
	if !c.started.CompareAndSwap(false, true) {
		return 1, ErrAlreadyRunning
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	app := state.New(c.opts.Windowing, c.opts.Engine)
	loop, err := app.EventLoop()
	if err != nil {
		c.logger.Error("cannot start event loop", "error", err)
		return 1, err
	}
	c.loop = loop

	now := time.Now().UTC()
	c.startedAt.Store(&now)
	c.running.Store(true)
	defer c.running.Store(false)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.pump(ctx, done, loop)
	}()

	c.logger.Info("host ready", "methods", c.opts.Dispatcher.Methods())
	c.publish(events.TypeHostReady, map[string]any{
		"session_id": c.opts.SessionID,
		"methods":    c.opts.Dispatcher.Methods(),
	})

	code := c.opts.Windowing.RunEventLoop(loop, func() { c.drain(app) })

	close(done)
	wg.Wait()

	c.logger.Info("event loop exited", "code", code, "commands_dispatched", c.dispatched.Load())
	return code, nil
}

// pump forwards queue readiness to the event loop until the loop exits.
func (c *Coordinator) pump(ctx context.Context, done <-chan struct{}, loop native.EventLoop) {
	closed := c.opts.Receiver.Closed()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			c.logger.Info("shutdown requested")
			loop.Exit(0)
			return
		case <-c.opts.Receiver.Ready():
			loop.Wake()
		case <-closed:
			closed = nil
			// The host keeps running; only the loop decides when to stop.
			c.logger.Info("controller input closed")
			c.publish(events.TypeTransportClosed, map[string]any{
				"lines_received": c.opts.Receiver.Received(),
				"lines_dropped":  c.opts.Receiver.Dropped(),
			})
			loop.Wake()
		}
	}
}

// drain handles every queued command without blocking on the queue.
func (c *Coordinator) drain(app *state.App) {
	for !c.fatal {
		cmd, ok := c.opts.Receiver.TryRecv()
		if !ok {
			return
		}
		c.handle(app, cmd)
	}
}

func (c *Coordinator) handle(app *state.App, cmd protocol.Command) {
	c.seq++
	seq := c.seq

	start := time.Now()
	resp := c.opts.Dispatcher.Dispatch(cmd, app)
	elapsed := time.Since(start)

	if err := c.opts.Writer.Write(resp); err != nil {
		if errors.Is(err, protocol.ErrEncode) {
			log.WithRequest(c.logger, cmd.ID, cmd.Method).Error("cannot encode response, stopping", "error", err)
			c.fatal = true
			c.loop.Exit(1)
			return
		}
		log.WithRequest(c.logger, cmd.ID, cmd.Method).Error("failed to write response", "error", err)
	}

	if !resp.OK() {
		c.failed.Add(1)
	}
	c.windowActive.Store(app.HasWindow())
	c.windowsCreated.Store(app.WindowsCreated())
	// Last, so a reader that sees the count also sees the fields above.
	c.dispatched.Add(1)

	if c.opts.Journal != nil {
		c.opts.Journal.Record(journal.Entry{
			Seq:          seq,
			Command:      cmd,
			Response:     resp,
			DispatchedAt: start,
			Duration:     elapsed,
		})
	}

	data := map[string]any{
		"seq":         seq,
		"method":      cmd.Method,
		"outcome":     resp.Type,
		"duration_us": elapsed.Microseconds(),
	}
	if cmd.ID != nil {
		data["request_id"] = *cmd.ID
	}
	if resp.Error != nil {
		data["error_kind"] = protocol.ErrorKind(resp.Error.Message)
	}
	c.publish(events.TypeCommandDispatched, data)
}

func (c *Coordinator) publish(eventType string, data any) {
	if c.opts.Events != nil {
		c.opts.Events.Publish(eventType, data)
	}
}

// Stats returns current counters.
func (c *Coordinator) Stats() Stats {
	s := Stats{
		SessionID:      c.opts.SessionID,
		Running:        c.running.Load(),
		Dispatched:     c.dispatched.Load(),
		Errors:         c.failed.Load(),
		WindowActive:   c.windowActive.Load(),
		WindowsCreated: c.windowsCreated.Load(),
		Pending:        c.opts.Receiver.Pending(),
		Received:       c.opts.Receiver.Received(),
		Dropped:        c.opts.Receiver.Dropped(),
	}
	if t := c.startedAt.Load(); t != nil {
		s.StartedAt = *t
	}
	return s
}
