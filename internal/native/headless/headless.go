// Package headless implements the native windowing and rendering interfaces
// without a display. Windows and surfaces are plain records, the event loop
// is a wake channel, and failures can be injected per operation.
package headless

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/nidvy/host/internal/log"
	"github.com/nidvy/host/internal/native"
)

// Op names an injectable backend operation.
type Op string

const (
	OpEventLoop Op = "event_loop"
	OpWindow    Op = "window"
	OpSurface   Op = "surface"
	OpScript    Op = "script"
)

var errForeignHandle = errors.New("handle not created by this backend")

// Backend is a headless native.Windowing and native.Engine.
type Backend struct {
	mu       sync.Mutex
	loop     *Loop
	windows  []*Window
	surfaces []*Surface
	failures map[Op]error
	logger   *slog.Logger
}

var (
	_ native.Windowing = (*Backend)(nil)
	_ native.Engine    = (*Backend)(nil)
)

func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = log.WithComponent("headless")
	}
	return &Backend{
		failures: make(map[Op]error),
		logger:   logger,
	}
}

// SetFailure makes op fail with err until cleared with a nil err.
func (b *Backend) SetFailure(op Op, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, op)
		return
	}
	b.failures[op] = err
}

func (b *Backend) failure(op Op) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures[op]
}

func (b *Backend) CreateEventLoop() (native.EventLoop, error) {
	if err := b.failure(OpEventLoop); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loop == nil {
		b.loop = &Loop{
			id:      uuid.NewString(),
			backend: b,
			wake:    make(chan struct{}, 1),
			exit:    make(chan int, 1),
		}
		b.logger.Debug("event loop created", "loop_id", b.loop.id)
	}
	return b.loop, nil
}

func (b *Backend) CreateWindow(loop native.EventLoop, title string, width, height uint32) (native.Window, error) {
	l, ok := loop.(*Loop)
	if !ok || l.backend != b {
		return nil, fmt.Errorf("create window: %w", errForeignHandle)
	}
	if err := b.failure(OpWindow); err != nil {
		return nil, err
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("invalid window size %dx%d", width, height)
	}

	w := &Window{
		id:     uuid.NewString(),
		title:  title,
		width:  width,
		height: height,
		loop:   l,
	}

	b.mu.Lock()
	b.windows = append(b.windows, w)
	b.mu.Unlock()

	b.logger.Debug("window created", "window_id", w.id, "title", title, "width", width, "height", height)
	return w, nil
}

// RunEventLoop delivers one start-up wake, then one wake per Wake call,
// until Exit is called.
func (b *Backend) RunEventLoop(loop native.EventLoop, onWake func()) int {
	l, ok := loop.(*Loop)
	if !ok || l.backend != b {
		b.logger.Error("refusing to run event loop", "error", native.ErrLoopNotRunnable)
		return 1
	}
	if !l.running.CompareAndSwap(false, true) {
		b.logger.Error("event loop already running")
		return 1
	}
	defer l.running.Store(false)

	onWake()
	for {
		select {
		case code := <-l.exit:
			b.logger.Debug("event loop exited", "code", code)
			return code
		case <-l.wake:
			onWake()
		}
	}
}

func (b *Backend) CreateSurface(win native.Window, url string) (native.Surface, error) {
	w, ok := win.(*Window)
	if !ok || w.loop.backend != b {
		return nil, fmt.Errorf("create surface: %w", errForeignHandle)
	}
	if err := b.failure(OpSurface); err != nil {
		return nil, err
	}
	if url == "" {
		return nil, errors.New("empty url")
	}

	s := &Surface{
		id:     uuid.NewString(),
		url:    url,
		window: w,
	}

	b.mu.Lock()
	b.surfaces = append(b.surfaces, s)
	b.mu.Unlock()

	b.logger.Debug("surface created", "surface_id", s.id, "window_id", w.id, "url", url)
	return s, nil
}

func (b *Backend) EvaluateScript(surface native.Surface, source string) error {
	s, ok := surface.(*Surface)
	if !ok || s.window.loop.backend != b {
		return fmt.Errorf("evaluate script: %w", errForeignHandle)
	}
	if err := b.failure(OpScript); err != nil {
		return err
	}

	s.mu.Lock()
	s.scripts = append(s.scripts, source)
	s.mu.Unlock()
	return nil
}

// Windows returns every window created so far, oldest first.
func (b *Backend) Windows() []*Window {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Window(nil), b.windows...)
}

// Surfaces returns every surface created so far, oldest first.
func (b *Backend) Surfaces() []*Surface {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Surface(nil), b.surfaces...)
}

// Loop is the headless event loop.
type Loop struct {
	id       string
	backend  *Backend
	wake     chan struct{}
	exit     chan int
	exitOnce sync.Once
	running  atomic.Bool
}

func (l *Loop) Wake() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Exit stops the loop. Only the first code is kept.
func (l *Loop) Exit(code int) {
	l.exitOnce.Do(func() {
		l.exit <- code
	})
}

// Window is a headless window record.
type Window struct {
	id     string
	title  string
	width  uint32
	height uint32
	loop   *Loop
	closed atomic.Bool
}

func (w *Window) ID() string { return w.id }
func (w *Window) Title() string { return w.title }
func (w *Window) Size() (uint32, uint32) { return w.width, w.height }
func (w *Window) Closed() bool { return w.closed.Load() }

// Close simulates the user closing the window, which ends the event loop.
func (w *Window) Close() {
	if w.closed.CompareAndSwap(false, true) {
		w.loop.Exit(0)
	}
}

// Surface is a headless webview record.
type Surface struct {
	id     string
	url    string
	window *Window

	mu      sync.Mutex
	scripts []string
}

func (s *Surface) ID() string { return s.id }
func (s *Surface) URL() string { return s.url }
func (s *Surface) Window() *Window { return s.window }

// Scripts returns the sources evaluated on s, in order.
func (s *Surface) Scripts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.scripts...)
}
