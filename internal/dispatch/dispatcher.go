package dispatch

import (
	"fmt"
	"log/slog"

	"github.com/nidvy/host/internal/log"
	"github.com/nidvy/host/internal/protocol"
	"github.com/nidvy/host/internal/state"
)

const (
	MethodWindowCreate = "window.create"
	MethodWindowEval   = "window.eval"
)

// Error kinds, carried as the message prefix of error responses.
const (
	KindUnknownMethod = "UNKNOWN_METHOD"
	KindWindowCreate  = "WINDOW_CREATE_ERROR"
	KindNoWindow      = "NO_WINDOW"
	KindInvalidParams = "INVALID_PARAMS"
	KindScriptEval    = "SCRIPT_EVAL_ERROR"
	KindInternal      = "INTERNAL_ERROR"
)

// WindowDefaults fills window.create params the controller left out.
type WindowDefaults struct {
	URL    string
	Title  string
	Width  uint32
	Height uint32
}

// DefaultWindow returns the built-in window.create defaults.
func DefaultWindow() WindowDefaults {
	return WindowDefaults{
		URL:    "https://www.baidu.com",
		Title:  "Nidvy",
		Width:  800,
		Height: 600,
	}
}

type handlerFunc func(cmd protocol.Command, app *state.App, logger *slog.Logger) protocol.Response

// Dispatcher routes commands by method name.
type Dispatcher struct {
	handlers map[string]handlerFunc
	defaults WindowDefaults
	logger   *slog.Logger
}

// New creates a Dispatcher. A nil logger uses the "dispatch" component logger.
func New(defaults WindowDefaults, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = log.WithComponent("dispatch")
	}
	d := &Dispatcher{
		defaults: defaults,
		logger:   logger,
	}
	d.handlers = map[string]handlerFunc{
		MethodWindowCreate: d.windowCreate,
		MethodWindowEval:   d.windowEval,
	}
	return d
}

// Methods lists the routable method names.
func (d *Dispatcher) Methods() []string {
	return []string{MethodWindowCreate, MethodWindowEval}
}

// Dispatch runs the handler for cmd.Method against app and returns its
// response. It never fails: unknown methods, handler errors and handler
// panics all become error responses.
func (d *Dispatcher) Dispatch(cmd protocol.Command, app *state.App) (resp protocol.Response) {
	reqLogger := log.WithRequest(d.logger, cmd.ID, cmd.Method)

	defer func() {
		if r := recover(); r != nil {
			reqLogger.Error("handler panicked", "panic", r)
			resp = protocol.NewError(cmd, KindInternal, fmt.Sprint(r))
		}
	}()

	handler, ok := d.handlers[cmd.Method]
	if !ok {
		reqLogger.Warn("unknown method")
		return protocol.NewError(cmd, KindUnknownMethod, "method not found")
	}
	return handler(cmd, app, reqLogger)
}

func success(cmd protocol.Command) protocol.Response {
	return protocol.NewResult(cmd, map[string]any{"success": true})
}

func (d *Dispatcher) windowCreate(cmd protocol.Command, app *state.App, logger *slog.Logger) protocol.Response {
	p := parseParams(cmd.Params)
	url := p.stringOr("url", d.defaults.URL)
	title := p.stringOr("title", d.defaults.Title)
	width := p.uint32Or("width", d.defaults.Width)
	height := p.uint32Or("height", d.defaults.Height)

	if err := openWindow(app, url, title, width, height, logger); err != nil {
		logger.Error("window create failed", "error", err)
		return protocol.NewError(cmd, KindWindowCreate, err.Error())
	}

	logger.Info("window created", "url", url, "title", title, "width", width, "height", height)
	return success(cmd)
}

// openWindow creates a window and its webview synchronously on the calling
// goroutine, then makes them the active pair.
func openWindow(app *state.App, url, title string, width, height uint32, logger *slog.Logger) error {
	loop, err := app.EventLoop()
	if err != nil {
		return err
	}

	win, err := app.Windowing().CreateWindow(loop, title, width, height)
	if err != nil {
		return err
	}

	surface, err := app.Engine().CreateSurface(win, url)
	if err != nil {
		return err
	}

	if prev := app.ReplaceWindow(win, surface); prev != nil {
		logger.Info("replaced active window", "previous_window", prev.ID(), "window", win.ID())
	}
	return nil
}

func (d *Dispatcher) windowEval(cmd protocol.Command, app *state.App, logger *slog.Logger) protocol.Response {
	script, ok := parseParams(cmd.Params).lookupString("script")
	if !ok || script == "" {
		return protocol.NewError(cmd, KindInvalidParams, "script is required")
	}
	if !app.HasWindow() {
		return protocol.NewError(cmd, KindNoWindow, "no active window")
	}

	if err := app.Engine().EvaluateScript(app.Surface(), script); err != nil {
		logger.Warn("script evaluation failed", "error", err)
		return protocol.NewError(cmd, KindScriptEval, err.Error())
	}

	logger.Debug("script evaluated", "bytes", len(script))
	return success(cmd)
}
