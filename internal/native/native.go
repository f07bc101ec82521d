// Package native declares the capabilities the host consumes from the
// windowing subsystem and the embedded rendering engine.
//
// Handles returned by these interfaces are owned by the goroutine that runs
// the event loop. Only EventLoop.Wake and EventLoop.Exit may be called from
// other goroutines.
package native

import "errors"

//go:generate mockgen -destination=mocks/mock_native.go -package=mocks github.com/nidvy/host/internal/native Windowing,Engine

// ErrLoopNotRunnable is returned when an event loop handle does not belong to
// the Windowing implementation it is passed to.
var ErrLoopNotRunnable = errors.New("event loop handle not owned by this backend")

// EventLoop is an opaque native event-loop handle.
type EventLoop interface {
	// Wake delivers a synthetic event so the loop calls onWake soon.
	Wake()
	// Exit asks the loop to stop; RunEventLoop then returns code.
	Exit(code int)
}

// Window is an opaque native window handle.
type Window interface {
	ID() string
}

// Surface is an opaque rendering surface (webview) attached to a window.
type Surface interface {
	ID() string
}

// Windowing is the native event-loop and window subsystem.
type Windowing interface {
	// CreateEventLoop returns the process event loop, creating it on first
	// call. Later calls return the same handle.
	CreateEventLoop() (EventLoop, error)
	CreateWindow(loop EventLoop, title string, width, height uint32) (Window, error)
	// RunEventLoop blocks the calling OS thread until the loop exits,
	// invoking onWake once per delivered event, and returns the exit code.
	RunEventLoop(loop EventLoop, onWake func()) int
}

// Engine is the embedded rendering engine.
type Engine interface {
	CreateSurface(win Window, url string) (Surface, error)
	EvaluateScript(s Surface, source string) error
}
