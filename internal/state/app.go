// Package state holds the host's application state: the lazily created
// event loop and the single active window/surface pair.
//
// An App belongs to the goroutine running the native event loop. It has no
// locks; never hand it, or any handle it returns, to another goroutine.
package state

import (
	"fmt"

	"github.com/nidvy/host/internal/native"
)

type App struct {
	windowing native.Windowing
	engine    native.Engine

	loop    native.EventLoop
	window  native.Window
	surface native.Surface

	windowsCreated uint64
}

func New(windowing native.Windowing, engine native.Engine) *App {
	return &App{
		windowing: windowing,
		engine:    engine,
	}
}

func (a *App) Windowing() native.Windowing { return a.windowing }
func (a *App) Engine() native.Engine { return a.engine }

// EventLoop returns the process event loop, creating it on first use. A
// failed creation leaves the slot empty so a later call retries.
func (a *App) EventLoop() (native.EventLoop, error) {
	if a.loop != nil {
		return a.loop, nil
	}
	loop, err := a.windowing.CreateEventLoop()
	if err != nil {
		return nil, fmt.Errorf("create event loop: %w", err)
	}
	a.loop = loop
	return loop, nil
}

// ReplaceWindow installs win and surf as the active pair and returns the
// window it displaced, if any. The displaced window is not closed.
func (a *App) ReplaceWindow(win native.Window, surf native.Surface) native.Window {
	prev := a.window
	a.window = win
	a.surface = surf
	a.windowsCreated++
	return prev
}

// Window returns the active window, or nil.
func (a *App) Window() native.Window { return a.window }

// Surface returns the active surface, or nil.
func (a *App) Surface() native.Surface { return a.surface }

func (a *App) HasWindow() bool { return a.window != nil }

// WindowsCreated counts successful ReplaceWindow calls.
func (a *App) WindowsCreated() uint64 { return a.windowsCreated }
