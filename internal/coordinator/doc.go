// Package coordinator runs the host's event loop and serves controller
// commands on it.
//
// Run pins its goroutine to an OS thread, creates the native event loop and
// hands control to it. A pump goroutine turns "commands queued" signals from
// the transport into EventLoop.Wake calls; each wake drains the queue and
// dispatches every command in arrival order, writing one response line per
// command before looking at the next.
//
// All native state lives on the loop thread. Other goroutines see the host
// only through Stats and the optional event hub.
//
// Dispatch is synchronous and has no timeout: a slow native call delays every
// later command. Methods that can run long must hand work to a separate
// goroutine and report back through the loop instead of blocking it.
package coordinator
