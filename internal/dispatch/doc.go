// Package dispatch maps decoded commands to responses.
//
// Dispatch is total: every command, routable or not, yields exactly one
// response, and no failure on this path aborts the process. Handlers run
// synchronously on the caller's goroutine, which must be the goroutine that
// owns the native event loop, because they create and mutate native handles
// held in state.App.
//
// Methods:
//   - window.create: open a window and attach a webview to it. Params url,
//     title, width and height are optional; a field of the wrong shape falls
//     back to its default instead of being rejected. A successful call
//     replaces the active window without closing the previous one.
//   - window.eval: run a script in the active webview.
//
// Error responses always carry code -1. The error kind is the prefix of the
// message, e.g. "WINDOW_CREATE_ERROR: invalid window size 0x600".
package dispatch
