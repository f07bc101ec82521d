package protocol

import (
	"encoding/json"
	"strings"
)

// Response type tags.
const (
	TypeResponse = "response"
	TypeError    = "error"
)

// ErrorCodeGeneric is the numeric code carried by every error response.
// The kind lives in the message prefix (see ErrorKind); controllers in the
// field parse the text, so the number stays a fixed sentinel.
const ErrorCodeGeneric = -1

// Command is one request line sent by the controller on stdin.
type Command struct {
	ID     *uint64         `json:"id,omitempty"`     // echoed verbatim in the response
	Type   string          `json:"type,omitempty"`   // informational
	Method string          `json:"method,omitempty"` // empty means unroutable
	Params json.RawMessage `json:"params,omitempty"` // method specific, any JSON value
}

// Response is one reply line written to stdout.
// Build it with NewResult or NewError so that exactly one of Result and
// Error is set.
type Response struct {
	ID     *uint64 `json:"id,omitempty"`
	Type   string  `json:"type"` // response | error
	Method string  `json:"method,omitempty"`
	Result any     `json:"result,omitempty"`
	Error  *Error  `json:"error,omitempty"`
}

// Error is the failure body of an error response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewResult builds a success response for cmd.
func NewResult(cmd Command, result any) Response {
	if result == nil {
		result = map[string]any{}
	}
	return Response{
		ID:     cmd.ID,
		Type:   TypeResponse,
		Method: cmd.Method,
		Result: result,
	}
}

// NewError builds an error response for cmd whose message is "<kind>: <message>".
func NewError(cmd Command, kind, message string) Response {
	return Response{
		ID:     cmd.ID,
		Type:   TypeError,
		Method: cmd.Method,
		Error: &Error{
			Code:    ErrorCodeGeneric,
			Message: kind + ": " + message,
		},
	}
}

// OK reports whether r is a success response.
func (r Response) OK() bool {
	return r.Error == nil
}

// ErrorKind returns the kind prefix of an error message, e.g.
// "WINDOW_CREATE_ERROR" for "WINDOW_CREATE_ERROR: no display". It returns ""
// when the message carries no prefix.
func ErrorKind(message string) string {
	kind, _, ok := strings.Cut(message, ":")
	if !ok {
		return ""
	}
	return kind
}
