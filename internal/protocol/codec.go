package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrEncode marks a response that could not be serialized. The host treats
// it as fatal: every response it builds is made of already-validated values.
var ErrEncode = errors.New("encode response")

var errNotObject = errors.New("line is not a JSON object")

// DecodeError reports a command line that could not be decoded. The
// transport drops such lines without replying.
type DecodeError struct {
	Line []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode command: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodeCommand parses a single line into a Command.
// The line must hold exactly one JSON object whose id is a non-negative
// integer and whose type and method are strings; null fields count as absent
// and unknown fields are ignored.
func DecodeCommand(line []byte) (Command, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Command{}, &DecodeError{Line: line, Err: errNotObject}
	}

	var raw struct {
		ID     *uint64         `json:"id"`
		Type   *string         `json:"type"`
		Method *string         `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return Command{}, &DecodeError{Line: line, Err: err}
	}

	cmd := Command{ID: raw.ID}
	if raw.Type != nil {
		cmd.Type = *raw.Type
	}
	if raw.Method != nil {
		cmd.Method = *raw.Method
	}
	if len(raw.Params) > 0 && !bytes.Equal(raw.Params, []byte("null")) {
		cmd.Params = raw.Params
	}
	return cmd, nil
}

// EncodeResponse writes resp as one JSON line to w.
func EncodeResponse(w io.Writer, resp Response) error {
	if err := validateResponse(resp); err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	data = append(data, '\n')

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

// EncodeCommand writes cmd as one JSON line to w. Used by controllers.
func EncodeCommand(w io.Writer, cmd Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to encode command: %w", err)
	}
	data = append(data, '\n')

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

// DecodeResponse parses one response line. Used by controllers.
// Returns an error if the line is not JSON or breaks the result/error invariant.
func DecodeResponse(line []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(bytes.TrimSpace(line), &resp); err != nil {
		return Response{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if err := validateResponse(resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

func validateResponse(resp Response) error {
	switch resp.Type {
	case TypeResponse:
		if resp.Error != nil {
			return fmt.Errorf("response type %q carries an error", resp.Type)
		}
		if resp.Result == nil {
			return fmt.Errorf("response type %q has no result", resp.Type)
		}
	case TypeError:
		if resp.Error == nil {
			return fmt.Errorf("response type %q has no error body", resp.Type)
		}
		if resp.Result != nil {
			return fmt.Errorf("response type %q carries a result", resp.Type)
		}
	default:
		return fmt.Errorf("invalid response type: %q (must be 'response' or 'error')", resp.Type)
	}
	return nil
}
