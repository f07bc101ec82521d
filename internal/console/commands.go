package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nidvy/host/internal/protocol"
)

const callTimeout = 30 * time.Second

// Caller is the host connection the console drives. *client.Client
// implements it.
type Caller interface {
	Call(ctx context.Context, method string, params any) (protocol.Response, error)
	Responses() <-chan protocol.Response
	Done() <-chan struct{}
}

// --- Message types ---

type responseMsg struct {
	resp protocol.Response
	err  error
}

type strayMsg protocol.Response

type hostClosedMsg struct{}

// ParseLine splits console input of the form `method [params-json]`.
func ParseLine(line string) (string, json.RawMessage, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil, errors.New("empty command")
	}

	method, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return method, nil, nil
	}
	if !json.Valid([]byte(rest)) {
		return "", nil, fmt.Errorf("params are not valid JSON: %s", rest)
	}
	return method, json.RawMessage(rest), nil
}

// --- Commands ---

func call(c Caller, method string, params json.RawMessage) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()

		var p any
		if params != nil {
			p = params
		}
		resp, err := c.Call(ctx, method, p)
		return responseMsg{resp: resp, err: err}
	}
}

// waitForStray delivers the next response no call claimed, or reports that
// the host went away.
func waitForStray(c Caller) tea.Cmd {
	return func() tea.Msg {
		select {
		case resp := <-c.Responses():
			return strayMsg(resp)
		case <-c.Done():
			return hostClosedMsg{}
		}
	}
}
