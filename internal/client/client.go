// Package client is the controller side of the host protocol: it numbers
// commands, writes them as lines and pairs the host's replies with callers.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/nidvy/host/internal/log"
	"github.com/nidvy/host/internal/protocol"
)

const defaultCloseTimeout = 5 * time.Second

// ErrClosed is returned once the host's output has ended.
var ErrClosed = errors.New("host connection closed")

type Client struct {
	wmu sync.Mutex
	w   io.Writer

	nextID atomic.Uint64

	mu      sync.Mutex
	waiters map[uint64]chan protocol.Response

	unmatched chan protocol.Response
	done      chan struct{}
	logger    *slog.Logger

	proc         *exec.Cmd
	closeTimeout time.Duration
}

// New wraps a host's input (w) and output (r). Responses that no Call is
// waiting for are delivered on Responses.
func New(w io.Writer, r io.Reader, logger *slog.Logger) *Client {
	if logger == nil {
		logger = log.WithComponent("client")
	}
	c := &Client{
		w:         w,
		waiters:   make(map[uint64]chan protocol.Response),
		unmatched: make(chan protocol.Response, 64),
		done:      make(chan struct{}),
		logger:    logger,

		closeTimeout: defaultCloseTimeout,
	}
	go c.readLoop(r)
	return c
}

// Spawn starts the host binary at path and connects to its standard
// streams. The host's stderr is passed through to ours.
func Spawn(ctx context.Context, path string, args ...string) (*Client, error) {
	return SpawnWithStderr(ctx, os.Stderr, path, args...)
}

// SpawnWithStderr is Spawn with the host's log output sent to stderr.
func SpawnWithStderr(ctx context.Context, stderr io.Writer, path string, args ...string) (*Client, error) {
	proc := exec.CommandContext(ctx, path, args...)
	proc.Stderr = stderr

	stdin, err := proc.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := proc.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := proc.Start(); err != nil {
		return nil, fmt.Errorf("start host %s: %w", path, err)
	}

	c := New(stdin, stdout, log.WithComponent("client").With("pid", proc.Process.Pid))
	c.proc = proc
	return c, nil
}

func (c *Client) readLoop(r io.Reader) {
	defer close(c.done)

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			c.deliver(line)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Warn("host output read failed", "error", err)
			}
			return
		}
	}
}

func (c *Client) deliver(line []byte) {
	resp, err := protocol.DecodeResponse(line)
	if err != nil {
		c.logger.Warn("ignoring malformed response", "error", err)
		return
	}

	if resp.ID != nil {
		c.mu.Lock()
		ch, ok := c.waiters[*resp.ID]
		delete(c.waiters, *resp.ID)
		c.mu.Unlock()
		if ok {
			ch <- resp
			return
		}
	}

	select {
	case c.unmatched <- resp:
	default:
		c.logger.Warn("response buffer full, dropping response", "method", resp.Method)
	}
}

// Send writes a command with a fresh id and returns that id.
func (c *Client) Send(method string, params any) (uint64, error) {
	id := c.nextID.Add(1)
	return id, c.write(id, method, params)
}

// Call sends a command and waits for the response carrying its id.
func (c *Client) Call(ctx context.Context, method string, params any) (protocol.Response, error) {
	id := c.nextID.Add(1)
	ch := make(chan protocol.Response, 1)

	c.mu.Lock()
	c.waiters[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.waiters, id)
		c.mu.Unlock()
	}()

	if err := c.write(id, method, params); err != nil {
		return protocol.Response{}, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-c.done:
		// The reader may have delivered just before exiting.
		select {
		case resp := <-ch:
			return resp, nil
		default:
		}
		return protocol.Response{}, ErrClosed
	case <-ctx.Done():
		return protocol.Response{}, ctx.Err()
	}
}

func (c *Client) write(id uint64, method string, params any) error {
	cmd := protocol.Command{ID: &id, Method: method}
	if params != nil {
		raw, ok := params.(json.RawMessage)
		if !ok {
			b, err := json.Marshal(params)
			if err != nil {
				return fmt.Errorf("marshal params: %w", err)
			}
			raw = b
		}
		cmd.Params = raw
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	return protocol.EncodeCommand(c.w, cmd)
}

// Responses delivers replies no Call claimed, including id-less ones.
func (c *Client) Responses() <-chan protocol.Response {
	return c.unmatched
}

// Done is closed when the host's output ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close closes the host's input. A spawned host keeps running after its
// input ends, so it is also sent SIGTERM and waited for; a host still running
// after the close timeout is killed.
func (c *Client) Close() error {
	var err error
	if closer, ok := c.w.(io.Closer); ok {
		err = closer.Close()
	}
	if c.proc == nil {
		return err
	}

	if serr := c.proc.Process.Signal(syscall.SIGTERM); serr != nil && !errors.Is(serr, os.ErrProcessDone) {
		c.logger.Warn("failed to signal host", "error", serr)
	}
	// Let the reader see EOF before Wait closes the pipe.
	select {
	case <-c.done:
	case <-time.After(c.closeTimeout):
		c.logger.Warn("host ignored SIGTERM, killing", "timeout", c.closeTimeout)
		if kerr := c.proc.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			c.logger.Warn("failed to kill host", "error", kerr)
		}
	}
	if werr := c.proc.Wait(); werr != nil && err == nil {
		err = fmt.Errorf("host exited: %w", werr)
	}
	return err
}
