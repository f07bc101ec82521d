// Package transport moves protocol lines between the host's standard streams
// and the coordinator.
//
// Start runs one reader goroutine that decodes each input line and pushes it
// onto an unbounded queue in read order. Lines that fail to decode are
// dropped without a reply. When the input ends or fails the goroutine exits
// and the receiver yields whatever is still queued, then nothing.
package transport

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/nidvy/host/internal/log"
	"github.com/nidvy/host/internal/protocol"
	"github.com/nidvy/host/internal/queue"
)

// Receiver is the consumer side of the command queue. Every method is
// non-blocking.
type Receiver struct {
	q        *queue.Queue[protocol.Command]
	received atomic.Uint64
	dropped  atomic.Uint64
	logger   *slog.Logger
}

// Start spawns the reader goroutine over r and returns its receiver.
func Start(r io.Reader, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = log.WithComponent("transport")
	}
	rx := &Receiver{
		q:      queue.New[protocol.Command](),
		logger: logger,
	}
	go rx.readLoop(r)
	return rx
}

func (rx *Receiver) readLoop(r io.Reader) {
	defer rx.q.Close()

	br := bufio.NewReader(r)
	for {
		// ReadBytes has no line length cap, unlike bufio.Scanner.
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			rx.handleLine(line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				rx.logger.Info("input closed")
			} else {
				rx.logger.Warn("input read failed, no further commands", "error", err)
			}
			return
		}
	}
}

func (rx *Receiver) handleLine(line []byte) {
	line = bytes.TrimRight(line, "\r\n")

	cmd, err := protocol.DecodeCommand(line)
	if err != nil {
		rx.dropped.Add(1)
		rx.logger.Debug("dropping malformed line", "error", err, "bytes", len(line))
		return
	}

	rx.received.Add(1)
	rx.q.Push(cmd)
}

// TryRecv pops the oldest decoded command. Returns false when none is queued.
func (rx *Receiver) TryRecv() (protocol.Command, bool) {
	return rx.q.TryPop()
}

// Ready fires after new commands are queued.
func (rx *Receiver) Ready() <-chan struct{} {
	return rx.q.Ready()
}

// Closed is closed once the reader goroutine has exited.
func (rx *Receiver) Closed() <-chan struct{} {
	return rx.q.Done()
}

// Pending returns the number of queued commands.
func (rx *Receiver) Pending() int {
	return rx.q.Len()
}

// Received returns how many lines decoded successfully.
func (rx *Receiver) Received() uint64 {
	return rx.received.Load()
}

// Dropped returns how many lines failed to decode.
func (rx *Receiver) Dropped() uint64 {
	return rx.dropped.Load()
}

// Writer writes responses one line at a time, flushing after each so the
// controller sees every reply immediately. It is not safe for concurrent use;
// only the coordinator writes.
type Writer struct {
	bw *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// Write encodes resp as one line and flushes it. Encoding failures wrap
// protocol.ErrEncode.
func (w *Writer) Write(resp protocol.Response) error {
	if err := protocol.EncodeResponse(w.bw, resp); err != nil {
		return err
	}
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("flush response: %w", err)
	}
	return nil
}
