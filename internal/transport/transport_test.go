package transport

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nidvy/host/internal/log"
	"github.com/nidvy/host/internal/protocol"
)

func waitClosed(t *testing.T, rx *Receiver) {
	t.Helper()
	select {
	case <-rx.Closed():
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not stop")
	}
}

func drain(rx *Receiver) []protocol.Command {
	var out []protocol.Command
	for {
		cmd, ok := rx.TryRecv()
		if !ok {
			return out
		}
		out = append(out, cmd)
	}
}

func TestReaderPreservesOrder(t *testing.T) {
	input := strings.Join([]string{
		`{"id":1,"method":"a"}`,
		`{"id":2,"method":"b"}`,
		`{"id":3,"method":"c"}`,
	}, "\n") + "\n"

	rx := Start(strings.NewReader(input), log.Discard())
	waitClosed(t, rx)

	cmds := drain(rx)
	require.Len(t, cmds, 3)
	for i, cmd := range cmds {
		assert.Equal(t, uint64(i+1), *cmd.ID)
	}
	assert.Equal(t, uint64(3), rx.Received())
}

func TestReaderDropsMalformedLinesAndContinues(t *testing.T) {
	input := strings.Join([]string{
		`{"id":1,"method":"window.create"}`,
		`not json`,
		``,
		`{"id":"two","method":"x"}`,
		`[1,2,3]`,
		`{"id":2,"method":"window.create"`,
		`{"id":3,"method":"frobnicate"}`,
	}, "\n") + "\n"

	rx := Start(strings.NewReader(input), log.Discard())
	waitClosed(t, rx)

	cmds := drain(rx)
	require.Len(t, cmds, 2)
	assert.Equal(t, uint64(1), *cmds[0].ID)
	assert.Equal(t, uint64(3), *cmds[1].ID)
	assert.Equal(t, uint64(5), rx.Dropped())
}

func TestReaderHandlesCRLFAndFinalUnterminatedLine(t *testing.T) {
	input := "{\"id\":1,\"method\":\"a\"}\r\n{\"id\":2,\"method\":\"b\"}"

	rx := Start(strings.NewReader(input), log.Discard())
	waitClosed(t, rx)

	cmds := drain(rx)
	require.Len(t, cmds, 2)
	assert.Equal(t, "b", cmds[1].Method)
}

func TestReaderAcceptsLongLines(t *testing.T) {
	script := strings.Repeat("x", 256*1024)
	input := `{"method":"window.eval","params":{"script":"` + script + `"}}` + "\n"

	rx := Start(strings.NewReader(input), log.Discard())
	waitClosed(t, rx)

	cmds := drain(rx)
	require.Len(t, cmds, 1)
	assert.Greater(t, len(cmds[0].Params), 256*1024)
}

type failingReader struct{ sent bool }

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "{\"id\":1,\"method\":\"a\"}\n"), nil
	}
	return 0, errors.New("broken pipe")
}

func TestReaderStopsOnReadError(t *testing.T) {
	rx := Start(&failingReader{}, log.Discard())
	waitClosed(t, rx)

	cmds := drain(rx)
	require.Len(t, cmds, 1)

	// Still valid after close, just empty.
	_, ok := rx.TryRecv()
	assert.False(t, ok)
}

func TestReaderSignalsReadyPerArrival(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	rx := Start(pr, log.Discard())

	_, err := io.WriteString(pw, `{"id":1,"method":"a"}`+"\n")
	require.NoError(t, err)

	select {
	case <-rx.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("no ready signal")
	}
	cmd, ok := rx.TryRecv()
	require.True(t, ok)
	assert.Equal(t, "a", cmd.Method)
	assert.Equal(t, 0, rx.Pending())

	select {
	case <-rx.Closed():
		t.Fatal("reader closed while input still open")
	default:
	}
}

type countingWriter struct {
	bytes.Buffer
	writes int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.Buffer.Write(p)
}

func TestWriterFlushesEachResponse(t *testing.T) {
	out := &countingWriter{}
	w := NewWriter(out)

	id := uint64(1)
	require.NoError(t, w.Write(protocol.NewResult(protocol.Command{ID: &id, Method: "window.create"}, map[string]any{"success": true})))
	assert.Equal(t, 1, out.writes, "response must reach the stream without waiting for more output")
	assert.Equal(t, `{"id":1,"type":"response","method":"window.create","result":{"success":true}}`+"\n", out.String())

	require.NoError(t, w.Write(protocol.NewError(protocol.Command{Method: "x"}, "UNKNOWN_METHOD", "method not found")))
	assert.Equal(t, 2, out.writes)
	assert.Equal(t, 2, strings.Count(out.String(), "\n"))
}

func TestWriterReportsEncodeFailure(t *testing.T) {
	w := NewWriter(io.Discard)
	err := w.Write(protocol.Response{Type: "bogus"})
	assert.ErrorIs(t, err, protocol.ErrEncode)
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWriterReportsStreamFailure(t *testing.T) {
	w := NewWriter(brokenWriter{})
	err := w.Write(protocol.NewResult(protocol.Command{}, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.NotErrorIs(t, err, protocol.ErrEncode)
}
