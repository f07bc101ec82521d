package coordinator

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nidvy/host/internal/dispatch"
	"github.com/nidvy/host/internal/events"
	"github.com/nidvy/host/internal/journal"
	"github.com/nidvy/host/internal/log"
	"github.com/nidvy/host/internal/native"
	"github.com/nidvy/host/internal/native/headless"
	"github.com/nidvy/host/internal/native/mocks"
	"github.com/nidvy/host/internal/protocol"
	"github.com/nidvy/host/internal/transport"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "json", nil) // Suppress logs in tests
	os.Exit(m.Run())
}

type runResult struct {
	code int
	err  error
}

type recorder struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (r *recorder) Record(e journal.Entry) {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

func (r *recorder) Entries() []journal.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]journal.Entry(nil), r.entries...)
}

type harness struct {
	t       *testing.T
	in      *io.PipeWriter
	lines   chan string
	backend *headless.Backend
	coord   *Coordinator
	hub     *events.Hub
	journal *recorder
	cancel  context.CancelFunc
	done    chan struct{}
	result  runResult
}

func newHarness(t *testing.T, setup func(*headless.Backend)) *harness {
	t.Helper()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	backend := headless.New(log.Discard())
	if setup != nil {
		setup(backend)
	}

	h := &harness{
		t:       t,
		in:      inW,
		lines:   make(chan string, 100),
		backend: backend,
		hub:     events.NewHub(50),
		journal: &recorder{},
		done:    make(chan struct{}),
	}

	coord, err := New(Options{
		Receiver:   transport.Start(inR, log.Discard()),
		Writer:     transport.NewWriter(outW),
		Dispatcher: dispatch.New(dispatch.DefaultWindow(), log.Discard()),
		Windowing:  backend,
		Engine:     backend,
		Journal:    h.journal,
		Events:     h.hub,
		Logger:     log.Discard(),
		SessionID:  "test-session",
	})
	require.NoError(t, err)
	h.coord = coord

	go func() {
		sc := bufio.NewScanner(outR)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			h.lines <- sc.Text()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		code, err := coord.Run(ctx)
		h.result = runResult{code: code, err: err}
		close(h.done)
	}()

	t.Cleanup(func() {
		_ = outR.Close()
		_ = inW.Close()
		cancel()
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Error("coordinator did not stop")
		}
	})
	return h
}

func (h *harness) send(lines ...string) {
	h.t.Helper()
	_, err := io.WriteString(h.in, strings.Join(lines, "\n")+"\n")
	require.NoError(h.t, err)
}

func (h *harness) recv() protocol.Response {
	h.t.Helper()
	select {
	case line := <-h.lines:
		resp, err := protocol.DecodeResponse([]byte(line))
		require.NoError(h.t, err, "line %q", line)
		return resp
	case <-time.After(2 * time.Second):
		h.t.Fatal("no response")
		return protocol.Response{}
	}
}

func (h *harness) recvRaw() string {
	h.t.Helper()
	select {
	case line := <-h.lines:
		return line
	case <-time.After(2 * time.Second):
		h.t.Fatal("no response")
		return ""
	}
}

func (h *harness) assertNoMoreOutput() {
	h.t.Helper()
	select {
	case line := <-h.lines:
		h.t.Fatalf("unexpected output %q", line)
	case <-time.After(100 * time.Millisecond):
	}
}

func (h *harness) wait() runResult {
	h.t.Helper()
	select {
	case <-h.done:
		return h.result
	case <-time.After(2 * time.Second):
		h.t.Fatal("coordinator did not exit")
		return runResult{}
	}
}

func TestRunAnswersInArrivalOrder(t *testing.T) {
	h := newHarness(t, nil)

	h.send(
		`{"id":1,"type":"request","method":"window.create","params":{"title":"A"}}`,
		`{"id":2,"method":"frobnicate"}`,
		`{"id":3,"method":"window.eval","params":{"script":"document.title"}}`,
	)

	first := h.recv()
	second := h.recv()
	third := h.recv()

	require.NotNil(t, first.ID)
	require.NotNil(t, second.ID)
	require.NotNil(t, third.ID)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{*first.ID, *second.ID, *third.ID})

	assert.Equal(t, protocol.TypeResponse, first.Type)
	assert.Equal(t, protocol.TypeError, second.Type)
	assert.Equal(t, protocol.TypeResponse, third.Type)

	surfaces := h.backend.Surfaces()
	require.Len(t, surfaces, 1)
	assert.Equal(t, []string{"document.title"}, surfaces[0].Scripts())
}

func TestRunAnswersInArrivalOrderWhenADispatchIsSlow(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := headless.New(log.Discard())
	windowing := mocks.NewMockWindowing(ctrl)

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	rx := transport.Start(inR, log.Discard())

	windowing.EXPECT().CreateEventLoop().DoAndReturn(backend.CreateEventLoop)
	windowing.EXPECT().RunEventLoop(gomock.Any(), gomock.Any()).DoAndReturn(backend.RunEventLoop)
	slow := windowing.EXPECT().CreateWindow(gomock.Any(), "slow", gomock.Any(), gomock.Any()).
		DoAndReturn(func(loop native.EventLoop, title string, w, h uint32) (native.Window, error) {
			// Hold the loop thread until the later commands are queued behind us.
			deadline := time.Now().Add(2 * time.Second)
			for rx.Pending() < 2 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			time.Sleep(50 * time.Millisecond)
			return backend.CreateWindow(loop, title, w, h)
		})
	windowing.EXPECT().CreateWindow(gomock.Any(), "fast", gomock.Any(), gomock.Any()).
		DoAndReturn(backend.CreateWindow).After(slow)

	coord, err := New(Options{
		Receiver:   rx,
		Writer:     transport.NewWriter(outW),
		Dispatcher: dispatch.New(dispatch.DefaultWindow(), log.Discard()),
		Windowing:  windowing,
		Engine:     backend,
		Logger:     log.Discard(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = coord.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		_ = inW.Close()
		_ = outR.Close()
		<-done
	})

	_, err = io.WriteString(inW, strings.Join([]string{
		`{"id":1,"method":"window.create","params":{"title":"slow"}}`,
		`{"id":2,"method":"window.create","params":{"title":"fast"}}`,
		`{"id":3,"method":"frobnicate"}`,
	}, "\n")+"\n")
	require.NoError(t, err)

	sc := bufio.NewScanner(outR)
	var ids []uint64
	for len(ids) < 3 && sc.Scan() {
		resp, err := protocol.DecodeResponse(sc.Bytes())
		require.NoError(t, err)
		require.NotNil(t, resp.ID)
		ids = append(ids, *resp.ID)
	}
	assert.Equal(t, []uint64{1, 2, 3}, ids)

	windows := backend.Windows()
	require.Len(t, windows, 2)
	assert.Equal(t, "slow", windows[0].Title())
	assert.Equal(t, "fast", windows[1].Title())
}

func TestRunWindowCreateDefaults(t *testing.T) {
	h := newHarness(t, nil)

	h.send(`{"method":"window.create","params":{}}`)

	raw := h.recvRaw()
	assert.JSONEq(t, `{"type":"response","method":"window.create","result":{"success":true}}`, raw)

	windows := h.backend.Windows()
	require.Len(t, windows, 1)
	assert.Equal(t, "Nidvy", windows[0].Title())
	w, hgt := windows[0].Size()
	assert.Equal(t, uint32(800), w)
	assert.Equal(t, uint32(600), hgt)

	surfaces := h.backend.Surfaces()
	require.Len(t, surfaces, 1)
	assert.Equal(t, "https://www.baidu.com", surfaces[0].URL())
}

func TestRunMalformedLinesGetNoReply(t *testing.T) {
	h := newHarness(t, nil)

	h.send(`garbage`, `{"id":"x"}`, `{"id":9,"method":"frobnicate"}`)

	resp := h.recv()
	require.NotNil(t, resp.ID)
	assert.Equal(t, uint64(9), *resp.ID)
	require.NotNil(t, resp.Error)
	assert.Equal(t, -1, resp.Error.Code)
	assert.True(t, strings.HasPrefix(resp.Error.Message, "UNKNOWN_METHOD:"), resp.Error.Message)
	h.assertNoMoreOutput()

	require.Eventually(t, func() bool { return h.coord.Stats().Dropped == 2 }, time.Second, 10*time.Millisecond)
}

func TestRunSecondCreateReplacesWithoutClosing(t *testing.T) {
	h := newHarness(t, nil)

	h.send(
		`{"id":1,"method":"window.create","params":{"title":"one"}}`,
		`{"id":2,"method":"window.create","params":{"title":"two"}}`,
	)
	assert.True(t, h.recv().OK())
	assert.True(t, h.recv().OK())

	windows := h.backend.Windows()
	require.Len(t, windows, 2)
	assert.False(t, windows[0].Closed())
	assert.False(t, windows[1].Closed())

	require.Eventually(t, func() bool { return h.coord.Stats().Dispatched == 2 }, time.Second, 10*time.Millisecond)
	stats := h.coord.Stats()
	assert.Equal(t, uint64(2), stats.WindowsCreated)
	assert.True(t, stats.WindowActive)
}

func TestRunWindowCreateFailureIsReported(t *testing.T) {
	h := newHarness(t, func(b *headless.Backend) {
		b.SetFailure(headless.OpSurface, errors.New("engine unavailable"))
	})

	h.send(`{"id":4,"method":"window.create"}`)

	resp := h.recv()
	require.NotNil(t, resp.Error)
	assert.Equal(t, "WINDOW_CREATE_ERROR: engine unavailable", resp.Error.Message)
	assert.Equal(t, "window.create", resp.Method)

	require.Eventually(t, func() bool { return h.coord.Stats().Dispatched == 1 }, time.Second, 10*time.Millisecond)
	stats := h.coord.Stats()
	assert.Equal(t, uint64(1), stats.Errors)
	assert.False(t, stats.WindowActive)
}

func TestRunExitsWhenWindowCloses(t *testing.T) {
	h := newHarness(t, nil)

	h.send(`{"id":1,"method":"window.create"}`)
	require.True(t, h.recv().OK())

	h.backend.Windows()[0].Close()

	r := h.wait()
	require.NoError(t, r.err)
	assert.Equal(t, 0, r.code)
	assert.False(t, h.coord.Stats().Running)
}

func TestRunKeepsServingAfterInputCloses(t *testing.T) {
	h := newHarness(t, nil)

	h.send(`{"id":1,"method":"window.create"}`)
	require.True(t, h.recv().OK())
	require.NoError(t, h.in.Close())

	require.Eventually(t, func() bool {
		for _, ev := range h.hub.SnapshotSince(0) {
			if ev.Type == events.TypeTransportClosed {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	select {
	case <-h.done:
		t.Fatal("host exited on input close")
	case <-time.After(100 * time.Millisecond):
	}
	assert.True(t, h.coord.Stats().Running)
}

func TestRunContextCancelExitsCleanly(t *testing.T) {
	h := newHarness(t, nil)

	require.Eventually(t, func() bool { return h.coord.Stats().Running }, time.Second, 10*time.Millisecond)
	h.cancel()

	r := h.wait()
	require.NoError(t, r.err)
	assert.Equal(t, 0, r.code)
}

func TestRunRecordsJournalAndEvents(t *testing.T) {
	h := newHarness(t, nil)

	h.send(`{"id":5,"method":"window.create"}`, `{"method":"nope"}`)
	h.recv()
	h.recv()

	// Recording happens after the response is written.
	require.Eventually(t, func() bool { return len(h.journal.Entries()) == 2 }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(h.hub.SnapshotSince(0)) == 3 }, time.Second, 10*time.Millisecond)

	entries := h.journal.Entries()
	assert.Equal(t, uint64(1), entries[0].Seq)
	assert.Equal(t, "window.create", entries[0].Command.Method)
	assert.True(t, entries[0].Response.OK())
	assert.Equal(t, uint64(2), entries[1].Seq)
	assert.Nil(t, entries[1].Response.ID)
	assert.False(t, entries[1].Response.OK())

	snap := h.hub.SnapshotSince(0)
	require.Len(t, snap, 3)
	assert.Equal(t, events.TypeHostReady, snap[0].Type)
	assert.Equal(t, events.TypeCommandDispatched, snap[1].Type)
	assert.Equal(t, events.TypeCommandDispatched, snap[2].Type)

	var data map[string]any
	require.NoError(t, json.Unmarshal(snap[2].Data, &data))
	assert.Equal(t, "nope", data["method"])
	assert.Equal(t, "UNKNOWN_METHOD", data["error_kind"])
	assert.NotContains(t, data, "request_id")
}

func TestRunFailsWhenEventLoopCannotBeCreated(t *testing.T) {
	ctrl := gomock.NewController(t)
	windowing := mocks.NewMockWindowing(ctrl)
	engine := mocks.NewMockEngine(ctrl)

	boom := errors.New("no display")
	windowing.EXPECT().CreateEventLoop().Return(nil, boom)

	coord, err := New(Options{
		Receiver:   transport.Start(strings.NewReader(""), log.Discard()),
		Writer:     transport.NewWriter(io.Discard),
		Dispatcher: dispatch.New(dispatch.DefaultWindow(), log.Discard()),
		Windowing:  windowing,
		Engine:     engine,
		Logger:     log.Discard(),
	})
	require.NoError(t, err)

	code, err := coord.Run(context.Background())
	assert.Equal(t, 1, code)
	assert.ErrorIs(t, err, boom)

	code, err = coord.Run(context.Background())
	assert.Equal(t, 1, code)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}
