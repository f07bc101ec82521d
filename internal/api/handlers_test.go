package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nidvy/host/internal/coordinator"
	"github.com/nidvy/host/internal/events"
	"github.com/nidvy/host/internal/journal"
	"github.com/nidvy/host/internal/log"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "json", nil) // Suppress logs in tests
	os.Exit(m.Run())
}

type fakeStatus struct {
	stats coordinator.Stats
}

func (f *fakeStatus) Stats() coordinator.Stats { return f.stats }

type fakeJournal struct {
	records []journal.Record
	err     error
	limit   int
}

func (f *fakeJournal) Recent(ctx context.Context, limit int) ([]journal.Record, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func newTestServer(status *fakeStatus, hub *events.Hub, j JournalReader) *Server {
	if status == nil {
		status = &fakeStatus{}
	}
	if hub == nil {
		hub = events.NewHub(10)
	}
	return New(Config{Listen: "127.0.0.1:0"}, status, hub, j, log.Discard())
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	rr := get(t, newTestServer(nil, nil, nil), "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp HealthzResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestStatus(t *testing.T) {
	status := &fakeStatus{stats: coordinator.Stats{
		SessionID:      "s-1",
		StartedAt:      time.Now().Add(-90 * time.Second),
		Running:        true,
		Dispatched:     7,
		Errors:         2,
		WindowActive:   true,
		WindowsCreated: 1,
		Pending:        3,
	}}

	rr := get(t, newTestServer(status, nil, nil), "/status")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "s-1", body["session_id"])
	assert.Equal(t, float64(7), body["commands_dispatched"])
	assert.Equal(t, float64(2), body["commands_failed"])
	assert.Equal(t, true, body["window_active"])
	assert.Equal(t, float64(3), body["queue_depth"])
	assert.GreaterOrEqual(t, body["uptime_seconds"], float64(89))
}

func TestEventsSince(t *testing.T) {
	hub := events.NewHub(10)
	hub.Publish(events.TypeHostReady, nil)
	hub.Publish(events.TypeCommandDispatched, map[string]any{"seq": 1})
	hub.Publish(events.TypeCommandDispatched, map[string]any{"seq": 2})

	s := newTestServer(nil, hub, nil)

	tests := []struct {
		name     string
		target   string
		wantCode int
		wantIDs  []int64
	}{
		{name: "all", target: "/events", wantCode: http.StatusOK, wantIDs: []int64{1, 2, 3}},
		{name: "since", target: "/events?since=2", wantCode: http.StatusOK, wantIDs: []int64{3}},
		{name: "nothing newer", target: "/events?since=3", wantCode: http.StatusOK, wantIDs: []int64{}},
		{name: "bad since", target: "/events?since=abc", wantCode: http.StatusBadRequest},
		{name: "negative since", target: "/events?since=-1", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := get(t, s, tt.target)
			require.Equal(t, tt.wantCode, rr.Code)
			if tt.wantCode != http.StatusOK {
				return
			}

			var resp EventsResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			ids := make([]int64, 0, len(resp.Events))
			for _, ev := range resp.Events {
				ids = append(ids, ev.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestJournal(t *testing.T) {
	id := uint64(4)
	j := &fakeJournal{records: []journal.Record{
		{Seq: 2, Method: "nope", Outcome: "error", ErrorKind: "UNKNOWN_METHOD", Response: json.RawMessage(`{"type":"error"}`)},
		{Seq: 1, RequestID: &id, Method: "window.create", Outcome: "response", Response: json.RawMessage(`{"id":4}`), Duration: 250 * time.Microsecond},
	}}
	s := newTestServer(&fakeStatus{stats: coordinator.Stats{SessionID: "s-2"}}, nil, j)

	rr := get(t, s, "/journal")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, defaultJournalLimit, j.limit)

	var resp JournalResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "s-2", resp.SessionID)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "UNKNOWN_METHOD", resp.Entries[0].ErrorKind)
	require.NotNil(t, resp.Entries[1].RequestID)
	assert.Equal(t, uint64(4), *resp.Entries[1].RequestID)
	assert.Equal(t, int64(250), resp.Entries[1].DurationUS)

	rr = get(t, s, "/journal?limit=5000")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, maxJournalLimit, j.limit)

	rr = get(t, s, "/journal?limit=0")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestJournalErrors(t *testing.T) {
	rr := get(t, newTestServer(nil, nil, nil), "/journal")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = get(t, newTestServer(nil, nil, &fakeJournal{err: errors.New("disk gone")}), "/journal")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "failed to read journal")
}

func TestEventStreamReplaysAndFollows(t *testing.T) {
	hub := events.NewHub(10)
	hub.Publish(events.TypeHostReady, nil)
	hub.Publish(events.TypeCommandDispatched, nil)

	srv := httptest.NewServer(newTestServer(nil, hub, nil).Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/events/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "1")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 20)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if strings.HasPrefix(sc.Text(), "id: ") {
				lines <- sc.Text()
			}
		}
	}()

	next := func() string {
		select {
		case l := <-lines:
			return l
		case <-time.After(2 * time.Second):
			t.Fatal("no event")
			return ""
		}
	}

	assert.Equal(t, "id: 2", next())
	hub.Publish(events.TypeTransportClosed, nil)
	assert.Equal(t, "id: 3", next())
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := newTestServer(nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
