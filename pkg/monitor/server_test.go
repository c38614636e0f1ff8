package monitor

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital.vasic.automation/pkg/events"
	"digital.vasic.automation/pkg/execlog"
	"digital.vasic.automation/pkg/metrics"
	"digital.vasic.automation/pkg/orchestrator"
)

// stubController records control calls and serves canned
// state.
type stubController struct {
	mu      sync.Mutex
	status  orchestrator.Status
	entries []execlog.Entry
	calls   []string
	accept  bool
}

func (s *stubController) GetStatus() orchestrator.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *stubController) GetLog(
	level, count int,
) []execlog.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries
}

func (s *stubController) record(call string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	return s.accept
}

func (s *stubController) StartSequence(lo, hi int) bool {
	return s.record("sequence")
}
func (s *stubController) StartSingle(level int) bool {
	return s.record("single")
}
func (s *stubController) Pause() bool {
	return s.record("pause")
}
func (s *stubController) Resume() bool {
	return s.record("resume")
}
func (s *stubController) Stop() bool {
	return s.record("stop")
}

func (s *stubController) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func newTestServer(
	ctl *stubController,
	opts ...Option,
) (*Server, *events.Bus, *httptest.Server) {
	bus := events.NewBus(10)
	srv := NewServer("127.0.0.1:0", ctl, bus, opts...)

	// Wire the broadcast path the way Start does, without a
	// real listener.
	bus.Subscribe(func(e events.Event) {
		data, err := json.Marshal(e)
		if err != nil {
			return
		}
		srv.broadcast(data)
	})
	ts := httptest.NewServer(srv.Handler())
	return srv, bus, ts
}

func TestStatusEndpoint(t *testing.T) {
	ctl := &stubController{
		status: orchestrator.Status{
			State: orchestrator.StateRunning,
			RunID: "run-1",
		},
	}
	_, _, ts := newTestServer(ctl)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got orchestrator.Status
	require.NoError(t,
		json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, orchestrator.StateRunning, got.State)
	assert.Equal(t, "run-1", got.RunID)
}

func TestHealthEndpoint(t *testing.T) {
	_, _, ts := newTestServer(&stubController{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogEndpoint(t *testing.T) {
	ctl := &stubController{
		entries: []execlog.Entry{{
			Level:     1,
			EventType: "challenge_started",
			Message:   "Challenge started",
		}},
	}
	_, _, ts := newTestServer(ctl)
	defer ts.Close()

	resp, err := http.Get(
		ts.URL + "/log?level=1&count=10",
	)
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []execlog.Entry
	require.NoError(t,
		json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "challenge_started",
		got[0].EventType)
}

func TestMetricsEndpoint(t *testing.T) {
	collector := metrics.NewCollector()
	collector.IncrementRunTotal()
	_, _, ts := newTestServer(
		&stubController{}, WithMetrics(collector),
	)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	buf := make([]byte, 4096)
	n, _ := resp.Body.Read(buf)
	assert.Contains(t, string(buf[:n]),
		"challenge_runs_total 1")
}

func TestMetricsEndpointDisabled(t *testing.T) {
	_, _, ts := newTestServer(&stubController{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestControlEndpoints(t *testing.T) {
	ctl := &stubController{accept: true}
	_, _, ts := newTestServer(ctl)
	defer ts.Close()

	for _, action := range []string{
		"start", "run", "pause", "resume", "stop",
	} {
		resp, err := http.Post(
			ts.URL+"/control/"+action, "", nil,
		)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode,
			"action %s", action)
	}
	assert.Equal(t, []string{
		"sequence", "single", "pause", "resume", "stop",
	}, ctl.recorded())
}

func TestControlRejectedTransitionIs409(t *testing.T) {
	ctl := &stubController{accept: false}
	_, _, ts := newTestServer(ctl)
	defer ts.Close()

	resp, err := http.Post(
		ts.URL+"/control/pause", "", nil,
	)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var body map[string]bool
	require.NoError(t,
		json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body["accepted"])
}

func TestControlUnknownActionAndMethod(t *testing.T) {
	_, _, ts := newTestServer(&stubController{})
	defer ts.Close()

	resp, err := http.Post(
		ts.URL+"/control/reboot", "", nil,
	)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/control/pause")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t,
		http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestSSEStreamDeliversEvents(t *testing.T) {
	_, bus, ts := newTestServer(&stubController{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream",
		resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)

	// The first frame is the status snapshot.
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: status", strings.TrimSpace(line))

	// Drain the rest of the status frame.
	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.TrimSpace(line) == "" {
			break
		}
	}

	// Wait for the subscription to be live, then publish.
	time.Sleep(10 * time.Millisecond)
	bus.Publish(events.New(
		events.TypeChallengeStarted, 1, nil,
	))

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: challenge",
		strings.TrimSpace(line))

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t,
		strings.HasPrefix(line, "data: "))

	var e events.Event
	require.NoError(t, json.Unmarshal(
		[]byte(strings.TrimPrefix(line, "data: ")), &e,
	))
	assert.Equal(t, events.TypeChallengeStarted, e.Type)
	assert.Equal(t, 1, e.Level)
}

func TestWebSocketStream(t *testing.T) {
	ctl := &stubController{
		status: orchestrator.Status{
			State: orchestrator.StateIdle,
		},
	}
	_, bus, ts := newTestServer(ctl)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") +
		"/ws"
	conn, _, err := websocket.DefaultDialer.Dial(
		wsURL, nil,
	)
	require.NoError(t, err)
	defer conn.Close()

	// First message is the status snapshot.
	var status orchestrator.Status
	require.NoError(t, conn.ReadJSON(&status))
	assert.Equal(t, orchestrator.StateIdle, status.State)

	time.Sleep(10 * time.Millisecond)
	bus.Publish(events.New(
		events.TypeChallengeComplete, 2, nil,
	))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var e events.Event
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, events.TypeChallengeComplete, e.Type)
	assert.Equal(t, 2, e.Level)
}

func TestSlowClientDoesNotBlockBroadcast(t *testing.T) {
	srv := NewServer(
		"127.0.0.1:0", &stubController{}, events.NewBus(10),
	)

	ch := srv.register()
	defer srv.unregister(ch)

	// Fill the client buffer past capacity; broadcast must
	// not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < clientBuffer*2; i++ {
			srv.broadcast([]byte("x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
	assert.Len(t, ch, clientBuffer)
}
