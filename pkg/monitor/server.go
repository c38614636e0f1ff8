// Package monitor exposes the orchestrator's state over HTTP
// for dashboards and tooling: a JSON status endpoint, a
// Server-Sent Events stream, a WebSocket stream, Prometheus
// text metrics, and the execution log.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"

	"digital.vasic.automation/pkg/events"
	"digital.vasic.automation/pkg/execlog"
	"digital.vasic.automation/pkg/logging"
	"digital.vasic.automation/pkg/metrics"
	"digital.vasic.automation/pkg/orchestrator"
)

// Controller is the orchestrator surface the monitor reads
// from and drives. *orchestrator.Orchestrator satisfies it.
type Controller interface {
	GetStatus() orchestrator.Status
	GetLog(level, count int) []execlog.Entry
	StartSequence(startLevel, endLevel int) bool
	StartSingle(level int) bool
	Pause() bool
	Resume() bool
	Stop() bool
}

// Server serves the monitoring HTTP API. Live event delivery
// fans out from a single bus subscription to per-client
// buffered channels; a slow client drops events rather than
// blocking the bus.
type Server struct {
	mu      sync.RWMutex
	addr    string
	ctl     Controller
	bus     *events.Bus
	metrics *metrics.Collector
	logger  logging.Logger

	clients  map[chan []byte]struct{}
	server   *http.Server
	sub      events.SubscriptionID
	upgrader websocket.Upgrader
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics attaches a metrics collector, enabling the
// /metrics endpoint.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) { s.metrics = c }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a monitoring server bound to addr.
func NewServer(
	addr string,
	ctl Controller,
	bus *events.Bus,
	opts ...Option,
) *Server {
	s := &Server{
		addr:    addr,
		ctl:     ctl,
		bus:     bus,
		logger:  logging.NewNullLogger(),
		clients: make(map[chan []byte]struct{}),
		upgrader: websocket.Upgrader{
			// The dashboard is served from arbitrary origins
			// on a loopback-bound listener.
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the route table. Exposed separately so tests
// can drive it with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/log", s.handleLog)
	mux.HandleFunc("/events", s.handleSSE)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/control/", s.handleControl)
	mux.HandleFunc("/health", func(
		w http.ResponseWriter, _ *http.Request,
	) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// Start subscribes to the event bus and serves until ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.sub = s.bus.Subscribe(func(e events.Event) {
		data, err := json.Marshal(e)
		if err != nil {
			return
		}
		s.broadcast(data)
	})

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		s.server.Close()
	}()

	s.logger.Info("monitor server listening",
		logging.StringField("addr", s.addr),
	)
	err := s.server.ListenAndServe()
	s.bus.Unsubscribe(s.sub)
	if err != http.ErrServerClosed {
		return fmt.Errorf("monitor server: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleStatus(
	w http.ResponseWriter, _ *http.Request,
) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.ctl.GetStatus())
}

func (s *Server) handleLog(
	w http.ResponseWriter, r *http.Request,
) {
	level := queryInt(r, "level", 0)
	count := queryInt(r, "count", 50)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.ctl.GetLog(level, count))
}

func (s *Server) handleMetrics(
	w http.ResponseWriter, _ *http.Request,
) {
	if s.metrics == nil {
		http.Error(w, "metrics not enabled",
			http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type",
		"text/plain; version=0.0.4")
	w.Write([]byte(s.metrics.RenderPrometheus()))
}

// handleControl maps POST /control/{action} onto orchestrator
// operations. A rejected transition reports 409.
func (s *Server) handleControl(
	w http.ResponseWriter, r *http.Request,
) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed",
			http.StatusMethodNotAllowed)
		return
	}

	action := r.URL.Path[len("/control/"):]
	var ok bool
	switch action {
	case "start":
		start := queryInt(r, "start_level", 1)
		end := queryInt(r, "end_level", start)
		ok = s.ctl.StartSequence(start, end)
	case "run":
		level := queryInt(r, "level", 0)
		ok = s.ctl.StartSingle(level)
	case "pause":
		ok = s.ctl.Pause()
	case "resume":
		ok = s.ctl.Resume()
	case "stop":
		ok = s.ctl.Stop()
	default:
		http.Error(w, "unknown action",
			http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusConflict)
	}
	json.NewEncoder(w).Encode(map[string]bool{
		"accepted": ok,
	})
}

func (s *Server) handleSSE(
	w http.ResponseWriter, r *http.Request,
) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported",
			http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.register()
	defer s.unregister(ch)

	// Initial full status so the client does not have to
	// reconstruct state from the stream.
	if data, err := json.Marshal(
		s.ctl.GetStatus(),
	); err == nil {
		fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case data, open := <-ch:
			if !open {
				return
			}
			fmt.Fprintf(w,
				"event: challenge\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *Server) handleWebSocket(
	w http.ResponseWriter, r *http.Request,
) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed",
			logging.ErrorField(err),
		)
		return
	}
	defer conn.Close()

	ch := s.register()
	defer s.unregister(ch)

	if err := conn.WriteJSON(s.ctl.GetStatus()); err != nil {
		return
	}

	// Drain the read side so close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for data := range ch {
		err := conn.WriteMessage(
			websocket.TextMessage, data,
		)
		if err != nil {
			return
		}
	}
}

// clientBuffer bounds the per-client event queue.
const clientBuffer = 32

func (s *Server) register() chan []byte {
	ch := make(chan []byte, clientBuffer)
	s.mu.Lock()
	s.clients[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *Server) unregister(ch chan []byte) {
	s.mu.Lock()
	delete(s.clients, ch)
	s.mu.Unlock()
}

func (s *Server) broadcast(data []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ch := range s.clients {
		select {
		case ch <- data:
		default:
			// Client too slow, skip.
		}
	}
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
