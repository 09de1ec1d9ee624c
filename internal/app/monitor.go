// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/coot/internal/sample"
)

const (
	wsSendBuffer   = 8
	wsWriteTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local network dashboard
	},
}

// Monitor serves health, the latest sample, metrics and a websocket feed.
// It is also an emit.Emitter: every emitted sample becomes the latest one
// and is pushed to connected websocket clients.
type Monitor struct {
	logger   *slog.Logger
	gatherer prometheus.Gatherer

	mu     sync.RWMutex // guards latest, have and ln
	latest sample.Sample
	have   bool

	clientsMu sync.Mutex
	clients   map[*wsClient]struct{}

	srv *http.Server
	ln  net.Listener
}

type wsClient struct {
	conn   *websocket.Conn
	remote string
	send   chan []byte
}

func NewMonitor(addr string, gatherer prometheus.Gatherer, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{
		logger:   logger.With("component", "monitor"),
		gatherer: gatherer,
		clients:  make(map[*wsClient]struct{}),
	}
	m.srv = &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return m
}

// Handler returns the monitor routes.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", m.handleHealth)
	mux.HandleFunc("GET /api/latest", m.handleLatest)
	mux.HandleFunc("GET /ws", m.handleWS)
	if m.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start listens on the configured address and serves in the background.
func (m *Monitor) Start() error {
	ln, err := net.Listen("tcp", m.srv.Addr)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.ln = ln
	m.mu.Unlock()
	m.logger.Info("monitor listening", "addr", ln.Addr().String())

	go func() {
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("monitor server stopped", "error", err)
		}
	}()
	return nil
}

// Addr is the bound listen address, valid after Start.
func (m *Monitor) Addr() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ln == nil {
		return m.srv.Addr
	}
	return m.ln.Addr().String()
}

// Shutdown stops the server and disconnects websocket clients.
func (m *Monitor) Shutdown(ctx context.Context) error {
	err := m.srv.Shutdown(ctx)

	m.clientsMu.Lock()
	for c := range m.clients {
		m.dropLocked(c)
	}
	m.clientsMu.Unlock()
	return err
}

func (m *Monitor) Emit(s sample.Sample) error {
	m.mu.Lock()
	m.latest = s
	m.have = true
	m.mu.Unlock()

	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}

	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	for c := range m.clients {
		select {
		case c.send <- payload:
		default:
			m.logger.Warn("dropping slow websocket client", "remote", c.remote)
			m.dropLocked(c)
		}
	}
	return nil
}

// Latest returns the most recent sample and whether one exists.
func (m *Monitor) Latest() (sample.Sample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, m.have
}

func (m *Monitor) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (m *Monitor) handleLatest(w http.ResponseWriter, r *http.Request) {
	s, ok := m.Latest()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s); err != nil {
		m.logger.Warn("json encode error", "error", err)
	}
}

func (m *Monitor) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{conn: conn, remote: r.RemoteAddr, send: make(chan []byte, wsSendBuffer)}
	m.clientsMu.Lock()
	m.clients[c] = struct{}{}
	m.clientsMu.Unlock()

	go m.writePump(c)
	go m.readPump(c)
}

// writePump owns all writes to the connection and closes it when send is
// closed.
func (m *Monitor) writePump(c *wsClient) {
	defer c.conn.Close()
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			m.drop(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

// readPump discards client messages and notices disconnects.
func (m *Monitor) readPump(c *wsClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			m.drop(c)
			return
		}
	}
}

func (m *Monitor) drop(c *wsClient) {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	m.dropLocked(c)
}

func (m *Monitor) dropLocked(c *wsClient) {
	if _, ok := m.clients[c]; !ok {
		return
	}
	delete(m.clients, c)
	close(c.send)
}
