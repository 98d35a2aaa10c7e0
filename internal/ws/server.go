// Package ws implements the WebSocket transport: upgrading HTTP connections,
// maintaining active connections, and dispatching inbound frames to the
// session layer. It is built on gobwas/ws with a Linux epoll event loop and a
// bounded worker pool, so idle connections cost no goroutines.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/blinkpair/signal-server/internal/logx"
	"github.com/blinkpair/signal-server/internal/metrics"
	"github.com/blinkpair/signal-server/internal/ratelimit"
)

// ServerConfig holds tunable parameters for the WebSocket server.
type ServerConfig struct {
	ListenAddr     string        // address to listen on, e.g. ":8080"
	WorkerPoolSize int           // max concurrent read-worker goroutines
	MaxConnections int           // hard cap on total connections
	ReadTimeout    time.Duration // timeout for WebSocket read operations
	WriteTimeout   time.Duration // timeout for WebSocket write operations
	AllowedOrigins []string      // origins accepted for upgrades; empty = development-only allow-all
	Development    bool          // relaxes origin checking
	ConnectRate    float64       // WS upgrades per second per IP
	ConnectBurst   int           // WS upgrade burst per IP
}

// DefaultServerConfig returns a ServerConfig with production defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:     ":8080",
		WorkerPoolSize: 256,
		MaxConnections: 100000,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		ConnectRate:    1,
		ConnectBurst:   5,
	}
}

// Server accepts WebSocket connections, registers them with the epoll
// instance, and hands complete text frames to the onMessage callback from a
// bounded worker pool.
type Server struct {
	config       ServerConfig
	epoll        *Epoll
	conns        *Manager
	workerPool   chan struct{}                       // semaphore limiting concurrent read workers
	onMessage    func(conn *Connection, data []byte) // inbound frame callback
	onConnect    func(connID string)                 // called when a connection is established
	onDisconnect func(connID string)                 // called when a connection is removed
	connLimiter  *ratelimit.Limiter
	httpServer   *http.Server
	done         chan struct{}
	startedAt    time.Time
}

// NewServer creates a Server with the given configuration and message
// callback. The callback runs on a worker goroutine per ready frame.
func NewServer(config ServerConfig, onMessage func(conn *Connection, data []byte)) *Server {
	return &Server{
		config:      config,
		conns:       NewManager(),
		workerPool:  make(chan struct{}, config.WorkerPoolSize),
		onMessage:   onMessage,
		connLimiter: ratelimit.NewLimiter(config.ConnectRate, config.ConnectBurst),
		done:        make(chan struct{}),
	}
}

// SetOnConnect registers a callback invoked after a connection has been
// accepted and registered, before any frame from it is dispatched.
func (s *Server) SetOnConnect(fn func(connID string)) {
	s.onConnect = fn
}

// SetOnDisconnect registers a callback invoked when a connection is removed
// due to read error, heartbeat timeout, or graceful close.
func (s *Server) SetOnDisconnect(fn func(connID string)) {
	s.onDisconnect = fn
}

// Start initializes the epoll instance, sets up the HTTP routes, and begins
// accepting connections. It blocks on ListenAndServe.
func (s *Server) Start() error {
	var err error
	s.epoll, err = NewEpoll()
	if err != nil {
		return fmt.Errorf("ws: failed to create epoll: %w", err)
	}

	s.startedAt = time.Now()

	r := chi.NewRouter()
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins(),
		AllowedMethods: []string{http.MethodGet},
	}).Handler)

	r.With(s.connLimiter.Middleware).Get("/ws", s.handleUpgrade)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.httpServer = &http.Server{
		Addr:    s.config.ListenAddr,
		Handler: r,
	}

	go s.startEventLoop()

	StartHeartbeat(s, DefaultHeartbeatConfig())

	logx.Info("websocket server listening",
		"addr", s.config.ListenAddr,
		"workers", s.config.WorkerPoolSize,
		"max_conns", s.config.MaxConnections)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ws: http server error: %w", err)
	}
	return nil
}

// corsOrigins maps the configured origins onto the cors middleware. In
// development with no configured origins everything is allowed.
func (s *Server) corsOrigins() []string {
	if len(s.config.AllowedOrigins) == 0 && s.config.Development {
		return []string{"*"}
	}
	return s.config.AllowedOrigins
}

// allowOrigin applies the upgrade origin policy: development allows
// everything, production requires an exact match against the allow-list.
func (s *Server) allowOrigin(r *http.Request) bool {
	if s.config.Development {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.config.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// handleUpgrade upgrades an HTTP request to a WebSocket connection, creates a
// Connection, and registers it with the manager and the epoll instance.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.conns.Count() >= s.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	if !s.allowOrigin(r) {
		logx.Warn("websocket upgrade rejected, origin not allowed",
			"origin", r.Header.Get("Origin"))
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		logx.Warn("websocket upgrade failed", "error", err.Error())
		return
	}

	connID := uuid.New().String()
	c := &Connection{
		ID:        connID,
		Conn:      conn,
		Fd:        socketFD(conn),
		CreatedAt: time.Now(),
	}
	c.Touch()

	s.conns.Add(c)
	if err := s.epoll.Add(conn); err != nil {
		logx.Error(err, "epoll add failed", "conn_id", connID)
		s.conns.Remove(connID)
		return
	}

	metrics.ConnectionsTotal.Set(float64(s.conns.Count()))

	if s.onConnect != nil {
		s.onConnect(connID)
	}

	logx.Debug("new connection", "conn_id", connID, "total", s.conns.Count())
}

// handleHealth responds with the server's health status as JSON, including
// the current connection count and uptime.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	resp := struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
		Uptime      string `json:"uptime"`
	}{
		Status:      "ok",
		Connections: s.conns.Count(),
		Uptime:      time.Since(s.startedAt).Round(time.Second).String(),
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// startEventLoop runs the epoll wait loop, dispatching each ready connection
// to a worker goroutine bounded by the pool semaphore.
func (s *Server) startEventLoop() {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		conns, err := s.epoll.Wait()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				logx.Error(err, "epoll wait error")
				continue
			}
		}

		for _, conn := range conns {
			s.workerPool <- struct{}{}

			go func(netConn net.Conn) {
				defer func() { <-s.workerPool }()
				s.handleConn(netConn)
			}(conn)
		}
	}
}

// handleConn reads a single WebSocket frame from a ready connection using
// wsutil.NextReader so control frames (ping, pong, close) are handled without
// blocking on a data frame that may never arrive.
func (s *Server) handleConn(netConn net.Conn) {
	c := s.conns.GetByConn(netConn)
	if c == nil {
		return
	}

	// Guard against duplicate dispatch from level-triggered epoll.
	if !atomic.CompareAndSwapInt32(&c.processing, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&c.processing, 0)

	if s.config.ReadTimeout > 0 {
		_ = netConn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	}

	header, reader, err := wsutil.NextReader(netConn, ws.StateServerSide)
	if err != nil {
		// A read timeout means no data was available (stale epoll dispatch).
		// The heartbeat deals with dead connections.
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return
		}
		s.RemoveConnection(c)
		return
	}

	_ = netConn.SetReadDeadline(time.Time{})

	// Any frame proves the connection is alive.
	c.Touch()

	if header.OpCode.IsControl() {
		if header.OpCode == ws.OpClose {
			s.RemoveConnection(c)
			return
		}
		// Drain the control payload so the next frame parses cleanly.
		if header.Length > 0 {
			_, _ = io.Copy(io.Discard, reader)
		}
		if header.OpCode == ws.OpPing {
			c.writeMu.Lock()
			_ = ws.WriteFrame(netConn, ws.NewPongFrame(nil))
			c.writeMu.Unlock()
		}
		return
	}

	data := make([]byte, header.Length)
	if header.Length > 0 {
		if _, err := io.ReadFull(reader, data); err != nil {
			s.RemoveConnection(c)
			return
		}
	}

	if len(data) == 0 {
		return
	}

	if s.onMessage != nil {
		s.onMessage(c, data)
	}
}

// RemoveConnection removes a connection from epoll and the manager and closes
// the socket. Exported so the heartbeat can evict dead connections. Racing
// removals collapse to a single cleanup via the manager's Remove guard.
func (s *Server) RemoveConnection(c *Connection) {
	if s.epoll != nil {
		_ = s.epoll.Remove(c.Conn)
	}

	if !s.conns.Remove(c.ID) {
		return
	}

	metrics.ConnectionsTotal.Set(float64(s.conns.Count()))

	if s.onDisconnect != nil {
		s.onDisconnect(c.ID)
	}

	logx.Debug("connection closed", "conn_id", c.ID, "total", s.conns.Count())
}

// Send writes a text frame to the connection identified by connID. An
// unknown target is silently skipped. A broken connection (any non-timeout
// write error) is torn down on the spot, same as an abrupt disconnect, so the
// room partner learns about it immediately instead of waiting out the
// heartbeat.
func (s *Server) Send(connID string, data []byte) {
	c := s.conns.Get(connID)
	if c == nil {
		logx.Debug("send to unknown connection", "conn_id", connID)
		return
	}

	if s.config.WriteTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}

	err := c.WriteMessage(data)

	// Clear the deadline so it does not affect future writes.
	_ = c.Conn.SetWriteDeadline(time.Time{})

	if err == nil {
		return
	}

	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		// Slow consumer; the heartbeat decides whether it is dead.
		logx.Debug("send timed out", "conn_id", connID)
		return
	}

	logx.Debug("send failed, closing connection", "conn_id", connID, "error", err.Error())
	s.RemoveConnection(c)
}

// Connections returns the connection manager for the heartbeat and health
// reporting.
func (s *Server) Connections() *Manager {
	return s.conns
}

// Shutdown gracefully stops the server: the HTTP listener, the event loop,
// and every active connection.
func (s *Server) Shutdown() error {
	logx.Info("shutting down websocket server")

	close(s.done)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		logx.Error(err, "http shutdown error")
	}

	for _, c := range s.conns.All() {
		_ = s.epoll.Remove(c.Conn)
		c.Close()
	}

	if s.epoll != nil {
		_ = s.epoll.Close()
	}

	s.connLimiter.Close()

	logx.Info("websocket server stopped, all connections closed")
	return nil
}
