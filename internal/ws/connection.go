package ws

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Connection represents a single WebSocket client connection with its
// metadata and a write mutex that serializes outbound frames.
type Connection struct {
	ID         string     // connection id (UUID), stable for the connection's lifetime
	Conn       net.Conn   // underlying TCP connection
	Fd         int        // file descriptor for epoll lookups
	CreatedAt  time.Time  // when the connection was established
	lastActive int64      // unix nanoseconds of the last read, accessed atomically
	writeMu    sync.Mutex // serializes writes to this connection
	processing int32      // atomic flag: 0 = idle, 1 = being read by handleConn
}

// Touch records client activity now. Read workers call it concurrently with
// the heartbeat sweep reading LastActive.
func (c *Connection) Touch() {
	atomic.StoreInt64(&c.lastActive, time.Now().UnixNano())
}

// LastActive returns the time of the last successful read from the client.
func (c *Connection) LastActive() time.Time {
	return time.Unix(0, atomic.LoadInt64(&c.lastActive))
}

// WriteMessage sends a WebSocket text frame to this connection. The write
// mutex ensures concurrent goroutines do not interleave frame bytes.
func (c *Connection) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// WritePing sends a WebSocket protocol-level ping frame (opcode 0x9).
func (c *Connection) WritePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPingFrame(nil))
}

// Close closes the underlying network connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// Manager is a thread-safe registry mapping connection ids and file
// descriptors to Connection objects, with O(1) lookups by both.
type Manager struct {
	mu   sync.RWMutex
	byID map[string]*Connection
	byFd map[int]*Connection
}

// NewManager creates an empty connection manager.
func NewManager() *Manager {
	return &Manager{
		byID: make(map[string]*Connection),
		byFd: make(map[int]*Connection),
	}
}

// Add registers a new connection in both lookup maps.
func (m *Manager) Add(conn *Connection) {
	m.mu.Lock()
	m.byID[conn.ID] = conn
	m.byFd[conn.Fd] = conn
	m.mu.Unlock()
}

// Remove removes a connection by id, closes the underlying network
// connection, and clears both lookup maps. Returns false if the connection
// was already gone, so racing removers (read error vs heartbeat) only clean
// up once.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	conn, ok := m.byID[id]
	if ok {
		delete(m.byID, id)
		delete(m.byFd, conn.Fd)
	}
	m.mu.Unlock()

	if ok {
		conn.Close()
	}
	return ok
}

// Get returns the connection for the given id, or nil.
func (m *Manager) Get(id string) *Connection {
	m.mu.RLock()
	conn := m.byID[id]
	m.mu.RUnlock()
	return conn
}

// GetByFd returns the connection for the given file descriptor, or nil.
func (m *Manager) GetByFd(fd int) *Connection {
	m.mu.RLock()
	conn := m.byFd[fd]
	m.mu.RUnlock()
	return conn
}

// GetByConn returns the connection for the given net.Conn by extracting its
// file descriptor. Returns nil if not found.
func (m *Manager) GetByConn(c net.Conn) *Connection {
	return m.GetByFd(socketFD(c))
}

// Count returns the current number of active connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	n := len(m.byID)
	m.mu.RUnlock()
	return n
}

// All returns a snapshot of all current connections, safe to iterate without
// holding the lock.
func (m *Manager) All() []*Connection {
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.byID))
	for _, conn := range m.byID {
		conns = append(conns, conn)
	}
	m.mu.RUnlock()
	return conns
}
