package ws

import (
	"net"
	"sync"
	"testing"
	"time"
)

// pipeConnection registers a net.Pipe-backed connection with the server's
// manager, standing in for an upgraded client.
func pipeConnection(t *testing.T, s *Server, id string) (*Connection, net.Conn) {
	t.Helper()
	client, srv := net.Pipe()
	c := &Connection{
		ID:        id,
		Conn:      srv,
		Fd:        socketFD(srv),
		CreatedAt: time.Now(),
	}
	c.Touch()
	s.conns.Add(c)
	return c, client
}

func TestSendFailureTearsDownConnection(t *testing.T) {
	s := NewServer(DefaultServerConfig(), nil)

	var mu sync.Mutex
	var gone []string
	s.SetOnDisconnect(func(connID string) {
		mu.Lock()
		gone = append(gone, connID)
		mu.Unlock()
	})

	_, client := pipeConnection(t, s, "broken")

	// Closing the client end makes the next write fail outright, the same
	// failure mode as a peer that vanished mid-session.
	client.Close()

	s.Send("broken", []byte(`{"type":"lobby"}`))

	if n := s.conns.Count(); n != 0 {
		t.Errorf("connections after failed send = %d, want 0", n)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(gone) != 1 || gone[0] != "broken" {
		t.Errorf("disconnect callbacks = %v, want [broken]", gone)
	}
}

func TestSendTimeoutKeepsConnection(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.WriteTimeout = 20 * time.Millisecond
	s := NewServer(cfg, nil)

	disconnected := false
	s.SetOnDisconnect(func(connID string) { disconnected = true })

	_, client := pipeConnection(t, s, "slow")
	defer client.Close()

	// Nobody reads the client end, so the write stalls until the deadline.
	// A slow consumer is the heartbeat's problem, not an immediate eviction.
	s.Send("slow", []byte(`{"type":"lobby"}`))

	if n := s.conns.Count(); n != 1 {
		t.Errorf("connections after timed-out send = %d, want 1", n)
	}
	if disconnected {
		t.Error("timed-out send must not trigger disconnect")
	}
}

func TestSendToUnknownConnection(t *testing.T) {
	s := NewServer(DefaultServerConfig(), nil)
	s.Send("nobody", []byte(`{"type":"lobby"}`))

	if n := s.conns.Count(); n != 0 {
		t.Errorf("connection count = %d, want 0", n)
	}
}

func TestLastActiveConcurrentAccess(t *testing.T) {
	c := &Connection{ID: "c1"}
	c.Touch()
	before := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Touch()
				_ = c.LastActive()
			}
		}()
	}
	wg.Wait()

	if got := c.LastActive(); got.Before(before.Add(-time.Second)) {
		t.Errorf("LastActive = %v, want a recent timestamp", got)
	}
}
