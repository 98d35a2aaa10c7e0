package ws

import (
	"time"

	"github.com/blinkpair/signal-server/internal/logx"
)

// HeartbeatConfig controls the ping sweep over active connections.
type HeartbeatConfig struct {
	Interval time.Duration // how often pings are sent
	Timeout  time.Duration // how long after a ping before a silent connection is evicted
}

// DefaultHeartbeatConfig returns the standard 30s ping / 10s grace settings.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// StartHeartbeat launches a background goroutine that periodically pings all
// connections and evicts those that have been silent past the deadline. The
// goroutine exits when the server's done channel is closed.
func StartHeartbeat(s *Server, cfg HeartbeatConfig) {
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				sweep(s, cfg)
			}
		}
	}()
}

// sweep pings every connection and removes those whose last activity predates
// the eviction deadline. Pongs and any data frame refresh LastActive in the
// read path.
func sweep(s *Server, cfg HeartbeatConfig) {
	deadline := time.Now().Add(-(cfg.Interval + cfg.Timeout))
	evicted := 0

	for _, c := range s.conns.All() {
		if c.LastActive().Before(deadline) {
			s.RemoveConnection(c)
			evicted++
			continue
		}

		if err := c.WritePing(); err != nil {
			s.RemoveConnection(c)
			evicted++
		}
	}

	if evicted > 0 {
		logx.Debug("heartbeat sweep", "evicted", evicted, "remaining", s.conns.Count())
	}
}
