// Package ratelimit provides in-process token-bucket rate limiting keyed by
// an arbitrary identifier (session id, client IP). A background sweep removes
// buckets that have refilled completely so idle identifiers do not leak.
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/blinkpair/signal-server/internal/logx"
)

const cleanupInterval = 3 * time.Minute

// Limiter tracks one token bucket per identifier.
type Limiter struct {
	mu     sync.Mutex
	limits map[string]*rate.Limiter
	r      rate.Limit
	b      int
	done   chan struct{}
}

// NewLimiter creates a limiter allowing r events per second with burst b per
// identifier, and starts the cleanup sweep.
func NewLimiter(r float64, b int) *Limiter {
	l := &Limiter{
		limits: make(map[string]*rate.Limiter),
		r:      rate.Limit(r),
		b:      b,
		done:   make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow reports whether the identifier may perform another event now.
func (l *Limiter) Allow(id string) bool {
	return l.bucket(id).Allow()
}

// Forget drops the identifier's bucket immediately, used when a session ends.
func (l *Limiter) Forget(id string) {
	l.mu.Lock()
	delete(l.limits, id)
	l.mu.Unlock()
}

// Close stops the cleanup sweep.
func (l *Limiter) Close() {
	close(l.done)
}

func (l *Limiter) bucket(id string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limits[id]
	if !ok {
		lim = rate.NewLimiter(l.r, l.b)
		l.limits[id] = lim
	}
	return lim
}

// cleanup periodically removes buckets that are full again, i.e. identifiers
// that have been idle long enough to refill their burst.
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.mu.Lock()
			removed := 0
			for id, lim := range l.limits {
				if lim.TokensAt(time.Now()) >= float64(lim.Burst()) {
					delete(l.limits, id)
					removed++
				}
			}
			remaining := len(l.limits)
			l.mu.Unlock()
			if removed > 0 {
				logx.Debug("rate limiter cleanup",
					"removed", removed, "remaining", remaining)
			}
		}
	}
}

// Middleware wraps an HTTP handler with per-IP limiting, responding 429 when
// the client's bucket is empty. Used on the WebSocket upgrade route.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if !l.Allow(ip) {
			logx.Warn("upgrade rate limited", "ip", ip)
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
