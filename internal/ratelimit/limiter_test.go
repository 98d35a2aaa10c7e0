package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAllow_BurstThenLimited(t *testing.T) {
	l := NewLimiter(1, 3)
	defer l.Close()

	for i := 0; i < 3; i++ {
		if !l.Allow("session-1") {
			t.Fatalf("request %d within burst should be allowed", i)
		}
	}
	if l.Allow("session-1") {
		t.Error("request beyond burst should be limited")
	}
}

func TestAllow_IdentifiersAreIndependent(t *testing.T) {
	l := NewLimiter(1, 1)
	defer l.Close()

	if !l.Allow("a") {
		t.Fatal("first request for a should pass")
	}
	if l.Allow("a") {
		t.Error("second request for a should be limited")
	}
	if !l.Allow("b") {
		t.Error("b must not be affected by a's bucket")
	}
}

func TestForget_ResetsBucket(t *testing.T) {
	l := NewLimiter(1, 1)
	defer l.Close()

	l.Allow("a")
	if l.Allow("a") {
		t.Fatal("bucket should be empty")
	}

	l.Forget("a")
	if !l.Allow("a") {
		t.Error("forgotten identifier should start with a fresh bucket")
	}
}

func TestMiddleware_Responds429(t *testing.T) {
	l := NewLimiter(1, 1)
	defer l.Close()

	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "10.1.2.3:5555"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request should be limited, got %d", rec.Code)
	}
}
