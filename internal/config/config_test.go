package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Errorf("unexpected ListenAddr: %s", cfg.ListenAddr)
	}
	if cfg.InterestMatchTimeout != 10*time.Second {
		t.Errorf("unexpected InterestMatchTimeout: %s", cfg.InterestMatchTimeout)
	}
	if !cfg.Development() {
		t.Error("default environment should be development")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("WORKER_POOL_SIZE", "32")
	t.Setenv("INTEREST_MATCH_TIMEOUT", "5s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Development() {
		t.Error("production environment reported as development")
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("unexpected ListenAddr: %s", cfg.ListenAddr)
	}
	if cfg.WorkerPoolSize != 32 {
		t.Errorf("unexpected WorkerPoolSize: %d", cfg.WorkerPoolSize)
	}
	if cfg.InterestMatchTimeout != 5*time.Second {
		t.Errorf("unexpected InterestMatchTimeout: %s", cfg.InterestMatchTimeout)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected AllowedOrigins: %v", cfg.AllowedOrigins)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"bad int", "WORKER_POOL_SIZE", "many"},
		{"bad duration", "READ_TIMEOUT", "10 seconds"},
		{"bad float", "MSG_RATE", "fast"},
		{"zero pool", "WORKER_POOL_SIZE", "0"},
		{"negative cap", "MAX_CONNECTIONS", "-1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", tc.key, tc.value)
			}
		})
	}
}
