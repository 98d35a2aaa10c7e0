// Package config loads the server configuration from environment variables.
// Every knob has a production-safe default so the binary runs with no
// environment at all.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all tunable parameters for the signaling server.
type Config struct {
	Environment    string        // "development" or "production"
	ListenAddr     string        // address for the HTTP/WebSocket listener
	AllowedOrigins []string      // origins allowed for WS upgrades and CORS
	WorkerPoolSize int           // max concurrent frame-read workers
	MaxConnections int           // hard cap on simultaneous connections
	ReadTimeout    time.Duration // WebSocket read deadline
	WriteTimeout   time.Duration // WebSocket write deadline

	// InterestMatchTimeout is how long a queued user keeps interest-based
	// pairing priority before the matcher falls back to plain FIFO.
	InterestMatchTimeout time.Duration

	MessageRate  float64 // chat messages allowed per second per session
	MessageBurst int     // chat message burst per session
	ConnectRate  float64 // WS upgrades allowed per second per IP
	ConnectBurst int     // WS upgrade burst per IP
}

// Default returns the configuration used when no environment is set.
func Default() Config {
	return Config{
		Environment:          "development",
		ListenAddr:           ":8080",
		AllowedOrigins:       nil,
		WorkerPoolSize:       256,
		MaxConnections:       100000,
		ReadTimeout:          10 * time.Second,
		WriteTimeout:         10 * time.Second,
		InterestMatchTimeout: 10 * time.Second,
		MessageRate:          2,
		MessageBurst:         10,
		ConnectRate:          1,
		ConnectBurst:         5,
	}
}

// Load reads the configuration from environment variables, applying defaults
// and validating values. It returns an error for values that cannot be
// parsed rather than silently ignoring them.
func Load() (Config, error) {
	cfg := Default()

	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		for _, origin := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	var err error
	if cfg.WorkerPoolSize, err = intVar("WORKER_POOL_SIZE", cfg.WorkerPoolSize); err != nil {
		return Config{}, err
	}
	if cfg.MaxConnections, err = intVar("MAX_CONNECTIONS", cfg.MaxConnections); err != nil {
		return Config{}, err
	}
	if cfg.ReadTimeout, err = durationVar("READ_TIMEOUT", cfg.ReadTimeout); err != nil {
		return Config{}, err
	}
	if cfg.WriteTimeout, err = durationVar("WRITE_TIMEOUT", cfg.WriteTimeout); err != nil {
		return Config{}, err
	}
	if cfg.InterestMatchTimeout, err = durationVar("INTEREST_MATCH_TIMEOUT", cfg.InterestMatchTimeout); err != nil {
		return Config{}, err
	}
	if cfg.MessageRate, err = floatVar("MSG_RATE", cfg.MessageRate); err != nil {
		return Config{}, err
	}
	if cfg.MessageBurst, err = intVar("MSG_BURST", cfg.MessageBurst); err != nil {
		return Config{}, err
	}
	if cfg.ConnectRate, err = floatVar("CONN_RATE", cfg.ConnectRate); err != nil {
		return Config{}, err
	}
	if cfg.ConnectBurst, err = intVar("CONN_BURST", cfg.ConnectBurst); err != nil {
		return Config{}, err
	}

	if cfg.WorkerPoolSize < 1 {
		return Config{}, fmt.Errorf("config: WORKER_POOL_SIZE must be positive, got %d", cfg.WorkerPoolSize)
	}
	if cfg.MaxConnections < 1 {
		return Config{}, fmt.Errorf("config: MAX_CONNECTIONS must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.InterestMatchTimeout <= 0 {
		return Config{}, fmt.Errorf("config: INTEREST_MATCH_TIMEOUT must be positive, got %s", cfg.InterestMatchTimeout)
	}

	return cfg, nil
}

// Development reports whether the server runs in development mode.
func (c Config) Development() bool {
	return c.Environment == "development"
}

func intVar(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", name, err)
	}
	return n, nil
}

func floatVar(name string, fallback float64) (float64, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", name, err)
	}
	return f, nil
}

func durationVar(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", name, err)
	}
	return d, nil
}
