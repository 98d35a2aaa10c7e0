// Command signalserver runs the matchmaking and WebRTC signaling server. It
// pairs anonymous users from a waiting queue into two-party rooms and relays
// session negotiation (SDP, ICE, chat) between the peers of each room.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/blinkpair/signal-server/internal/config"
	"github.com/blinkpair/signal-server/internal/logx"
	"github.com/blinkpair/signal-server/internal/matching"
	"github.com/blinkpair/signal-server/internal/room"
	"github.com/blinkpair/signal-server/internal/session"
	"github.com/blinkpair/signal-server/internal/user"
	"github.com/blinkpair/signal-server/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logx.Init(true)
		logx.Fatal(err, "invalid configuration")
	}

	logx.Init(cfg.Development())
	logx.Info("starting signal server",
		"environment", cfg.Environment,
		"addr", cfg.ListenAddr)

	users := user.NewRegistry()
	engine := matching.NewEngine(users, cfg.InterestMatchTimeout)
	rooms := room.NewRegistry()

	var server *ws.Server

	ctrl := session.New(users, engine, rooms, senderFunc(func(connID string, data []byte) {
		server.Send(connID, data)
	}), session.Config{
		MessageRate:  cfg.MessageRate,
		MessageBurst: cfg.MessageBurst,
	})
	defer ctrl.Close()

	server = ws.NewServer(ws.ServerConfig{
		ListenAddr:     cfg.ListenAddr,
		WorkerPoolSize: cfg.WorkerPoolSize,
		MaxConnections: cfg.MaxConnections,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
		Development:    cfg.Development(),
		ConnectRate:    cfg.ConnectRate,
		ConnectBurst:   cfg.ConnectBurst,
	}, func(conn *ws.Connection, data []byte) {
		ctrl.HandleMessage(conn.ID, data)
	})
	server.SetOnConnect(ctrl.HandleConnect)
	server.SetOnDisconnect(ctrl.HandleDisconnect)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logx.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logx.Fatal(err, "server failed")
		}
		return
	}

	if err := server.Shutdown(); err != nil {
		logx.Error(err, "shutdown error")
	}
	logx.Info("signal server stopped")
}

// senderFunc adapts a function to the session.Sender interface.
type senderFunc func(connID string, data []byte)

func (f senderFunc) Send(connID string, data []byte) { f(connID, data) }
