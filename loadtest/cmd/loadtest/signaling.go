package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/blinkpair/signal-server/loadtest/client"
	"github.com/blinkpair/signal-server/loadtest/stats"
)

// runSignaling implements the full pairing lifecycle load test. Clients
// connect and join in pairs; once paired, the offerer sends a fake SDP offer,
// the answerer replies, both exchange an ICE candidate, and they trade chat
// messages to measure relay round-trip latency. One side then skips, ending
// the room.
func runSignaling(args []string) {
	fs := flag.NewFlagSet("signaling", flag.ExitOnError)
	url := fs.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	pairs := fs.Int("pairs", 200, "Number of user pairs")
	chatRounds := fs.Int("chat-rounds", 5, "Chat round-trips per pair")
	rampUp := fs.Duration("ramp", 5*time.Second, "Ramp-up duration for connection creation")
	pairTimeout := fs.Duration("pair-timeout", 30*time.Second, "Timeout waiting for pairing")
	sessionTimeout := fs.Duration("session-timeout", 60*time.Second, "Timeout for the full signaling session")
	metricsURL := fs.String("metrics-url", "http://localhost:8080/metrics", "Prometheus metrics endpoint URL")
	scrapeInterval := fs.Duration("scrape-interval", 2*time.Second, "Interval between metrics scrapes")
	fs.Parse(args)

	totalClients := *pairs * 2

	fmt.Printf("Signaling test: %d pairs (%d clients) to %s (chat-rounds=%d, ramp=%s)\n",
		*pairs, totalClients, *url, *chatRounds, *rampUp)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := stats.NewCollector()

	scraper := stats.NewScraper(*metricsURL, *scrapeInterval)
	collector.SetScraper(scraper)
	scraper.Start(ctx)

	var mu sync.Mutex
	clients := make([]*client.Client, 0, totalClients)

	var completedSessions atomic.Int64
	var negotiated atomic.Int64

	interval := *rampUp / time.Duration(totalClients)
	if interval <= 0 {
		interval = time.Millisecond
	}

	fmt.Println("\n--- Running signaling sessions ---")

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalClients; i++ {
		select {
		case <-ctx.Done():
			i = totalClients
			continue
		case <-time.After(interval):
		}

		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sessCtx, cancel := context.WithTimeout(ctx, *sessionTimeout)
			defer cancel()

			c, err := client.New(sessCtx, *url)
			if err != nil {
				collector.AddError()
				return
			}
			collector.AddConnect(c.GetMetrics().ConnectLatency)

			mu.Lock()
			clients = append(clients, c)
			mu.Unlock()

			if err := runSession(sessCtx, c, idx, *chatRounds, *pairTimeout, collector, &negotiated); err != nil {
				collector.AddError()
				return
			}
			completedSessions.Add(1)
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("\n--- Signaling Results ---\n")
	fmt.Printf("Completed sessions:   %d / %d\n", completedSessions.Load(), totalClients)
	fmt.Printf("Negotiations done:    %d\n", negotiated.Load())
	fmt.Printf("Total duration:       %s\n", elapsed.Round(time.Millisecond))

	cleanup(clients, &mu)
	scraper.Stop()
	collector.Report()
}

// runSession drives one client through a full signaling session: join, pair,
// negotiate, chat, skip.
func runSession(ctx context.Context, c *client.Client, idx, chatRounds int, pairTimeout time.Duration, collector *stats.Collector, negotiated *atomic.Int64) error {
	// Channels signalled by the read-loop handlers.
	gotOffer := make(chan struct{}, 1)
	gotAnswer := make(chan struct{}, 1)
	gotCandidate := make(chan struct{}, 4)
	gotChat := make(chan time.Time, chatRounds+1)
	peerLeft := make(chan struct{}, 1)

	c.On(client.TypeOffer, func(raw json.RawMessage) {
		select {
		case gotOffer <- struct{}{}:
		default:
		}
	})
	c.On(client.TypeAnswer, func(raw json.RawMessage) {
		select {
		case gotAnswer <- struct{}{}:
		default:
		}
	})
	c.On(client.TypeAddIceCandidate, func(raw json.RawMessage) {
		select {
		case gotCandidate <- struct{}{}:
		default:
		}
	})
	c.On(client.TypeChatMessage, func(raw json.RawMessage) {
		select {
		case gotChat <- time.Now():
		default:
		}
	})
	c.On(client.TypePeerLeft, func(raw json.RawMessage) {
		select {
		case peerLeft <- struct{}{}:
		default:
		}
	})

	joinStart := time.Now()
	if err := c.Join(fmt.Sprintf("signaling-%d", idx), nil); err != nil {
		return err
	}

	pairCtx, cancel := context.WithTimeout(ctx, pairTimeout)
	roomID, err := c.WaitForRoom(pairCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("pairing: %w", err)
	}
	collector.AddMatchLatency(time.Since(joinStart))

	// SDP negotiation: offerer leads, answerer reacts.
	if c.Role() == "offerer" {
		if err := c.Send(client.TypeOffer, map[string]string{
			"sdp":    fmt.Sprintf("v=0 fake-offer-%d", idx),
			"roomId": roomID,
		}); err != nil {
			return err
		}
		select {
		case <-gotAnswer:
		case <-ctx.Done():
			return ctx.Err()
		}
	} else {
		select {
		case <-gotOffer:
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := c.Send(client.TypeAnswer, map[string]string{
			"sdp":    fmt.Sprintf("v=0 fake-answer-%d", idx),
			"roomId": roomID,
		}); err != nil {
			return err
		}
	}

	// One ICE candidate in each direction.
	if err := c.Send(client.TypeAddIceCandidate, map[string]interface{}{
		"candidate": map[string]string{"candidate": "candidate:0 1 udp 0 198.51.100.1 9 typ host"},
		"roomId":    roomID,
		"type":      "sender",
	}); err != nil {
		return err
	}
	select {
	case <-gotCandidate:
	case <-ctx.Done():
		return ctx.Err()
	}
	negotiated.Add(1)

	// Chat round-trips: each side sends, then waits for the partner's message.
	for round := 0; round < chatRounds; round++ {
		sent := time.Now()
		if err := c.Chat(fmt.Sprintf("round %d from %d", round, idx)); err != nil {
			return err
		}
		select {
		case received := <-gotChat:
			collector.AddRelayLatency(received.Sub(sent))
		case <-peerLeft:
			// Partner already moved on; the session still counts.
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// The offerer ends the room; the answerer waits for peer-left.
	if c.Role() == "offerer" {
		if err := c.Skip(); err != nil {
			return err
		}
		return c.Stop()
	}

	select {
	case <-peerLeft:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
