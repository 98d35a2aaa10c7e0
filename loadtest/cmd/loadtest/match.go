package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/blinkpair/signal-server/loadtest/client"
	"github.com/blinkpair/signal-server/loadtest/stats"
)

// runMatch implements the matchmaking load test. Simulated users connect,
// send join-room, and wait for the send-offer pairing notification. It
// measures matching throughput and the join-to-pair latency under concurrent
// load.
func runMatch(args []string) {
	fs := flag.NewFlagSet("match", flag.ExitOnError)
	url := fs.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	pairs := fs.Int("pairs", 500, "Number of user pairs to match")
	rampUp := fs.Duration("ramp", 10*time.Second, "Ramp-up duration for connection creation")
	matchTimeout := fs.Duration("match-timeout", 30*time.Second, "Timeout waiting for send-offer")
	interests := fs.String("interests", "", "Comma-separated interest tags (empty = FIFO matching)")
	concurrency := fs.Int("concurrency", 50, "Maximum simultaneous connection attempts during ramp-up")
	metricsURL := fs.String("metrics-url", "http://localhost:8080/metrics", "Prometheus metrics endpoint URL")
	scrapeInterval := fs.Duration("scrape-interval", 2*time.Second, "Interval between metrics scrapes")
	fs.Parse(args)

	totalClients := *pairs * 2

	fmt.Printf("Match test: %d pairs (%d clients) to %s (ramp=%s, match-timeout=%s, interests=%q, concurrency=%d)\n",
		*pairs, totalClients, *url, *rampUp, *matchTimeout, *interests, *concurrency)

	var interestTags []string
	if *interests != "" {
		for _, tag := range strings.Split(*interests, ",") {
			tag = strings.TrimSpace(tag)
			if tag != "" {
				interestTags = append(interestTags, tag)
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := stats.NewCollector()

	scraper := stats.NewScraper(*metricsURL, *scrapeInterval)
	collector.SetScraper(scraper)
	scraper.Start(ctx)

	var mu sync.Mutex
	clients := make([]*client.Client, 0, totalClients)

	interrupted := false

	// -----------------------------------------------------------------------
	// Phase 1 — Connect all users
	// -----------------------------------------------------------------------
	fmt.Println("\n--- Phase 1: Connect all users ---")

	interval := *rampUp / time.Duration(totalClients)
	if interval <= 0 {
		interval = time.Millisecond
	}

	sem := make(chan struct{}, *concurrency)
	var wg sync.WaitGroup

	progressStop := make(chan struct{})
	var progressWg sync.WaitGroup
	progressWg.Add(1)
	go func() {
		defer progressWg.Done()
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		lastCount := 0
		lastTime := time.Now()
		for {
			select {
			case <-ticker.C:
				now := time.Now()
				currentConns := collector.ConnectionCount()
				currentErrs := collector.ErrorCount()
				dt := now.Sub(lastTime).Seconds()
				rate := float64(currentConns-lastCount) / dt
				fmt.Printf("  [connect] connections: %d/%d  errors: %d  rate: %.1f conn/s\n",
					currentConns, totalClients, currentErrs, rate)
				lastCount = currentConns
				lastTime = now
			case <-progressStop:
				return
			}
		}
	}()

	rampStart := time.Now()
	rampTicker := time.NewTicker(interval)

	launched := 0
	for launched < totalClients {
		select {
		case <-ctx.Done():
			fmt.Println("\nInterrupted during connection phase.")
			interrupted = true
			launched = totalClients // Break the loop.
		case <-rampTicker.C:
			launched++
			wg.Add(1)
			sem <- struct{}{} // Acquire semaphore slot.

			go func() {
				defer wg.Done()
				defer func() { <-sem }() // Release semaphore slot.

				connCtx, connCancel := context.WithTimeout(ctx, 10*time.Second)
				defer connCancel()

				c, err := client.New(connCtx, *url)
				if err != nil {
					collector.AddError()
					return
				}

				collector.AddConnect(c.GetMetrics().ConnectLatency)

				mu.Lock()
				clients = append(clients, c)
				mu.Unlock()
			}()
		}
	}

	rampTicker.Stop()
	wg.Wait()
	close(progressStop)
	progressWg.Wait()

	rampElapsed := time.Since(rampStart)
	mu.Lock()
	connectedCount := len(clients)
	mu.Unlock()
	fmt.Printf("\nPhase 1 complete: %d/%d connections in %s (%d errors)\n",
		connectedCount, totalClients,
		rampElapsed.Round(time.Millisecond), collector.ErrorCount())

	if interrupted {
		fmt.Println("Interrupted — skipping matching phases.")
		cleanup(clients, &mu)
		scraper.Stop()
		collector.Report()
		return
	}

	// -----------------------------------------------------------------------
	// Phase 2 — All clients join the queue
	// -----------------------------------------------------------------------
	fmt.Println("\n--- Phase 2: Start matching ---")

	var pairedCount atomic.Int64   // clients that received send-offer
	var offererCount atomic.Int64  // clients assigned the offerer role
	var answererCount atomic.Int64 // clients assigned the answerer role

	var matchWg sync.WaitGroup

	mu.Lock()
	activeClients := make([]*client.Client, len(clients))
	copy(activeClients, clients)
	mu.Unlock()

	fmt.Printf("Sending join-room from %d clients (interests=%v)...\n", len(activeClients), interestTags)

	matchStart := time.Now()

	for i, c := range activeClients {
		i, c := i, c
		matchWg.Add(1)

		paired := make(chan struct{})

		c.On(client.TypeSendOffer, func(raw json.RawMessage) {
			collector.AddMatchLatency(time.Since(matchStart))
			pairedCount.Add(1)

			var note client.SendOffer
			if err := json.Unmarshal(raw, &note); err == nil {
				switch note.Role {
				case "offerer":
					offererCount.Add(1)
				case "answerer":
					answererCount.Add(1)
				}
			}

			close(paired)
		})

		go func() {
			defer matchWg.Done()

			timeoutTimer := time.NewTimer(*matchTimeout)
			defer timeoutTimer.Stop()

			select {
			case <-paired:
			case <-timeoutTimer.C:
				collector.AddError()
			case <-ctx.Done():
			}
		}()

		if err := c.Join(fmt.Sprintf("loadtest-%d", i), interestTags); err != nil {
			collector.AddError()
		}
	}

	// -----------------------------------------------------------------------
	// Phase 3 — Wait for pairings with progress reporting
	// -----------------------------------------------------------------------
	fmt.Println("\n--- Phase 3: Waiting for pairings ---")

	matchProgressStop := make(chan struct{})
	var matchProgressWg sync.WaitGroup
	matchProgressWg.Add(1)
	go func() {
		defer matchProgressWg.Done()
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		lastPaired := int64(0)
		lastTime := time.Now()
		for {
			select {
			case <-ticker.C:
				now := time.Now()
				currentPaired := pairedCount.Load()
				currentErrors := collector.ErrorCount()
				dt := now.Sub(lastTime).Seconds()
				pairRate := float64(currentPaired-lastPaired) / dt
				// Each pairing notifies 2 clients.
				pairsDone := currentPaired / 2
				fmt.Printf("  [match] pairs: %d/%d  paired clients: %d  errors: %d  rate: %.1f client/s\n",
					pairsDone, *pairs, currentPaired, currentErrors, pairRate)
				lastPaired = currentPaired
				lastTime = now
			case <-matchProgressStop:
				return
			}
		}
	}()

	allDone := make(chan struct{})
	go func() {
		matchWg.Wait()
		close(allDone)
	}()

	select {
	case <-allDone:
	case <-ctx.Done():
		fmt.Println("\nInterrupted during matching phase.")
	}

	close(matchProgressStop)
	matchProgressWg.Wait()

	matchElapsed := time.Since(matchStart)

	// -----------------------------------------------------------------------
	// Final report
	// -----------------------------------------------------------------------
	finalPaired := pairedCount.Load()
	successfulPairs := finalPaired / 2

	fmt.Printf("\n--- Match Results ---\n")
	fmt.Printf("Successful pairs:  %d / %d\n", successfulPairs, *pairs)
	fmt.Printf("Clients paired:    %d / %d\n", finalPaired, len(activeClients))
	fmt.Printf("Role split:        %d offerers / %d answerers\n",
		offererCount.Load(), answererCount.Load())
	fmt.Printf("Match duration:    %s\n", matchElapsed.Round(time.Millisecond))
	if matchElapsed.Seconds() > 0 {
		fmt.Printf("Match throughput:  %.1f pairs/s\n", float64(successfulPairs)/matchElapsed.Seconds())
	}

	cleanup(clients, &mu)
	scraper.Stop()
	collector.Report()
}

// cleanup closes all client connections.
func cleanup(clients []*client.Client, mu *sync.Mutex) {
	fmt.Println("\n--- Cleanup ---")
	mu.Lock()
	total := len(clients)
	fmt.Printf("Closing %d connections...\n", total)
	for _, c := range clients {
		c.Close()
	}
	mu.Unlock()
	fmt.Println("All connections closed.")
}
