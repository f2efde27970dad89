/*
scheduler.go - Abandoned-basket expiry sweeper

PURPOSE:
  Periodically clears baskets whose contents have gone untouched past
  the expiry window. Trip offers are time-sensitive; a basket abandoned
  for hours holds prices and seats that are no longer real.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - A basket expires when its last structural change (item added) is
    older than the expiry window
  - Only non-empty baskets are swept; empty ones have nothing to clear

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 minute)
  - ExpiryWindow:  How long a basket may sit untouched (default: 30 minutes)
  - Enabled:       Whether the sweeper is active (default: true)

USAGE:
  sweeper := NewExpirySweeper(svc)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - basket/service.go: ClearExpired does the actual sweep
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/transitkit/basket-engine/basket"
)

// ExpirySweeper clears abandoned baskets on a timer.
type ExpirySweeper struct {
	Service       *basket.Service
	CheckInterval time.Duration
	ExpiryWindow  time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewExpirySweeper creates a new sweeper over a basket service.
func NewExpirySweeper(svc *basket.Service) *ExpirySweeper {
	return &ExpirySweeper{
		Service:       svc,
		CheckInterval: 1 * time.Minute,
		ExpiryWindow:  30 * time.Minute,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the sweeper.
func (es *ExpirySweeper) Start() {
	es.mu.Lock()
	defer es.mu.Unlock()

	if !es.Enabled {
		log.Println("[Sweeper] Disabled, not starting")
		return
	}

	es.ticker = time.NewTicker(es.CheckInterval)
	es.wg.Add(1)

	go es.run()

	log.Printf("[Sweeper] Started with check interval %v, expiry window %v", es.CheckInterval, es.ExpiryWindow)
}

// Stop stops the sweeper.
func (es *ExpirySweeper) Stop() {
	es.mu.Lock()
	defer es.mu.Unlock()

	if es.ticker != nil {
		es.ticker.Stop()
		close(es.stop)
		es.wg.Wait()
		log.Println("[Sweeper] Stopped")
	}
}

func (es *ExpirySweeper) run() {
	defer es.wg.Done()

	// Run immediately on start
	es.sweep()

	for {
		select {
		case <-es.ticker.C:
			es.sweep()
		case <-es.stop:
			return
		}
	}
}

func (es *ExpirySweeper) sweep() {
	ctx := context.Background()
	now := time.Now()

	cleared, err := es.Service.ClearExpired(ctx, now, es.ExpiryWindow)
	if err != nil {
		log.Printf("[Sweeper] Error clearing expired baskets: %v", err)
		return
	}
	if len(cleared) > 0 {
		log.Printf("[Sweeper] Cleared %d expired basket(s): %v", len(cleared), cleared)
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (es *ExpirySweeper) RunNow() {
	es.sweep()
}

// GetNextRunTime returns when the next scheduled sweep will occur.
func (es *ExpirySweeper) GetNextRunTime() time.Time {
	return time.Now().Add(es.CheckInterval)
}
