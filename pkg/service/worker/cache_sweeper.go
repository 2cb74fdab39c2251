package worker

import (
	"context"
	"time"

	"github.com/secmon-lab/dermis/pkg/utils/logging"
)

// Evictor removes expired entries and reports how many were removed
type Evictor interface {
	EvictExpired() int
}

// CacheSweeperWorker periodically evicts expired entries from the result cache so that
// keys which are never read again do not accumulate.
//
// Architecture assumptions:
// - The cache is process-local; every server instance runs its own sweeper
type CacheSweeperWorker struct {
	cache    Evictor
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCacheSweeperWorker creates a new worker sweeping cache every interval
func NewCacheSweeperWorker(cache Evictor, interval time.Duration) *CacheSweeperWorker {
	return &CacheSweeperWorker{
		cache:    cache,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop. It does not block.
func (w *CacheSweeperWorker) Start(ctx context.Context) error {
	logging.Default().Info("Cache sweeper worker starting",
		"interval", w.interval.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *CacheSweeperWorker) Stop() {
	logging.Default().Info("Cache sweeper worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("Cache sweeper worker stopped")
}

func (w *CacheSweeperWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep()

		case <-w.stopCh:
			logging.Default().Info("Cache sweeper worker received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("Cache sweeper worker context cancelled")
			return
		}
	}
}

func (w *CacheSweeperWorker) sweep() {
	startTime := time.Now()
	evicted := w.cache.EvictExpired()
	if evicted == 0 {
		return
	}

	logging.Default().Debug("Cache sweep completed",
		"evicted", evicted,
		"duration", time.Since(startTime).String())
}
