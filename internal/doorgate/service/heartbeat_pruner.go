package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BrandonDHaskell/doorgate/internal/clock"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/store"
)

// HeartbeatPruner periodically deletes opener heartbeat records older than a
// configurable retention period. It runs as a background goroutine and
// is safe to stop via its context or the Stop method.
//
// A retention of 0 disables pruning entirely.
type HeartbeatPruner struct {
	store     store.HeartbeatStore
	retention time.Duration
	interval  time.Duration
	clock     clock.Clock
	logger    *slog.Logger

	runMu    sync.Mutex
	started  bool
	stopped  bool
	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// PrunerConfig holds the parameters for NewHeartbeatPruner.
type PrunerConfig struct {
	// RetentionDays is how many days of heartbeat history to keep.
	// 0 means keep everything (pruner will not start).
	RetentionDays int

	// IntervalHours is how often the pruner runs. Defaults to 6.
	IntervalHours int
}

// NewHeartbeatPruner creates a pruner but does not start it.
// Call Start to begin the background loop.
func NewHeartbeatPruner(s store.HeartbeatStore, cfg PrunerConfig, clk clock.Clock, logger *slog.Logger) *HeartbeatPruner {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HeartbeatPruner{
		store:     s,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  interval,
		clock:     clk,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start runs an immediate prune, then repeats on the configured interval.
// The loop exits when ctx is cancelled or Stop is called.
func (p *HeartbeatPruner) Start(ctx context.Context) {
	p.runMu.Lock()
	if p.started || p.stopped {
		p.runMu.Unlock()
		return
	}
	p.started = true
	if p.retention <= 0 {
		p.runMu.Unlock()
		p.logger.Info("heartbeat pruner disabled", "retention_days", 0)
		p.stopOnce.Do(func() { close(p.done) })
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.runMu.Unlock()

	// Run immediately on startup to clean up any backlog.
	p.Prune(ctx)

	ticker := p.clock.NewTicker(p.interval)
	go func() {
		defer close(p.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Prune(ctx)
			}
		}
	}()

	p.logger.Info("heartbeat pruner started",
		"retention_days", int(p.retention.Hours()/24),
		"interval", p.interval.String())
}

// Stop signals the pruner to exit and waits for it to finish.
func (p *HeartbeatPruner) Stop() {
	p.stopOnce.Do(func() {
		p.runMu.Lock()
		p.stopped = true
		cancel := p.cancel
		p.runMu.Unlock()

		if cancel == nil {
			close(p.done)
			return
		}
		cancel()
	})
	<-p.done
}

// Prune deletes records older than the retention period once.
func (p *HeartbeatPruner) Prune(ctx context.Context) int64 {
	cutoff := p.clock.Now().UTC().Add(-p.retention)
	deleted, err := p.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("heartbeat prune failed", "error", err)
		return 0
	}
	if deleted > 0 {
		p.logger.Info("heartbeat prune", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
	}
	return deleted
}
