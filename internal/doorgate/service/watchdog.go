package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BrandonDHaskell/doorgate/internal/clock"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/store"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
)

const (
	DefaultHealthyTimeout   = 120 * time.Second
	DefaultReminderInterval = 4 * time.Hour
)

// HealthAlert describes an opener health transition.
type HealthAlert struct {
	LastHeartbeat time.Time
	Silence       time.Duration
	// Reminder is set on repeated degraded alerts.
	Reminder bool
	At       time.Time
}

// HealthListener is told about opener health transitions. Implementations
// must not block for long; they run on the watchdog's goroutine.
type HealthListener interface {
	OpenerDegraded(ctx context.Context, alert HealthAlert)
	OpenerRecovered(ctx context.Context, alert HealthAlert)
}

type WatchdogConfig struct {
	HealthyTimeout   time.Duration
	ReminderInterval time.Duration
}

// HealthWatchdog tracks opener heartbeats and raises alerts when they stop.
//
// lastAlert is zero while healthy. The first evaluation after startup treats
// the start time as the last heartbeat unless the store knows a later one.
type HealthWatchdog struct {
	store     store.HeartbeatStore
	listeners []HealthListener
	clock     clock.Clock
	timeout   time.Duration
	reminder  time.Duration
	logger    *slog.Logger

	mu            sync.Mutex
	lastHeartbeat time.Time
	lastAlert     time.Time

	runMu    sync.Mutex
	started  bool
	stopped  bool
	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewHealthWatchdog creates a watchdog. st may be nil to skip persistence.
func NewHealthWatchdog(st store.HeartbeatStore, cfg WatchdogConfig, clk clock.Clock, logger *slog.Logger, listeners ...HealthListener) *HealthWatchdog {
	if cfg.HealthyTimeout <= 0 {
		cfg.HealthyTimeout = DefaultHealthyTimeout
	}
	if cfg.ReminderInterval <= 0 {
		cfg.ReminderInterval = DefaultReminderInterval
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthWatchdog{
		store:         st,
		listeners:     listeners,
		clock:         clk,
		timeout:       cfg.HealthyTimeout,
		reminder:      cfg.ReminderInterval,
		logger:        logger,
		lastHeartbeat: clk.Now(),
		done:          make(chan struct{}),
	}
}

// Heartbeat records a liveness ping and announces recovery if an alert was
// active. A persistence failure is logged and does not fail the ping.
func (w *HealthWatchdog) Heartbeat(ctx context.Context, req types.HeartbeatRequest) (types.HeartbeatResponse, error) {
	now := w.clock.Now()

	w.mu.Lock()
	wasAlerting := !w.lastAlert.IsZero()
	previous := w.lastHeartbeat
	w.lastHeartbeat = now
	w.lastAlert = time.Time{}
	w.mu.Unlock()

	if w.store != nil {
		rec := store.HeartbeatRecord{ReceivedAt: now.UTC(), Request: req}
		if err := w.store.RecordHeartbeat(ctx, rec); err != nil {
			w.logger.Warn("persist heartbeat failed", "error", err)
		}
	}

	if wasAlerting {
		alert := HealthAlert{LastHeartbeat: previous, Silence: now.Sub(previous), At: now}
		w.logger.Info("opener recovered", "silence", alert.Silence.String())
		for _, l := range w.listeners {
			l.OpenerRecovered(ctx, alert)
		}
	}

	return types.HeartbeatResponse{OK: true}, nil
}

// Evaluate checks for silence and raises the first alert or a reminder.
func (w *HealthWatchdog) Evaluate(ctx context.Context) {
	now := w.clock.Now()

	w.mu.Lock()
	silence := now.Sub(w.lastHeartbeat)
	var (
		raise    bool
		reminder bool
	)
	switch {
	case w.lastAlert.IsZero():
		raise = silence > w.timeout
	default:
		raise = now.Sub(w.lastAlert) > w.reminder
		reminder = true
	}
	if raise {
		w.lastAlert = now
	}
	alert := HealthAlert{LastHeartbeat: w.lastHeartbeat, Silence: silence, Reminder: reminder, At: now}
	w.mu.Unlock()

	if !raise {
		return
	}

	w.logger.Warn("opener not responding",
		"last_heartbeat", alert.LastHeartbeat.UTC().Format(time.RFC3339),
		"silence", silence.String(),
		"reminder", reminder)
	for _, l := range w.listeners {
		l.OpenerDegraded(ctx, alert)
	}
}

// Healthy reports whether no alert is active.
func (w *HealthWatchdog) Healthy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastAlert.IsZero()
}

// LastHeartbeat returns the time of the last heartbeat, or the start time.
func (w *HealthWatchdog) LastHeartbeat() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastHeartbeat
}

// Start seeds the last heartbeat from the store and evaluates once per
// healthy timeout until ctx is cancelled or Stop is called. Only the first
// call before Stop has any effect.
func (w *HealthWatchdog) Start(ctx context.Context) {
	w.runMu.Lock()
	if w.started || w.stopped {
		w.runMu.Unlock()
		return
	}
	w.started = true
	ctx, w.cancel = context.WithCancel(ctx)
	w.runMu.Unlock()

	if w.store != nil {
		rec, ok, err := w.store.LastHeartbeat(ctx)
		switch {
		case err != nil:
			w.logger.Warn("load last heartbeat failed", "error", err)
		case ok:
			w.mu.Lock()
			if rec.ReceivedAt.After(w.lastHeartbeat) {
				w.lastHeartbeat = rec.ReceivedAt
			}
			w.mu.Unlock()
		}
	}

	ticker := w.clock.NewTicker(w.timeout)

	go func() {
		defer close(w.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.Evaluate(ctx)
			}
		}
	}()

	w.logger.Info("opener watchdog started",
		"healthy_timeout", w.timeout.String(),
		"reminder_interval", w.reminder.String())
}

// Stop ends the evaluation loop and waits for it. Safe to call more than once
// and before Start.
func (w *HealthWatchdog) Stop() {
	w.stopOnce.Do(func() {
		w.runMu.Lock()
		w.stopped = true
		cancel := w.cancel
		w.runMu.Unlock()

		if cancel == nil {
			close(w.done)
			return
		}
		cancel()
	})
	<-w.done
}
