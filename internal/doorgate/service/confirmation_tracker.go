package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BrandonDHaskell/doorgate/internal/clock"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
)

// DefaultConfirmationWindow is how long a confirmation prompt stays usable.
const DefaultConfirmationWindow = 120 * time.Second

// expireTimeout bounds the message edit done from a timer callback.
const expireTimeout = 10 * time.Second

type pendingConfirmation struct {
	callbackID string
	door       types.Door
	handle     types.MessageHandle
	createdAt  time.Time
	timer      *clock.Timer
}

// ConfirmationTracker holds at most one live confirmation prompt per user.
//
// All mutation for a user happens under that user's lock, including the chat
// calls, so a new prompt never races the expiry of the previous one.
type ConfirmationTracker struct {
	notifier Notifier
	clock    clock.Clock
	window   time.Duration
	logger   *slog.Logger
	locks    *keyedMutex

	mu      sync.Mutex
	pending map[string]*pendingConfirmation
}

func NewConfirmationTracker(n Notifier, clk clock.Clock, window time.Duration, logger *slog.Logger) *ConfirmationTracker {
	if window <= 0 {
		window = DefaultConfirmationWindow
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfirmationTracker{
		notifier: n,
		clock:    clk,
		window:   window,
		logger:   logger,
		locks:    newKeyedMutex(),
		pending:  make(map[string]*pendingConfirmation),
	}
}

// Create expires any live prompt for userID, sends a new one and schedules
// its expiry after the confirmation window.
func (t *ConfirmationTracker) Create(ctx context.Context, userID string, door types.Door, callbackID string) error {
	unlock := t.locks.Lock(userID)
	defer unlock()

	if err := t.expireLocked(ctx, userID, ""); err != nil {
		t.logger.Warn("expire previous confirmation failed", "user_id", userID, "error", err)
	}

	handle, err := t.notifier.RequestConfirmation(ctx, userID, door, callbackID)
	if err != nil {
		return err
	}

	p := &pendingConfirmation{
		callbackID: callbackID,
		door:       door,
		handle:     handle,
		createdAt:  t.clock.Now(),
	}
	p.timer = t.clock.AfterFunc(t.window, func() {
		t.expireScheduled(userID, callbackID)
	})

	t.mu.Lock()
	t.pending[userID] = p
	t.mu.Unlock()
	return nil
}

// Expire rewrites the live prompt for userID to its expired form and forgets
// it. A non-empty callbackID limits this to the prompt carrying that token.
func (t *ConfirmationTracker) Expire(ctx context.Context, userID, callbackID string) error {
	unlock := t.locks.Lock(userID)
	defer unlock()
	return t.expireLocked(ctx, userID, callbackID)
}

// Clear forgets the live prompt for userID without editing it. A non-empty
// callbackID limits this to the prompt carrying that token.
func (t *ConfirmationTracker) Clear(userID, callbackID string) {
	t.Take(userID, callbackID)
}

// Take removes the live prompt for userID if it carries callbackID and
// reports whether it did. At most one caller wins for a given prompt.
func (t *ConfirmationTracker) Take(userID, callbackID string) bool {
	unlock := t.locks.Lock(userID)
	defer unlock()

	p := t.take(userID, callbackID)
	if p == nil {
		return false
	}
	p.timer.Stop()
	return true
}

// Pending returns the callback id of the live prompt for userID.
func (t *ConfirmationTracker) Pending(userID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[userID]
	if !ok {
		return "", false
	}
	return p.callbackID, true
}

func (t *ConfirmationTracker) expireScheduled(userID, callbackID string) {
	ctx, cancel := context.WithTimeout(context.Background(), expireTimeout)
	defer cancel()

	unlock := t.locks.Lock(userID)
	defer unlock()

	if err := t.expireLocked(ctx, userID, callbackID); err != nil {
		t.logger.Warn("scheduled confirmation expiry failed", "user_id", userID, "error", err)
	}
}

// expireLocked requires the user lock. The entry stays tracked until the edit
// has returned.
func (t *ConfirmationTracker) expireLocked(ctx context.Context, userID, callbackID string) error {
	t.mu.Lock()
	p, ok := t.pending[userID]
	t.mu.Unlock()
	if !ok || (callbackID != "" && p.callbackID != callbackID) {
		return nil
	}

	p.timer.Stop()

	var err error
	if !p.handle.IsZero() {
		err = t.notifier.MarkExpired(ctx, p.handle, p.door, p.callbackID)
	}

	t.take(userID, p.callbackID)
	return err
}

func (t *ConfirmationTracker) take(userID, callbackID string) *pendingConfirmation {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.pending[userID]
	if !ok || (callbackID != "" && p.callbackID != callbackID) {
		return nil
	}
	delete(t.pending, userID)
	return p
}
