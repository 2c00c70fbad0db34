package service

import (
	"sync"
	"time"
)

// DefaultThrottleCooldown is the minimum spacing between accepted reads of
// the same badge.
const DefaultThrottleCooldown = 10 * time.Second

type ThrottleResult int

const (
	Allowed ThrottleResult = iota
	TooSoon
)

// AttemptThrottle rejects repeated reads of one badge within the cooldown.
//
// Check never mutates; callers Record explicitly once a read is accepted.
// Guard serializes the check-then-record sequence per badge. Records are
// never evicted, so memory grows with the number of distinct badges seen.
type AttemptThrottle struct {
	cooldown time.Duration
	locks    *keyedMutex

	mu   sync.RWMutex
	last map[string]time.Time
}

func NewAttemptThrottle(cooldown time.Duration) *AttemptThrottle {
	if cooldown <= 0 {
		cooldown = DefaultThrottleCooldown
	}
	return &AttemptThrottle{
		cooldown: cooldown,
		locks:    newKeyedMutex(),
		last:     make(map[string]time.Time),
	}
}

// Guard locks badgeID until the returned release is called.
func (t *AttemptThrottle) Guard(badgeID string) (release func()) {
	return t.locks.Lock(badgeID)
}

func (t *AttemptThrottle) Check(badgeID string, now time.Time) ThrottleResult {
	t.mu.RLock()
	last, seen := t.last[badgeID]
	t.mu.RUnlock()

	if !seen || now.Sub(last) >= t.cooldown {
		return Allowed
	}
	return TooSoon
}

// Record stores now as the last accepted read. Older timestamps are ignored
// so the record never moves backwards.
func (t *AttemptThrottle) Record(badgeID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.last[badgeID]; ok && last.After(now) {
		return
	}
	t.last[badgeID] = now
}
