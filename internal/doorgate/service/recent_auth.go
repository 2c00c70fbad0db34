package service

import (
	"sync"
	"time"
)

// DefaultReauthWindow is how long a successful open lets the same user skip
// confirmation.
const DefaultReauthWindow = 60 * time.Second

// RecentAuthentications remembers each user's last successful open.
type RecentAuthentications struct {
	mu   sync.RWMutex
	last map[string]time.Time
}

func NewRecentAuthentications() *RecentAuthentications {
	return &RecentAuthentications{last: make(map[string]time.Time)}
}

// Touch records a successful open at t. Timestamps only move forward.
func (r *RecentAuthentications) Touch(userID string, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.last[userID]; ok && prev.After(t) {
		return
	}
	r.last[userID] = t
}

// Within reports whether userID opened a door no more than window before now.
func (r *RecentAuthentications) Within(userID string, now time.Time, window time.Duration) bool {
	r.mu.RLock()
	last, ok := r.last[userID]
	r.mu.RUnlock()

	return ok && now.Sub(last) <= window
}
