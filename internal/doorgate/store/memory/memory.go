package memory

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/store"
)

// Store is an in-memory HeartbeatStore for tests and dev environments.
type Store struct {
	mu   sync.RWMutex
	data []store.HeartbeatRecord
}

func New() *Store {
	return &Store{}
}

func (s *Store) RecordHeartbeat(_ context.Context, rec store.HeartbeatRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	s.data = append(s.data, rec)
	return nil
}

func (s *Store) LastHeartbeat(_ context.Context) (store.HeartbeatRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last store.HeartbeatRecord
	found := false
	for _, rec := range s.data {
		if !found || rec.ReceivedAt.After(last.ReceivedAt) {
			last = rec
			found = true
		}
	}
	return last, found, nil
}

func (s *Store) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.data[:0]
	var deleted int64
	for _, rec := range s.data {
		if rec.ReceivedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	s.data = kept
	return deleted, nil
}

// Len returns the number of stored heartbeats. Test-only helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
