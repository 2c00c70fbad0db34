package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
)

type HeartbeatRecord struct {
	ReceivedAt time.Time
	Request    types.HeartbeatRequest
}

// HeartbeatStore keeps the opener's liveness history.
type HeartbeatStore interface {
	RecordHeartbeat(ctx context.Context, rec HeartbeatRecord) error
	// LastHeartbeat returns the most recent record, or ok=false if none exist.
	LastHeartbeat(ctx context.Context) (rec HeartbeatRecord, ok bool, err error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
