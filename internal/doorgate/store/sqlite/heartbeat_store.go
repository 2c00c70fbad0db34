package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/doorgate/internal/db"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/store"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
)

type HeartbeatStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewHeartbeatStore(db *sql.DB, writer *dbpkg.Worker) *HeartbeatStore {
	return &HeartbeatStore{db: db, writer: writer}
}

// RecordHeartbeat appends one opener heartbeat.
func (s *HeartbeatStore) RecordHeartbeat(ctx context.Context, rec store.HeartbeatRecord) error {
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	recvMs := rec.ReceivedAt.UTC().UnixMilli()
	addr := strings.TrimSpace(rec.Request.RemoteAddr)
	ua := strings.TrimSpace(rec.Request.UserAgent)

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO opener_heartbeats(received_at_ms, remote_addr, user_agent)
VALUES (?, ?, ?);
`, recvMs, addr, ua); err != nil {
			return fmt.Errorf("RecordHeartbeat insert: %w", err)
		}
		return nil
	})
}

// LastHeartbeat returns the newest heartbeat, if any.
func (s *HeartbeatStore) LastHeartbeat(ctx context.Context) (store.HeartbeatRecord, bool, error) {
	var (
		recvMs int64
		req    types.HeartbeatRequest
	)
	err := s.db.QueryRowContext(ctx, `
SELECT received_at_ms, remote_addr, user_agent
FROM opener_heartbeats
ORDER BY received_at_ms DESC, id DESC
LIMIT 1;
`).Scan(&recvMs, &req.RemoteAddr, &req.UserAgent)

	if errors.Is(err, sql.ErrNoRows) {
		return store.HeartbeatRecord{}, false, nil
	}
	if err != nil {
		return store.HeartbeatRecord{}, false, fmt.Errorf("LastHeartbeat query: %w", err)
	}
	return store.HeartbeatRecord{
		ReceivedAt: time.UnixMilli(recvMs).UTC(),
		Request:    req,
	}, true, nil
}

// PruneOlderThan deletes heartbeat rows with received_at_ms before the given
// cutoff time.  Returns the number of rows deleted.
//
// Uses the idx_opener_heartbeats_time index for an efficient range scan.
func (s *HeartbeatStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM opener_heartbeats
WHERE received_at_ms < ?;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}
