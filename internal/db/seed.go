package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
)

// SyncRegistry replaces the doors and acl_entries tables with the given
// configuration in a single transaction. Door ids are trimmed; ACL keys must
// be normalized.
func SyncRegistry(ctx context.Context, w *Worker, doors []types.Door, acl map[string]string) error {
	now := time.Now().UTC().UnixMilli()

	return w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM doors;`); err != nil {
			return fmt.Errorf("clear doors: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM acl_entries;`); err != nil {
			return fmt.Errorf("clear acl_entries: %w", err)
		}

		for _, d := range doors {
			id := strings.TrimSpace(d.ID)
			var token any
			if d.Token != "" {
				token = d.Token
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO doors(door_id, name, relay, token, updated_at_ms)
VALUES (?, ?, ?, ?, ?);
`, id, d.Name, int(d.Relay), token, now); err != nil {
				return fmt.Errorf("insert door %s: %w", id, err)
			}
		}

		for badge, user := range acl {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO acl_entries(badge_id, user_id, updated_at_ms)
VALUES (?, ?, ?);
`, badge, user, now); err != nil {
				return fmt.Errorf("insert acl entry: %w", err)
			}
		}
		return nil
	})
}
