package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
)

// RegistryStore reads the doors and acl_entries tables populated by
// db.SyncRegistry. It never writes.
type RegistryStore struct {
	db *sql.DB
}

func NewRegistryStore(db *sql.DB) *RegistryStore {
	return &RegistryStore{db: db}
}

func (s *RegistryStore) Door(ctx context.Context, doorID string) (types.Door, bool, error) {
	doorID = strings.TrimSpace(doorID)
	if doorID == "" {
		return types.Door{}, false, nil
	}

	var (
		door  types.Door
		relay int
		token sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
SELECT door_id, name, relay, token
FROM doors
WHERE door_id = ?;
`, doorID).Scan(&door.ID, &door.Name, &relay, &token)

	if errors.Is(err, sql.ErrNoRows) {
		return types.Door{}, false, nil
	}
	if err != nil {
		return types.Door{}, false, fmt.Errorf("Door query: %w", err)
	}

	door.Relay = uint8(relay)
	if token.Valid {
		door.Token = token.String
	}
	return door, true, nil
}

func (s *RegistryStore) Owner(ctx context.Context, badgeID string) (string, bool, error) {
	if badgeID == "" {
		return "", false, nil
	}

	var userID string
	err := s.db.QueryRowContext(ctx, `
SELECT user_id FROM acl_entries WHERE badge_id = ?;
`, badgeID).Scan(&userID)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("Owner query: %w", err)
	}
	return userID, true, nil
}
