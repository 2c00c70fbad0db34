package store

import (
	"context"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
)

// DoorStore resolves configured doors by id.
type DoorStore interface {
	Door(ctx context.Context, doorID string) (door types.Door, ok bool, err error)
}

// ACLStore maps normalized badge ids to the owning chat user.
type ACLStore interface {
	Owner(ctx context.Context, badgeID string) (userID string, ok bool, err error)
}
