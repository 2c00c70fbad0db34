package memory

import (
	"context"
	"strings"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
)

// Registry holds doors and ACL entries loaded once at startup. It is
// read-only after construction, so no locking is needed.
type Registry struct {
	doors map[string]types.Door
	acl   map[string]string
}

// NewRegistry copies doors and acl. ACL keys must already be normalized.
func NewRegistry(doors []types.Door, acl map[string]string) *Registry {
	d := make(map[string]types.Door, len(doors))
	for _, door := range doors {
		id := strings.TrimSpace(door.ID)
		if id != "" {
			d[id] = door
		}
	}
	a := make(map[string]string, len(acl))
	for badge, user := range acl {
		a[badge] = user
	}
	return &Registry{doors: d, acl: a}
}

func (r *Registry) Door(_ context.Context, doorID string) (types.Door, bool, error) {
	door, ok := r.doors[doorID]
	return door, ok, nil
}

func (r *Registry) Owner(_ context.Context, badgeID string) (string, bool, error) {
	user, ok := r.acl[badgeID]
	return user, ok, nil
}
