package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/store"
)

// NormalizeBadge lowercases raw and drops everything outside [a-z0-9], so
// "AB 12-cd" and "ab12cd" name the same badge.
func NormalizeBadge(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToLower(raw) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeACL re-keys a configured ACL by normalized badge id. Entries that
// normalize to nothing are dropped.
func NormalizeACL(raw map[string]string) map[string]string {
	out := make(map[string]string, len(raw))
	for badge, user := range raw {
		if n := NormalizeBadge(badge); n != "" && strings.TrimSpace(user) != "" {
			out[n] = strings.TrimSpace(user)
		}
	}
	return out
}

// AccessControlLookup resolves normalized badge ids to owners. Read-only.
type AccessControlLookup struct {
	store store.ACLStore
}

func NewAccessControlLookup(st store.ACLStore) *AccessControlLookup {
	return &AccessControlLookup{store: st}
}

// Lookup returns the owner of badgeID, or ok=false if the badge is unknown.
func (a *AccessControlLookup) Lookup(ctx context.Context, badgeID string) (string, bool, error) {
	if badgeID == "" {
		return "", false, nil
	}
	owner, ok, err := a.store.Owner(ctx, badgeID)
	if err != nil {
		return "", false, fmt.Errorf("acl lookup: %w", err)
	}
	return owner, ok, nil
}
