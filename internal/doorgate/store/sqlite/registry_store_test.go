package sqlite_test

import (
	"context"
	"testing"

	"github.com/BrandonDHaskell/doorgate/internal/db"
	sqlitestore "github.com/BrandonDHaskell/doorgate/internal/doorgate/store/sqlite"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
)

func TestRegistryStore_DoorAndOwner(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	ctx := context.Background()

	doors := []types.Door{
		{ID: "front", Name: "Front Door", Relay: 3, Token: "reader-1"},
		{ID: "lab", Name: "Lab", Relay: 0},
	}
	if err := db.SyncRegistry(ctx, w, doors, map[string]string{"ab12cd": "U123"}); err != nil {
		t.Fatalf("SyncRegistry: %v", err)
	}

	rs := sqlitestore.NewRegistryStore(conn)

	door, ok, err := rs.Door(ctx, "front")
	if err != nil || !ok {
		t.Fatalf("Door(front) = %v, %v", ok, err)
	}
	if door.Name != "Front Door" || door.Relay != 3 || door.Token != "reader-1" {
		t.Errorf("unexpected door: %+v", door)
	}

	lab, ok, _ := rs.Door(ctx, "lab")
	if !ok || lab.Token != "" {
		t.Errorf("lab door without token should load with empty token: %+v", lab)
	}

	if _, ok, _ := rs.Door(ctx, "missing"); ok {
		t.Error("expected missing door to be absent")
	}

	owner, ok, err := rs.Owner(ctx, "ab12cd")
	if err != nil || !ok || owner != "U123" {
		t.Errorf("Owner(ab12cd) = %q, %v, %v", owner, ok, err)
	}
	if _, ok, _ := rs.Owner(ctx, "ffff"); ok {
		t.Error("expected unknown badge to be absent")
	}
}
