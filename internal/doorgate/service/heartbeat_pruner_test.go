package service_test

import (
	"context"
	"testing"

	"github.com/BrandonDHaskell/doorgate/internal/clock"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/service"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/store"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/store/memory"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
)

func TestHeartbeatPruner_DisabledWhenRetentionZero(t *testing.T) {
	ms := memory.New()
	pruner := service.NewHeartbeatPruner(ms, service.PrunerConfig{
		RetentionDays: 0,
		IntervalHours: 1,
	}, clock.Fake(epoch), silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pruner.Start(ctx)
	// Stop should return immediately without error.
	pruner.Stop()
}

func TestHeartbeatPruner_PrunesOldRecords(t *testing.T) {
	ms := memory.New()
	ctx := context.Background()

	for _, age := range []int{40, 1} {
		rec := store.HeartbeatRecord{
			ReceivedAt: epoch.AddDate(0, 0, -age),
			Request:    types.HeartbeatRequest{RemoteAddr: "10.0.0.5"},
		}
		if err := ms.RecordHeartbeat(ctx, rec); err != nil {
			t.Fatalf("insert %dd: %v", age, err)
		}
	}

	pruner := service.NewHeartbeatPruner(ms, service.PrunerConfig{RetentionDays: 30}, clock.Fake(epoch), silentLogger())
	if deleted := pruner.Prune(ctx); deleted != 1 {
		t.Errorf("expected 1 pruned, got %d", deleted)
	}
	if ms.Len() != 1 {
		t.Errorf("remaining = %d, want 1", ms.Len())
	}

	// Nothing left to prune.
	if deleted := pruner.Prune(ctx); deleted != 0 {
		t.Errorf("second prune deleted %d", deleted)
	}
}

func TestHeartbeatPruner_StartPrunesImmediately(t *testing.T) {
	ms := memory.New()
	ctx := context.Background()
	_ = ms.RecordHeartbeat(ctx, store.HeartbeatRecord{ReceivedAt: epoch.AddDate(0, 0, -90)})

	pruner := service.NewHeartbeatPruner(ms, service.PrunerConfig{RetentionDays: 30, IntervalHours: 1}, clock.Fake(epoch), silentLogger())
	pruner.Start(ctx)
	defer pruner.Stop()

	if ms.Len() != 0 {
		t.Errorf("remaining = %d, want 0 after startup prune", ms.Len())
	}
}

func TestHeartbeatPruner_StopIsIdempotent(t *testing.T) {
	ms := memory.New()
	pruner := service.NewHeartbeatPruner(ms, service.PrunerConfig{
		RetentionDays: 30,
		IntervalHours: 1,
	}, clock.Fake(epoch), silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	pruner.Start(ctx)

	cancel()
	// Multiple stops should not panic.
	pruner.Stop()
	pruner.Stop()
}

func TestHeartbeatPruner_StartAfterStopIsNoop(t *testing.T) {
	ms := memory.New()
	ctx := context.Background()
	_ = ms.RecordHeartbeat(ctx, store.HeartbeatRecord{ReceivedAt: epoch.AddDate(0, 0, -90)})

	pruner := service.NewHeartbeatPruner(ms, service.PrunerConfig{RetentionDays: 30, IntervalHours: 1}, clock.Fake(epoch), silentLogger())
	pruner.Stop()
	pruner.Start(ctx)
	pruner.Stop()

	if ms.Len() != 1 {
		t.Errorf("remaining = %d, want 1; stopped pruner ran", ms.Len())
	}
}

func TestHeartbeatPruner_SecondStartIgnored(t *testing.T) {
	pruner := service.NewHeartbeatPruner(memory.New(), service.PrunerConfig{RetentionDays: 30, IntervalHours: 1}, clock.Fake(epoch), silentLogger())
	ctx := context.Background()
	pruner.Start(ctx)
	pruner.Start(ctx)
	pruner.Stop()
}
