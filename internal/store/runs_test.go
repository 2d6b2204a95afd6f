package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"topodisc/internal/discover"
	"topodisc/internal/store"
	"topodisc/internal/testutil/storetest"
)

func newTestRepo(t *testing.T) *store.RunRepo {
	t.Helper()
	repo, err := store.NewRunRepo(context.Background(), storetest.NewStore(t))
	if err != nil {
		t.Fatalf("NewRunRepo() error = %v", err)
	}
	return repo
}

func TestRecordAndLastRun(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	run := &discover.RunRecord{
		ID:           uuid.New().String(),
		TestbedFile:  "lab.yaml",
		StartedAt:    time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC),
		EndedAt:      time.Date(2026, 8, 25, 10, 5, 0, 0, time.UTC),
		Status:       "completed",
		Rounds:       3,
		DevicesAdded: []string{"r2", "r3"},
		LinksAdded:   2,
	}
	if err := repo.RecordRun(ctx, run); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	got, err := repo.LastRun(ctx)
	if err != nil {
		t.Fatalf("LastRun() error = %v", err)
	}
	if got == nil {
		t.Fatal("LastRun() = nil")
	}
	if got.ID != run.ID {
		t.Errorf("ID = %q, want %q", got.ID, run.ID)
	}
	if got.Rounds != 3 || got.LinksAdded != 2 {
		t.Errorf("Rounds = %d, LinksAdded = %d", got.Rounds, got.LinksAdded)
	}
	if !got.StartedAt.Equal(run.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, run.StartedAt)
	}
	if len(got.DevicesAdded) != 2 || got.DevicesAdded[0] != "r2" || got.DevicesAdded[1] != "r3" {
		t.Errorf("DevicesAdded = %v", got.DevicesAdded)
	}
}

func TestLastRunEmpty(t *testing.T) {
	repo := newTestRepo(t)
	got, err := repo.LastRun(context.Background())
	if err != nil {
		t.Fatalf("LastRun() error = %v", err)
	}
	if got != nil {
		t.Errorf("LastRun() = %+v, want nil on empty history", got)
	}
}

func TestLastRunReturnsNewest(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	older := &discover.RunRecord{
		ID:        uuid.New().String(),
		StartedAt: time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC),
		EndedAt:   time.Date(2026, 8, 24, 9, 1, 0, 0, time.UTC),
		Status:    "completed",
	}
	newer := &discover.RunRecord{
		ID:        uuid.New().String(),
		StartedAt: time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC),
		EndedAt:   time.Date(2026, 8, 25, 9, 1, 0, 0, time.UTC),
		Status:    "completed",
	}
	for _, run := range []*discover.RunRecord{older, newer} {
		if err := repo.RecordRun(ctx, run); err != nil {
			t.Fatalf("RecordRun() error = %v", err)
		}
	}

	got, err := repo.LastRun(ctx)
	if err != nil {
		t.Fatalf("LastRun() error = %v", err)
	}
	if got.ID != newer.ID {
		t.Errorf("LastRun().ID = %q, want newest run %q", got.ID, newer.ID)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := storetest.NewStore(t)

	ctx := context.Background()
	if _, err := store.NewRunRepo(ctx, db); err != nil {
		t.Fatalf("first NewRunRepo() error = %v", err)
	}
	if _, err := store.NewRunRepo(ctx, db); err != nil {
		t.Fatalf("second NewRunRepo() error = %v", err)
	}
}
