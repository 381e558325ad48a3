package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"siteup"
)

func openTestStore(t *testing.T) *HistoryStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestHistoryStore_RecordAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	rec := siteup.HistoryRecord{
		Target:     "demo",
		Success:    true,
		Endpoint:   "https://demo.example.net",
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Second),
	}
	if err := store.Record(ctx, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := store.List(ctx, "demo", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("List returned %d records, want 1", len(got))
	}

	g := got[0]
	if g.ID == 0 {
		t.Error("expected assigned ID")
	}
	if !g.Success {
		t.Error("expected Success=true")
	}
	if g.Endpoint != rec.Endpoint {
		t.Errorf("Endpoint: got %q, want %q", g.Endpoint, rec.Endpoint)
	}
	if !g.StartedAt.Equal(rec.StartedAt) {
		t.Errorf("StartedAt: got %v, want %v", g.StartedAt, rec.StartedAt)
	}
	if got, want := g.Duration(), 42*time.Second; got != want {
		t.Errorf("Duration: got %v, want %v", got, want)
	}
}

func TestHistoryStore_ListNewestFirstAndFiltered(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for i, target := range []string{"demo", "blog", "demo"} {
		rec := siteup.HistoryRecord{
			Target:     target,
			Success:    i != 1,
			Failure:    "build failed",
			Phase:      "build",
			StartedAt:  now.Add(time.Duration(i) * time.Minute),
			FinishedAt: now.Add(time.Duration(i)*time.Minute + time.Second),
		}
		if err := store.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	all, err := store.List(ctx, "", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List returned %d records, want 3", len(all))
	}
	if all[0].ID <= all[1].ID {
		t.Errorf("expected newest first, got IDs %d, %d", all[0].ID, all[1].ID)
	}

	demo, err := store.List(ctx, "demo", 10)
	if err != nil {
		t.Fatalf("List(demo): %v", err)
	}
	if len(demo) != 2 {
		t.Fatalf("List(demo) returned %d records, want 2", len(demo))
	}
	for _, r := range demo {
		if r.Target != "demo" {
			t.Errorf("filtered list contains target %q", r.Target)
		}
	}
}

func TestHistoryStore_RecordRequiresTarget(t *testing.T) {
	store := openTestStore(t)

	err := store.Record(context.Background(), siteup.HistoryRecord{})
	if err == nil {
		t.Fatal("Record accepted empty target")
	}
}
