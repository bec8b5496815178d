package journal

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmigrate/openmigrate/pkg/engine"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Errorf("expected error for empty path")
	}
}

func TestStore_AppendAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entries := []*engine.JournalEntry{
		{MigrationID: "mig-1", Step: engine.StepScan, Kind: "step_completed", Message: "step scan completed", Timestamp: time.Now()},
		{MigrationID: "mig-1", Step: engine.StepDiscovery, Kind: "step_completed", Message: "step discovery completed", Details: json.RawMessage(`{"resolved":2}`), Timestamp: time.Now()},
		{MigrationID: "mig-2", Kind: "initialized", Message: "migration initialized", Timestamp: time.Now()},
	}
	for _, entry := range entries {
		if err := s.Append(ctx, entry); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := s.Recent(ctx, "mig-1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries for mig-1, got %d", len(got))
	}
	// Newest first.
	if got[0].Step != engine.StepDiscovery {
		t.Errorf("expected discovery entry first, got %s", got[0].Step)
	}
	if string(got[0].Details) != `{"resolved":2}` {
		t.Errorf("unexpected details: %s", got[0].Details)
	}
	if got[1].Step != engine.StepScan {
		t.Errorf("expected scan entry second, got %s", got[1].Step)
	}
	if got[0].Timestamp.IsZero() {
		t.Errorf("expected timestamp to round-trip")
	}
}

func TestStore_Recent_Limit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		entry := &engine.JournalEntry{MigrationID: "mig-1", Kind: "step_completed", Message: "done", Timestamp: time.Now()}
		if err := s.Append(ctx, entry); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := s.Recent(ctx, "mig-1", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 entries, got %d", len(got))
	}

	// A non-positive limit falls back to the default.
	got, err = s.Recent(ctx, "mig-1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("expected all 5 entries, got %d", len(got))
	}
}

func TestStore_Recent_UnknownMigration(t *testing.T) {
	s := openTestStore(t)

	got, err := s.Recent(context.Background(), "mig-none", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no entries, got %d", len(got))
	}
}

func TestStore_HealthCheck(t *testing.T) {
	s := openTestStore(t)
	if err := s.HealthCheck(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	entry := &engine.JournalEntry{MigrationID: "mig-1", Kind: "initialized", Message: "migration initialized", Timestamp: time.Now()}
	if err := s.Append(ctx, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Reopening applies no further migrations and keeps the data.
	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("failed to reopen journal: %v", err)
	}
	defer func() { _ = s.Close() }()

	got, err := s.Recent(ctx, "mig-1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected persisted entry after reopen, got %d", len(got))
	}
}
