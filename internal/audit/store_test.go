package audit

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"wabot/internal/domain"
)

func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	j, err := NewSQLiteJournal(filepath.Join(t.TempDir(), "nested", "journal.db"), logger)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndRecent(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	entries := []domain.JournalEntry{
		{RequestID: "r1", ChatID: "c1@c.us", Author: "a1@c.us", Command: "help", Method: "message", Status: domain.StatusOK, Duration: 120 * time.Millisecond},
		{RequestID: "r1", ChatID: "c1@c.us", Author: "a1@c.us", Command: "geo", Method: "sendLocation", Status: domain.StatusFailed, Error: "error"},
	}
	for _, e := range entries {
		if err := j.Record(ctx, e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Command != "geo" || got[1].Command != "help" {
		t.Errorf("expected newest first, got %s then %s", got[0].Command, got[1].Command)
	}
	if got[0].Status != domain.StatusFailed || got[0].Error != "error" {
		t.Errorf("unexpected failed entry: %#v", got[0])
	}
	if got[1].Duration != 120*time.Millisecond {
		t.Errorf("expected 120ms, got %s", got[1].Duration)
	}
	if got[1].CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestRecent_Limit(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		j.Record(ctx, domain.JournalEntry{RequestID: "r", Command: "ptt", Method: "sendAudio", Status: domain.StatusOK})
	}

	got, err := j.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 entries, got %d", len(got))
	}
}

func TestPrune(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	j.Record(ctx, domain.JournalEntry{RequestID: "old", Command: "help", Method: "message", Status: domain.StatusOK,
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour)})
	j.Record(ctx, domain.JournalEntry{RequestID: "new", Command: "help", Method: "message", Status: domain.StatusOK})

	n, err := j.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned, got %d", n)
	}
	got, _ := j.Recent(ctx, 10)
	if len(got) != 1 || got[0].RequestID != "new" {
		t.Errorf("expected only the new entry left, got %#v", got)
	}
}
