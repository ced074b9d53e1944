package domain

import (
	"context"
	"time"
)

// Dispatch outcome values stored in JournalEntry.Status.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// JournalEntry records one dispatched command.
type JournalEntry struct {
	ID        int64
	RequestID string
	ChatID    string
	Author    string
	Command   string
	Method    string
	Status    string
	Error     string
	Duration  time.Duration
	CreatedAt time.Time
}

// Journal stores dispatch records. Implementations must be safe for
// concurrent use.
type Journal interface {
	Record(ctx context.Context, entry JournalEntry) error
	Recent(ctx context.Context, limit int) ([]JournalEntry, error)
}
