package port

import (
	"context"
	"errors"

	"logbook/internal/domain"
)

var (
	// ErrNoKeywords is returned by SearchEntries when called without keywords.
	ErrNoKeywords = errors.New("search requires at least one keyword")

	// ErrEntryNotFound is returned by GetEntry for an unknown id.
	ErrEntryNotFound = errors.New("entry not found")
)

// EntryStore persists logged entries. Reads are expected to observe every completed write.
type EntryStore interface {
	PutEntries(ctx context.Context, entries []domain.Entry) error

	GetEntry(ctx context.Context, id string) (domain.Entry, error)

	// GetEntriesByDateRange returns entries with start <= date <= end (YYYY-MM-DD),
	// ordered by date, timestamp, id.
	GetEntriesByDateRange(ctx context.Context, start, end string) ([]domain.Entry, error)

	// SearchEntries returns entries whose content contains any (or, with matchAll, every)
	// keyword, case-insensitively, optionally limited to dateRange.
	SearchEntries(ctx context.Context, keywords []string, dateRange *domain.DateRange, matchAll bool) ([]domain.Entry, error)

	Count(ctx context.Context) (int, error)

	// Clear removes every entry.
	Clear(ctx context.Context) error

	Close() error
}
