package memstore

import (
	"context"
	"fmt"
	"sync"

	"logbook/internal/domain"
	"logbook/internal/port"
)

type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]domain.Entry
	calls   []string
}

var _ port.EntryStore = (*MemoryStore)(nil)

func NewMemoryStore(entries ...domain.Entry) *MemoryStore {
	s := &MemoryStore{entries: make(map[string]domain.Entry)}
	for _, e := range entries {
		s.entries[e.ID] = e
	}
	return s
}

func (s *MemoryStore) PutEntries(_ context.Context, entries []domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("entry without id")
		}
		s.entries[e.ID] = e
	}
	return nil
}

func (s *MemoryStore) GetEntry(_ context.Context, id string) (domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return domain.Entry{}, fmt.Errorf("%w: %s", port.ErrEntryNotFound, id)
	}
	return e, nil
}

func (s *MemoryStore) GetEntriesByDateRange(_ context.Context, start, end string) ([]domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "range:"+start+".."+end)
	r := &domain.DateRange{Start: start, End: end}
	var out []domain.Entry
	for _, e := range s.entries {
		if e.InRange(r) {
			out = append(out, e)
		}
	}
	domain.SortEntries(out)
	return out, nil
}

func (s *MemoryStore) SearchEntries(_ context.Context, keywords []string, dateRange *domain.DateRange, matchAll bool) ([]domain.Entry, error) {
	if len(keywords) == 0 {
		return nil, port.ErrNoKeywords
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "search")
	var out []domain.Entry
	for _, e := range s.entries {
		if e.InRange(dateRange) && e.Matches(keywords, matchAll) {
			out = append(out, e)
		}
	}
	domain.SortEntries(out)
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]domain.Entry)
	return nil
}

// Calls returns the read operations served so far, for tests.
func (s *MemoryStore) Calls() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.calls...)
}

func (s *MemoryStore) Close() error {
	return nil
}
