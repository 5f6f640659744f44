package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"logbook/internal/adapter/memstore"
	"logbook/internal/domain"
	"logbook/internal/port"
)

var fixedNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func entry(id, date, content string) domain.Entry {
	ts, _ := time.Parse(domain.DateLayout, date)
	return domain.Entry{ID: id, Date: date, Timestamp: ts, RawContent: content}
}

func newEngine(entries ...domain.Entry) (*Engine, *memstore.MemoryStore) {
	st := memstore.NewMemoryStore(entries...)
	return NewEngine(st, WithClock(func() time.Time { return fixedNow })), st
}

func dateRange(start, end string) port.RawInstruction {
	return port.RawInstruction{Strategy: "date_range", Params: map[string]any{"start_date": start, "end_date": end}}
}

func TestRetrieve_ProgressiveExpansionStopsAtFirstNonEmptyTier(t *testing.T) {
	e, _ := newEngine(
		entry("a", "2024-06-20", "ran 5k"),
		entry("b", "2024-06-19", "rest day"),
		entry("c", "2024-06-18", "gym"),
		entry("old", "2024-01-15", "ancient"),
	)

	result := e.Execute(context.Background(), []port.RawInstruction{dateRange("2023-01-01", "2023-01-07")}, nil, 100, true)

	require.Len(t, result.Entries, 3)
	require.Len(t, result.Attempts, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{result.Attempts[0].ExpansionTier, result.Attempts[1].ExpansionTier, result.Attempts[2].ExpansionTier})
	assert.Equal(t, 3, result.Attempts[2].EntriesFound)
	assert.Equal(t, 14, result.Attempts[2].Params["days_back"])
	assert.Empty(t, result.Warnings)
	assert.False(t, result.ExpansionExhausted)
	assert.Equal(t, domain.DateRange{Start: "2024-06-18", End: "2024-06-20"}, result.DateRangeCovered)
}

func TestRetrieve_LiteralHitDoesNotExpand(t *testing.T) {
	e, _ := newEngine(entry("a", "2024-03-02", "swim"))

	result := e.Execute(context.Background(), []port.RawInstruction{dateRange("2024-03-01", "2024-03-03")}, nil, 100, true)

	require.Len(t, result.Attempts, 1)
	assert.Equal(t, 0, result.Attempts[0].ExpansionTier)
	assert.Len(t, result.Entries, 1)
}

func TestRetrieve_ExplicitDatesAndDisabledExpansion(t *testing.T) {
	e, _ := newEngine(entry("a", "2024-06-29", "swim"))

	explicit := dateRange("2024-03-01", "2024-03-03")
	explicit.Params["explicit_dates"] = true
	result := e.Execute(context.Background(), []port.RawInstruction{explicit}, nil, 100, true)
	assert.Len(t, result.Attempts, 1)
	assert.Empty(t, result.Entries)

	result = e.Execute(context.Background(), []port.RawInstruction{dateRange("2024-03-01", "2024-03-03")}, nil, 100, false)
	assert.Len(t, result.Attempts, 1)
	assert.Empty(t, result.Entries)
}

func TestRetrieve_ExhaustedFallsBackToKeywords(t *testing.T) {
	e, _ := newEngine(entry("old", "2023-02-01", "Long run along the river"))

	raw := dateRange("2024-01-01", "2024-01-07")
	raw.Params["keywords"] = []any{"lr"}
	result := e.Execute(context.Background(), []port.RawInstruction{raw}, map[string]string{"lr": "long run"}, 100, true)

	assert.True(t, result.ExpansionExhausted)
	require.Len(t, result.Warnings, 1)
	require.Len(t, result.Attempts, 6)
	fallback := result.Attempts[5]
	assert.Equal(t, "keyword", fallback.Strategy)
	assert.Equal(t, 5, fallback.ExpansionTier)
	assert.Equal(t, []string{"lr", "long run"}, fallback.ExpandedTerms)
	assert.Equal(t, true, fallback.Params["semantic_expansion"])
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "old", result.Entries[0].ID)
}

func TestRetrieve_DeduplicatesInFirstAppearanceOrder(t *testing.T) {
	e, _ := newEngine(
		entry("a", "2024-05-01", "x"),
		entry("b", "2024-05-02", "y"),
		entry("c", "2024-05-03", "z"),
	)

	result := e.Execute(context.Background(), []port.RawInstruction{
		dateRange("2024-05-02", "2024-05-03"),
		dateRange("2024-05-01", "2024-05-03"),
	}, nil, 100, true)

	ids := result.EntryIDs()
	assert.Equal(t, []string{"b", "c", "a"}, ids)
	assert.Equal(t, 3, result.TotalFound)
}

func TestRetrieve_Truncates(t *testing.T) {
	var entries []domain.Entry
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 150; i++ {
		d := start.AddDate(0, 0, i).Format(domain.DateLayout)
		entries = append(entries, entry(fmt.Sprintf("e%03d", i), d, "note"))
	}
	e, _ := newEngine(entries...)

	result := e.Execute(context.Background(), []port.RawInstruction{dateRange("2024-01-01", "2024-12-31")}, nil, 100, true)

	assert.Len(t, result.Entries, 100)
	assert.Equal(t, 150, result.TotalFound)
	assert.True(t, result.Truncated)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "150")
	assert.Contains(t, result.Warnings[0], "100")
	assert.Equal(t, "2024-01-01", result.DateRangeCovered.Start)
	assert.Equal(t, entries[99].Date, result.DateRangeCovered.End)
}

func TestRetrieve_InvalidInstructionsBecomeWarnings(t *testing.T) {
	e, _ := newEngine(entry("a", "2024-05-01", "Bench press PR"))

	result := e.Execute(context.Background(), []port.RawInstruction{
		{Strategy: "vector", Params: map[string]any{"q": "x"}},
		{Strategy: "date_range", Params: map[string]any{"start_date": "not-a-date", "end_date": "2024-01-01"}},
		{Strategy: "keyword", Params: map[string]any{}},
		{Strategy: "KEYWORD", Params: map[string]any{"keywords": []any{"pr"}}},
	}, map[string]string{"pr": "personal record"}, 100, true)

	assert.Len(t, result.Warnings, 3)
	require.Len(t, result.Attempts, 1)
	assert.Equal(t, 1, result.Attempts[0].AttemptNumber)
	assert.Equal(t, []string{"pr", "personal record"}, result.Attempts[0].ExpandedTerms)
	assert.Len(t, result.Entries, 1)
}

func TestRetrieve_TopicalUsesRelatedTermsAndFilter(t *testing.T) {
	e, _ := newEngine(
		entry("a", "2024-05-01", "slept badly"),
		entry("b", "2024-05-10", "took a nap"),
		entry("c", "2024-04-01", "nap again"),
	)

	result := e.Execute(context.Background(), []port.RawInstruction{{
		Strategy: "topical",
		Params: map[string]any{
			"topics":        []any{"sleep"},
			"related_terms": []any{"slept", "nap"},
			"start_date":    "2024-05-01",
			"end_date":      "2024-05-31",
		},
	}}, nil, 100, true)

	assert.Equal(t, []string{"a", "b"}, result.EntryIDs())
}

type failingStore struct {
	*memstore.MemoryStore
}

func (failingStore) GetEntriesByDateRange(context.Context, string, string) ([]domain.Entry, error) {
	return nil, errors.New("disk on fire")
}

func TestRetrieve_StoreErrorIsAWarning(t *testing.T) {
	e := NewEngine(failingStore{memstore.NewMemoryStore(entry("a", "2024-05-01", "run"))})

	result := e.Retrieve(context.Background(), []Instruction{
		DateRange{Start: "2024-05-01", End: "2024-05-02"},
		Keyword{Keywords: []string{"run"}},
	}, nil, 100, true)

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "disk on fire")
	assert.Len(t, result.Entries, 1)
}

func TestSummarize(t *testing.T) {
	e, _ := newEngine(entry("a", "2024-05-01", "x"))
	result := e.Execute(context.Background(), []port.RawInstruction{dateRange("2024-05-01", "2024-05-01")}, nil, 100, true)

	s := Summarize(result)
	assert.Contains(t, s, "Retrieved 1 entries covering 2024-05-01 to 2024-05-01")
	assert.Contains(t, s, "attempt 1 [date_range, tier 0]")
}
