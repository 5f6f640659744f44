package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"logbook/internal/domain"
	"logbook/internal/port"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "entries.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func at(id, date string, hour int, content string) domain.Entry {
	d, _ := time.Parse(domain.DateLayout, date)
	return domain.Entry{ID: id, Date: date, Timestamp: d.Add(time.Duration(hour) * time.Hour), RawContent: content}
}

func ids(entries []domain.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestStore_RoundTripAndOrdering(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	withData := at("late", "2024-06-02", 20, "dinner")
	withData.ParsedData = map[string]any{"meal": "dinner"}
	require.NoError(t, s.PutEntries(ctx, []domain.Entry{
		withData,
		at("early", "2024-06-02", 7, "run"),
		at("first", "2024-06-01", 12, "rest"),
	}))

	got, err := s.GetEntriesByDateRange(ctx, "2024-06-01", "2024-06-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "early", "late"}, ids(got))

	e, err := s.GetEntry(ctx, "late")
	require.NoError(t, err)
	assert.Equal(t, "dinner", e.ParsedData["meal"])
	assert.True(t, withData.Timestamp.Equal(e.Timestamp))

	_, err = s.GetEntry(ctx, "nope")
	assert.ErrorIs(t, err, port.ErrEntryNotFound)
}

func TestStore_Search(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	require.NoError(t, s.PutEntries(ctx, []domain.Entry{
		at("a", "2024-06-01", 8, "Morning RUN by the river"),
		at("b", "2024-06-02", 8, "river swim"),
		at("c", "2024-07-01", 8, "run"),
	}))

	got, err := s.SearchEntries(ctx, []string{"Run"}, nil, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(got))

	got, err = s.SearchEntries(ctx, []string{"run", "river"}, nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(got))

	got, err = s.SearchEntries(ctx, []string{"river"}, &domain.DateRange{Start: "2024-06-02", End: "2024-06-30"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(got))

	_, err = s.SearchEntries(ctx, []string{" "}, nil, false)
	assert.ErrorIs(t, err, port.ErrNoKeywords)
}

func TestStore_UpsertAndClear(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	require.NoError(t, s.PutEntries(ctx, []domain.Entry{at("a", "2024-06-01", 8, "v1")}))
	require.NoError(t, s.PutEntries(ctx, []domain.Entry{at("a", "2024-06-03", 8, "v2")}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	e, err := s.GetEntry(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-03", e.Date)

	require.NoError(t, s.Clear(ctx))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
