package domain

import (
	"sort"
	"strings"
)

// Matches reports whether the entry content contains any of the terms, or all of
// them when matchAll is set. Matching is case-insensitive substring matching.
func (e Entry) Matches(terms []string, matchAll bool) bool {
	content := strings.ToLower(e.RawContent)
	matched := 0
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if strings.Contains(content, t) {
			if !matchAll {
				return true
			}
			matched++
		} else if matchAll {
			return false
		}
	}
	return matchAll && matched > 0
}

// InRange reports whether the entry date falls inside r. An empty bound is open.
func (e Entry) InRange(r *DateRange) bool {
	if r == nil {
		return true
	}
	if r.Start != "" && e.Date < r.Start {
		return false
	}
	if r.End != "" && e.Date > r.End {
		return false
	}
	return true
}

// SortEntries orders entries by date, timestamp, then id.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})
}
