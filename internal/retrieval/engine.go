package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"logbook/internal/domain"
	"logbook/internal/logger"
	"logbook/internal/port"
)

// DefaultExpansionTiers are the day windows tried, newest first, when a literal date
// range comes back empty.
var DefaultExpansionTiers = []int{7, 14, 30, 90}

// Engine executes retrieval instructions against an entry store.
type Engine struct {
	store port.EntryStore
	tiers []int
	now   func() time.Time
}

type Option func(*Engine)

// WithExpansionTiers overrides the progressive widening windows (days back).
func WithExpansionTiers(days []int) Option {
	return func(e *Engine) {
		if len(days) > 0 {
			e.tiers = append([]int(nil), days...)
		}
	}
}

// WithClock sets the clock used to anchor widened windows.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store port.EntryStore, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		tiers: DefaultExpansionTiers,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run accumulates one Retrieve call.
type run struct {
	entries  []domain.Entry
	attempts []domain.RetrievalAttempt
	warnings []string
	exhaust  bool
}

func (r *run) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logger.Debug("retrieval warning", "warning", msg)
	r.warnings = append(r.warnings, msg)
}

func (r *run) record(strategy Strategy, params map[string]any, found []domain.Entry, summary string, terms []string, tier int) {
	r.attempts = append(r.attempts, domain.RetrievalAttempt{
		AttemptNumber: len(r.attempts) + 1,
		Strategy:      string(strategy),
		Params:        params,
		EntriesFound:  len(found),
		Summary:       summary,
		ExpandedTerms: terms,
		ExpansionTier: tier,
	})
	r.entries = append(r.entries, found...)
}

// Execute validates planner instructions and retrieves them. Invalid instructions
// become warnings and are skipped.
func (e *Engine) Execute(ctx context.Context, raw []port.RawInstruction, vocabulary map[string]string, maxEntries int, progressive bool) domain.RetrievalResult {
	var instructions []Instruction
	var warnings []string
	for i, r := range raw {
		in, err := ParseInstruction(r)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("instruction %d skipped: %v", i+1, err))
			continue
		}
		instructions = append(instructions, in)
	}
	result := e.Retrieve(ctx, instructions, vocabulary, maxEntries, progressive)
	result.Warnings = append(warnings, result.Warnings...)
	return result
}

// Retrieve runs every instruction in order and aggregates the entries: deduplicated by
// id (first occurrence kept), then truncated to maxEntries.
func (e *Engine) Retrieve(ctx context.Context, instructions []Instruction, vocabulary map[string]string, maxEntries int, progressive bool) domain.RetrievalResult {
	r := &run{}
	for _, in := range instructions {
		switch in := in.(type) {
		case DateRange:
			e.dateRange(ctx, r, in, vocabulary, progressive)
		case Keyword:
			e.keyword(ctx, r, in, vocabulary, 0)
		case Topical:
			e.topical(ctx, r, in, vocabulary)
		}
	}
	return aggregate(r, maxEntries)
}

func (e *Engine) dateRange(ctx context.Context, r *run, in DateRange, vocabulary map[string]string, progressive bool) {
	found, err := e.store.GetEntriesByDateRange(ctx, in.Start, in.End)
	if err != nil {
		r.warn("date_range %s to %s failed: %v", in.Start, in.End, err)
		return
	}
	r.record(StrategyDateRange, in.Params(), found,
		fmt.Sprintf("Found %d entries between %s and %s", len(found), in.Start, in.End), nil, 0)
	if len(found) > 0 || !progressive || in.ExplicitDates {
		return
	}

	today := e.now()
	end := today.Format(domain.DateLayout)
	for i, days := range e.tiers {
		start := today.AddDate(0, 0, -days).Format(domain.DateLayout)
		found, err := e.store.GetEntriesByDateRange(ctx, start, end)
		if err != nil {
			r.warn("expanded date_range (last %d days) failed: %v", days, err)
			continue
		}
		params := map[string]any{"start_date": start, "end_date": end, "days_back": days}
		r.record(StrategyDateRange, params, found,
			fmt.Sprintf("Expanded to last %d days: found %d entries", days, len(found)), nil, i+1)
		if len(found) > 0 {
			return
		}
	}

	r.exhaust = true
	last := 0
	if len(e.tiers) > 0 {
		last = e.tiers[len(e.tiers)-1]
	}
	r.warn("No entries between %s and %s or in the last %d days", in.Start, in.End, last)

	terms := append(append([]string(nil), in.Keywords...), in.Topics...)
	if len(terms) == 0 {
		return
	}
	e.keyword(ctx, r, Keyword{Keywords: terms, SemanticExpansion: true}, vocabulary, len(e.tiers)+1)
}

func (e *Engine) keyword(ctx context.Context, r *run, in Keyword, vocabulary map[string]string, tier int) {
	terms := ExpandTerms(in.Keywords, vocabulary, in.SemanticExpansion)
	found, err := e.store.SearchEntries(ctx, terms, in.Filter, in.MatchAll)
	if err != nil {
		r.warn("keyword search for %s failed: %v", strings.Join(in.Keywords, ", "), err)
		return
	}
	r.record(StrategyKeyword, in.Params(), found,
		fmt.Sprintf("Found %d entries matching %d terms", len(found), len(terms)), terms, tier)
}

func (e *Engine) topical(ctx context.Context, r *run, in Topical, vocabulary map[string]string) {
	seed := append(append([]string(nil), in.Topics...), in.RelatedTerms...)
	terms := ExpandTerms(seed, vocabulary, in.SemanticExpansion)
	found, err := e.store.SearchEntries(ctx, terms, in.Filter, false)
	if err != nil {
		r.warn("topical search for %s failed: %v", strings.Join(in.Topics, ", "), err)
		return
	}
	r.record(StrategyTopical, in.Params(), found,
		fmt.Sprintf("Found %d entries on topics %s", len(found), strings.Join(in.Topics, ", ")), terms, 0)
}

func aggregate(r *run, maxEntries int) domain.RetrievalResult {
	seen := make(map[string]bool, len(r.entries))
	unique := make([]domain.Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		if seen[entry.ID] {
			continue
		}
		seen[entry.ID] = true
		unique = append(unique, entry)
	}

	result := domain.RetrievalResult{
		Attempts:           r.attempts,
		TotalFound:         len(unique),
		Warnings:           r.warnings,
		ExpansionExhausted: r.exhaust,
	}
	if maxEntries > 0 && len(unique) > maxEntries {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Found %d entries, truncated to %d", len(unique), maxEntries))
		unique = unique[:maxEntries]
		result.Truncated = true
	}
	result.Entries = unique

	for _, entry := range unique {
		if result.DateRangeCovered.Start == "" || entry.Date < result.DateRangeCovered.Start {
			result.DateRangeCovered.Start = entry.Date
		}
		if entry.Date > result.DateRangeCovered.End {
			result.DateRangeCovered.End = entry.Date
		}
	}
	return result
}

// Summarize renders a short description of a retrieval for the analysis stage.
func Summarize(result domain.RetrievalResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Retrieved %d entries", len(result.Entries))
	if !result.DateRangeCovered.IsEmpty() {
		fmt.Fprintf(&sb, " covering %s to %s", result.DateRangeCovered.Start, result.DateRangeCovered.End)
	}
	if result.Truncated {
		fmt.Fprintf(&sb, " (truncated from %d)", result.TotalFound)
	}
	sb.WriteString(".\n")
	for _, a := range result.Attempts {
		fmt.Fprintf(&sb, "- attempt %d [%s, tier %d]: %s\n", a.AttemptNumber, a.Strategy, a.ExpansionTier, a.Summary)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(&sb, "- warning: %s\n", w)
	}
	if result.ExpansionExhausted {
		sb.WriteString("- date expansion exhausted\n")
	}
	return sb.String()
}
