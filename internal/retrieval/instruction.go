package retrieval

import (
	"fmt"
	"strings"
	"time"

	"logbook/internal/domain"
	"logbook/internal/port"
)

// Strategy names a retrieval strategy.
type Strategy string

const (
	StrategyDateRange Strategy = "date_range"
	StrategyKeyword   Strategy = "keyword"
	StrategyTopical   Strategy = "topical"
)

// Instruction is a validated retrieval instruction. The set of implementations is
// closed: DateRange, Keyword and Topical.
type Instruction interface {
	Strategy() Strategy
	Params() map[string]any
	isInstruction()
}

// DateRange fetches every entry between Start and End. Keywords and Topics are only
// used for the keyword fallback once progressive widening is exhausted.
type DateRange struct {
	Start         string
	End           string
	ExplicitDates bool // user named the dates; never widen
	Keywords      []string
	Topics        []string
}

// Keyword searches entry content for the expanded keywords.
type Keyword struct {
	Keywords          []string
	Filter            *domain.DateRange
	SemanticExpansion bool
	MatchAll          bool
}

// Topical searches entry content for topics and related terms.
type Topical struct {
	Topics            []string
	RelatedTerms      []string
	Filter            *domain.DateRange
	SemanticExpansion bool
}

func (DateRange) Strategy() Strategy { return StrategyDateRange }
func (Keyword) Strategy() Strategy   { return StrategyKeyword }
func (Topical) Strategy() Strategy   { return StrategyTopical }

func (DateRange) isInstruction() {}
func (Keyword) isInstruction()   {}
func (Topical) isInstruction()   {}

func (d DateRange) Params() map[string]any {
	p := map[string]any{"start_date": d.Start, "end_date": d.End}
	if d.ExplicitDates {
		p["explicit_dates"] = true
	}
	if len(d.Keywords) > 0 {
		p["keywords"] = d.Keywords
	}
	if len(d.Topics) > 0 {
		p["topics"] = d.Topics
	}
	return p
}

func (k Keyword) Params() map[string]any {
	p := map[string]any{"keywords": k.Keywords}
	addFilter(p, k.Filter)
	if k.SemanticExpansion {
		p["semantic_expansion"] = true
	}
	if k.MatchAll {
		p["match_all"] = true
	}
	return p
}

func (t Topical) Params() map[string]any {
	p := map[string]any{"topics": t.Topics}
	if len(t.RelatedTerms) > 0 {
		p["related_terms"] = t.RelatedTerms
	}
	addFilter(p, t.Filter)
	if t.SemanticExpansion {
		p["semantic_expansion"] = true
	}
	return p
}

func addFilter(p map[string]any, f *domain.DateRange) {
	if f == nil {
		return
	}
	p["start_date"] = f.Start
	p["end_date"] = f.End
}

// ParseInstruction validates a planner instruction. The strategy is matched
// case-insensitively; missing required params and bad dates are errors.
func ParseInstruction(raw port.RawInstruction) (Instruction, error) {
	p := raw.Params
	switch Strategy(strings.ToLower(strings.TrimSpace(raw.Strategy))) {
	case StrategyDateRange:
		start, okStart := stringParam(p, "start_date")
		end, okEnd := stringParam(p, "end_date")
		if !okStart || !okEnd {
			return nil, fmt.Errorf("date_range requires start_date and end_date")
		}
		if err := validateDates(start, end); err != nil {
			return nil, err
		}
		return DateRange{
			Start:         start,
			End:           end,
			ExplicitDates: boolParam(p, "explicit_dates"),
			Keywords:      stringsParam(p, "keywords"),
			Topics:        stringsParam(p, "topics"),
		}, nil

	case StrategyKeyword:
		keywords := stringsParam(p, "keywords")
		if len(keywords) == 0 {
			return nil, fmt.Errorf("keyword strategy requires keywords")
		}
		filter, err := filterParam(p)
		if err != nil {
			return nil, err
		}
		return Keyword{
			Keywords:          keywords,
			Filter:            filter,
			SemanticExpansion: boolParam(p, "semantic_expansion"),
			MatchAll:          boolParam(p, "match_all"),
		}, nil

	case StrategyTopical:
		topics := stringsParam(p, "topics")
		if len(topics) == 0 {
			return nil, fmt.Errorf("topical strategy requires topics")
		}
		filter, err := filterParam(p)
		if err != nil {
			return nil, err
		}
		related := stringsParam(p, "related_terms")
		if len(related) == 0 {
			related = stringsParam(p, "relatedTerms")
		}
		return Topical{
			Topics:            topics,
			RelatedTerms:      related,
			Filter:            filter,
			SemanticExpansion: boolParam(p, "semantic_expansion"),
		}, nil

	default:
		return nil, fmt.Errorf("unknown retrieval strategy %q", raw.Strategy)
	}
}

func validateDates(start, end string) error {
	if _, err := time.Parse(domain.DateLayout, start); err != nil {
		return fmt.Errorf("invalid start_date %q: %w", start, err)
	}
	if _, err := time.Parse(domain.DateLayout, end); err != nil {
		return fmt.Errorf("invalid end_date %q: %w", end, err)
	}
	return nil
}

func filterParam(p map[string]any) (*domain.DateRange, error) {
	start, okStart := stringParam(p, "start_date")
	end, okEnd := stringParam(p, "end_date")
	if !okStart && !okEnd {
		return nil, nil
	}
	if okStart {
		if _, err := time.Parse(domain.DateLayout, start); err != nil {
			return nil, fmt.Errorf("invalid start_date %q: %w", start, err)
		}
	}
	if okEnd {
		if _, err := time.Parse(domain.DateLayout, end); err != nil {
			return nil, fmt.Errorf("invalid end_date %q: %w", end, err)
		}
	}
	return &domain.DateRange{Start: start, End: end}, nil
}

func stringParam(p map[string]any, key string) (string, bool) {
	v, ok := p[key].(string)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func boolParam(p map[string]any, key string) bool {
	v, _ := p[key].(bool)
	return v
}

func stringsParam(p map[string]any, key string) []string {
	var out []string
	switch v := p[key].(type) {
	case []string:
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
	case string:
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
