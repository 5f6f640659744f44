package domain

import "time"

// DateLayout is the calendar date format used for entries and retrieval params.
const DateLayout = "2006-01-02"

type Entry struct {
	ID         string         `json:"id"`
	Date       string         `json:"date"` // YYYY-MM-DD
	Timestamp  time.Time      `json:"timestamp"`
	RawContent string         `json:"raw_content"`
	ParsedData map[string]any `json:"parsed_data,omitempty"`
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// IsEmpty reports whether the range covers nothing.
func (r DateRange) IsEmpty() bool {
	return r.Start == "" && r.End == ""
}

// DomainModule is one topic's vocabulary and expertise as stored in the registry.
type DomainModule struct {
	Name                  string              `yaml:"name" json:"name"`
	Description           string              `yaml:"description" json:"description"`
	Vocabulary            map[string]string   `yaml:"vocabulary" json:"vocabulary,omitempty"`
	Expertise             string              `yaml:"expertise" json:"expertise,omitempty"`
	EvaluationRules       []string            `yaml:"evaluation_rules" json:"evaluation_rules,omitempty"`
	ContextGuidance       string              `yaml:"context_guidance" json:"context_guidance,omitempty"`
	ClarificationPatterns map[string][]string `yaml:"clarification_patterns" json:"clarification_patterns,omitempty"`
}

type AvailableDomain struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ActiveDomainContext is the merged domain knowledge in effect for one query.
// It is rebuilt wholesale on every expansion and never mutated in place.
type ActiveDomainContext struct {
	DomainsLoaded         []string            `json:"domains_loaded"`
	Vocabulary            map[string]string   `json:"vocabulary"`
	Expertise             string              `json:"expertise"`
	EvaluationRules       []string            `json:"evaluation_rules"`
	ContextGuidance       string              `json:"context_guidance"`
	ClarificationPatterns map[string][]string `json:"clarification_patterns"`
	AvailableDomains      []AvailableDomain   `json:"available_domains"`
}

// HasDomain reports whether name is already loaded.
func (c *ActiveDomainContext) HasDomain(name string) bool {
	if c == nil {
		return false
	}
	for _, d := range c.DomainsLoaded {
		if d == name {
			return true
		}
	}
	return false
}

type RetrievalAttempt struct {
	AttemptNumber int            `json:"attempt_number"`
	Strategy      string         `json:"strategy"`
	Params        map[string]any `json:"params"`
	EntriesFound  int            `json:"entries_found"`
	Summary       string         `json:"summary"`
	ExpandedTerms []string       `json:"expanded_terms,omitempty"`
	ExpansionTier int            `json:"expansion_tier"` // 0 literal, 1..N widened, N+1 keyword fallback
}

type RetrievalResult struct {
	Entries            []Entry            `json:"entries"`
	Attempts           []RetrievalAttempt `json:"attempts"`
	TotalFound         int                `json:"total_found"`
	DateRangeCovered   DateRange          `json:"date_range_covered"`
	Warnings           []string           `json:"warnings,omitempty"`
	Truncated          bool               `json:"truncated"`
	ExpansionExhausted bool               `json:"expansion_exhausted"`
}

// EntryIDs returns the ids of the retrieved entries in order.
func (r RetrievalResult) EntryIDs() []string {
	ids := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		ids = append(ids, e.ID)
	}
	return ids
}

type GapType string

const (
	GapClarification GapType = "clarification"
	GapMissingData   GapType = "missing_data"
	GapDomain        GapType = "domain"
)

type Gap struct {
	Type                    GapType `json:"type"`
	Description             string  `json:"description"`
	OutsideCurrentExpertise bool    `json:"outside_current_expertise,omitempty"`
	SuspectedDomain         string  `json:"suspected_domain,omitempty"`
}

type Verdict string

const (
	VerdictSufficient   Verdict = "SUFFICIENT"
	VerdictPartial      Verdict = "PARTIAL"
	VerdictInsufficient Verdict = "INSUFFICIENT"
)

// QueryResult is the orchestrator's answer to one question.
type QueryResult struct {
	Response   string   `json:"response"`
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
	Partial    bool     `json:"partial"`
}
