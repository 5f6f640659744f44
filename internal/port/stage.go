package port

import (
	"context"

	"logbook/internal/domain"
)

// Classification is the classifier's routing decision for a query.
type Classification struct {
	InputType       string   `json:"input_type"`
	SelectedDomains []string `json:"selected_domains"`
}

type Classifier interface {
	Classify(ctx context.Context, query string) (Classification, error)
}

// RawInstruction is a retrieval instruction as produced by the planner, not yet validated.
type RawInstruction struct {
	Strategy string         `json:"strategy"`
	Params   map[string]any `json:"params"`
}

type PlanRequest struct {
	Query              string
	Context            domain.ActiveDomainContext
	EvaluationFeedback *string
	RetrievalHistory   []domain.RetrievalAttempt
}

type Plan struct {
	QueryType    string           `json:"query_type"`
	Instructions []RawInstruction `json:"instructions"`
}

type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (Plan, error)
}

type AnalysisRequest struct {
	Query            string
	Entries          []domain.Entry
	RetrievalSummary string
	Context          domain.ActiveDomainContext
}

type Analysis struct {
	Verdict                domain.Verdict `json:"verdict"`
	Findings               string         `json:"findings"`
	Gaps                   []domain.Gap   `json:"gaps,omitempty"`
	DomainExpansionRequest []string       `json:"domain_expansion_request,omitempty"`
}

type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (Analysis, error)
}

type SynthesisRequest struct {
	Query              string
	Analysis           Analysis
	Vocabulary         map[string]string
	IsPartial          bool
	NeedsClarification bool
	ClarificationHints map[string][]string
}

// Synthesis is a drafted answer. Degraded drafts are fallback text written without a model.
type Synthesis struct {
	Text     string
	Degraded bool
}

type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (Synthesis, error)
}

type EvaluationRequest struct {
	Query           string
	Response        string
	Analysis        Analysis
	EntriesSummary  string
	EvaluationRules []string
	AttemptNumber   int
}

type Evaluation struct {
	Passed   bool     `json:"passed"`
	Feedback []string `json:"feedback,omitempty"`
}

type Evaluator interface {
	Evaluate(ctx context.Context, req EvaluationRequest) (Evaluation, error)
}
