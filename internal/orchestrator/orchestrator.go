package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"logbook/internal/domain"
	"logbook/internal/domaincontext"
	"logbook/internal/expansion"
	"logbook/internal/logger"
	"logbook/internal/port"
	"logbook/internal/retrieval"
)

const (
	// DefaultMaxRetries is the number of re-plan cycles after the first attempt.
	DefaultMaxRetries = 2
	// DefaultMaxEntries caps the evidence handed to analysis.
	DefaultMaxEntries = 100
)

// ErrInvalidQuery is a client fault: the query cannot be answered as given.
var ErrInvalidQuery = errors.New("invalid query")

// Retriever executes planner instructions.
type Retriever interface {
	Execute(ctx context.Context, raw []port.RawInstruction, vocabulary map[string]string, maxEntries int, progressive bool) domain.RetrievalResult
}

// Stages are the opaque pipeline capabilities.
type Stages struct {
	Classifier  port.Classifier
	Planner     port.Planner
	Analyzer    port.Analyzer
	Synthesizer port.Synthesizer
	Evaluator   port.Evaluator
}

// Session is the state of one query. It is created per call and never shared.
type Session struct {
	Query                  string
	Classification         port.Classification
	QueryType              string
	Context                domain.ActiveDomainContext
	Retrieval              domain.RetrievalResult
	RetrievalHistory       []domain.RetrievalAttempt
	Sources                []string
	DomainExpansionHistory []string
	DomainExpansionRequest []string
	Gaps                   []domain.Gap
	IsPartial              bool
	NeedsClarification     bool
}

// Orchestrator answers questions with a bounded classify, plan, retrieve, analyze,
// synthesize, evaluate loop.
type Orchestrator struct {
	stages      Stages
	retriever   Retriever
	composer    *domaincontext.Composer
	expander    *expansion.Controller
	base        *domain.DomainModule
	maxRetries  int
	maxEntries  int
	progressive bool
}

type Option func(*Orchestrator)

func WithMaxRetries(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

func WithMaxEntries(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxEntries = n
		}
	}
}

func WithProgressiveExpansion(enabled bool) Option {
	return func(o *Orchestrator) { o.progressive = enabled }
}

// WithBaseDomain sets the domain loaded ahead of every classifier selection.
func WithBaseDomain(base *domain.DomainModule) Option {
	return func(o *Orchestrator) { o.base = base }
}

func New(stages Stages, retriever Retriever, composer *domaincontext.Composer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		stages:      stages,
		retriever:   retriever,
		composer:    composer,
		maxRetries:  DefaultMaxRetries,
		maxEntries:  DefaultMaxEntries,
		progressive: true,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.expander = expansion.NewController(composer, o.base)
	return o
}

// Answer runs the full pipeline for one question.
func (o *Orchestrator) Answer(ctx context.Context, query string) (domain.QueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.QueryResult{}, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}
	s := &Session{Query: query}
	log := logger.With("query", truncate(query, 60))

	classification, err := o.stages.Classifier.Classify(ctx, query)
	if err != nil {
		return domain.QueryResult{}, fmt.Errorf("classify: %w", err)
	}
	s.Classification = classification
	s.Context = o.composer.Build(o.base, classification.SelectedDomains)
	log.Debug("classified", "input_type", classification.InputType, "domains", s.Context.DomainsLoaded)

	if err := o.planAndRetrieve(ctx, s, nil); err != nil {
		return domain.QueryResult{}, err
	}
	s.Sources = s.Retrieval.EntryIDs()

	var response string
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		analysis, err := o.analyze(ctx, s)
		if err != nil {
			return domain.QueryResult{}, err
		}
		last := attempt == o.maxRetries
		if analysis.Verdict == domain.VerdictInsufficient && last {
			s.IsPartial = true
		}

		draft, err := o.stages.Synthesizer.Synthesize(ctx, port.SynthesisRequest{
			Query:              s.Query,
			Analysis:           analysis,
			Vocabulary:         s.Context.Vocabulary,
			IsPartial:          s.IsPartial,
			NeedsClarification: s.NeedsClarification,
			ClarificationHints: s.Context.ClarificationPatterns,
		})
		if err != nil {
			return domain.QueryResult{}, fmt.Errorf("synthesize: %w", err)
		}
		response = draft.Text
		// a fallback draft is never evaluated and never counts as accepted
		if draft.Degraded {
			s.IsPartial = true
			log.Warn("synthesis degraded, returning partial answer", "attempt", attempt, "verdict", analysis.Verdict)
			return o.result(s, response, analysis.Verdict, false), nil
		}

		evaluation, err := o.stages.Evaluator.Evaluate(ctx, port.EvaluationRequest{
			Query:           s.Query,
			Response:        response,
			Analysis:        analysis,
			EntriesSummary:  SummarizeEntries(s.Retrieval.Entries),
			EvaluationRules: s.Context.EvaluationRules,
			AttemptNumber:   attempt,
		})
		if err != nil {
			return domain.QueryResult{}, fmt.Errorf("evaluate: %w", err)
		}

		if evaluation.Passed {
			log.Info("answer accepted", "attempt", attempt, "verdict", analysis.Verdict)
			return o.result(s, response, analysis.Verdict, true), nil
		}
		if last {
			s.IsPartial = true
			log.Warn("retries exhausted, returning partial answer", "attempt", attempt, "verdict", analysis.Verdict)
			return o.result(s, response, analysis.Verdict, false), nil
		}

		var feedback *string
		if len(evaluation.Feedback) > 0 {
			feedback = &evaluation.Feedback[0]
		}
		log.Info("answer rejected, re-planning", "attempt", attempt, "feedback", deref(feedback))
		if err := o.planAndRetrieve(ctx, s, feedback); err != nil {
			return domain.QueryResult{}, err
		}
	}
	// unreachable: the final iteration always returns
	return o.result(s, response, domain.VerdictInsufficient, false), nil
}

func (o *Orchestrator) planAndRetrieve(ctx context.Context, s *Session, feedback *string) error {
	plan, err := o.stages.Planner.Plan(ctx, port.PlanRequest{
		Query:              s.Query,
		Context:            s.Context,
		EvaluationFeedback: feedback,
		RetrievalHistory:   s.RetrievalHistory,
	})
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	s.QueryType = plan.QueryType
	s.Retrieval = o.retriever.Execute(ctx, plan.Instructions, s.Context.Vocabulary, o.maxEntries, o.progressive)
	s.RetrievalHistory = append(s.RetrievalHistory, s.Retrieval.Attempts...)
	return nil
}

// analyze runs the analysis stage, honoring domain expansion requests. Each expansion
// adds at least one domain that was never added before, so the loop is bounded by the
// registry size.
func (o *Orchestrator) analyze(ctx context.Context, s *Session) (port.Analysis, error) {
	for {
		analysis, err := o.stages.Analyzer.Analyze(ctx, port.AnalysisRequest{
			Query:            s.Query,
			Entries:          s.Retrieval.Entries,
			RetrievalSummary: retrieval.Summarize(s.Retrieval),
			Context:          s.Context,
		})
		if err != nil {
			return port.Analysis{}, fmt.Errorf("analyze: %w", err)
		}
		s.Gaps = analysis.Gaps
		if len(analysis.DomainExpansionRequest) == 0 {
			return analysis, nil
		}

		s.DomainExpansionRequest = analysis.DomainExpansionRequest
		current := s.Context
		out := o.expander.Expand(expansion.State{
			Context: &current,
			Request: s.DomainExpansionRequest,
			History: s.DomainExpansionHistory,
			Gaps:    s.Gaps,
		})
		s.DomainExpansionHistory = out.History
		s.DomainExpansionRequest = out.Request
		s.Retrieval.Warnings = append(s.Retrieval.Warnings, out.Warnings...)

		switch out.Next {
		case expansion.NextPlan:
			s.Context = *out.Context
			if err := o.planAndRetrieve(ctx, s, nil); err != nil {
				return port.Analysis{}, err
			}
		case expansion.NextClarify:
			s.IsPartial = true
			s.NeedsClarification = true
			return analysis, nil
		default:
			s.IsPartial = s.IsPartial || out.IsPartial
			return analysis, nil
		}
	}
}

func (o *Orchestrator) result(s *Session, response string, verdict domain.Verdict, passed bool) domain.QueryResult {
	return domain.QueryResult{
		Response:   response,
		Sources:    s.Sources,
		Confidence: Confidence(verdict, passed),
		Partial:    s.IsPartial,
	}
}

// Confidence is the verdict's base score nudged by the evaluation, clamped to [0,1].
func Confidence(verdict domain.Verdict, passed bool) float64 {
	var base float64
	switch verdict {
	case domain.VerdictSufficient:
		base = 0.8
	case domain.VerdictPartial:
		base = 0.6
	default:
		base = 0.4
	}
	if passed {
		base += 0.1
	} else {
		base -= 0.1
	}
	// keep one decimal so 0.8+0.1 reads as 0.9
	base = float64(int(base*10+0.5)) / 10
	return min(max(base, 0), 1)
}

// SummarizeEntries renders the first ten entries for the evaluator.
func SummarizeEntries(entries []domain.Entry) string {
	if len(entries) == 0 {
		return "(No entries retrieved)"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d entries retrieved:\n", len(entries))
	for i, e := range entries {
		if i == 10 {
			break
		}
		fmt.Fprintf(&sb, "%s: %s...\n", e.Date, truncate(e.RawContent, 50))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
