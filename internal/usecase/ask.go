package usecase

import (
	"context"

	"golang.org/x/sync/errgroup"
	"logbook/internal/domain"
)

// Answerer answers one question.
type Answerer interface {
	Answer(ctx context.Context, query string) (domain.QueryResult, error)
}

// AskUseCase runs questions through the orchestrator.
type AskUseCase struct {
	answerer    Answerer
	concurrency int
}

// NewAskUseCase creates a new ask use case. concurrency bounds AskMany.
func NewAskUseCase(answerer Answerer, concurrency int) *AskUseCase {
	if concurrency < 1 {
		concurrency = 1
	}
	return &AskUseCase{answerer: answerer, concurrency: concurrency}
}

// AskResult pairs a question with its answer or failure.
type AskResult struct {
	Query  string             `json:"query"`
	Result domain.QueryResult `json:"result"`
	Err    error              `json:"-"`
	Error  string             `json:"error,omitempty"`
}

func (u *AskUseCase) Ask(ctx context.Context, query string) (domain.QueryResult, error) {
	return u.answerer.Answer(ctx, query)
}

// AskMany answers every question, in parallel up to the configured limit. Results keep
// the input order; a failed question does not stop the others.
func (u *AskUseCase) AskMany(ctx context.Context, queries []string) ([]AskResult, error) {
	results := make([]AskResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)

	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			res, err := u.answerer.Answer(gctx, q)
			results[i] = AskResult{Query: q, Result: res, Err: err}
			if err != nil {
				results[i].Error = err.Error()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
