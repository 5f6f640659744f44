package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"logbook/internal/port"
)

const evaluatorSystem = `You review a drafted answer against the evidence and the rules.
Reply with JSON: {"passed": bool, "feedback": ["what to fix", ...]}`

type Evaluator struct {
	client Completer
}

var _ port.Evaluator = (*Evaluator)(nil)

func NewEvaluator(client Completer) *Evaluator {
	return &Evaluator{client: client}
}

func (e *Evaluator) Evaluate(ctx context.Context, req port.EvaluationRequest) (port.Evaluation, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\nAttempt: %d\n", req.Query, req.AttemptNumber)
	fmt.Fprintf(&sb, "Evidence:\n%s\n", req.EntriesSummary)
	fmt.Fprintf(&sb, "Analysis verdict: %s\nFindings: %s\n", req.Analysis.Verdict, req.Analysis.Findings)
	if len(req.EvaluationRules) > 0 {
		sb.WriteString("Rules:\n")
		for _, r := range req.EvaluationRules {
			fmt.Fprintf(&sb, "- %s\n", r)
		}
	}
	fmt.Fprintf(&sb, "\nDraft answer:\n%s\n", req.Response)

	doc, ok, err := structured(ctx, e.client, AgentEvaluator, evaluationSchema, evaluatorSystem, sb.String())
	if err != nil {
		return port.Evaluation{}, err
	}
	if !ok {
		return port.Evaluation{Passed: false, Feedback: []string{"evaluation unavailable"}}, nil
	}
	return port.Evaluation{
		Passed:   gjson.Get(doc, "passed").Bool(),
		Feedback: stringArray(doc, "feedback"),
	}, nil
}
