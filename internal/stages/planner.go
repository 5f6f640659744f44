package stages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"logbook/internal/domain"
	"logbook/internal/port"
)

const plannerSystem = `You plan evidence retrieval over dated logbook entries.
Strategies:
- date_range: {"start_date": "YYYY-MM-DD", "end_date": "YYYY-MM-DD", "explicit_dates": bool, "keywords": [...], "topics": [...]}
- keyword: {"keywords": [...], "start_date"?, "end_date"?, "semantic_expansion": bool, "match_all": bool}
- topical: {"topics": [...], "related_terms": [...], "start_date"?, "end_date"?, "semantic_expansion": bool}
Set explicit_dates only when the user named the dates. Reply with JSON:
{"query_type": "...", "instructions": [{"strategy": "...", "params": {...}}]}`

// fallbackDays is the window planned when the model is unavailable.
const fallbackDays = 30

type Planner struct {
	client Completer
	now    func() time.Time
}

var _ port.Planner = (*Planner)(nil)

func NewPlanner(client Completer, now func() time.Time) *Planner {
	if now == nil {
		now = time.Now
	}
	return &Planner{client: client, now: now}
}

func (p *Planner) Plan(ctx context.Context, req port.PlanRequest) (port.Plan, error) {
	today := p.now()
	var sb strings.Builder
	fmt.Fprintf(&sb, "Today is %s.\n", today.Format(domain.DateLayout))
	sb.WriteString(describeDomains(req.Context))
	sb.WriteString(describeVocabulary(req.Context.Vocabulary))
	if req.EvaluationFeedback != nil {
		fmt.Fprintf(&sb, "The previous answer was rejected: %s\n", *req.EvaluationFeedback)
	}
	if len(req.RetrievalHistory) > 0 {
		sb.WriteString("Earlier retrieval attempts:\n")
		for _, a := range req.RetrievalHistory {
			fmt.Fprintf(&sb, "- %s %s: %s\n", a.Strategy, mustJSON(a.Params), a.Summary)
		}
	}
	fmt.Fprintf(&sb, "\nQuestion: %s\n", req.Query)

	doc, ok, err := structured(ctx, p.client, AgentPlanner, planSchema, plannerSystem, sb.String())
	if err != nil {
		return port.Plan{}, err
	}
	if !ok {
		return fallbackPlan(today), nil
	}

	plan := port.Plan{QueryType: gjson.Get(doc, "query_type").String()}
	for _, in := range gjson.Get(doc, "instructions").Array() {
		params, _ := in.Get("params").Value().(map[string]any)
		plan.Instructions = append(plan.Instructions, port.RawInstruction{
			Strategy: in.Get("strategy").String(),
			Params:   params,
		})
	}
	if len(plan.Instructions) == 0 {
		return fallbackPlan(today), nil
	}
	return plan, nil
}

func fallbackPlan(today time.Time) port.Plan {
	return port.Plan{
		QueryType: "fallback",
		Instructions: []port.RawInstruction{{
			Strategy: "date_range",
			Params: map[string]any{
				"start_date": today.AddDate(0, 0, -fallbackDays).Format(domain.DateLayout),
				"end_date":   today.Format(domain.DateLayout),
			},
		}},
	}
}
