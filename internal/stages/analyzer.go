package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"logbook/internal/domain"
	"logbook/internal/logger"
	"logbook/internal/port"
)

const analyzerSystem = `You judge whether logbook entries answer a question.
verdict is SUFFICIENT, PARTIAL or INSUFFICIENT. List gaps with type clarification, missing_data
or domain. If knowledge from another listed domain is needed, name it in domain_expansion_request.
Reply with JSON: {"verdict": "...", "findings": "...", "gaps": [...], "domain_expansion_request": [...]}`

// maxPromptEntries bounds the entries rendered into the analysis prompt.
const maxPromptEntries = 50

type Analyzer struct {
	client Completer
}

var _ port.Analyzer = (*Analyzer)(nil)

func NewAnalyzer(client Completer) *Analyzer {
	return &Analyzer{client: client}
}

func (a *Analyzer) Analyze(ctx context.Context, req port.AnalysisRequest) (port.Analysis, error) {
	var sb strings.Builder
	sb.WriteString(describeDomains(req.Context))
	sb.WriteString(describeVocabulary(req.Context.Vocabulary))
	fmt.Fprintf(&sb, "\n%s\nEntries:\n", req.RetrievalSummary)
	for i, e := range req.Entries {
		if i == maxPromptEntries {
			fmt.Fprintf(&sb, "(%d more not shown)\n", len(req.Entries)-i)
			break
		}
		fmt.Fprintf(&sb, "[%s] %s\n", e.Date, e.RawContent)
	}
	fmt.Fprintf(&sb, "\nQuestion: %s\n", req.Query)

	doc, ok, err := structured(ctx, a.client, AgentAnalyzer, analysisSchema, analyzerSystem, sb.String())
	if err != nil {
		return port.Analysis{}, err
	}
	if !ok {
		return port.Analysis{Verdict: domain.VerdictInsufficient, Findings: "analysis unavailable"}, nil
	}

	out := port.Analysis{
		Verdict:                parseVerdict(gjson.Get(doc, "verdict").String()),
		Findings:               gjson.Get(doc, "findings").String(),
		DomainExpansionRequest: stringArray(doc, "domain_expansion_request"),
	}
	for _, g := range gjson.Get(doc, "gaps").Array() {
		out.Gaps = append(out.Gaps, domain.Gap{
			Type:                    domain.GapType(strings.ToLower(g.Get("type").String())),
			Description:             g.Get("description").String(),
			OutsideCurrentExpertise: g.Get("outside_current_expertise").Bool(),
			SuspectedDomain:         g.Get("suspected_domain").String(),
		})
	}
	return out, nil
}

// parseVerdict accepts any letter case; anything unrecognised counts as insufficient.
func parseVerdict(s string) domain.Verdict {
	switch v := domain.Verdict(strings.ToUpper(strings.TrimSpace(s))); v {
	case domain.VerdictSufficient, domain.VerdictPartial, domain.VerdictInsufficient:
		return v
	default:
		logger.Warn("unrecognised analysis verdict", "verdict", s)
		return domain.VerdictInsufficient
	}
}
