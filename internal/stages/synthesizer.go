package stages

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"logbook/internal/logger"
	"logbook/internal/port"
)

const synthesizerSystem = `You answer questions about the user's own logbook, using only the findings given.
Be concise and cite dates. Say plainly when the evidence is incomplete.`

// DegradedAnswer is returned when no model could draft a response.
const DegradedAnswer = "Sorry, I could not draft an answer right now because the language models are unavailable. Please try again later."

type Synthesizer struct {
	client Completer
}

var _ port.Synthesizer = (*Synthesizer)(nil)

func NewSynthesizer(client Completer) *Synthesizer {
	return &Synthesizer{client: client}
}

func (s *Synthesizer) Synthesize(ctx context.Context, req port.SynthesisRequest) (port.Synthesis, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\nVerdict: %s\nFindings:\n%s\n", req.Query, req.Analysis.Verdict, req.Analysis.Findings)
	sb.WriteString(describeVocabulary(req.Vocabulary))
	if req.IsPartial {
		sb.WriteString("The evidence is incomplete; say what is missing.\n")
	}
	if req.NeedsClarification {
		sb.WriteString("Ask the user a short clarifying question.")
		if hints := clarificationHints(req.ClarificationHints); hints != "" {
			sb.WriteString(" Useful angles:\n" + hints)
		}
		sb.WriteString("\n")
		for _, g := range req.Analysis.Gaps {
			if g.Description != "" {
				fmt.Fprintf(&sb, "- unclear: %s\n", g.Description)
			}
		}
	}

	res, partial, err := s.client.CompleteWithCascade(ctx, AgentSynthesizer, port.CompletionRequest{
		SystemPrompt: synthesizerSystem,
		UserPrompt:   sb.String(),
		Temperature:  temperature(0.3),
	}, true)
	if err != nil {
		return port.Synthesis{}, err
	}
	if partial != nil {
		logger.Warn("stage degraded", "agent", AgentSynthesizer, "providers", partial.ProvidersAttempted, "error", partial.ErrorMessage)
		return port.Synthesis{Text: DegradedAnswer, Degraded: true}, nil
	}
	return port.Synthesis{Text: strings.TrimSpace(res.Text)}, nil
}

func clarificationHints(patterns map[string][]string) string {
	categories := make([]string, 0, len(patterns))
	for c := range patterns {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	var sb strings.Builder
	for _, c := range categories {
		fmt.Fprintf(&sb, "- %s: %s\n", c, strings.Join(patterns[c], " / "))
	}
	return sb.String()
}
