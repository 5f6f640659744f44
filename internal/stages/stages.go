// Package stages implements the pipeline capabilities on top of language models.
package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"logbook/internal/domain"
	"logbook/internal/logger"
	"logbook/internal/port"
	"logbook/internal/resilience"
)

// Agent names used for tier resolution.
const (
	AgentClassifier  = "classifier"
	AgentPlanner     = "planner"
	AgentAnalyzer    = "analyzer"
	AgentSynthesizer = "synthesizer"
	AgentEvaluator   = "evaluator"
)

// Completer is the slice of the resilience client the stages depend on.
type Completer interface {
	CompleteWithCascade(ctx context.Context, agentName string, req port.CompletionRequest, allowDegradation bool) (resilience.CascadeResult, *resilience.PartialResult, error)
	CompleteStructured(ctx context.Context, agentName string, req port.CompletionRequest, schema *resilience.Schema, allowDegradation bool) (resilience.CascadeResult, *resilience.PartialResult, error)
}

func temperature(v float32) *float32 {
	return &v
}

// structured runs a schema-checked completion. ok is false when the client degraded.
func structured(ctx context.Context, c Completer, agent string, schema *resilience.Schema, system, user string) (doc string, ok bool, err error) {
	res, partial, err := c.CompleteStructured(ctx, agent, port.CompletionRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		Temperature:  temperature(0),
	}, schema, true)
	if err != nil {
		return "", false, err
	}
	if partial != nil {
		logger.Warn("stage degraded", "agent", agent, "providers", partial.ProvidersAttempted, "error", partial.ErrorMessage)
		return "", false, nil
	}
	return res.Text, true, nil
}

func stringArray(doc, path string) []string {
	var out []string
	for _, v := range gjson.Get(doc, path).Array() {
		if s := strings.TrimSpace(v.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func describeDomains(ctx domain.ActiveDomainContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Loaded domains: %s\n", strings.Join(ctx.DomainsLoaded, ", "))
	if ctx.Expertise != "" {
		fmt.Fprintf(&sb, "Expertise:\n%s\n", ctx.Expertise)
	}
	if ctx.ContextGuidance != "" {
		fmt.Fprintf(&sb, "Guidance:\n%s\n", ctx.ContextGuidance)
	}
	if len(ctx.AvailableDomains) > 0 {
		sb.WriteString("Other domains you may request:\n")
		for _, d := range ctx.AvailableDomains {
			fmt.Fprintf(&sb, "- %s: %s\n", d.Name, d.Description)
		}
	}
	return sb.String()
}

func describeVocabulary(vocab map[string]string) string {
	if len(vocab) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vocab))
	for k := range vocab {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString("Vocabulary:\n")
	for _, k := range keys {
		fmt.Fprintf(&sb, "- %s = %s\n", k, vocab[k])
	}
	return sb.String()
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
