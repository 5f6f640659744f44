package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"logbook/internal/domaincontext"
	"logbook/internal/port"
)

const classifierSystem = `You route questions about a personal logbook.
Pick the domains whose knowledge is needed to answer. Reply with JSON:
{"input_type": "question" | "statement" | "command", "selected_domains": ["name", ...]}`

type Classifier struct {
	client   Completer
	registry *domaincontext.Registry
}

var _ port.Classifier = (*Classifier)(nil)

func NewClassifier(client Completer, registry *domaincontext.Registry) *Classifier {
	return &Classifier{client: client, registry: registry}
}

// Classify selects domains for a query. A degraded model yields no domains.
func (c *Classifier) Classify(ctx context.Context, query string) (port.Classification, error) {
	var sb strings.Builder
	sb.WriteString("Domains:\n")
	for _, m := range c.registry.List() {
		fmt.Fprintf(&sb, "- %s: %s\n", m.Name, m.Description)
	}
	fmt.Fprintf(&sb, "\nQuestion: %s\n", query)

	doc, ok, err := structured(ctx, c.client, AgentClassifier, classificationSchema, classifierSystem, sb.String())
	if err != nil {
		return port.Classification{}, err
	}
	if !ok {
		return port.Classification{InputType: "question"}, nil
	}

	out := port.Classification{
		InputType:       gjson.Get(doc, "input_type").String(),
		SelectedDomains: stringArray(doc, "selected_domains"),
	}
	if out.InputType == "" {
		out.InputType = "question"
	}
	return out, nil
}
