package domaincontext

import (
	"fmt"
	"strings"

	"logbook/internal/domain"
	"logbook/internal/logger"
)

// Composer merges domain modules into an ActiveDomainContext.
type Composer struct {
	registry *Registry
}

func NewComposer(registry *Registry) *Composer {
	return &Composer{registry: registry}
}

func (c *Composer) Registry() *Registry {
	return c.registry
}

// Build merges base (if any) followed by the selected domains, in first-occurrence
// order. Later vocabulary entries win on key collision.
func (c *Composer) Build(base *domain.DomainModule, selected []string) domain.ActiveDomainContext {
	modules := c.resolve(base, selected)

	ctx := domain.ActiveDomainContext{
		DomainsLoaded:         make([]string, 0, len(modules)),
		Vocabulary:            make(map[string]string),
		EvaluationRules:       []string{},
		ClarificationPatterns: make(map[string][]string),
	}

	var expertise, guidance []string
	for _, m := range modules {
		ctx.DomainsLoaded = append(ctx.DomainsLoaded, m.Name)

		for term, expansion := range m.Vocabulary {
			if old, ok := ctx.Vocabulary[term]; ok && old != expansion {
				logger.Debug("vocabulary override", "key", term, "old", old, "new", expansion, "domain", m.Name)
			}
			ctx.Vocabulary[term] = expansion
		}
		if text := strings.TrimSpace(m.Expertise); text != "" {
			expertise = append(expertise, fmt.Sprintf("[%s] %s", m.Name, text))
		}
		if text := strings.TrimSpace(m.ContextGuidance); text != "" {
			guidance = append(guidance, fmt.Sprintf("[%s] %s", m.Name, text))
		}
		ctx.EvaluationRules = append(ctx.EvaluationRules, m.EvaluationRules...)
		for category, patterns := range m.ClarificationPatterns {
			ctx.ClarificationPatterns[category] = append(ctx.ClarificationPatterns[category], patterns...)
		}
	}
	ctx.Expertise = strings.Join(expertise, "\n\n")
	ctx.ContextGuidance = strings.Join(guidance, "\n\n")

	ctx.AvailableDomains = []domain.AvailableDomain{}
	for _, m := range c.registry.List() {
		if !ctx.HasDomain(m.Name) {
			ctx.AvailableDomains = append(ctx.AvailableDomains, domain.AvailableDomain{
				Name:        m.Name,
				Description: m.Description,
			})
		}
	}
	return ctx
}

func (c *Composer) resolve(base *domain.DomainModule, selected []string) []domain.DomainModule {
	seen := make(map[string]bool)
	var modules []domain.DomainModule
	if base != nil && base.Name != "" {
		seen[base.Name] = true
		modules = append(modules, *base)
	}
	for _, name := range selected {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		m, ok := c.registry.Get(name)
		if !ok {
			logger.Warn("unknown domain selected, skipping", "domain", name)
			continue
		}
		modules = append(modules, m)
	}
	return modules
}
