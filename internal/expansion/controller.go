package expansion

import (
	"strings"

	"logbook/internal/domain"
	"logbook/internal/domaincontext"
	"logbook/internal/logger"
)

// NextState is where the pipeline goes after an expansion decision.
type NextState string

const (
	NextPlan       NextState = "plan"
	NextClarify    NextState = "clarify"
	NextSynthesize NextState = "synthesize"
)

// State is the expansion-relevant slice of a query session.
type State struct {
	Context *domain.ActiveDomainContext
	Request []string
	History []string
	Gaps    []domain.Gap
}

// Outcome is the controller's decision. History is always a fresh slice.
type Outcome struct {
	Context   *domain.ActiveDomainContext
	History   []string
	Request   []string
	Added     []string
	Warnings  []string
	Next      NextState
	IsPartial bool
}

// Controller adds requested domains to the active context at most once per query.
type Controller struct {
	composer *domaincontext.Composer
	base     *domain.DomainModule
}

// NewController creates a controller. base, when set, stays first in every rebuilt
// context even if it is not part of the registry.
func NewController(composer *domaincontext.Composer, base *domain.DomainModule) *Controller {
	return &Controller{composer: composer, base: base}
}

// Expand filters the pending request against history and the registry. New domains
// rebuild the context and send the pipeline back to planning; otherwise the query
// is marked partial and goes to clarification or synthesis.
func (c *Controller) Expand(s State) Outcome {
	history := append([]string(nil), s.History...)
	inHistory := make(map[string]bool, len(history))
	for _, name := range history {
		inHistory[name] = true
	}

	out := Outcome{Context: s.Context, History: history, Request: s.Request}

	var added []string
	for _, name := range s.Request {
		name = strings.TrimSpace(name)
		if name == "" || inHistory[name] {
			continue
		}
		if !c.composer.Registry().Has(name) {
			logger.Warn("requested domain is not registered", "domain", name)
			out.Warnings = append(out.Warnings, "unknown domain requested: "+name)
			continue
		}
		inHistory[name] = true
		added = append(added, name)
	}

	if len(added) > 0 {
		out.History = append(out.History, added...)
		var loaded []string
		if s.Context != nil {
			loaded = append(loaded, s.Context.DomainsLoaded...)
		}
		rebuilt := c.composer.Build(c.base, append(loaded, added...))
		out.Context = &rebuilt
		out.Request = nil
		out.Added = added
		out.Next = NextPlan
		logger.Info("expanded domain context", "added", added, "loaded", rebuilt.DomainsLoaded)
		return out
	}

	out.IsPartial = true
	out.Next = NextSynthesize
	if needsClarification(s.Gaps) {
		out.Next = NextClarify
	}
	return out
}

func needsClarification(gaps []domain.Gap) bool {
	for _, g := range gaps {
		if g.Type == domain.GapClarification {
			return true
		}
		if g.OutsideCurrentExpertise && strings.TrimSpace(g.Description) != "" {
			return true
		}
	}
	return false
}
