package resilience

import (
	"fmt"

	"logbook/config"
)

// ModelResolution is the provider and model an agent call goes to. Recomputed per call.
type ModelResolution struct {
	Provider  string
	Model     string
	Tier      string
	Transport config.ProviderConfig
}

// Resolve picks the provider and model for agentName. The agent's pinned provider wins;
// otherwise forceCloud selects the fallback provider and the default provider is used.
func (c *Client) Resolve(agentName string, forceCloud bool) (ModelResolution, error) {
	agent, ok := c.cfg.Agents[agentName]
	if !ok || agent.Tier == "" {
		return ModelResolution{}, &ConfigurationError{Agent: agentName, Reason: "no tier configured"}
	}

	provider := agent.Provider
	if provider == "" {
		if forceCloud {
			provider = c.cfg.Resilience.FallbackProvider
			if provider == "" {
				return ModelResolution{}, &ConfigurationError{Agent: agentName, Reason: "no fallback provider configured"}
			}
		} else {
			provider = c.cfg.Resilience.DefaultProvider
		}
	}

	model := c.cfg.Tiers[provider][agent.Tier]
	if model == "" {
		return ModelResolution{}, &ConfigurationError{
			Agent:  agentName,
			Reason: fmt.Sprintf("provider %q has no model for tier %q", provider, agent.Tier),
		}
	}

	return ModelResolution{
		Provider:  provider,
		Model:     model,
		Tier:      agent.Tier,
		Transport: c.cfg.Providers[provider],
	}, nil
}
