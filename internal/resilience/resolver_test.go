package resilience

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"logbook/config"
)

func TestResolve(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Agents["synthesizer"] = config.AgentConfig{Tier: "high", Provider: "openai"}
	cfg.Agents["nameless"] = config.AgentConfig{Tier: "ultra"}
	c := NewClient(cfg, nil)

	tests := []struct {
		name       string
		agent      string
		forceCloud bool
		provider   string
		model      string
		wantErr    bool
	}{
		{name: "default provider", agent: "planner", provider: "local", model: "llama3.1:8b"},
		{name: "force cloud", agent: "planner", forceCloud: true, provider: "openai", model: "gpt-4o-mini"},
		{name: "agent override wins", agent: "synthesizer", provider: "openai", model: "gpt-4o"},
		{name: "agent override ignores force", agent: "synthesizer", forceCloud: true, provider: "openai", model: "gpt-4o"},
		{name: "unknown agent", agent: "nobody", wantErr: true},
		{name: "tier missing on provider", agent: "nameless", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Resolve(tt.agent, tt.forceCloud)
			if tt.wantErr {
				var cfgErr *ConfigurationError
				require.ErrorAs(t, err, &cfgErr)
				assert.Equal(t, tt.agent, cfgErr.Agent)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, res.Provider)
			assert.Equal(t, tt.model, res.Model)
			assert.Equal(t, cfg.Providers[tt.provider].BaseURL, res.Transport.BaseURL)
		})
	}
}

func TestResolve_ForceCloudWithoutFallback(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Resilience.FallbackProvider = ""
	c := NewClient(cfg, nil)

	_, err := c.Resolve("planner", true)
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
