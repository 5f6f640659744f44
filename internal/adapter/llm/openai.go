// Package llm adapts OpenAI-compatible chat endpoints to port.Provider.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
	"logbook/config"
	"logbook/internal/logger"
	"logbook/internal/port"
	"logbook/internal/resilience"
)

// Well-known endpoints used when a provider has no base_url.
var defaultBaseURLs = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"deepseek": "https://api.deepseek.com/v1",
	"local":    "http://localhost:11434/v1",
	"ollama":   "http://localhost:11434/v1",
}

const defaultTimeout = 120 * time.Second

// OpenAIProvider talks to any endpoint speaking the OpenAI chat completions API.
type OpenAIProvider struct {
	name    string
	client  *openai.Client
	limiter *rate.Limiter
	keyErr  error
}

var _ port.Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider builds a provider from its transport settings. A missing API key is
// not fatal here: the provider reports a permanent error on use so the fallback can run.
func NewOpenAIProvider(name string, pc config.ProviderConfig) *OpenAIProvider {
	p := &OpenAIProvider{name: name}

	apiKey := "ollama"
	if pc.APIKeyEnv != "" {
		apiKey = os.Getenv(pc.APIKeyEnv)
		if apiKey == "" {
			p.keyErr = fmt.Errorf("API key not found in environment variable: %s", pc.APIKeyEnv)
		}
	}

	baseURL := pc.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURLs[name]
	}
	timeout := pc.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	cc := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cc.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cc.HTTPClient = &http.Client{Timeout: timeout}
	p.client = openai.NewClientWithConfig(cc)

	if pc.RequestsPerSecond > 0 {
		burst := max(1, int(pc.RequestsPerSecond))
		p.limiter = rate.NewLimiter(rate.Limit(pc.RequestsPerSecond), burst)
	}
	return p
}

func (p *OpenAIProvider) Name() string {
	return p.name
}

func (p *OpenAIProvider) Complete(ctx context.Context, model string, req port.CompletionRequest) (string, error) {
	if p.keyErr != nil {
		return "", &resilience.PermanentError{Err: p.keyErr}
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	chat := openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: req.MaxTokens,
	}
	if req.SystemPrompt != "" {
		chat.Messages = append(chat.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	chat.Messages = append(chat.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt})
	if req.Temperature != nil {
		chat.Temperature = *req.Temperature
	}
	if req.JSONMode {
		chat.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	logger.Debug("chat completion", "provider", p.name, "model", model, "json", req.JSONMode)
	resp, err := p.client.CreateChatCompletion(ctx, chat)
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", &resilience.TransientError{Err: errors.New(p.name + " returned no choices")}
	}
	return resp.Choices[0].Message.Content, nil
}

// NewProviders builds one provider per configured name.
func NewProviders(cfg *config.Config) map[string]port.Provider {
	providers := make(map[string]port.Provider, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		providers[name] = NewOpenAIProvider(name, pc)
	}
	return providers
}
