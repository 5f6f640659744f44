package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"logbook/config"
	"logbook/internal/port"
	"logbook/internal/resilience"
)

func TestOpenAIProvider_Complete(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Role: "assistant", Content: `{"ok":true}`}}},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider("local", config.ProviderConfig{BaseURL: srv.URL, RequestsPerSecond: 50})
	temp := float32(0.2)
	text, err := p.Complete(context.Background(), "llama3.1:8b", port.CompletionRequest{
		SystemPrompt: "sys",
		UserPrompt:   "user",
		Temperature:  &temp,
		JSONMode:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"ok":true}`, text)
	assert.Equal(t, "llama3.1:8b", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Content)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, got.ResponseFormat.Type)
}

func TestOpenAIProvider_StatusCodesClassify(t *testing.T) {
	tests := []struct {
		status int
		want   resilience.ErrorClass
	}{
		{http.StatusTooManyRequests, resilience.ClassTransient},
		{http.StatusBadGateway, resilience.ClassTransient},
		{http.StatusUnauthorized, resilience.ClassPermanent},
		{http.StatusNotFound, resilience.ClassPermanent},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"test"}}`))
			}))
			defer srv.Close()

			p := NewOpenAIProvider("openai", config.ProviderConfig{BaseURL: srv.URL})
			_, err := p.Complete(context.Background(), "gpt-4o", port.CompletionRequest{UserPrompt: "hi"})
			require.Error(t, err)
			assert.Equal(t, tt.want, resilience.Classify(err))
		})
	}
}

func TestOpenAIProvider_MissingKeyIsPermanent(t *testing.T) {
	t.Setenv("LOGBOOK_TEST_MISSING_KEY", "")
	p := NewOpenAIProvider("openai", config.ProviderConfig{APIKeyEnv: "LOGBOOK_TEST_MISSING_KEY"})

	_, err := p.Complete(context.Background(), "gpt-4o", port.CompletionRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, resilience.ClassPermanent, resilience.Classify(err))
}

func TestNewProviders(t *testing.T) {
	cfg := config.DefaultConfig()
	providers := NewProviders(cfg)
	for name := range cfg.Providers {
		require.Contains(t, providers, name)
		assert.Equal(t, name, providers[name].Name())
	}
}
