package port

import "context"

// CompletionRequest is one prompt sent to a model provider.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  *float32
	MaxTokens    int
	JSONMode     bool // ask the provider for a JSON object response
}

// Provider represents a model-serving endpoint family for text generation.
type Provider interface {
	// Complete generates text with the given model.
	Complete(ctx context.Context, model string, req CompletionRequest) (string, error)

	// Name returns the provider name used in tier tables.
	Name() string
}
