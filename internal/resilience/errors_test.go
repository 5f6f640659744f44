package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"schema error", &SchemaError{Err: errors.New("missing verdict")}, ClassPermanent},
		{"wrapped permanent", fmt.Errorf("call: %w", &PermanentError{Err: errors.New("x")}), ClassPermanent},
		{"transient", &TransientError{Err: errors.New("x")}, ClassTransient},
		{"deadline", context.DeadlineExceeded, ClassTransient},
		{"cancelled", context.Canceled, ClassPermanent},
		{"429", &openai.APIError{HTTPStatusCode: 429, Message: "slow down"}, ClassTransient},
		{"503", &openai.APIError{HTTPStatusCode: 503}, ClassTransient},
		{"401", &openai.APIError{HTTPStatusCode: 401}, ClassPermanent},
		{"404 request error", &openai.RequestError{HTTPStatusCode: 404, Err: errors.New("nope")}, ClassPermanent},
		{"500 request error", &openai.RequestError{HTTPStatusCode: 500, Err: errors.New("boom")}, ClassTransient},
		{"net op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, ClassTransient},
		{"conn refused", fmt.Errorf("post: %w", syscall.ECONNREFUSED), ClassTransient},
		{"rate limit text", errors.New("Rate limit reached for model"), ClassTransient},
		{"auth text", errors.New("Invalid API key provided"), ClassPermanent},
		{"unknown", errors.New("the model said no"), ClassUnknown},
		{"wrapped eof", fmt.Errorf("read body: %w", io.EOF), ClassTransient},
		{"flattened eof", errors.New(`Post "http://localhost:11434/v1/chat/completions": EOF`), ClassTransient},
		{"word containing eof", errors.New("geofence tool is not supported"), ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, ExtractJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, ExtractJSON(`Sure! {"a":1} hope that helps`))
	assert.Equal(t, `[1,2]`, ExtractJSON(`[1,2]`))
	assert.Equal(t, `no json`, ExtractJSON(`no json`))
}
