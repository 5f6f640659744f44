package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"logbook/config"
	"logbook/internal/port"
)

type scriptedProvider struct {
	mu      sync.Mutex
	name    string
	replies []reply
	calls   int
	models  []string
}

type reply struct {
	text string
	err  error
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Complete(_ context.Context, model string, _ port.CompletionRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.models = append(p.models, model)
	i := p.calls
	p.calls++
	if i >= len(p.replies) {
		i = len(p.replies) - 1
	}
	return p.replies[i].text, p.replies[i].err
}

func always(err error) []reply { return []reply{{err: err}} }

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Resilience.BaseDelay = time.Millisecond
	cfg.Resilience.MaxRetries = 3
	return cfg
}

func newTestClient(cfg *config.Config, primary, fallback *scriptedProvider, opts ...Option) *Client {
	providers := map[string]port.Provider{}
	if primary != nil {
		providers["local"] = primary
	}
	if fallback != nil {
		providers["openai"] = fallback
	}
	return NewClient(cfg, providers, opts...)
}

func TestRetryWithBackoff_PermanentStopsAfterFirstAttempt(t *testing.T) {
	primary := &scriptedProvider{name: "local", replies: always(&PermanentError{Err: errors.New("invalid api key")})}
	var delays []time.Duration
	c := newTestClient(testConfig(), primary, nil, WithBackoffObserver(func(_ string, _ int, d time.Duration) {
		delays = append(delays, d)
	}))

	out, err := c.RetryWithBackoff(context.Background(), "planner", port.CompletionRequest{}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Attempts)
	assert.Error(t, out.LastErr)
	assert.Empty(t, delays)
}

func TestRetryWithBackoff_TransientUsesEveryAttempt(t *testing.T) {
	for _, n := range []int{1, 2, 4} {
		cfg := testConfig()
		cfg.Resilience.MaxRetries = n
		primary := &scriptedProvider{name: "local", replies: always(&TransientError{Err: errors.New("503")})}
		var delays []time.Duration
		c := newTestClient(cfg, primary, nil, WithBackoffObserver(func(_ string, _ int, d time.Duration) {
			delays = append(delays, d)
		}))

		out, err := c.RetryWithBackoff(context.Background(), "planner", port.CompletionRequest{}, false)
		require.NoError(t, err)
		assert.Equal(t, n, out.Attempts, "maxRetries=%d", n)
		assert.Equal(t, n, primary.calls)
		require.Len(t, delays, n-1)
		for i := 1; i < len(delays); i++ {
			assert.Greater(t, delays[i], delays[i-1])
		}
	}
}

func TestRetryWithBackoff_UnknownIsRetried(t *testing.T) {
	primary := &scriptedProvider{name: "local", replies: []reply{
		{err: errors.New("something odd")},
		{text: "ok"},
	}}
	c := newTestClient(testConfig(), primary, nil)

	out, err := c.RetryWithBackoff(context.Background(), "planner", port.CompletionRequest{}, false)
	require.NoError(t, err)
	assert.True(t, out.Succeeded())
	assert.Equal(t, "ok", out.Result)
	assert.Equal(t, 2, out.Attempts)
}

func TestBackoffDelay(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, 100*time.Millisecond, BackoffDelay(base, 1, 0))
	assert.Equal(t, 200*time.Millisecond, BackoffDelay(base, 2, 0))
	assert.Equal(t, 450*time.Millisecond, BackoffDelay(base, 3, 1))
	// worst-case jitter on retry k never reaches best case on retry k+1
	assert.Less(t, BackoffDelay(base, 1, 0.999), BackoffDelay(base, 2, 0))
}

func TestCompleteWithCascade_FallbackSucceeds(t *testing.T) {
	primary := &scriptedProvider{name: "local", replies: always(&TransientError{Err: errors.New("timeout")})}
	fallback := &scriptedProvider{name: "openai", replies: []reply{{text: "from fallback"}}}
	c := newTestClient(testConfig(), primary, fallback)

	res, partial, err := c.CompleteWithCascade(context.Background(), "analyzer", port.CompletionRequest{}, true)
	require.NoError(t, err)
	assert.Nil(t, partial)
	assert.Equal(t, "from fallback", res.Text)
	assert.Equal(t, []string{"local", "openai"}, res.ProvidersAttempted)
	assert.Equal(t, 4, res.RetryCount)
	assert.Equal(t, 3, primary.calls)
	assert.Equal(t, 1, fallback.calls)
	assert.Equal(t, []string{"gpt-4o-mini"}, fallback.models)
}

func TestCompleteWithCascade_PrimarySucceeds(t *testing.T) {
	primary := &scriptedProvider{name: "local", replies: []reply{{err: &TransientError{Err: errors.New("503")}}, {text: "ok"}}}
	fallback := &scriptedProvider{name: "openai", replies: []reply{{text: "unused"}}}
	c := newTestClient(testConfig(), primary, fallback)

	res, partial, err := c.CompleteWithCascade(context.Background(), "analyzer", port.CompletionRequest{}, true)
	require.NoError(t, err)
	assert.Nil(t, partial)
	assert.Equal(t, CascadeResult{Text: "ok", ProvidersAttempted: []string{"local"}, RetryCount: 2}, res)
	assert.Zero(t, fallback.calls)
}

func TestCompleteWithCascade_DegradesWhenAllFail(t *testing.T) {
	primary := &scriptedProvider{name: "local", replies: always(&TransientError{Err: errors.New("timeout")})}
	fallback := &scriptedProvider{name: "openai", replies: always(&PermanentError{Err: errors.New("unauthorized")})}
	c := newTestClient(testConfig(), primary, fallback)

	res, partial, err := c.CompleteWithCascade(context.Background(), "analyzer", port.CompletionRequest{}, true)
	require.NoError(t, err)
	assert.Empty(t, res.Text)
	require.NotNil(t, partial)
	assert.False(t, partial.Success)
	assert.Equal(t, "degraded", partial.ErrorType)
	assert.Equal(t, []string{"local", "openai"}, partial.ProvidersAttempted)
	assert.Equal(t, 4, partial.RetryCount)
	assert.Contains(t, partial.ErrorMessage, "unauthorized")
}

func TestCompleteWithCascade_PropagatesWithoutDegradation(t *testing.T) {
	primary := &scriptedProvider{name: "local", replies: always(&TransientError{Err: errors.New("timeout")})}
	fallback := &scriptedProvider{name: "openai", replies: always(&PermanentError{Err: errors.New("unauthorized")})}

	c := newTestClient(testConfig(), primary, fallback)
	_, partial, err := c.CompleteWithCascade(context.Background(), "analyzer", port.CompletionRequest{}, false)
	assert.Nil(t, partial)
	var permErr *PermanentError
	assert.ErrorAs(t, err, &permErr)

	cfg := testConfig()
	cfg.Resilience.GracefulDegradation = false
	c = newTestClient(cfg, primary, fallback)
	_, partial, err = c.CompleteWithCascade(context.Background(), "analyzer", port.CompletionRequest{}, true)
	assert.Nil(t, partial)
	assert.Error(t, err)
}

func TestCompleteWithCascade_NoFallbackConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Resilience.FallbackProvider = ""
	primary := &scriptedProvider{name: "local", replies: always(&PermanentError{Err: errors.New("bad request")})}
	c := newTestClient(cfg, primary, nil)

	_, partial, err := c.CompleteWithCascade(context.Background(), "analyzer", port.CompletionRequest{}, true)
	require.NoError(t, err)
	require.NotNil(t, partial)
	assert.Equal(t, []string{"local"}, partial.ProvidersAttempted)
	assert.Equal(t, 1, partial.RetryCount)
}

func TestCompleteWithCascade_ConfigurationErrorPropagates(t *testing.T) {
	c := newTestClient(testConfig(), &scriptedProvider{name: "local", replies: []reply{{text: "x"}}}, nil)

	_, partial, err := c.CompleteWithCascade(context.Background(), "unknown-agent", port.CompletionRequest{}, true)
	assert.Nil(t, partial)
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

const verdictSchema = `{
	"type": "object",
	"required": ["verdict"],
	"properties": {"verdict": {"type": "string"}}
}`

func TestCompleteStructured_SchemaFailureCascadesWithoutRetry(t *testing.T) {
	primary := &scriptedProvider{name: "local", replies: []reply{{text: `{"other": 1}`}}}
	fallback := &scriptedProvider{name: "openai", replies: []reply{{text: "```json\n{\"verdict\": \"SUFFICIENT\"}\n```"}}}
	c := newTestClient(testConfig(), primary, fallback)

	res, partial, err := c.CompleteStructured(context.Background(), "analyzer", port.CompletionRequest{}, MustCompileSchema(verdictSchema), true)
	require.NoError(t, err)
	assert.Nil(t, partial)
	assert.JSONEq(t, `{"verdict": "SUFFICIENT"}`, res.Text)
	assert.Equal(t, []string{"local", "openai"}, res.ProvidersAttempted)
	assert.Equal(t, 1, primary.calls, "schema failures must not be retried on the same provider")
	assert.Equal(t, 1, fallback.calls)
}

func TestCompleteStructured_NotJSON(t *testing.T) {
	cfg := testConfig()
	cfg.Resilience.FallbackProvider = ""
	primary := &scriptedProvider{name: "local", replies: []reply{{text: "I think it is sufficient"}}}
	c := newTestClient(cfg, primary, nil)

	_, partial, err := c.CompleteStructured(context.Background(), "analyzer", port.CompletionRequest{}, MustCompileSchema(verdictSchema), false)
	assert.Nil(t, partial)
	var schemaErr *SchemaError
	assert.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, 1, primary.calls)
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	primary := &scriptedProvider{name: "local", replies: always(&TransientError{Err: errors.New("timeout")})}
	c := newTestClient(testConfig(), primary, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := c.RetryWithBackoff(ctx, "planner", port.CompletionRequest{}, false)
	require.NoError(t, err)
	assert.ErrorIs(t, out.LastErr, context.Canceled)
	assert.LessOrEqual(t, primary.calls, 1)
}
