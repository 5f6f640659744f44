package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sethvargo/go-retry"
	"logbook/config"
	"logbook/internal/logger"
	"logbook/internal/port"
)

// PartialResult is the degraded outcome returned instead of an error when every
// provider failed and graceful degradation is allowed.
type PartialResult struct {
	Success            bool     `json:"success"`
	ErrorMessage       string   `json:"error_message"`
	ErrorType          string   `json:"error_type"`
	ProvidersAttempted []string `json:"providers_attempted"`
	RetryCount         int      `json:"retry_count"`
}

// CascadeResult is a successful completion and the providers that were tried for it.
type CascadeResult struct {
	Text               string
	ProvidersAttempted []string
	RetryCount         int
}

// RetryOutcome reports one provider's retry loop.
type RetryOutcome struct {
	Provider string
	Result   string
	LastErr  error
	Attempts int
}

// Succeeded reports whether the loop produced a result.
func (o RetryOutcome) Succeeded() bool {
	return o.LastErr == nil
}

// attemptResult is the typed value one provider call collapses into.
type attemptResult struct {
	text  string
	class ErrorClass
	err   error
}

type validateFunc func(text string) (string, error)

// Client wraps model providers with tier resolution, retries and provider fallback.
type Client struct {
	cfg       *config.Config
	providers map[string]port.Provider
	jitter    func() float64
	onBackoff func(agent string, retry int, delay time.Duration)
}

type Option func(*Client)

// WithJitterSource replaces the uniform [0,1) source used for backoff jitter.
func WithJitterSource(f func() float64) Option {
	return func(c *Client) { c.jitter = f }
}

// WithBackoffObserver is called with every computed delay before the client sleeps.
func WithBackoffObserver(f func(agent string, retry int, delay time.Duration)) Option {
	return func(c *Client) { c.onBackoff = f }
}

// NewClient creates a resilience client over the named providers.
func NewClient(cfg *config.Config, providers map[string]port.Provider, opts ...Option) *Client {
	c := &Client{
		cfg:       cfg,
		providers: providers,
		jitter:    rand.Float64,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BackoffDelay is base * 2^(retry-1) + jitter*0.5*base, for retry >= 1.
func BackoffDelay(base time.Duration, retry int, jitter float64) time.Duration {
	exp := float64(base) * math.Pow(2, float64(retry-1))
	return time.Duration(exp + jitter*0.5*float64(base))
}

func (c *Client) maxRetries() int {
	if c.cfg.Resilience.MaxRetries < 1 {
		return 1
	}
	return c.cfg.Resilience.MaxRetries
}

func (c *Client) newBackoff(agent string) retry.Backoff {
	base := c.cfg.Resilience.BaseDelay
	n := 0
	next := retry.BackoffFunc(func() (time.Duration, bool) {
		n++
		delay := BackoffDelay(base, n, c.jitter())
		if c.onBackoff != nil {
			c.onBackoff(agent, n, delay)
		}
		return delay, false
	})
	return retry.WithMaxRetries(uint64(c.maxRetries()-1), next)
}

// RetryWithBackoff calls the resolved provider up to MaxRetries times. The returned
// error is only set for configuration problems; provider failures land in LastErr.
func (c *Client) RetryWithBackoff(ctx context.Context, agentName string, req port.CompletionRequest, forceCloud bool) (RetryOutcome, error) {
	res, err := c.Resolve(agentName, forceCloud)
	if err != nil {
		return RetryOutcome{}, err
	}
	return c.retry(ctx, agentName, res, req, nil)
}

func (c *Client) retry(ctx context.Context, agentName string, res ModelResolution, req port.CompletionRequest, validate validateFunc) (RetryOutcome, error) {
	provider, ok := c.providers[res.Provider]
	if !ok {
		return RetryOutcome{}, &ConfigurationError{Agent: agentName, Reason: fmt.Sprintf("provider %q is not registered", res.Provider)}
	}

	out := RetryOutcome{Provider: res.Provider}
	log := logger.With("agent", agentName, "provider", res.Provider, "model", res.Model)

	err := retry.Do(ctx, c.newBackoff(agentName), func(ctx context.Context) error {
		out.Attempts++
		r := c.attempt(ctx, provider, res.Model, req, validate)
		switch {
		case r.err == nil:
			out.Result = r.text
			return nil
		case r.class == ClassPermanent:
			log.Warn("provider call failed permanently", "attempt", out.Attempts, "error", r.err)
			return r.err
		case r.class == ClassUnknown:
			log.Warn("unclassified provider error, retrying", "attempt", out.Attempts, "class", r.class, "error", r.err)
			return retry.RetryableError(r.err)
		default:
			log.Warn("transient provider error, retrying", "attempt", out.Attempts, "error", r.err)
			return retry.RetryableError(r.err)
		}
	})
	out.LastErr = err
	return out, nil
}

func (c *Client) attempt(ctx context.Context, provider port.Provider, model string, req port.CompletionRequest, validate validateFunc) attemptResult {
	text, err := provider.Complete(ctx, model, req)
	if err != nil {
		return attemptResult{class: Classify(err), err: err}
	}
	if validate != nil {
		text, err = validate(text)
		if err != nil {
			return attemptResult{class: ClassPermanent, err: err}
		}
	}
	return attemptResult{text: text}
}

// CompleteWithCascade tries the default provider, then the fallback provider. When both
// fail it returns a PartialResult if degradation is allowed, else the last error.
func (c *Client) CompleteWithCascade(ctx context.Context, agentName string, req port.CompletionRequest, allowDegradation bool) (CascadeResult, *PartialResult, error) {
	return c.cascade(ctx, agentName, req, allowDegradation, nil)
}

// CompleteStructured is CompleteWithCascade with the response validated against schema.
// A validation failure is permanent for that provider but still cascades.
func (c *Client) CompleteStructured(ctx context.Context, agentName string, req port.CompletionRequest, schema *Schema, allowDegradation bool) (CascadeResult, *PartialResult, error) {
	req.JSONMode = true
	return c.cascade(ctx, agentName, req, allowDegradation, schema.Validate)
}

func (c *Client) cascade(ctx context.Context, agentName string, req port.CompletionRequest, allowDegradation bool, validate validateFunc) (CascadeResult, *PartialResult, error) {
	primary, err := c.Resolve(agentName, false)
	if err != nil {
		return CascadeResult{}, nil, err
	}

	var attempted []string
	retries := 0

	out, err := c.retry(ctx, agentName, primary, req, validate)
	if err != nil {
		return CascadeResult{}, nil, err
	}
	attempted = append(attempted, out.Provider)
	retries += out.Attempts
	if out.Succeeded() {
		return CascadeResult{Text: out.Result, ProvidersAttempted: attempted, RetryCount: retries}, nil, nil
	}
	lastErr := out.LastErr

	if c.cfg.Resilience.FallbackProvider != "" && !errors.Is(lastErr, context.Canceled) {
		fallback, err := c.Resolve(agentName, true)
		switch {
		case err != nil:
			logger.Warn("fallback provider unavailable", "agent", agentName, "error", err)
		case fallback.Provider == primary.Provider:
			logger.Debug("fallback resolves to the same provider, skipping", "agent", agentName, "provider", fallback.Provider)
		default:
			logger.Info("falling back to secondary provider", "agent", agentName, "from", primary.Provider, "to", fallback.Provider)
			out, err := c.retry(ctx, agentName, fallback, req, validate)
			if err != nil {
				return CascadeResult{}, nil, err
			}
			attempted = append(attempted, out.Provider)
			retries += out.Attempts
			if out.Succeeded() {
				return CascadeResult{Text: out.Result, ProvidersAttempted: attempted, RetryCount: retries}, nil, nil
			}
			lastErr = out.LastErr
		}
	}

	if allowDegradation && c.cfg.Resilience.GracefulDegradation {
		logger.Error("all providers failed, degrading", "agent", agentName, "providers", attempted, "attempts", retries, "error", lastErr)
		return CascadeResult{}, &PartialResult{
			Success:            false,
			ErrorMessage:       lastErr.Error(),
			ErrorType:          "degraded",
			ProvidersAttempted: attempted,
			RetryCount:         retries,
		}, nil
	}
	return CascadeResult{}, nil, fmt.Errorf("agent %s: all providers failed: %w", agentName, lastErr)
}
