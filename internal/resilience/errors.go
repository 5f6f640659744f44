package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/sashabaranov/go-openai"
)

// ErrorClass is the retry policy bucket an error falls into.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	ClassTransient
	ClassPermanent
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// ConfigurationError means an agent cannot be resolved to a provider and model.
type ConfigurationError struct {
	Agent  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for agent %q: %s", e.Agent, e.Reason)
}

// TransientError marks a failure worth retrying on the same provider.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that will not go away on retry.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// SchemaError is returned when a structured response does not match its schema.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string { return "schema validation failed: " + e.Err.Error() }
func (e *SchemaError) Unwrap() error { return e.Err }

var (
	transientMarkers = []string{
		"timeout", "timed out", "deadline exceeded", "connection refused", "connection reset",
		"rate limit", "too many requests", "service unavailable", "temporarily unavailable",
		"overloaded", "bad gateway",
	}
	permanentMarkers = []string{
		"unauthorized", "invalid api key", "incorrect api key", "authentication", "forbidden",
		"not found", "does not exist", "invalid request", "malformed", "bad request",
	}
)

// Classify maps an error onto the retry taxonomy.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}

	var schemaErr *SchemaError
	var permErr *PermanentError
	var transErr *TransientError
	switch {
	case errors.As(err, &schemaErr), errors.As(err, &permErr):
		return ClassPermanent
	case errors.As(err, &transErr):
		return ClassTransient
	case errors.Is(err, context.Canceled):
		return ClassPermanent
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTransient
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return classifyStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return classifyStatus(reqErr.HTTPStatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ClassTransient
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ClassTransient
	}

	msg := strings.ToLower(err.Error())
	// flattened transport errors end in ": EOF"
	if msg == "eof" || strings.HasSuffix(msg, ": eof") || strings.HasSuffix(msg, "unexpected eof") {
		return ClassTransient
	}
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return ClassTransient
		}
	}
	for _, m := range permanentMarkers {
		if strings.Contains(msg, m) {
			return ClassPermanent
		}
	}
	return ClassUnknown
}

func classifyStatus(code int) ErrorClass {
	switch {
	case code == http.StatusTooManyRequests:
		return ClassTransient
	case code >= 500:
		return ClassTransient
	case code >= 400:
		return ClassPermanent
	default:
		return ClassUnknown
	}
}
