package providers

import (
	"errors"
	"fmt"
	"strings"
)

// FailureReason categorizes provider errors for retry decisions.
type FailureReason string

const (
	ReasonRateLimit  FailureReason = "rate_limit"
	ReasonAuth       FailureReason = "auth"
	ReasonOverloaded FailureReason = "overloaded"
	ReasonTimeout    FailureReason = "timeout"
	ReasonBadRequest FailureReason = "bad_request"
	ReasonUnknown    FailureReason = "unknown"
)

// IsRetryable reports whether a retry may succeed for this reason.
func (r FailureReason) IsRetryable() bool {
	switch r {
	case ReasonRateLimit, ReasonOverloaded, ReasonTimeout:
		return true
	default:
		return false
	}
}

// ProviderError wraps an upstream API failure with provider context.
type ProviderError struct {
	Provider string
	Model    string
	Reason   FailureReason
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s (%s): [%s] %v", e.Provider, e.Model, e.Reason, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError classifies an upstream error. Already-wrapped errors pass
// through unchanged.
func WrapError(provider, model string, err error) error {
	if err == nil {
		return nil
	}
	var existing *ProviderError
	if errors.As(err, &existing) {
		return err
	}
	return &ProviderError{
		Provider: provider,
		Model:    model,
		Reason:   classify(err),
		Err:      err,
	}
}

// IsRetryable reports whether the error is worth retrying.
func IsRetryable(err error) bool {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Reason.IsRetryable()
	}
	return classify(err).IsRetryable()
}

func classify(err error) FailureReason {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "429") || strings.Contains(msg, "too many requests"):
		return ReasonRateLimit
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "unauthorized") || strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "authentication"):
		return ReasonAuth
	case strings.Contains(msg, "529") || strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "500") || strings.Contains(msg, "504") ||
		strings.Contains(msg, "bad gateway") || strings.Contains(msg, "internal server error"):
		return ReasonOverloaded
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return ReasonTimeout
	case strings.Contains(msg, "400") || strings.Contains(msg, "invalid request") ||
		strings.Contains(msg, "context length") || strings.Contains(msg, "maximum context"):
		return ReasonBadRequest
	default:
		return ReasonUnknown
	}
}
