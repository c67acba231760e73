// Package llm wraps the remote completion service behind a narrow gateway
// that owns all retry and timeout policy.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Prompt is one role-tagged entry of a completion request.
type Prompt struct {
	Role    string
	Name    string
	Content string
}

// Completer produces a completion for an ordered prompt list. Implementations
// perform a single attempt; retries belong to the Gateway.
type Completer interface {
	Complete(ctx context.Context, prompts []Prompt) (string, error)
}

// Describer captions an image reachable at a URL. Single attempt, like
// Completer.
type Describer interface {
	Describe(ctx context.Context, url string) (string, error)
}

// Reason classifies a completion failure.
type Reason string

const (
	ReasonTimeout      Reason = "timeout"
	ReasonRateLimited  Reason = "rate_limited"
	ReasonUpstream     Reason = "upstream"
	ReasonBadRequest   Reason = "bad_request"
	ReasonUnauthorized Reason = "unauthorized"
	ReasonCanceled     Reason = "canceled"
)

// Error is a completion failure with a stable reason code.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("llm: %s", e.Reason)
	}
	return fmt.Sprintf("llm: %s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient.
func (e *Error) Retryable() bool {
	switch e.Reason {
	case ReasonTimeout, ReasonRateLimited, ReasonUpstream:
		return true
	default:
		return false
	}
}

// ReasonOf extracts the reason code from an error, defaulting to upstream.
func ReasonOf(err error) Reason {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Reason
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}
	return ReasonUpstream
}
