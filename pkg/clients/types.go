package clients

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ProviderKind is the closed set of completion backends.
type ProviderKind string

const (
	KindGoogle    ProviderKind = "google"
	KindOpenAI    ProviderKind = "openai"
	KindAnthropic ProviderKind = "anthropic"
	KindMock      ProviderKind = "mock"
)

// ParseProviderKind maps a user-supplied name onto a ProviderKind.
func ParseProviderKind(s string) (ProviderKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "google", "gemini":
		return KindGoogle, nil
	case "openai":
		return KindOpenAI, nil
	case "anthropic", "claude":
		return KindAnthropic, nil
	case "mock":
		return KindMock, nil
	default:
		return "", fmt.Errorf("unknown provider kind: %q", s)
	}
}

// Purpose labels what a completion is used for.
type Purpose string

const (
	PurposeQueries   Purpose = "queries"
	PurposeSynthesis Purpose = "synthesis"
	PurposeReview    Purpose = "review"
	PurposeReport    Purpose = "report"
)

// Capability identifies one completion call. It is a plain value created per call.
type Capability struct {
	Kind            ProviderKind
	Model           string
	Temperature     float64
	MaxOutputTokens int
	Purpose         Purpose
}

// WithModel returns a copy of the capability bound to another model.
func (c Capability) WithModel(model string) Capability {
	c.Model = model
	return c
}

// Provider executes a single-prompt chat completion.
type Provider interface {
	Invoke(ctx context.Context, capability Capability, prompt string) (string, error)
}

// ProviderError is a normalized vendor failure. StatusCode is zero when the
// failure did not come from a transport-level response.
type ProviderError struct {
	Provider   ProviderKind
	StatusCode int
	// RetryAfter is the vendor-suggested wait, zero when none was given.
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// HTTPStatus reports the transport status code, zero if none.
func (e *ProviderError) HTTPStatus() int { return e.StatusCode }

// RetryAfterDelay reports the vendor-specified wait before retrying.
func (e *ProviderError) RetryAfterDelay() time.Duration { return e.RetryAfter }
