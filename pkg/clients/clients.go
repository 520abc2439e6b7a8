package clients

import (
	"context"
	"fmt"

	"github.com/mikeboe/deep-research/pkg/config"
)

// New returns the provider for kind. In mock mode every kind silently
// resolves to the mock; callers are not told about the substitution.
func New(ctx context.Context, kind ProviderKind, cfg *config.Config) (Provider, error) {
	if cfg.MockMode {
		return NewMockProvider(), nil
	}

	switch kind {
	case KindGoogle:
		return NewGoogleProvider(ctx, cfg.GoogleApiKey, "")
	case KindOpenAI:
		return NewOpenAIProvider(cfg.OpenAIApiKey, cfg.OpenAIBaseURL)
	case KindAnthropic:
		return NewAnthropicProvider(cfg.AnthropicApiKey, "")
	case KindMock:
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("invalid provider kind: %s", kind)
	}
}

// DefaultModel is the configured primary model for kind.
func DefaultModel(kind ProviderKind, cfg *config.Config) string {
	switch kind {
	case KindGoogle:
		return cfg.GoogleModel
	case KindOpenAI:
		return cfg.OpenAIModel
	case KindAnthropic:
		return cfg.AnthropicModel
	default:
		return "mock-model"
	}
}

// FallbackModel is the cheaper model used after a retryable failure, or "".
func FallbackModel(kind ProviderKind, cfg *config.Config) string {
	switch kind {
	case KindGoogle:
		return cfg.GoogleFallbackModel
	case KindOpenAI:
		return cfg.OpenAIFallbackModel
	case KindAnthropic:
		return cfg.AnthropicFallbackModel
	default:
		return ""
	}
}
