package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
)

// AnthropicProvider adapts a langchaingo model to Provider.
type AnthropicProvider struct {
	llm llms.Model
}

// NewAnthropicProvider creates a Claude client through langchaingo.
func NewAnthropicProvider(apiKey, baseURL string) (*AnthropicProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("anthropic provider: ANTHROPIC_API_KEY is not set")
	}

	opts := []anthropic.Option{anthropic.WithToken(apiKey)}
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}

	llm, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init anthropic LLM: %w", err)
	}
	return &AnthropicProvider{llm: llm}, nil
}

// NewModelProvider wraps an existing langchaingo model, e.g. a fake in tests.
func NewModelProvider(llm llms.Model) *AnthropicProvider {
	return &AnthropicProvider{llm: llm}
}

func (p *AnthropicProvider) Invoke(ctx context.Context, c Capability, prompt string) (string, error) {
	opts := []llms.CallOption{llms.WithModel(c.Model)}
	if c.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(c.Temperature))
	}
	if c.MaxOutputTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.MaxOutputTokens))
	}

	resp, err := p.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, opts...)
	if err != nil {
		return "", classify(KindAnthropic, err)
	}

	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: KindAnthropic, Err: errors.New("llm returned no choices")}
	}
	return resp.Choices[0].Content, nil
}
