package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GoogleProvider calls Gemini through the GenAI SDK.
type GoogleProvider struct {
	client *genai.Client
}

// NewGoogleProvider creates a Gemini API client. baseURL may be empty.
func NewGoogleProvider(ctx context.Context, apiKey, baseURL string) (*GoogleProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("google provider: GOOGLE_API_KEY is not set")
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions.BaseURL = baseURL
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini API client: %w", err)
	}

	return &GoogleProvider{client: client}, nil
}

func (p *GoogleProvider) Invoke(ctx context.Context, c Capability, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if c.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(c.Temperature))
	}
	if c.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(c.MaxOutputTokens)
	}

	resp, err := p.client.Models.GenerateContent(ctx, c.Model, genai.Text(prompt), cfg)
	if err != nil {
		return "", classify(KindGoogle, err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &ProviderError{Provider: KindGoogle, Err: errors.New("empty response")}
	}
	return text, nil
}
