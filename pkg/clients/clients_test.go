package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms/fake"

	"github.com/mikeboe/deep-research/pkg/config"
)

func TestParseProviderKind(t *testing.T) {
	tests := []struct {
		input   string
		want    ProviderKind
		wantErr bool
	}{
		{"google", KindGoogle, false},
		{"Gemini", KindGoogle, false},
		{"openai", KindOpenAI, false},
		{" claude ", KindAnthropic, false},
		{"mock", KindMock, false},
		{"cohere", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseProviderKind(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMockModeSubstitutesEveryKind(t *testing.T) {
	cfg := config.Default()
	cfg.MockMode = true
	ctx := context.Background()

	mock, err := New(ctx, KindMock, cfg)
	require.NoError(t, err)

	prompts := map[Purpose]string{
		PurposeQueries:   "Topic: Quantum computing\nReturn queries.",
		PurposeSynthesis: "Topic: Quantum computing\nQuery: qubit error rates\n",
		PurposeReview:    "Topic: Quantum computing\n",
		PurposeReport:    "Topic: Quantum computing\n<learnings>\n- a\n- b\n</learnings>",
	}

	for _, kind := range []ProviderKind{KindGoogle, KindOpenAI, KindAnthropic} {
		t.Run(string(kind), func(t *testing.T) {
			p, err := New(ctx, kind, cfg)
			require.NoError(t, err, "mock mode must not need credentials")

			for purpose, prompt := range prompts {
				want, err := mock.Invoke(ctx, Capability{Kind: KindMock, Model: "mock-model", Purpose: purpose}, prompt)
				require.NoError(t, err)
				got, err := p.Invoke(ctx, Capability{Kind: kind, Model: DefaultModel(kind, cfg), Purpose: purpose}, prompt)
				require.NoError(t, err)
				assert.Equal(t, want, got, "purpose %s", purpose)
			}
		})
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	cfg := config.Default()
	ctx := context.Background()

	for _, kind := range []ProviderKind{KindGoogle, KindOpenAI, KindAnthropic} {
		_, err := New(ctx, kind, cfg)
		assert.Error(t, err, string(kind))
	}

	_, err := New(ctx, ProviderKind("bogus"), cfg)
	assert.Error(t, err)
}

func TestMockResponses(t *testing.T) {
	p := NewMockProvider()
	ctx := context.Background()

	out, err := p.Invoke(ctx, Capability{Purpose: PurposeQueries}, "Topic: Rust\n")
	require.NoError(t, err)
	var queries []map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &queries))
	require.Len(t, queries, 3)
	assert.Equal(t, "Rust fundamentals", queries[0]["query"])
	assert.NotEmpty(t, queries[0]["researchGoal"])

	out, err = p.Invoke(ctx, Capability{Purpose: PurposeSynthesis}, "Query: borrow checker\n")
	require.NoError(t, err)
	assert.Len(t, strings.Split(out, "\n"), 3)
	assert.Contains(t, out, "borrow checker")

	out, err = p.Invoke(ctx, Capability{Purpose: PurposeReview}, "anything")
	require.NoError(t, err)
	assert.Equal(t, "[]", out)

	out, err = p.Invoke(ctx, Capability{Purpose: PurposeReport}, "Topic: Rust\n<learnings>\n- one\n- two\n</learnings>")
	require.NoError(t, err)
	assert.Contains(t, out, "# Research Report: Rust")
	assert.Contains(t, out, "- one\n- two\n")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.Invoke(cancelled, Capability{Purpose: PurposeReview}, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatusFromText(t *testing.T) {
	tests := []struct {
		msg  string
		want int
	}{
		{"API returned unexpected status code: 429: rate limited", 429},
		{"status 503", 503},
		{"Status: 500 internal", 500},
		{"status code: 200", 0},
		{"connection refused", 0},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFromText(tt.msg))
		})
	}
}

func TestGenaiRetryDelay(t *testing.T) {
	details := []map[string]any{
		{"@type": "type.googleapis.com/google.rpc.QuotaFailure"},
		{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "7.4s"},
	}
	assert.Equal(t, 7*time.Second, genaiRetryDelay(details))
	assert.Equal(t, time.Second, genaiRetryDelay([]map[string]any{
		{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "0.2s"},
	}))
	assert.Zero(t, genaiRetryDelay(nil))
}

func TestClassifyKeepsContextErrorsNonRetryable(t *testing.T) {
	err := classify(KindOpenAI, fmt.Errorf("wrapped: %w", context.DeadlineExceeded))

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Zero(t, pe.StatusCode)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAnthropicProviderAdaptsLangchainModel(t *testing.T) {
	p := NewModelProvider(fake.NewFakeLLM([]string{"first", "second"}))
	ctx := context.Background()

	out, err := p.Invoke(ctx, Capability{Kind: KindAnthropic, Model: "claude"}, "hello")
	require.NoError(t, err)
	assert.Equal(t, "first", out)

	out, err = p.Invoke(ctx, Capability{Kind: KindAnthropic, Model: "claude"}, "hello")
	require.NoError(t, err)
	assert.Equal(t, "second", out)
}

func TestOpenAIProviderRateLimitStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_exceeded"}}`))
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider("test-key", srv.URL+"/v1")
	require.NoError(t, err)

	_, err = p.Invoke(context.Background(), Capability{Kind: KindOpenAI, Model: "gpt-4o"}, "hi")
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusTooManyRequests, pe.StatusCode)
	assert.Equal(t, KindOpenAI, pe.Provider)
}

func TestOpenAIProviderSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"1","object":"chat.completion","model":%q,"choices":[{"index":0,"message":{"role":"assistant","content":"answer from %s"},"finish_reason":"stop"}]}`, req.Model, req.Model)
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider("test-key", srv.URL+"/v1")
	require.NoError(t, err)

	out, err := p.Invoke(context.Background(), Capability{Kind: KindOpenAI, Model: "gpt-4o-mini"}, "hi")
	require.NoError(t, err)
	assert.Equal(t, "answer from gpt-4o-mini", out)
}

func TestGoogleProviderRetryInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED",` +
			`"details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"12s"}]}}`))
	}))
	defer srv.Close()

	p, err := NewGoogleProvider(context.Background(), "test-key", srv.URL)
	require.NoError(t, err)

	_, err = p.Invoke(context.Background(), Capability{Kind: KindGoogle, Model: "gemini-2.5-flash"}, "hi")
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 429, pe.StatusCode)
	assert.Equal(t, 12*time.Second, pe.RetryAfter)
	assert.False(t, errors.Is(err, context.Canceled))
}
