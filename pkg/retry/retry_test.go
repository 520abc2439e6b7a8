package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-research/pkg/clients"
)

func testPolicy() Policy {
	p := DefaultPolicy()
	p.InitialDelay = time.Millisecond
	p.MaxDelay = 5 * time.Millisecond
	return p
}

func rateLimited() error {
	return &clients.ProviderError{Provider: clients.KindGoogle, StatusCode: 429, Err: errors.New("quota")}
}

func TestDoSucceedsOnThirdAttemptWithFallback(t *testing.T) {
	p := testPolicy()
	p.FallbackModel = "small-model"

	var models []string
	out, err := Do(context.Background(), p, "big-model", func(ctx context.Context, a Attempt) (string, error) {
		models = append(models, a.Model)
		if len(models) < 3 {
			return "", rateLimited()
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, []string{"big-model", "small-model", "small-model"}, models)
}

func TestDoWithoutFallbackKeepsModel(t *testing.T) {
	var models []string
	_, err := Do(context.Background(), testPolicy(), "big-model", func(ctx context.Context, a Attempt) (int, error) {
		models = append(models, a.Model)
		if len(models) < 2 {
			return 0, rateLimited()
		}
		return 1, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"big-model", "big-model"}, models)
}

func TestDoNonRetryablePropagatesSameError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"no status", &clients.ProviderError{Provider: clients.KindOpenAI, Err: errors.New("bad prompt")}},
		{"client error", &clients.ProviderError{Provider: clients.KindOpenAI, StatusCode: 400, Err: errors.New("bad request")}},
		{"plain error", errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			_, err := Do(context.Background(), testPolicy(), "m", func(ctx context.Context, a Attempt) (string, error) {
				calls++
				return "", tt.err
			})
			assert.Same(t, tt.err, err)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	p := testPolicy()
	want := rateLimited()

	calls := 0
	_, err := Do(context.Background(), p, "m", func(ctx context.Context, a Attempt) (string, error) {
		calls++
		return "", want
	})

	assert.Same(t, want, err)
	assert.Equal(t, p.MaxRetries+1, calls)
}

func TestDoHonorsRetryAfter(t *testing.T) {
	p := testPolicy()
	p.MaxDelay = time.Millisecond

	calls := 0
	start := time.Now()
	_, err := Do(context.Background(), p, "m", func(ctx context.Context, a Attempt) (string, error) {
		calls++
		if calls == 1 {
			return "", &clients.ProviderError{StatusCode: 503, RetryAfter: 50 * time.Millisecond, Err: errors.New("busy")}
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestDoStopsWhenContextCancelledDuringBackoff(t *testing.T) {
	p := testPolicy()
	p.InitialDelay = time.Minute
	p.MaxDelay = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	_, err := Do(ctx, p, "m", func(ctx context.Context, a Attempt) (string, error) {
		calls++
		return "", rateLimited()
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestRetryable(t *testing.T) {
	p := DefaultPolicy()
	assert.True(t, Retryable(rateLimited(), p))
	assert.True(t, Retryable(&clients.ProviderError{StatusCode: 500}, p))
	assert.False(t, Retryable(&clients.ProviderError{StatusCode: 401}, p))
	assert.False(t, Retryable(&clients.ProviderError{}, p))
	assert.False(t, Retryable(context.Canceled, p))
}
