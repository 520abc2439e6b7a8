package retry

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"
)

// Policy controls backoff and model downgrade for one operation.
type Policy struct {
	MaxRetries           int
	InitialDelay         time.Duration
	MaxDelay             time.Duration
	BackoffFactor        float64
	RetryableStatusCodes []int
	// FallbackModel replaces the original model after the first retryable
	// failure and stays in place for the rest of the call.
	FallbackModel string
	Logger        *slog.Logger
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:           3,
		InitialDelay:         time.Second,
		MaxDelay:             30 * time.Second,
		BackoffFactor:        2,
		RetryableStatusCodes: []int{429, 500, 502, 503, 504},
	}
}

// Attempt describes the call being made. Number starts at 0.
type Attempt struct {
	Number int
	Model  string
}

type statusCoder interface {
	HTTPStatus() int
}

type retryAfterer interface {
	RetryAfterDelay() time.Duration
}

// Retryable reports whether err carries a status code listed in the policy.
// Errors without a status code are never retried.
func Retryable(err error, p Policy) bool {
	var sc statusCoder
	if !errors.As(err, &sc) {
		return false
	}
	code := sc.HTTPStatus()
	return code != 0 && slices.Contains(p.RetryableStatusCodes, code)
}

// RetryAfter returns the vendor-specified wait carried by err, or zero.
func RetryAfter(err error) time.Duration {
	var ra retryAfterer
	if !errors.As(err, &ra) {
		return 0
	}
	return ra.RetryAfterDelay()
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// policy's retries are exhausted. The last error is returned unwrapped.
func Do[T any](ctx context.Context, p Policy, model string, op func(ctx context.Context, a Attempt) (T, error)) (T, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}

	delay := p.InitialDelay
	current := model

	for attempt := 0; ; attempt++ {
		result, err := op(ctx, Attempt{Number: attempt, Model: current})
		if err == nil {
			return result, nil
		}

		if attempt >= p.MaxRetries || !Retryable(err, p) {
			return result, err
		}

		wait := RetryAfter(err)
		if wait <= 0 {
			wait = min(delay, p.MaxDelay)
		}

		if p.FallbackModel != "" && current != p.FallbackModel {
			logger.Warn("Switching to fallback model", "from", current, "to", p.FallbackModel)
			current = p.FallbackModel
		}

		logger.Warn("Retrying after error", "attempt", attempt+1, "max_retries", p.MaxRetries, "wait", wait, "error", err)

		if err := sleep(ctx, wait); err != nil {
			return result, err
		}

		delay = min(time.Duration(float64(delay)*factor), p.MaxDelay)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
