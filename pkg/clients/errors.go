package clients

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

var statusPattern = regexp.MustCompile(`(?i)status(?: code)?:?\s*(\d{3})\b`)

// classify turns a vendor error into a *ProviderError. Context errors keep a
// zero status so they are never retried.
func classify(kind ProviderKind, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Provider: kind, Err: err}
	}

	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return &ProviderError{
			Provider:   kind,
			StatusCode: genaiErr.Code,
			RetryAfter: genaiRetryDelay(genaiErr.Details),
			Err:        err,
		}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: kind, StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{Provider: kind, StatusCode: reqErr.HTTPStatusCode, Err: err}
	}

	return &ProviderError{Provider: kind, StatusCode: statusFromText(err.Error()), Err: err}
}

// statusFromText recovers a status code from errors that only carry text,
// e.g. "API returned unexpected status code: 429: rate limited".
func statusFromText(msg string) int {
	m := statusPattern.FindStringSubmatch(msg)
	if len(m) < 2 {
		return 0
	}
	code, err := strconv.Atoi(m[1])
	if err != nil || code < 400 || code > 599 {
		return 0
	}
	return code
}

// genaiRetryDelay reads google.rpc.RetryInfo from an error's details.
func genaiRetryDelay(details []map[string]any) time.Duration {
	for _, d := range details {
		typ, _ := d["@type"].(string)
		if !strings.HasSuffix(typ, "RetryInfo") {
			continue
		}
		raw, _ := d["retryDelay"].(string)
		if raw == "" {
			continue
		}
		delay, err := time.ParseDuration(raw)
		if err != nil || delay < 0 {
			continue
		}
		// Seconds granularity.
		if rounded := delay.Round(time.Second); rounded > 0 {
			return rounded
		}
		if delay > 0 {
			return time.Second
		}
	}
	return 0
}
