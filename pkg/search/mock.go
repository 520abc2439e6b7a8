package search

import (
	"context"
	"fmt"
	"net/url"
)

// Mock returns deterministic results derived from the query.
type Mock struct{}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Name() string { return "mock" }

func (m *Mock) HasCredentials() bool { return true }

func (m *Mock) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	n := min(maxResults, 3)

	results := make([]Result, 0, n)
	for i := 1; i <= n; i++ {
		results = append(results, Result{
			Title:   fmt.Sprintf("%s (source %d)", query, i),
			Content: fmt.Sprintf("Mock article %d discussing %s: background, current state and outlook.", i, query),
			URL:     fmt.Sprintf("https://example.com/mock/%d?q=%s", i, url.QueryEscape(query)),
		})
	}
	return results, nil
}
