package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// Tavily calls the Tavily search API.
type Tavily struct {
	APIKey string
	// BaseURL overrides the endpoint, e.g. for tests.
	BaseURL string
	// Depth is Tavily's search_depth (basic or advanced).
	Depth   string
	client  *http.Client
	limiter *rate.Limiter
}

func NewTavily(apiKey string) *Tavily {
	return NewTavilyWithClient(apiKey, &http.Client{Timeout: 30 * time.Second})
}

func NewTavilyWithClient(apiKey string, client *http.Client) *Tavily {
	return &Tavily{
		APIKey:  apiKey,
		BaseURL: tavilyEndpoint,
		Depth:   "basic",
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
}

func (t *Tavily) Name() string { return "tavily" }

func (t *Tavily) HasCredentials() bool { return strings.TrimSpace(t.APIKey) != "" }

func (t *Tavily) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if !t.HasCredentials() {
		return nil, ErrMissingCredentials
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]any{
		"query":        query,
		"max_results":  maxResults,
		"search_depth": t.Depth,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.APIKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("tavily http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode tavily response: %w", err)
	}

	results := make([]Result, 0, len(response.Results))
	for _, r := range response.Results {
		results = append(results, Result{Title: r.Title, URL: r.URL, Content: r.Content})
	}
	return results, nil
}
