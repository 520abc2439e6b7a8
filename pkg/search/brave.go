package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave uses the Brave Search API. The key goes in X-Subscription-Token.
type Brave struct {
	APIKey  string
	BaseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func NewBrave(apiKey string) *Brave {
	return NewBraveWithClient(apiKey, &http.Client{Timeout: 10 * time.Second})
}

// NewBraveWithClient paces requests at one per second, Brave's free-tier limit.
func NewBraveWithClient(apiKey string, client *http.Client) *Brave {
	return &Brave{
		APIKey:  apiKey,
		BaseURL: braveEndpoint,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (b *Brave) Name() string { return "brave" }

func (b *Brave) HasCredentials() bool { return strings.TrimSpace(b.APIKey) != "" }

func (b *Brave) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if !b.HasCredentials() {
		return nil, ErrMissingCredentials
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(min(maxResults, 20)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.APIKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave http %d", resp.StatusCode)
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title         string   `json:"title"`
				URL           string   `json:"url"`
				Description   string   `json:"description"`
				ExtraSnippets []string `json:"extra_snippets"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode brave response: %w", err)
	}

	results := make([]Result, 0, len(payload.Web.Results))
	for _, r := range payload.Web.Results {
		content := r.Description
		if len(r.ExtraSnippets) > 0 {
			content += "\n" + strings.Join(r.ExtraSnippets, "\n")
		}
		results = append(results, Result{Title: r.Title, URL: r.URL, Content: content})
	}
	return results, nil
}
