package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const arxivEndpoint = "https://export.arxiv.org/api/query"

// arxivEntry holds one entry of the arXiv Atom feed.
type arxivEntry struct {
	ID        string      `xml:"id"`
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	Link      []arxivLink `xml:"link"`
}

type arxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
	Rel  string `xml:"rel,attr"`
}

type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entry   []arxivEntry `xml:"entry"`
}

// Arxiv searches the public arXiv API. It needs no credentials.
type Arxiv struct {
	BaseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewArxiv paces requests at one every three seconds as arXiv asks of API users.
func NewArxiv() *Arxiv {
	return &Arxiv{
		BaseURL: arxivEndpoint,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
	}
}

func (a *Arxiv) Name() string { return "arxiv" }

func (a *Arxiv) HasCredentials() bool { return true }

func (a *Arxiv) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Add("search_query", "all:"+query)
	params.Add("max_results", strconv.Itoa(maxResults))
	params.Add("start", "0")
	apiURL := a.BaseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	slog.Debug("arXiv request made", "url", apiURL, "status", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("API returned non-200 status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal XML: %w", err)
	}

	results := make([]Result, 0, len(feed.Entry))
	for _, entry := range feed.Entry {
		results = append(results, Result{
			Title:   collapseSpace(entry.Title),
			Content: collapseSpace(entry.Summary),
			URL:     entry.link(),
		})
	}
	return results, nil
}

// link prefers the abstract page, then the PDF, then the entry id.
func (e arxivEntry) link() string {
	var pdf string
	for _, l := range e.Link {
		if l.Rel == "alternate" && l.Href != "" {
			return l.Href
		}
		if l.Type == "application/pdf" && pdf == "" {
			pdf = l.Href
		}
	}
	if pdf != "" {
		return pdf
	}
	return strings.TrimSpace(e.ID)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
