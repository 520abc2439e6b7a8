package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mikeboe/deep-research/pkg/config"
)

const defaultMaxResults = 5

// Gateway routes queries to a backend and falls back to mock results so the
// research loop can always make progress.
type Gateway struct {
	backends       map[string]Backend
	mock           Backend
	defaultBackend string

	Disabled      bool
	MockMode      bool
	MockOnFailure bool
	Logger        *slog.Logger
}

// NewGateway registers the live backends configured in cfg.
func NewGateway(cfg *config.Config) *Gateway {
	g := &Gateway{
		backends:       make(map[string]Backend),
		mock:           NewMock(),
		defaultBackend: cfg.SearchBackend,
		Disabled:       cfg.SearchDisabled,
		MockMode:       cfg.MockMode,
		MockOnFailure:  cfg.SearchMockOnFailure,
		Logger:         slog.Default(),
	}
	g.Register(NewTavily(cfg.TavilyApiKey))
	g.Register(NewBrave(cfg.BraveApiKey))
	g.Register(NewArxiv())
	g.Register(g.mock)
	return g
}

// Register adds or replaces a backend under its name.
func (g *Gateway) Register(b Backend) {
	g.backends[strings.ToLower(b.Name())] = b
}

// Search runs query against the selected backend. Results without a URL or
// content are dropped and at most opts.MaxResults are returned.
func (g *Gateway) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	name := strings.ToLower(strings.TrimSpace(opts.Backend))
	if name == "" {
		name = g.defaultBackend
	}

	if g.Disabled || g.MockMode {
		return g.mockResults(ctx, query, maxResults)
	}

	backend, ok := g.backends[name]
	if !ok {
		return nil, &SearchError{Backend: name, Query: query, Err: ErrUnknownBackend}
	}
	if backend == g.mock {
		return g.mockResults(ctx, query, maxResults)
	}
	if !backend.HasCredentials() {
		g.Logger.Warn("Search backend has no credentials, using mock results", "backend", name)
		return g.mockResults(ctx, query, maxResults)
	}

	results, err := backend.Search(ctx, query, maxResults)
	if err != nil {
		if g.MockOnFailure && ctx.Err() == nil {
			g.Logger.Warn("Search failed, using mock results", "backend", name, "query", query, "error", err)
			return g.mockResults(ctx, query, maxResults)
		}
		return nil, &SearchError{Backend: name, Query: query, Err: err}
	}

	return filter(results, maxResults), nil
}

func (g *Gateway) mockResults(ctx context.Context, query string, maxResults int) ([]Result, error) {
	results, err := g.mock.Search(ctx, query, maxResults)
	if err != nil {
		return nil, &SearchError{Backend: g.mock.Name(), Query: query, Err: err}
	}
	return filter(results, maxResults), nil
}

func filter(results []Result, maxResults int) []Result {
	out := make([]Result, 0, min(len(results), maxResults))
	for _, r := range results {
		if strings.TrimSpace(r.URL) == "" || strings.TrimSpace(r.Content) == "" {
			continue
		}
		out = append(out, r)
		if len(out) == maxResults {
			break
		}
	}
	return out
}
