package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/parser"
	"github.com/mikeboe/deep-research/pkg/retry"
	"github.com/mikeboe/deep-research/pkg/search"
)

const (
	defaultLanguage      = "English"
	defaultMaxIterations = 3
	defaultMaxResults    = 5
	maxQueriesPerRound   = 3
)

// Searcher is the part of the search gateway the engine depends on.
type Searcher interface {
	Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error)
}

// Engine runs research sessions. It holds no per-session state and may be
// shared across concurrent runs.
type Engine struct {
	Config *config.Config
	// Providers resolves a provider for a kind. Defaults to clients.New.
	Providers     func(ctx context.Context, kind clients.ProviderKind) (clients.Provider, error)
	Search        Searcher
	Logger        *slog.Logger
	OnStateUpdate func(Snapshot)
}

func NewEngine(cfg *config.Config) *Engine {
	return &Engine{
		Config: cfg,
		Providers: func(ctx context.Context, kind clients.ProviderKind) (clients.Provider, error) {
			return clients.New(ctx, kind, cfg)
		},
		Search: search.NewGateway(cfg),
		Logger: slog.Default(),
	}
}

// RunResearch runs a single session with a fresh engine.
func RunResearch(ctx context.Context, cfg *config.Config, req Request) string {
	return NewEngine(cfg).Run(ctx, req)
}

// run bundles what one session needs to call its provider.
type run struct {
	req      Request
	session  *Session
	provider clients.Provider
	kind     clients.ProviderKind
	model    string
	fallback string
}

// Run executes a research session and returns the final report. It never
// returns an empty string; failures are reported in the returned text.
func (e *Engine) Run(ctx context.Context, req Request) (report string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger().Error("Research run panicked", "panic", r)
			report = errorReport(req.Topic, fmt.Errorf("unexpected failure: %v", r))
		}
	}()

	req = e.withDefaults(req)
	if strings.TrimSpace(req.Topic) == "" {
		return errorReport(req.Topic, errors.New("topic is empty"))
	}

	kind, err := clients.ParseProviderKind(req.Provider)
	if err != nil {
		return errorReport(req.Topic, err)
	}
	provider, err := e.Providers(ctx, kind)
	if err != nil {
		e.logger().Error("Failed to create provider", "provider", kind, "error", err)
		return errorReport(req.Topic, err)
	}

	model := req.Model
	if model == "" {
		model = clients.DefaultModel(kind, e.Config)
	}
	r := &run{
		req:      req,
		session:  newSession(req.Topic, req.Language, kind, req.MaxIterations),
		provider: provider,
		kind:     kind,
		model:    model,
		fallback: clients.FallbackModel(kind, e.Config),
	}

	e.logger().Info("Starting research", "topic", req.Topic, "provider", kind, "model", model,
		"max_iterations", req.MaxIterations, "parallel", req.Options.Parallel)

	loopCtx := ctx
	timeout := req.Options.Timeout
	if timeout <= 0 {
		timeout = e.Config.SessionTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		loopCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	e.transition(r.session, StateGeneratingQueries)
	queries := e.generateQueries(loopCtx, r)

	for {
		e.round(loopCtx, r, queries)

		if r.session.CurrentIteration >= r.session.MaxIterations {
			break
		}
		if loopCtx.Err() != nil {
			e.logger().Warn("Research deadline reached, finalizing with current learnings", "iteration", r.session.CurrentIteration)
			break
		}

		e.transition(r.session, StateReviewing)
		queries = e.review(loopCtx, r)
		if len(queries) == 0 {
			e.logger().Info("Review found no further queries", "iteration", r.session.CurrentIteration)
			break
		}
		r.session.nextIteration()
		e.logger().Info("Starting iteration", "iteration", r.session.CurrentIteration, "max", r.session.MaxIterations)
	}

	e.transition(r.session, StateFinalizingReport)
	report = e.finalize(ctx, r)
	e.transition(r.session, StateDone)

	e.logger().Info("Final report generated", "length", len(report), "learnings", len(r.session.Learnings()))
	return report
}

func (e *Engine) withDefaults(req Request) Request {
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Language == "" {
		req.Language = defaultLanguage
	}
	if req.Provider == "" {
		req.Provider = e.Config.DefaultProvider
	}
	if req.SearchBackend == "" {
		req.SearchBackend = e.Config.SearchBackend
	}
	if req.MaxIterations < 1 {
		req.MaxIterations = defaultMaxIterations
	}
	if req.Options.MaxResultsPerQuery <= 0 {
		req.Options.MaxResultsPerQuery = defaultMaxResults
	}
	return req
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Engine) transition(s *Session, st State) {
	snap := s.setState(st)
	e.logger().Debug("State changed", "state", st.String(), "iteration", snap.CurrentIteration)
	if e.OnStateUpdate != nil {
		e.OnStateUpdate(snap)
	}
}

// invoke calls the provider through the retry policy, bounding each attempt
// by the configured call timeout.
func (e *Engine) invoke(ctx context.Context, r *run, purpose clients.Purpose, prompt string) (string, error) {
	policy := retry.DefaultPolicy()
	policy.MaxRetries = e.Config.MaxRetries
	policy.InitialDelay = e.Config.RetryInitialDelay
	policy.MaxDelay = e.Config.RetryMaxDelay
	policy.FallbackModel = r.fallback
	policy.Logger = e.logger()

	capability := clients.Capability{
		Kind:        r.kind,
		Model:       r.model,
		Temperature: temperature(purpose),
		Purpose:     purpose,
	}
	if purpose == clients.PurposeReport {
		capability.MaxOutputTokens = 8192
	}

	start := time.Now()
	out, err := retry.Do(ctx, policy, r.model, func(ctx context.Context, a retry.Attempt) (string, error) {
		callCtx, cancel := withTimeout(ctx, e.Config.CallTimeout)
		defer cancel()
		return r.provider.Invoke(callCtx, capability.WithModel(a.Model), prompt)
	})
	if err != nil {
		return "", err
	}
	e.logger().Debug("Provider call finished", "purpose", purpose, "duration", time.Since(start))
	return out, nil
}

func temperature(p clients.Purpose) float64 {
	switch p {
	case clients.PurposeQueries, clients.PurposeReview:
		return 0.7
	case clients.PurposeSynthesis:
		return 0.3
	default:
		return 0.5
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func (e *Engine) generateQueries(ctx context.Context, r *run) []Query {
	out, err := e.invoke(ctx, r, clients.PurposeQueries, queriesPrompt(r.req, maxQueriesPerRound))
	if err != nil {
		e.logger().Error("Query generation failed, using default queries", "error", err)
		return defaultQueries(r.req.Topic)
	}

	queries := cleanQueries(parser.ParseStructured(out, []Query(nil)), nil)
	if len(queries) == 0 {
		e.logger().Warn("No queries parsed, using default queries")
		return defaultQueries(r.req.Topic)
	}
	e.logger().Info("Generated queries", "queries", queryStrings(queries))
	return queries
}

// defaultQueries derives queries mechanically from the topic.
func defaultQueries(topic string) []Query {
	return []Query{
		{Query: topic + " overview", ResearchGoal: "Establish the core concepts and current state of " + topic},
		{Query: topic + " recent developments", ResearchGoal: "Find the latest results and news about " + topic},
		{Query: topic + " challenges and limitations", ResearchGoal: "Identify open problems and criticism of " + topic},
	}
}

// cleanQueries drops blank and duplicate queries and those skip reports as
// already run, keeping at most maxQueriesPerRound.
func cleanQueries(in []Query, skip func(string) bool) []Query {
	seen := make(map[string]bool)
	var out []Query
	for _, q := range in {
		q.Query = strings.TrimSpace(q.Query)
		key := strings.ToLower(q.Query)
		if q.Query == "" || seen[key] || (skip != nil && skip(q.Query)) {
			continue
		}
		seen[key] = true
		out = append(out, q)
		if len(out) == maxQueriesPerRound {
			break
		}
	}
	return out
}

func queryStrings(qs []Query) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.Query
	}
	return out
}

func (e *Engine) limit(r *run) int {
	if r.req.Options.Parallel && e.Config.ParallelLimit > 1 {
		return e.Config.ParallelLimit
	}
	return 1
}

// round searches every query and synthesizes the results into learnings.
// Each query is isolated: its failures never affect its siblings.
func (e *Engine) round(ctx context.Context, r *run, queries []Query) {
	r.session.recordQueries(queries)
	e.transition(r.session, StateSearching)

	results := make([][]search.Result, len(queries))
	g := new(errgroup.Group)
	g.SetLimit(e.limit(r))
	for i, q := range queries {
		g.Go(func() error {
			defer e.recoverTask("search", q)
			results[i] = e.search(ctx, r, q)
			return nil
		})
	}
	_ = g.Wait()

	e.transition(r.session, StateSynthesizing)

	g = new(errgroup.Group)
	g.SetLimit(e.limit(r))
	for i, q := range queries {
		if len(results[i]) == 0 {
			e.logger().Info("No search results, skipping synthesis", "query", q.Query)
			continue
		}
		g.Go(func() error {
			defer e.recoverTask("synthesis", q)
			r.session.AddLearnings(e.synthesize(ctx, r, q, results[i])...)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) recoverTask(phase string, q Query) {
	if rec := recover(); rec != nil {
		e.logger().Error("Task panicked", "phase", phase, "query", q.Query, "panic", rec)
	}
}

func (e *Engine) search(ctx context.Context, r *run, q Query) []search.Result {
	if ctx.Err() != nil {
		return nil
	}
	results, err := e.Search.Search(ctx, q.Query, search.Options{
		Backend:    r.req.SearchBackend,
		MaxResults: r.req.Options.MaxResultsPerQuery,
	})
	if err != nil {
		e.logger().Error("Search failed", "query", q.Query, "error", err)
		return nil
	}

	urls := make([]string, 0, len(results))
	for _, res := range results {
		urls = append(urls, res.URL)
	}
	r.session.AddSources(urls...)
	e.logger().Info("Search completed", "query", q.Query, "count", len(results))
	return results
}

func (e *Engine) synthesize(ctx context.Context, r *run, q Query, results []search.Result) []string {
	out, err := e.invoke(ctx, r, clients.PurposeSynthesis, synthesisPrompt(r.req, q, results))
	if err == nil {
		if findings := parseFindings(out); len(findings) > 0 {
			e.logger().Info("Synthesized findings", "query", q.Query, "count", len(findings))
			return findings
		}
		err = errors.New("no findings in response")
	}

	if ctx.Err() != nil {
		e.logger().Warn("Synthesis abandoned at deadline", "query", q.Query)
		return nil
	}
	e.logger().Error("Synthesis failed, recording fallback finding", "query", q.Query, "error", err)
	return []string{fallbackFinding(q)}
}

// review asks whether more research is needed. A failed review yields no
// queries, which ends the loop.
func (e *Engine) review(ctx context.Context, r *run) []Query {
	out, err := e.invoke(ctx, r, clients.PurposeReview, reviewPrompt(r.req, r.session, r.session.Learnings()))
	if err != nil {
		e.logger().Error("Review failed, finalizing", "error", err)
		return nil
	}

	queries := cleanQueries(parser.ParseStructured(out, []Query(nil)), r.session.ranQuery)
	if len(queries) > 0 {
		r.session.addFollowUps(queries)
		e.logger().Info("Review requested more research", "queries", queryStrings(queries))
	}
	return queries
}

// finalize writes the report. It runs on a context detached from the
// session deadline so an expired session still gets a report.
func (e *Engine) finalize(ctx context.Context, r *run) string {
	learnings := r.session.Learnings()

	reportCtx, cancel := withTimeout(context.WithoutCancel(ctx), e.Config.ReportTimeout)
	defer cancel()

	out, err := e.invoke(reportCtx, r, clients.PurposeReport, reportPrompt(r.req, learnings, r.session.FollowUps()))
	if err == nil && strings.TrimSpace(out) == "" {
		err = errors.New("empty report")
	}
	if err != nil {
		e.logger().Error("Report generation failed, returning findings", "error", err)
		out = degradedReport(r.req.Topic, learnings, err)
	}
	return appendSources(out, r.session.Sources())
}
