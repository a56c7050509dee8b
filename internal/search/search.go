// Package search runs windowed evidence searches against the web search
// provider. Provider failures never surface as errors: they come back as an
// empty result set with an error string so verdicts degrade to "unknown".
package search

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/invest-bench/internal/cost"
	"github.com/sells-group/invest-bench/internal/model"
	"github.com/sells-group/invest-bench/internal/monitoring"
	"github.com/sells-group/invest-bench/internal/resilience"
	"github.com/sells-group/invest-bench/pkg/perplexity"
)

// ErrMissingCredential is returned when no provider API key is configured.
var ErrMissingCredential = eris.New("search: PERPLEXITY_API_KEY is not set")

// Result is the outcome of one search. Error is set only when the provider
// call failed, in which case Results is empty.
type Result struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Error   string         `json:"error,omitempty"`
}

// SearchResult is a provider hit normalized to the evidence shape.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Date        string `json:"date"`
	LastUpdated string `json:"last_updated"`
	Snippet     string `json:"snippet"`
}

// Evidence drops the provider-only fields.
func (r SearchResult) Evidence() model.Evidence {
	return model.Evidence{Title: r.Title, URL: r.URL, Date: r.Date, Snippet: r.Snippet}
}

// Searcher is what the research agent and the evaluator depend on.
type Searcher interface {
	Search(ctx context.Context, query string, window model.DateWindow, limits model.SearchLimits) Result
}

// Client implements Searcher over the Perplexity Search API.
type Client struct {
	provider perplexity.Client
	limiter  *rate.Limiter
	breaker  *resilience.Breaker
	metrics  *monitoring.Metrics
	tally    *cost.Tally
}

// Option configures the client.
type Option func(*Client)

// WithLimiter throttles provider calls with l. Clients built per run can
// share one limiter. A nil l disables limiting.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithBreaker guards provider calls with b.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// WithMetrics records every call in m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTally counts provider calls toward the run's estimated spend.
func WithTally(t *cost.Tally) Option {
	return func(c *Client) {
		c.tally = t
	}
}

// NewProvider builds the Perplexity client. A missing apiKey is a fatal
// configuration error raised before any call is attempted.
func NewProvider(apiKey string, opts ...perplexity.Option) (perplexity.Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingCredential
	}
	return perplexity.NewClient(apiKey, opts...), nil
}

// New wraps an existing provider client.
func New(provider perplexity.Client, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		breaker:  resilience.NewBreaker(resilience.BreakerConfig{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Search queries the provider within window. Ordering is the provider's; no
// re-ranking or client-side truncation is applied.
func (c *Client) Search(ctx context.Context, query string, window model.DateWindow, limits model.SearchLimits) Result {
	log := zap.L().With(zap.String("query", query))

	req := perplexity.SearchRequest{
		Query:                  query,
		MaxResults:             limits.MaxResults,
		MaxTokens:              limits.MaxTokens,
		MaxTokensPerPage:       limits.MaxTokensPerPage,
		SearchAfterDateFilter:  window.Start,
		SearchBeforeDateFilter: window.End,
		Country:                limits.Country,
	}

	resp, err := resilience.Guard(ctx, c.breaker, func(ctx context.Context) (*perplexity.SearchResponse, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "search: rate limit wait")
			}
		}
		c.tally.AddQuery()
		return c.provider.Search(ctx, req)
	})
	if err != nil {
		outcome := monitoring.SearchError
		if eris.Is(err, resilience.ErrCircuitOpen) {
			outcome = monitoring.SearchShortCircuit
		}
		c.metrics.ObserveSearch(outcome, 0)
		log.Warn("search: provider call failed", zap.String("outcome", outcome), zap.Error(err))
		return Result{Query: query, Results: []SearchResult{}, Error: err.Error()}
	}

	if resp == nil {
		resp = &perplexity.SearchResponse{}
	}
	out := make([]SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, SearchResult{
			Title:       r.Title,
			URL:         r.URL,
			Date:        r.Date,
			LastUpdated: r.LastUpdated,
			Snippet:     r.Snippet,
		})
	}
	c.metrics.ObserveSearch(monitoring.SearchOK, len(out))
	log.Debug("search: complete", zap.Int("results", len(out)))

	return Result{Query: query, Results: out}
}

// Evidence converts the first n results (all when n <= 0) to Evidence.
func Evidence(results []SearchResult, n int) []model.Evidence {
	if n <= 0 || n > len(results) {
		n = len(results)
	}
	out := make([]model.Evidence, 0, n)
	for _, r := range results[:n] {
		out = append(out, r.Evidence())
	}
	return out
}
