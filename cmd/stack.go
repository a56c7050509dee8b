package main

import (
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/invest-bench/internal/config"
	"github.com/sells-group/invest-bench/internal/cost"
	"github.com/sells-group/invest-bench/internal/monitoring"
	"github.com/sells-group/invest-bench/internal/resilience"
	"github.com/sells-group/invest-bench/internal/search"
	"github.com/sells-group/invest-bench/pkg/perplexity"
)

// searchStack holds the process-wide search plumbing. Each run gets its own
// search.Client from it so spend is tallied per run while the rate limit and
// breaker stay shared.
type searchStack struct {
	provider perplexity.Client
	limiter  *rate.Limiter
	breaker  *resilience.Breaker
	metrics  *monitoring.Metrics
	calc     *cost.Calculator
}

// newProvider builds the Perplexity client from config.
func newProvider(c *config.Config) (perplexity.Client, error) {
	var opts []perplexity.Option
	if c.Perplexity.BaseURL != "" {
		opts = append(opts, perplexity.WithBaseURL(c.Perplexity.BaseURL))
	}
	return search.NewProvider(c.Perplexity.Key, opts...)
}

func newSearchStack(c *config.Config, provider perplexity.Client, metrics *monitoring.Metrics) *searchStack {
	s := &searchStack{
		provider: provider,
		metrics:  metrics,
		calc:     cost.NewCalculator(c.Pricing),
	}
	if c.Search.RatePerSec > 0 {
		burst := c.Search.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(c.Search.RatePerSec), burst)
	}

	bc := c.Search.Breaker()
	bc.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("search: circuit breaker state change",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	s.breaker = resilience.NewBreaker(bc)
	return s
}

// client returns a search client that counts its calls in tally.
func (s *searchStack) client(tally *cost.Tally) *search.Client {
	return search.New(s.provider,
		search.WithLimiter(s.limiter),
		search.WithBreaker(s.breaker),
		search.WithMetrics(s.metrics),
		search.WithTally(tally),
	)
}

// newTally starts a spend tally priced from config.
func (s *searchStack) newTally() *cost.Tally {
	return cost.NewTally(s.calc)
}
