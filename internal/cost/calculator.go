// Package cost estimates search provider spend for a benchmark run.
package cost

import "sync/atomic"

// Rates holds per-provider pricing configuration.
type Rates struct {
	Perplexity PerplexityRate `yaml:"perplexity" mapstructure:"perplexity"`
}

// PerplexityRate holds Perplexity Search pricing.
type PerplexityRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Perplexity: PerplexityRate{PerQuery: 0.005},
	}
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// SearchQueries returns the cost of n Perplexity search calls. Failed calls
// are billed the same as successful ones.
func (c *Calculator) SearchQueries(n int64) float64 {
	if n <= 0 {
		return 0
	}
	return float64(n) * c.rates.Perplexity.PerQuery
}

// Tally counts provider calls so a run can report its estimated spend.
type Tally struct {
	calc    *Calculator
	queries atomic.Int64
}

// NewTally creates an empty tally priced by calc.
func NewTally(calc *Calculator) *Tally {
	return &Tally{calc: calc}
}

// AddQuery records one search provider call.
func (t *Tally) AddQuery() {
	if t == nil {
		return
	}
	t.queries.Add(1)
}

// Queries returns the number of recorded calls.
func (t *Tally) Queries() int64 {
	if t == nil {
		return 0
	}
	return t.queries.Load()
}

// USD returns the estimated spend of n calls.
func (t *Tally) USD(n int64) float64 {
	if t == nil {
		return 0
	}
	return t.calc.SearchQueries(n)
}
