package cost

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchQueries(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(Rates{Perplexity: PerplexityRate{PerQuery: 0.005}})

	tests := []struct {
		name string
		n    int64
		want float64
	}{
		{name: "none", n: 0, want: 0},
		{name: "negative", n: -3, want: 0},
		{name: "one", n: 1, want: 0.005},
		{name: "agent and evaluator for one ticker", n: 2, want: 0.01},
		{name: "many", n: 1000, want: 5.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, calc.SearchQueries(tt.n), 1e-9)
		})
	}
}

func TestDefaultRates(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 0.005, DefaultRates().Perplexity.PerQuery, 1e-9)
}

func TestTally(t *testing.T) {
	t.Parallel()
	tally := NewTally(NewCalculator(DefaultRates()))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tally.AddQuery()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), tally.Queries())
	assert.InDelta(t, 0.05, tally.USD(tally.Queries()), 1e-9)
}

func TestNilTally(t *testing.T) {
	t.Parallel()
	var tally *Tally

	tally.AddQuery()
	assert.Equal(t, int64(0), tally.Queries())
	assert.InDelta(t, 0.0, tally.USD(5), 1e-9)
}
