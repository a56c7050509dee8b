// Package monitoring exposes Prometheus metrics for benchmark runs.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Search call outcomes.
const (
	SearchOK           = "ok"
	SearchError        = "error"
	SearchShortCircuit = "short_circuit"
)

// Evaluation outcomes.
const (
	EvaluationCompleted = "completed"
	EvaluationRejected  = "rejected"
	EvaluationFailed    = "failed"
)

// Metrics holds the collectors for one process. All methods are safe on a
// nil receiver so components can run without metrics in tests.
type Metrics struct {
	SearchCalls   *prometheus.CounterVec
	SearchResults prometheus.Histogram
	Verdicts      *prometheus.CounterVec
	RemoteCalls   *prometheus.CounterVec
	TickerChecks  *prometheus.CounterVec
	Evaluations   *prometheus.CounterVec
	PassRate      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SearchCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "investbench_search_calls_total",
				Help: "Search provider calls by outcome",
			},
			[]string{"outcome"},
		),
		SearchResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "investbench_search_results",
				Help:    "Evidence items returned per successful search",
				Buckets: []float64{0, 1, 2, 3, 5, 8, 12, 20},
			},
		),
		Verdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "investbench_agent_verdicts_total",
				Help: "Research agent verdicts by value",
			},
			[]string{"verdict"},
		),
		RemoteCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "investbench_remote_calls_total",
				Help: "Remote actor invocations by terminal status",
			},
			[]string{"status"},
		),
		TickerChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "investbench_ticker_checks_total",
				Help: "Evaluator ticker checks by result",
			},
			[]string{"result"},
		),
		Evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "investbench_evaluations_total",
				Help: "Evaluation runs by outcome",
			},
			[]string{"outcome"},
		),
		PassRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "investbench_last_pass_rate_percent",
				Help: "Pass rate of the most recent completed evaluation",
			},
		),
	}

	reg.MustRegister(
		m.SearchCalls,
		m.SearchResults,
		m.Verdicts,
		m.RemoteCalls,
		m.TickerChecks,
		m.Evaluations,
		m.PassRate,
	)
	return m
}

// ObserveSearch records one search call and, on success, its result count.
func (m *Metrics) ObserveSearch(outcome string, results int) {
	if m == nil {
		return
	}
	m.SearchCalls.WithLabelValues(outcome).Inc()
	if outcome == SearchOK {
		m.SearchResults.Observe(float64(results))
	}
}

// ObserveVerdict records an agent verdict.
func (m *Metrics) ObserveVerdict(verdict string) {
	if m == nil {
		return
	}
	m.Verdicts.WithLabelValues(verdict).Inc()
}

// ObserveRemoteCall records the terminal status of a remote invocation.
func (m *Metrics) ObserveRemoteCall(status string) {
	if m == nil {
		return
	}
	m.RemoteCalls.WithLabelValues(status).Inc()
}

// ObserveTicker records one scored ticker.
func (m *Metrics) ObserveTicker(pass bool) {
	if m == nil {
		return
	}
	result := "fail"
	if pass {
		result = "pass"
	}
	m.TickerChecks.WithLabelValues(result).Inc()
}

// ObserveEvaluation records an evaluation outcome. The pass rate gauge only
// moves for completed runs.
func (m *Metrics) ObserveEvaluation(outcome string, passRate float64) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(outcome).Inc()
	if outcome == EvaluationCompleted {
		m.PassRate.Set(passRate)
	}
}
