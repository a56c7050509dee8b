// Package agent is the research actor. For each ticker in a workload it
// searches the research window and turns the evidence into a verdict.
package agent

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invest-bench/internal/model"
	"github.com/sells-group/invest-bench/internal/monitoring"
	"github.com/sells-group/invest-bench/internal/search"
	"github.com/sells-group/invest-bench/internal/verdict"
	"github.com/sells-group/invest-bench/pkg/a2a"
)

// SkillID identifies the research skill on the agent card.
const SkillID = "invest_research"

// ArtifactName names the artifact carrying the AgentResponse.
const ArtifactName = "Decisions"

// DefaultQuery is the research query used when the workload has no template.
func DefaultQuery(ticker string) string {
	return fmt.Sprintf("%s stock fundamentals outlook 2025 profitability backlog order intake", ticker)
}

// Agent runs one research workload. Build a new Agent per run.
type Agent struct {
	runID    string
	searcher search.Searcher
	metrics  *monitoring.Metrics
}

// Option configures the agent.
type Option func(*Agent)

// WithMetrics records verdicts in m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(a *Agent) {
		a.metrics = m
	}
}

// New creates an agent with a fresh run id.
func New(searcher search.Searcher, opts ...Option) *Agent {
	a := &Agent{
		runID:    model.NewRunID(),
		searcher: searcher,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// RunID returns the agent's run id.
func (a *Agent) RunID() string {
	return a.runID
}

// Execute handles one message/send: the message text must be a workload.
func (a *Agent) Execute(ctx context.Context, msg a2a.Message, u *a2a.TaskUpdater) error {
	w, err := model.ParseWorkload(msg.Text())
	if err != nil {
		zap.L().Info("agent: rejected request", zap.String("run_id", a.runID), zap.Error(err))
		return u.Reject("Invalid request: " + err.Error())
	}

	if err := u.UpdateStatus(a2a.TaskStateWorking, "Running analysis"); err != nil {
		return err
	}

	resp := a.Research(ctx, w)

	part, err := a2a.NewDataPart(resp)
	if err != nil {
		return eris.Wrap(err, "agent: encode decisions")
	}
	if err := u.AddArtifact(ArtifactName, part); err != nil {
		return err
	}
	return u.Complete()
}

// Research evaluates every ticker in w, in order, against the research window.
func (a *Agent) Research(ctx context.Context, w model.Workload) model.AgentResponse {
	log := zap.L().With(zap.String("run_id", a.runID))
	window := w.Window()
	limits := w.Limits()

	log.Info("agent: run start",
		zap.Strings("tickers", w.Tickers),
		zap.String("target_date", w.TargetDate),
		zap.Float64("target_increase_pct", w.TargetIncreasePct),
		zap.String("window_start", window.Start),
		zap.String("window_end", window.End),
	)

	decisions := make([]model.Decision, 0, len(w.Tickers))
	for _, ticker := range w.Tickers {
		query := model.Query(w.BaseQuery, ticker, DefaultQuery)
		res := a.searcher.Search(ctx, query, window, limits)
		log.Info("agent: ticker searched",
			zap.String("ticker", ticker),
			zap.String("query", query),
			zap.Int("results", len(res.Results)),
		)

		all := search.Evidence(res.Results, 0)
		outcome := verdict.InferOutlook(verdict.FromEvidence(all), w.TargetIncreasePct)
		a.metrics.ObserveVerdict(string(outcome.Verdict))

		decisions = append(decisions, model.Decision{
			Ticker:     ticker,
			Verdict:    outcome.Verdict,
			Confidence: outcome.Confidence,
			Rationale:  outcome.Rationale,
			Evidence:   search.Evidence(res.Results, model.MaxDecisionEvidence),
		})
	}

	log.Info("agent: run complete",
		zap.Strings("tickers", w.Tickers),
		zap.Int("decisions", len(decisions)),
	)

	return model.AgentResponse{
		RunID:             a.runID,
		TargetDate:        w.TargetDate,
		TargetIncreasePct: w.TargetIncreasePct,
		Decisions:         decisions,
	}
}

// Card describes the research actor published at url.
func Card(url string) a2a.AgentCard {
	return a2a.AgentCard{
		Name:               "invest_agent",
		Description:        "Research agent that projects 30%+ share price moves from windowed web search evidence.",
		URL:                url,
		Version:            "1.0.0",
		ProtocolVersion:    a2a.ProtocolVersion,
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Skills: []a2a.AgentSkill{{
			ID:          SkillID,
			Name:        "Invest Research",
			Description: "Projects whether each ticker will rise by the target percentage using research-window evidence.",
			Tags:        []string{"research", "investing"},
			Examples: []string{
				`{"tickers": ["RR"], "target_date": "12/31/2025", "research_window": {"start": "06/01/2025", "end": "09/30/2025"}}`,
			},
		}},
	}
}
