// Package evaluator is the grading actor. It asks the research agent for
// verdicts, re-checks each one against a later evidence window, and reports
// a pass/fail scorecard.
package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invest-bench/internal/cost"
	"github.com/sells-group/invest-bench/internal/messenger"
	"github.com/sells-group/invest-bench/internal/model"
	"github.com/sells-group/invest-bench/internal/monitoring"
	"github.com/sells-group/invest-bench/internal/search"
	"github.com/sells-group/invest-bench/internal/verdict"
	"github.com/sells-group/invest-bench/pkg/a2a"
)

// SkillID identifies the evaluation skill on the agent card.
const SkillID = "invest_evaluation"

// ArtifactName names the artifact carrying the scorecard.
const ArtifactName = "Result"

// RoleAgent is the participant role of the research agent.
const RoleAgent = "agent"

// RequiredRoles lists the participants every request must name.
var RequiredRoles = []string{RoleAgent}

// DefaultVerifyQuery is the verification query used when the config has no
// template.
func DefaultVerifyQuery(ticker string) string {
	return fmt.Sprintf("%s share price performance December 2025 30%% increase", ticker)
}

// Invoker is the remote-call surface the evaluator needs. *messenger.Messenger
// implements it.
type Invoker interface {
	Invoke(ctx context.Context, message, endpoint string, newConversation bool) (*messenger.Reply, error)
	Reset()
}

// Evaluator runs one evaluation. Build a new Evaluator, with its own
// Invoker, per run.
type Evaluator struct {
	runID    string
	invoker  Invoker
	searcher search.Searcher
	defaults model.EvalConfig
	metrics  *monitoring.Metrics
	tally    *cost.Tally
}

// Option configures the evaluator.
type Option func(*Evaluator)

// WithMetrics records ticker checks and evaluation outcomes in m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(e *Evaluator) {
		e.metrics = m
	}
}

// WithTally reports the run's estimated search spend from t on completion.
func WithTally(t *cost.Tally) Option {
	return func(e *Evaluator) {
		e.tally = t
	}
}

// WithDefaults replaces DefaultEvalConfig as the base that request configs
// are merged onto.
func WithDefaults(cfg model.EvalConfig) Option {
	return func(e *Evaluator) {
		e.defaults = cfg
	}
}

// New creates an evaluator with a fresh run id.
func New(invoker Invoker, searcher search.Searcher, opts ...Option) *Evaluator {
	e := &Evaluator{
		runID:    model.NewRunID(),
		invoker:  invoker,
		searcher: searcher,
		defaults: model.DefaultEvalConfig(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// RunID returns the evaluator's run id.
func (e *Evaluator) RunID() string {
	return e.runID
}

// Execute handles one message/send: the message text must be an EvalRequest.
// Remote failures are returned so the host marks the task failed.
func (e *Evaluator) Execute(ctx context.Context, msg a2a.Message, u *a2a.TaskUpdater) error {
	log := zap.L().With(zap.String("run_id", e.runID))

	req, err := model.ParseEvalRequest(msg.Text())
	if err != nil {
		return e.reject(u, "Invalid request: "+err.Error())
	}
	if missing := MissingRoles(req.Participants); len(missing) > 0 {
		return e.reject(u, fmt.Sprintf("Missing roles: %v", missing))
	}

	cfg := model.MergeEvalConfig(e.defaults, req.Config)
	if err := cfg.Workload().Validate(); err != nil {
		return e.reject(u, "Invalid request: "+err.Error())
	}

	if err := u.UpdateStatus(a2a.TaskStateWorking, "Contacting research agent"); err != nil {
		return err
	}

	card, err := e.Evaluate(ctx, req.Participants[RoleAgent], cfg)
	if err != nil {
		e.metrics.ObserveEvaluation(monitoring.EvaluationFailed, 0)
		log.Error("evaluator: evaluation failed", zap.Error(err))
		return err
	}

	data, err := a2a.NewDataPart(card)
	if err != nil {
		return eris.Wrap(err, "evaluator: encode scorecard")
	}
	if err := u.AddArtifact(ArtifactName, a2a.TextPart(strings.Join(card.Summary, "\n")), data); err != nil {
		return err
	}

	e.invoker.Reset()
	return u.Complete()
}

// Evaluate asks the agent at agentURL for decisions on cfg's workload and
// scores each decision against the verification window.
func (e *Evaluator) Evaluate(ctx context.Context, agentURL string, cfg model.EvalConfig) (model.Scorecard, error) {
	log := zap.L().With(zap.String("run_id", e.runID), zap.String("endpoint", agentURL))

	raw, err := json.Marshal(cfg.Workload())
	if err != nil {
		return model.Scorecard{}, eris.Wrap(err, "evaluator: marshal workload")
	}

	log.Info("evaluator: contacting research agent", zap.Strings("tickers", cfg.Tickers))
	reply, err := e.invoker.Invoke(ctx, string(raw), agentURL, true)
	if err != nil {
		return model.Scorecard{}, eris.Wrap(err, "evaluator: invoke research agent")
	}

	decisions := ExtractDecisions(reply)
	log.Info("evaluator: decisions received", zap.Int("decisions", len(decisions)))

	results := make(map[string]model.TickerResult, len(decisions))
	var order []string
	limits := cfg.Limits()
	for _, d := range decisions {
		if d.Ticker == "" {
			continue
		}
		if !d.Verdict.Valid() {
			log.Warn("evaluator: unrecognized verdict, scoring as fail",
				zap.String("ticker", d.Ticker),
				zap.String("agent_verdict", string(d.Verdict)),
			)
		}

		query := model.Query(cfg.BaseQuery, d.Ticker, DefaultVerifyQuery)
		res := e.searcher.Search(ctx, query, cfg.VerifyWindow, limits)
		truth := verdict.InferTruth(verdict.FromEvidence(search.Evidence(res.Results, 0)), cfg.TargetIncreasePct)
		pass := Pass(d.Verdict, truth.Increase)
		e.metrics.ObserveTicker(pass)

		log.Info("evaluator: ticker checked",
			zap.String("ticker", d.Ticker),
			zap.String("agent_verdict", string(d.Verdict)),
			zap.Bool("truth_increase", truth.Increase),
			zap.Int("results", len(res.Results)),
			zap.Bool("pass", pass),
		)

		if _, seen := results[d.Ticker]; !seen {
			order = append(order, d.Ticker)
		}
		results[d.Ticker] = model.TickerResult{
			AgentVerdict:    d.Verdict,
			TruthIncrease:   truth.Increase,
			Rationale:       truth.Rationale,
			AgentConfidence: d.Confidence,
			EvidenceChecked: len(res.Results),
			Pass:            pass,
		}
	}

	card := model.Scorecard{RunID: e.runID, TickerResults: results}
	passed, total := card.Passed()
	rate := model.PassRate(passed, total)
	card.Summary = Summary(e.runID, order, passed, total)

	e.metrics.ObserveEvaluation(monitoring.EvaluationCompleted, rate)
	queries := e.tally.Queries()
	log.Info("evaluator: run complete",
		zap.Int("passed", passed),
		zap.Int("total", total),
		zap.Float64("pass_rate", rate),
		zap.Int64("search_queries", queries),
		zap.Float64("estimated_search_usd", e.tally.USD(queries)),
	)
	return card, nil
}

func (e *Evaluator) reject(u *a2a.TaskUpdater, reason string) error {
	e.metrics.ObserveEvaluation(monitoring.EvaluationRejected, 0)
	zap.L().Info("evaluator: rejected request", zap.String("run_id", e.runID), zap.String("reason", reason))
	return u.Reject(reason)
}

// MissingRoles returns the required roles absent from participants, sorted.
func MissingRoles(participants map[string]string) []string {
	var missing []string
	for _, role := range RequiredRoles {
		if _, ok := participants[role]; !ok {
			missing = append(missing, role)
		}
	}
	sort.Strings(missing)
	return missing
}

// Pass scores one ticker. An increase call must be confirmed by the truth
// check; no_increase and unknown pass only when it is not. Any other verdict
// string fails.
func Pass(v model.Verdict, truthIncrease bool) bool {
	switch v {
	case model.VerdictIncrease:
		return truthIncrease
	case model.VerdictNoIncrease, model.VerdictUnknown:
		return !truthIncrease
	}
	return false
}

// Summary renders the human-readable result lines.
func Summary(runID string, tickers []string, passed, total int) []string {
	names := "none"
	if len(tickers) > 0 {
		names = strings.Join(tickers, ", ")
	}
	return []string{
		fmt.Sprintf("Invest benchmark (run %s)", runID),
		fmt.Sprintf("Tickers: %s", names),
		fmt.Sprintf("Pass rate: %.1f%% (%d/%d)", model.PassRate(passed, total), passed, total),
	}
}

// Card describes the evaluation actor published at url.
func Card(url string) a2a.AgentCard {
	return a2a.AgentCard{
		Name:               "invest_evaluator",
		Description:        "Evaluator that double-checks predictions using December 2025 evidence.",
		URL:                url,
		Version:            "1.0.0",
		ProtocolVersion:    a2a.ProtocolVersion,
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Skills: []a2a.AgentSkill{{
			ID:          SkillID,
			Name:        "Invest Benchmark Evaluation",
			Description: "Evaluates whether the research agent correctly predicts 30%+ price moves.",
			Tags:        []string{"benchmark", "evaluation", "investing"},
			Examples: []string{
				`{"participants": {"agent": "http://localhost:9119"}, "config": {"tickers": ["RR"]}}`,
			},
		}},
	}
}
