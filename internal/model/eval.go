package model

import (
	"encoding/json"
	"net/url"
	"sort"

	"github.com/rotisserie/eris"
)

// EvalConfig is the evaluator's fully resolved run configuration.
type EvalConfig struct {
	Tickers           []string   `json:"tickers"`
	TargetDate        string     `json:"target_date"`
	TargetIncreasePct float64    `json:"target_increase_pct"`
	ResearchWindow    DateWindow `json:"research_window"`
	VerifyWindow      DateWindow `json:"verify_window"`
	BaseQuery         *string    `json:"base_query"`
	MaxResults        int        `json:"max_results"`
	MaxTokens         int        `json:"max_tokens"`
	MaxTokensPerPage  int        `json:"max_tokens_per_page"`
	Country           *string    `json:"country"`
}

// DefaultEvalConfig returns the baked-in evaluation so an empty request
// config is still runnable.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		Tickers:           []string{"RR"},
		TargetDate:        "12/31/2025",
		TargetIncreasePct: DefaultTargetIncreasePct,
		ResearchWindow:    DateWindow{Start: "06/01/2025", End: "09/30/2025"},
		VerifyWindow:      DateWindow{Start: "12/01/2025", End: "12/31/2025"},
		MaxResults:        DefaultMaxResults,
		MaxTokens:         DefaultMaxTokens,
		MaxTokensPerPage:  DefaultMaxTokensPerPage,
	}
}

// EvalConfigOverride is a partial EvalConfig; nil fields keep the default.
type EvalConfigOverride struct {
	Tickers           []string    `json:"tickers,omitempty" yaml:"tickers,omitempty"`
	TargetDate        *string     `json:"target_date,omitempty" yaml:"target_date,omitempty"`
	TargetIncreasePct *float64    `json:"target_increase_pct,omitempty" yaml:"target_increase_pct,omitempty"`
	ResearchWindow    *DateWindow `json:"research_window,omitempty" yaml:"research_window,omitempty"`
	VerifyWindow      *DateWindow `json:"verify_window,omitempty" yaml:"verify_window,omitempty"`
	BaseQuery         *string     `json:"base_query,omitempty" yaml:"base_query,omitempty"`
	MaxResults        *int        `json:"max_results,omitempty" yaml:"max_results,omitempty"`
	MaxTokens         *int        `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	MaxTokensPerPage  *int        `json:"max_tokens_per_page,omitempty" yaml:"max_tokens_per_page,omitempty"`
	Country           *string     `json:"country,omitempty" yaml:"country,omitempty"`
}

// MergeEvalConfig overlays o onto defaults field by field.
func MergeEvalConfig(defaults EvalConfig, o EvalConfigOverride) EvalConfig {
	cfg := defaults
	cfg.Tickers = append([]string(nil), defaults.Tickers...)
	if o.Tickers != nil {
		cfg.Tickers = append([]string(nil), o.Tickers...)
	}
	if o.TargetDate != nil {
		cfg.TargetDate = *o.TargetDate
	}
	if o.TargetIncreasePct != nil {
		cfg.TargetIncreasePct = *o.TargetIncreasePct
	}
	if o.ResearchWindow != nil {
		cfg.ResearchWindow = *o.ResearchWindow
	}
	if o.VerifyWindow != nil {
		cfg.VerifyWindow = *o.VerifyWindow
	}
	if o.BaseQuery != nil {
		cfg.BaseQuery = o.BaseQuery
	}
	if o.MaxResults != nil {
		cfg.MaxResults = *o.MaxResults
	}
	if o.MaxTokens != nil {
		cfg.MaxTokens = *o.MaxTokens
	}
	if o.MaxTokensPerPage != nil {
		cfg.MaxTokensPerPage = *o.MaxTokensPerPage
	}
	if o.Country != nil {
		cfg.Country = o.Country
	}
	return cfg
}

// Workload builds the research agent request for this configuration.
func (c EvalConfig) Workload() Workload {
	window := c.ResearchWindow
	return Workload{
		Tickers:           append([]string(nil), c.Tickers...),
		TargetDate:        c.TargetDate,
		TargetIncreasePct: c.TargetIncreasePct,
		ResearchWindow:    &window,
		BaseQuery:         c.BaseQuery,
		MaxResults:        c.MaxResults,
		MaxTokens:         c.MaxTokens,
		MaxTokensPerPage:  c.MaxTokensPerPage,
		Country:           c.Country,
	}
}

// Limits returns the provider limits for verification searches.
func (c EvalConfig) Limits() SearchLimits {
	return SearchLimits{
		MaxResults:       c.MaxResults,
		MaxTokens:        c.MaxTokens,
		MaxTokensPerPage: c.MaxTokensPerPage,
		Country:          deref(c.Country),
	}
}

// EvalRequest is the evaluator's inbound request.
type EvalRequest struct {
	Participants map[string]string  `json:"participants"`
	Config       EvalConfigOverride `json:"config"`
}

// ParseEvalRequest decodes and structurally validates an evaluation request.
// Role requirements are checked by the evaluator, not here.
func ParseEvalRequest(raw string) (EvalRequest, error) {
	var req EvalRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return EvalRequest{}, eris.Wrap(err, "eval request: decode")
	}
	if req.Participants == nil {
		return EvalRequest{}, eris.New("eval request: participants: field required")
	}
	roles := make([]string, 0, len(req.Participants))
	for role := range req.Participants {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		u, err := url.Parse(req.Participants[role])
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return EvalRequest{}, eris.Errorf("eval request: participants.%s: invalid URL %q", role, req.Participants[role])
		}
	}
	return req, nil
}

// TickerResult is the evaluator's verdict check for one ticker.
type TickerResult struct {
	AgentVerdict    Verdict  `json:"agent_verdict"`
	TruthIncrease   bool     `json:"truth_increase"`
	Rationale       string   `json:"rationale"`
	AgentConfidence *float64 `json:"agent_confidence"`
	EvidenceChecked int      `json:"evidence_checked"`
	Pass            bool     `json:"pass"`
}

// Scorecard is the evaluator's terminal artifact.
type Scorecard struct {
	RunID         string                  `json:"run_id"`
	Summary       []string                `json:"summary"`
	TickerResults map[string]TickerResult `json:"ticker_results"`
}

// Passed returns how many tickers passed and how many were scored.
func (s Scorecard) Passed() (passed, total int) {
	for _, r := range s.TickerResults {
		if r.Pass {
			passed++
		}
	}
	return passed, len(s.TickerResults)
}

// PassRate returns the pass percentage, 0 when nothing was scored.
func (s Scorecard) PassRate() float64 {
	return PassRate(s.Passed())
}

// PassRate returns passed/total as a percentage, 0 when total is 0.
func PassRate(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(passed) / float64(total) * 100
}
