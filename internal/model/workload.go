package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Defaults shared by the research workload and the evaluator config.
const (
	DefaultTargetIncreasePct = 0.30
	DefaultMaxResults        = 12
	DefaultMaxTokens         = 12_000
	DefaultMaxTokensPerPage  = 2048
)

// TickerPlaceholder is substituted with the ticker symbol in custom query templates.
const TickerPlaceholder = "{ticker}"

// DateWindow bounds a search by publication date. Start and End are passed to
// the search provider verbatim (commonly MM/DD/YYYY) and never parsed here.
type DateWindow struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// SearchLimits bounds the cost of a single search provider call.
type SearchLimits struct {
	MaxResults       int
	MaxTokens        int
	MaxTokensPerPage int
	Country          string
}

// Workload is the request the evaluator sends to the research agent.
type Workload struct {
	Tickers           []string    `json:"tickers"`
	TargetDate        string      `json:"target_date"`
	TargetIncreasePct float64     `json:"target_increase_pct"`
	ResearchWindow    *DateWindow `json:"research_window"`
	BaseQuery         *string     `json:"base_query"`
	MaxResults        int         `json:"max_results"`
	MaxTokens         int         `json:"max_tokens"`
	MaxTokensPerPage  int         `json:"max_tokens_per_page"`
	Country           *string     `json:"country"`
}

// NewWorkload returns a workload with every optional field at its default.
func NewWorkload() Workload {
	return Workload{
		TargetIncreasePct: DefaultTargetIncreasePct,
		MaxResults:        DefaultMaxResults,
		MaxTokens:         DefaultMaxTokens,
		MaxTokensPerPage:  DefaultMaxTokensPerPage,
	}
}

// ParseWorkload decodes a workload from JSON, applying defaults for omitted
// optional fields, and validates it.
func ParseWorkload(raw string) (Workload, error) {
	w := NewWorkload()
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return Workload{}, eris.Wrap(err, "workload: decode")
	}
	if err := w.Validate(); err != nil {
		return Workload{}, err
	}
	return w, nil
}

// Validate checks the mandatory fields and value constraints.
func (w Workload) Validate() error {
	var problems []string
	if len(w.Tickers) == 0 {
		problems = append(problems, "tickers: at least one ticker is required")
	}
	for i, t := range w.Tickers {
		if strings.TrimSpace(t) == "" {
			problems = append(problems, fmt.Sprintf("tickers[%d]: must not be empty", i))
		}
	}
	if w.TargetDate == "" {
		problems = append(problems, "target_date: field required")
	}
	if w.ResearchWindow == nil {
		problems = append(problems, "research_window: field required")
	} else {
		if w.ResearchWindow.Start == "" {
			problems = append(problems, "research_window.start: field required")
		}
		if w.ResearchWindow.End == "" {
			problems = append(problems, "research_window.end: field required")
		}
	}
	if w.TargetIncreasePct <= 0 {
		problems = append(problems, "target_increase_pct: must be greater than 0")
	}
	if w.MaxResults <= 0 {
		problems = append(problems, "max_results: must be greater than 0")
	}
	if w.MaxTokens <= 0 {
		problems = append(problems, "max_tokens: must be greater than 0")
	}
	if w.MaxTokensPerPage <= 0 {
		problems = append(problems, "max_tokens_per_page: must be greater than 0")
	}
	if len(problems) > 0 {
		return eris.Errorf("workload: %d validation error(s): %s", len(problems), strings.Join(problems, "; "))
	}
	return nil
}

// Limits returns the provider limits carried by the workload.
func (w Workload) Limits() SearchLimits {
	return SearchLimits{
		MaxResults:       w.MaxResults,
		MaxTokens:        w.MaxTokens,
		MaxTokensPerPage: w.MaxTokensPerPage,
		Country:          deref(w.Country),
	}
}

// Window returns the research window, or the zero window if unset.
func (w Workload) Window() DateWindow {
	if w.ResearchWindow == nil {
		return DateWindow{}
	}
	return *w.ResearchWindow
}

// Query builds the search query for a ticker: every placeholder in the custom
// template is replaced, otherwise fallback is used.
func Query(template *string, ticker string, fallback func(string) string) string {
	if template != nil && *template != "" {
		return strings.ReplaceAll(*template, TickerPlaceholder, ticker)
	}
	return fallback(ticker)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
