package model

// Verdict is the agent's call on whether a ticker clears the target increase.
type Verdict string

const (
	VerdictIncrease   Verdict = "increase"
	VerdictNoIncrease Verdict = "no_increase"
	VerdictUnknown    Verdict = "unknown"
)

// Valid reports whether v is one of the three known verdicts.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictIncrease, VerdictNoIncrease, VerdictUnknown:
		return true
	}
	return false
}

// MaxDecisionEvidence caps the evidence embedded in a Decision.
const MaxDecisionEvidence = 3

// Evidence is the normalized shape of a search hit kept for traceability.
type Evidence struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Date    string `json:"date"`
	Snippet string `json:"snippet"`
}

// Decision is the agent's verdict for one ticker. It is created once and
// never mutated.
type Decision struct {
	Ticker     string     `json:"ticker"`
	Verdict    Verdict    `json:"verdict"`
	Confidence float64    `json:"confidence"`
	Rationale  string     `json:"rationale"`
	Evidence   []Evidence `json:"evidence"`
}

// AgentResponse is the research agent's terminal artifact.
type AgentResponse struct {
	RunID             string     `json:"run_id"`
	TargetDate        string     `json:"target_date"`
	TargetIncreasePct float64    `json:"target_increase_pct"`
	Decisions         []Decision `json:"decisions"`
}
