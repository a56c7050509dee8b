// Package verdict turns search evidence into deterministic calls. Both checks
// only look at the evidence text, so replaying recorded evidence reproduces
// the same verdicts exactly.
package verdict

import (
	"fmt"
	"math"
	"strings"

	"github.com/sells-group/invest-bench/internal/model"
)

// Text is the part of an evidence item the inferencer reads.
type Text struct {
	Title   string
	Snippet string
}

// FromEvidence adapts evidence items to Text.
func FromEvidence(items []model.Evidence) []Text {
	out := make([]Text, 0, len(items))
	for _, e := range items {
		out = append(out, Text{Title: e.Title, Snippet: e.Snippet})
	}
	return out
}

// Outcome is the research agent's call for one ticker.
type Outcome struct {
	Verdict    model.Verdict
	Confidence float64
	Rationale  string
}

// Lexicon is a pair of keyword sets scored by substring count.
type Lexicon struct {
	Positive []string
	Negative []string
}

// OutlookLexicon scores projected fundamentals.
var OutlookLexicon = Lexicon{
	Positive: []string{
		"beat", "record", "profit", "profitability", "growth", "upgrade", "raise",
		"surge", "soar", "rally", "strong", "bullish", "momentum", "guidance",
	},
	Negative: []string{
		"loss", "decline", "downgrade", "cut", "plunge", "slump", "warning",
		"bearish", "drop", "falls", "weak", "miss",
	},
}

// Score counts case-insensitive, non-overlapping keyword occurrences in text:
// positives minus negatives. Keywords are not tokenized, so "profitability"
// also counts as "profit".
func (l Lexicon) Score(text string) int {
	lower := strings.ToLower(text)
	score := 0
	for _, w := range l.Positive {
		score += strings.Count(lower, w)
	}
	for _, w := range l.Negative {
		score -= strings.Count(lower, w)
	}
	return score
}

const (
	confidenceBase    = 0.55
	confidenceStep    = 0.1
	confidenceCap     = 0.9
	confidenceNeutral = 0.35
	confidenceEmpty   = 0.20
)

// InferOutlook calls increase, no_increase or unknown from the keyword
// balance of items. thresholdFraction only shapes the neutral rationale.
func InferOutlook(items []Text, thresholdFraction float64) Outcome {
	if len(items) == 0 {
		return Outcome{
			Verdict:    model.VerdictUnknown,
			Confidence: confidenceEmpty,
			Rationale:  "No search results available in the research window.",
		}
	}

	score := OutlookLexicon.Score(joinItems(items))
	switch {
	case score > 0:
		return Outcome{
			Verdict:    model.VerdictIncrease,
			Confidence: scaledConfidence(score),
			Rationale:  "Positive sentiment dominates fundamentals.",
		}
	case score < 0:
		return Outcome{
			Verdict:    model.VerdictNoIncrease,
			Confidence: scaledConfidence(-score),
			Rationale:  "Negative or cautious sentiment dominates.",
		}
	default:
		return Outcome{
			Verdict:    model.VerdictUnknown,
			Confidence: confidenceNeutral,
			Rationale:  fmt.Sprintf("Mixed or neutral fundamentals; unable to project %.0f%%+ gain.", ThresholdPercent(thresholdFraction)),
		}
	}
}

func scaledConfidence(magnitude int) float64 {
	return Round3(math.Min(confidenceCap, confidenceBase+confidenceStep*float64(magnitude)))
}

// Round3 rounds to three decimal places.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func joinItems(items []Text) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, it.Title+"\n"+it.Snippet)
	}
	return strings.Join(parts, "\n")
}
