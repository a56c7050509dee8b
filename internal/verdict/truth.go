package verdict

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)

const thirtyPercentPhrase = "thirty percent"

// Truth is the evaluator's ground-truth check for one ticker.
type Truth struct {
	Increase   bool
	MaxPercent float64
	Rationale  string
}

// InferTruth reports whether any evidence mentions a move of at least
// thresholdFraction*100 percent. No evidence is never a positive.
func InferTruth(items []Text, thresholdFraction float64) Truth {
	if len(items) == 0 {
		return Truth{Rationale: "No evidence found in the verification window."}
	}

	maxPct := MaxPercent(truthCorpus(items))
	thresholdPct := ThresholdPercent(thresholdFraction)
	if maxPct >= thresholdPct {
		return Truth{
			Increase:   true,
			MaxPercent: maxPct,
			Rationale:  fmt.Sprintf("Found mention of %.1f%% move.", maxPct),
		}
	}
	return Truth{
		MaxPercent: maxPct,
		Rationale:  fmt.Sprintf("Max move mentioned: %.1f%% (< %.0f%%).", maxPct, thresholdPct),
	}
}

// ThresholdPercent converts a fraction to percent, dropping the float noise
// of the multiplication so 0.30 compares equal to a 30% mention.
func ThresholdPercent(fraction float64) float64 {
	return math.Round(fraction*100*1e6) / 1e6
}

// MaxPercent returns the largest "<number>%" mention in text, with the phrase
// "thirty percent" read as 30. Zero when nothing matches.
func MaxPercent(text string) float64 {
	maxPct := 0.0
	for _, m := range percentPattern.FindAllStringSubmatch(text, -1) {
		pct, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if pct > maxPct {
			maxPct = pct
		}
	}
	if strings.Contains(strings.ToLower(text), thirtyPercentPhrase) && maxPct < 30 {
		maxPct = 30
	}
	return maxPct
}

// truthCorpus lists every non-empty title, then every non-empty snippet.
func truthCorpus(items []Text) string {
	lines := make([]string, 0, 2*len(items))
	for _, it := range items {
		if it.Title != "" {
			lines = append(lines, it.Title)
		}
	}
	for _, it := range items {
		if it.Snippet != "" {
			lines = append(lines, it.Snippet)
		}
	}
	return strings.Join(lines, "\n")
}
