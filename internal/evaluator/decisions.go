package evaluator

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/sells-group/invest-bench/internal/messenger"
	"github.com/sells-group/invest-bench/internal/model"
	"github.com/sells-group/invest-bench/pkg/a2a"
)

// RemoteDecision is the part of an agent decision the evaluator scores.
// Confidence is nil when the agent omitted it.
type RemoteDecision struct {
	Ticker     string        `json:"ticker"`
	Verdict    model.Verdict `json:"verdict"`
	Confidence *float64      `json:"confidence"`
}

// ExtractDecisions finds the agent's decisions in reply: the first data part
// with a non-empty decisions list, else a JSON object in the reply text.
// Entries that do not decode are skipped on their own. Anything else yields
// no decisions, which scores as 0/0.
func ExtractDecisions(reply *messenger.Reply) []RemoteDecision {
	if reply == nil {
		return nil
	}

	for _, data := range reply.DataParts {
		if decisions := decodeDecisions(data["decisions"]); len(decisions) > 0 {
			return decisions
		}
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(reply.Text), &payload); err != nil {
		return nil
	}
	return decodeDecisions(payload["decisions"])
}

func decodeDecisions(raw any) []RemoteDecision {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	var out []RemoteDecision
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			zap.L().Debug("evaluator: skipping non-object decision", zap.Int("index", i))
			continue
		}
		var d RemoteDecision
		if err := a2a.DecodeData(entry, &d); err != nil {
			zap.L().Debug("evaluator: skipping malformed decision", zap.Int("index", i), zap.Error(err))
			continue
		}
		out = append(out, d)
	}
	return out
}
