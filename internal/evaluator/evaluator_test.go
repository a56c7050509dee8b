package evaluator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invest-bench/internal/cost"
	"github.com/sells-group/invest-bench/internal/messenger"
	"github.com/sells-group/invest-bench/internal/model"
	"github.com/sells-group/invest-bench/internal/monitoring"
	"github.com/sells-group/invest-bench/internal/search"
	"github.com/sells-group/invest-bench/pkg/a2a"
	"github.com/sells-group/invest-bench/pkg/perplexity"
	"github.com/sells-group/invest-bench/pkg/perplexity/mocks"
)

// fakeInvoker returns a canned reply and records what it was sent.
type fakeInvoker struct {
	reply    *messenger.Reply
	err      error
	calls    []invocation
	resets   int
	received model.Workload
}

type invocation struct {
	message         string
	endpoint        string
	newConversation bool
}

func (f *fakeInvoker) Invoke(_ context.Context, message, endpoint string, newConversation bool) (*messenger.Reply, error) {
	f.calls = append(f.calls, invocation{message, endpoint, newConversation})
	if w, err := model.ParseWorkload(message); err == nil {
		f.received = w
	}
	return f.reply, f.err
}

func (f *fakeInvoker) Reset() {
	f.resets++
}

func decisionsReply(decisions ...map[string]any) *messenger.Reply {
	list := make([]any, 0, len(decisions))
	for _, d := range decisions {
		list = append(list, d)
	}
	return &messenger.Reply{
		Status:    a2a.TaskStateCompleted,
		DataParts: []map[string]any{{"run_id": "agent123", "decisions": list}},
	}
}

func execute(t *testing.T, e *Evaluator, body string) a2a.Task {
	t.Helper()
	msg := a2a.NewMessage(a2a.RoleUser, a2a.TextPart(body))
	u := a2a.NewTaskUpdater(msg)
	require.NoError(t, e.Execute(context.Background(), msg, u))
	return u.Task()
}

func scorecard(t *testing.T, task a2a.Task) model.Scorecard {
	t.Helper()
	require.Len(t, task.Artifacts, 1)
	art := task.Artifacts[0]
	assert.Equal(t, ArtifactName, art.Name)
	require.Len(t, art.Parts, 2)
	assert.Equal(t, a2a.PartKindText, art.Parts[0].Kind)

	var card model.Scorecard
	require.NoError(t, a2a.DecodeData(art.Parts[1].Data, &card))
	assert.Equal(t, strings.Join(card.Summary, "\n"), art.Parts[0].Text)
	return card
}

func TestExecuteRRScenario(t *testing.T) {
	provider := mocks.NewMockClient(t)
	provider.On("Search", mock.Anything, perplexity.SearchRequest{
		Query:                  "RR share price performance December 2025 30% increase",
		MaxResults:             12,
		MaxTokens:              12000,
		MaxTokensPerPage:       2048,
		SearchAfterDateFilter:  "12/01/2025",
		SearchBeforeDateFilter: "12/31/2025",
	}).Return(&perplexity.SearchResponse{Results: []perplexity.SearchResult{
		{Title: "RR shares jump 33% in December", Snippet: "Rally extends"},
	}}, nil).Once()

	inv := &fakeInvoker{reply: decisionsReply(map[string]any{"ticker": "RR", "verdict": "increase", "confidence": 0.8})}
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	e := New(inv, search.New(provider), WithMetrics(metrics))

	task := execute(t, e, `{"participants":{"agent":"http://x"},"config":{}}`)
	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)

	card := scorecard(t, task)
	assert.Equal(t, e.RunID(), card.RunID)
	require.Contains(t, card.TickerResults, "RR")
	rr := card.TickerResults["RR"]
	assert.Equal(t, model.VerdictIncrease, rr.AgentVerdict)
	assert.True(t, rr.TruthIncrease)
	assert.True(t, rr.Pass)
	assert.Equal(t, 1, rr.EvidenceChecked)
	assert.Equal(t, "Found mention of 33.0% move.", rr.Rationale)
	require.NotNil(t, rr.AgentConfidence)
	assert.InDelta(t, 0.8, *rr.AgentConfidence, 0)
	assert.InDelta(t, 100.0, card.PassRate(), 0)
	assert.Equal(t, []string{
		"Invest benchmark (run " + e.RunID() + ")",
		"Tickers: RR",
		"Pass rate: 100.0% (1/1)",
	}, card.Summary)

	require.Len(t, inv.calls, 1)
	assert.Equal(t, "http://x", inv.calls[0].endpoint)
	assert.True(t, inv.calls[0].newConversation)
	assert.Equal(t, []string{"RR"}, inv.received.Tickers)
	assert.Equal(t, "06/01/2025", inv.received.ResearchWindow.Start)
	assert.Equal(t, 1, inv.resets)

	assert.InDelta(t, 100, testutil.ToFloat64(metrics.PassRate), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.TickerChecks.WithLabelValues("pass")), 0)
}

func TestExecuteMissingAgentRole(t *testing.T) {
	provider := mocks.NewMockClient(t)
	inv := &fakeInvoker{}
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())

	task := execute(t, New(inv, search.New(provider), WithMetrics(metrics)),
		`{"participants":{"judge":"http://x"},"config":{}}`)

	assert.Equal(t, a2a.TaskStateRejected, task.Status.State)
	assert.Equal(t, "Missing roles: [agent]", task.Status.Message.Text())
	assert.Empty(t, inv.calls)
	assert.Empty(t, task.Artifacts)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Evaluations.WithLabelValues(monitoring.EvaluationRejected)), 0)
}

func TestExecuteInvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"not json", `nope`, "Invalid request: eval request: decode"},
		{"no participants", `{"config":{}}`, "participants: field required"},
		{"bad url", `{"participants":{"agent":"not a url"}}`, "participants.agent: invalid URL"},
		{"empty tickers", `{"participants":{"agent":"http://x"},"config":{"tickers":[]}}`, "tickers: at least one ticker is required"},
		{"bad threshold", `{"participants":{"agent":"http://x"},"config":{"target_increase_pct":0}}`, "target_increase_pct"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &fakeInvoker{}
			task := execute(t, New(inv, search.New(mocks.NewMockClient(t))), tt.body)

			assert.Equal(t, a2a.TaskStateRejected, task.Status.State)
			assert.Contains(t, task.Status.Message.Text(), "Invalid request: ")
			assert.Contains(t, task.Status.Message.Text(), tt.want)
			assert.Empty(t, inv.calls)
		})
	}
}

func TestExecuteZeroDecisions(t *testing.T) {
	inv := &fakeInvoker{reply: &messenger.Reply{Status: a2a.TaskStateCompleted, Text: "no structured output"}}
	task := execute(t, New(inv, search.New(mocks.NewMockClient(t))), `{"participants":{"agent":"http://x"}}`)

	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
	card := scorecard(t, task)
	assert.Empty(t, card.TickerResults)
	assert.InDelta(t, 0.0, card.PassRate(), 0)
	assert.Equal(t, "Tickers: none", card.Summary[1])
	assert.Equal(t, "Pass rate: 0.0% (0/0)", card.Summary[2])
}

func TestExecuteRemoteFailurePropagates(t *testing.T) {
	inc := &messenger.IncompleteError{Endpoint: "http://x", Status: a2a.TaskStateRejected}
	inv := &fakeInvoker{err: inc}
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	e := New(inv, search.New(mocks.NewMockClient(t)), WithMetrics(metrics))

	msg := a2a.NewMessage(a2a.RoleUser, a2a.TextPart(`{"participants":{"agent":"http://x"}}`))
	u := a2a.NewTaskUpdater(msg)
	err := e.Execute(context.Background(), msg, u)
	require.Error(t, err)

	var got *messenger.IncompleteError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, a2a.TaskStateRejected, got.Status)

	task := u.Task()
	assert.Equal(t, a2a.TaskStateWorking, task.Status.State)
	assert.Empty(t, task.Artifacts)
	assert.Zero(t, inv.resets)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Evaluations.WithLabelValues(monitoring.EvaluationFailed)), 0)
}

func TestEvaluateTemplateWindowsAndMixedResults(t *testing.T) {
	provider := mocks.NewMockClient(t)
	byQuery := func(q string) any {
		return mock.MatchedBy(func(r perplexity.SearchRequest) bool {
			return r.Query == q && r.SearchAfterDateFilter == "01/01/2026" && r.Country == "GB"
		})
	}
	provider.On("Search", mock.Anything, byQuery("AAA move")).
		Return(&perplexity.SearchResponse{Results: []perplexity.SearchResult{{Title: "AAA up 12%"}}}, nil).Once()
	provider.On("Search", mock.Anything, byQuery("BBB move")).
		Return(&perplexity.SearchResponse{Results: []perplexity.SearchResult{{Title: "BBB", Snippet: "up thirty percent"}, {Title: "x"}}}, nil).Once()
	provider.On("Search", mock.Anything, byQuery("CCC move")).
		Return(nil, errors.New("provider down")).Once()

	inv := &fakeInvoker{reply: decisionsReply(
		map[string]any{"ticker": "AAA", "verdict": "increase", "confidence": 0.7},
		map[string]any{"ticker": "BBB", "verdict": "increase"},
		map[string]any{"ticker": "", "verdict": "increase"},
		map[string]any{"ticker": "CCC", "verdict": "unknown", "confidence": 0.2},
	)}

	tpl := "{ticker} move"
	country := "GB"
	cfg := model.DefaultEvalConfig()
	cfg.Tickers = []string{"AAA", "BBB", "CCC"}
	cfg.BaseQuery = &tpl
	cfg.Country = &country
	cfg.VerifyWindow = model.DateWindow{Start: "01/01/2026", End: "01/31/2026"}

	tally := cost.NewTally(cost.NewCalculator(cost.DefaultRates()))
	e := New(inv, search.New(provider, search.WithTally(tally)), WithTally(tally))
	card, err := e.Evaluate(context.Background(), "http://agent", cfg)
	require.NoError(t, err)

	require.Len(t, card.TickerResults, 3)
	assert.False(t, card.TickerResults["AAA"].Pass)
	assert.False(t, card.TickerResults["AAA"].TruthIncrease)
	assert.Equal(t, "Max move mentioned: 12.0% (< 30%).", card.TickerResults["AAA"].Rationale)

	assert.True(t, card.TickerResults["BBB"].Pass)
	assert.Nil(t, card.TickerResults["BBB"].AgentConfidence)
	assert.Equal(t, 2, card.TickerResults["BBB"].EvidenceChecked)

	assert.True(t, card.TickerResults["CCC"].Pass)
	assert.Equal(t, 0, card.TickerResults["CCC"].EvidenceChecked)
	assert.Equal(t, "No evidence found in the verification window.", card.TickerResults["CCC"].Rationale)

	assert.Equal(t, "Tickers: AAA, BBB, CCC", card.Summary[1])
	assert.Equal(t, "Pass rate: 66.7% (2/3)", card.Summary[2])
	assert.Equal(t, int64(3), tally.Queries())

	assert.Equal(t, "{ticker} move", *inv.received.BaseQuery)
	assert.Equal(t, "GB", *inv.received.Country)
}

func TestEvaluateDuplicateTickerKeepsFirstPosition(t *testing.T) {
	provider := mocks.NewMockClient(t)
	provider.On("Search", mock.Anything, mock.Anything).Return(&perplexity.SearchResponse{}, nil).Times(3)

	inv := &fakeInvoker{reply: decisionsReply(
		map[string]any{"ticker": "AAA", "verdict": "increase"},
		map[string]any{"ticker": "BBB", "verdict": "unknown"},
		map[string]any{"ticker": "AAA", "verdict": "no_increase"},
	)}
	card, err := New(inv, search.New(provider)).Evaluate(context.Background(), "http://agent", model.DefaultEvalConfig())
	require.NoError(t, err)

	assert.Equal(t, "Tickers: AAA, BBB", card.Summary[1])
	assert.Equal(t, model.VerdictNoIncrease, card.TickerResults["AAA"].AgentVerdict)
	assert.Equal(t, "Pass rate: 100.0% (2/2)", card.Summary[2])
}

func TestEvaluateScoresValidDecisionsBesideMalformedOne(t *testing.T) {
	provider := mocks.NewMockClient(t)
	provider.On("Search", mock.Anything, mock.Anything).
		Return(&perplexity.SearchResponse{Results: []perplexity.SearchResult{{Title: "RR rallies 41%"}}}, nil).Once()

	inv := &fakeInvoker{reply: decisionsReply(
		map[string]any{"ticker": "RR", "verdict": "increase", "confidence": 0.8},
		map[string]any{"ticker": "AAA", "verdict": "increase", "confidence": "high"},
	)}
	card, err := New(inv, search.New(provider)).Evaluate(context.Background(), "http://agent", model.DefaultEvalConfig())
	require.NoError(t, err)

	require.Len(t, card.TickerResults, 1)
	assert.True(t, card.TickerResults["RR"].Pass)
	assert.Equal(t, "Pass rate: 100.0% (1/1)", card.Summary[2])
}

func TestPass(t *testing.T) {
	tests := []struct {
		verdict model.Verdict
		truth   bool
		want    bool
	}{
		{model.VerdictIncrease, true, true},
		{model.VerdictIncrease, false, false},
		{model.VerdictNoIncrease, true, false},
		{model.VerdictNoIncrease, false, true},
		{model.VerdictUnknown, true, false},
		{model.VerdictUnknown, false, true},
		{"buy", true, false},
		{"buy", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Pass(tt.verdict, tt.truth), "%s/%v", tt.verdict, tt.truth)
	}
}

func TestMissingRoles(t *testing.T) {
	assert.Equal(t, []string{"agent"}, MissingRoles(nil))
	assert.Equal(t, []string{"agent"}, MissingRoles(map[string]string{"other": "http://x"}))
	assert.Empty(t, MissingRoles(map[string]string{"agent": "http://x", "extra": "http://y"}))
}

func TestSummary(t *testing.T) {
	assert.Equal(t, []string{
		"Invest benchmark (run abcd1234)",
		"Tickers: none",
		"Pass rate: 0.0% (0/0)",
	}, Summary("abcd1234", nil, 0, 0))
	assert.Equal(t, "Pass rate: 33.3% (1/3)", Summary("r", []string{"a", "b", "c"}, 1, 3)[2])
}

func TestCard(t *testing.T) {
	card := Card("http://127.0.0.1:9109/")
	require.Len(t, card.Skills, 1)
	assert.Equal(t, SkillID, card.Skills[0].ID)

	req, err := model.ParseEvalRequest(card.Skills[0].Examples[0])
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9119", req.Participants[RoleAgent])
}
