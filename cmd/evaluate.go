package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/invest-bench/internal/evaluator"
	"github.com/sells-group/invest-bench/internal/messenger"
	"github.com/sells-group/invest-bench/internal/model"
	"github.com/sells-group/invest-bench/pkg/a2a"
)

var (
	evalEvaluatorURL string
	evalAgentURL     string
	evalConfigFile   string
	evalTickers      []string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run an evaluation and print the scorecard",
	Long: `Sends an evaluation request for --agent to a running evaluator (--evaluator),
or runs the evaluator in-process when --evaluator is omitted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("evaluate"); err != nil {
			return err
		}
		if evalAgentURL == "" {
			return eris.New("evaluate: --agent is required")
		}
		override, err := loadOverride(evalConfigFile)
		if err != nil {
			return err
		}
		if len(evalTickers) > 0 {
			override.Tickers = evalTickers
		}

		transport := a2a.NewClient(a2a.WithTimeout(cfg.Messenger.Timeout()))
		out := cmd.OutOrStdout()

		if evalEvaluatorURL != "" {
			return evaluateRemote(cmd.Context(), out, messenger.New(transport), evalEvaluatorURL, evalAgentURL, override)
		}

		provider, err := newProvider(cfg)
		if err != nil {
			return err
		}
		stack := newSearchStack(cfg, provider, nil)
		tally := stack.newTally()
		ev := evaluator.New(messenger.New(transport), stack.client(tally), evaluator.WithTally(tally))
		return evaluateLocal(cmd.Context(), out, ev, evalAgentURL, override)
	},
}

// loadOverride reads an EvalConfigOverride from a YAML file. An empty path
// yields the zero override, i.e. all defaults.
func loadOverride(path string) (model.EvalConfigOverride, error) {
	var o model.EvalConfigOverride
	if path == "" {
		return o, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return o, eris.Wrapf(err, "evaluate: read config file %s", path)
	}
	if err := yaml.Unmarshal(raw, &o); err != nil {
		return o, eris.Wrapf(err, "evaluate: parse config file %s", path)
	}
	return o, nil
}

// evaluateRemote sends an EvalRequest to the evaluator at evaluatorURL and
// prints its summary and scorecard.
func evaluateRemote(ctx context.Context, out io.Writer, m *messenger.Messenger, evaluatorURL, agentURL string, o model.EvalConfigOverride) error {
	req := model.EvalRequest{
		Participants: map[string]string{evaluator.RoleAgent: agentURL},
		Config:       o,
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return eris.Wrap(err, "evaluate: marshal request")
	}

	reply, err := m.Invoke(ctx, string(raw), evaluatorURL, true)
	if err != nil {
		return eris.Wrap(err, "evaluate: invoke evaluator")
	}

	for _, d := range reply.DataParts {
		var card model.Scorecard
		if err := a2a.DecodeData(d, &card); err != nil || card.TickerResults == nil {
			continue
		}
		fmt.Fprintln(out, strings.Join(card.Summary, "\n"))
		return printJSON(out, card)
	}
	return eris.Errorf("evaluate: evaluator at %s returned no scorecard", evaluatorURL)
}

// evaluateLocal runs ev against the agent at agentURL.
func evaluateLocal(ctx context.Context, out io.Writer, ev *evaluator.Evaluator, agentURL string, o model.EvalConfigOverride) error {
	cfg := model.MergeEvalConfig(model.DefaultEvalConfig(), o)
	if err := cfg.Workload().Validate(); err != nil {
		return err
	}

	card, err := ev.Evaluate(ctx, agentURL, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, strings.Join(card.Summary, "\n"))
	return printJSON(out, card)
}

func init() {
	evaluateCmd.Flags().StringVar(&evalEvaluatorURL, "evaluator", "", "URL of a running evaluator (default: run in-process)")
	evaluateCmd.Flags().StringVar(&evalAgentURL, "agent", "", "URL of the research agent under test")
	evaluateCmd.Flags().StringVar(&evalConfigFile, "config-file", "", "YAML file with evaluation config overrides")
	evaluateCmd.Flags().StringSliceVar(&evalTickers, "tickers", nil, "override the evaluated tickers (comma-separated)")
	rootCmd.AddCommand(evaluateCmd)
}
