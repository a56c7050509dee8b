package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/invest-bench/internal/agent"
	"github.com/sells-group/invest-bench/internal/model"
	"github.com/sells-group/invest-bench/internal/search"
)

var (
	researchWorkload string
	researchTickers  []string
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Run the research agent locally and print its decisions",
	Long:  "Runs the research agent in-process on a workload JSON file (or the default workload) without hosting it, and prints the AgentResponse.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("research"); err != nil {
			return err
		}
		w, err := loadWorkload(researchWorkload, researchTickers, cmd.InOrStdin())
		if err != nil {
			return err
		}
		provider, err := newProvider(cfg)
		if err != nil {
			return err
		}

		stack := newSearchStack(cfg, provider, nil)
		tally := stack.newTally()
		if err := runResearch(cmd.Context(), cmd.OutOrStdout(), stack.client(tally), w); err != nil {
			return err
		}

		queries := tally.Queries()
		zap.L().Info("research: estimated search spend",
			zap.Int64("search_queries", queries),
			zap.Float64("estimated_search_usd", tally.USD(queries)),
		)
		return nil
	},
}

// loadWorkload reads a workload from path ("-" for stdin), or starts from the
// default evaluation's workload when path is empty. tickers, when set,
// replace the workload's tickers.
func loadWorkload(path string, tickers []string, stdin io.Reader) (model.Workload, error) {
	var w model.Workload
	switch path {
	case "":
		w = model.DefaultEvalConfig().Workload()
	default:
		var raw []byte
		var err error
		if path == "-" {
			raw, err = io.ReadAll(stdin)
		} else {
			raw, err = os.ReadFile(path)
		}
		if err != nil {
			return model.Workload{}, eris.Wrapf(err, "research: read workload %s", path)
		}
		w = model.NewWorkload()
		if err := json.Unmarshal(raw, &w); err != nil {
			return model.Workload{}, eris.Wrap(err, "research: decode workload")
		}
	}

	if len(tickers) > 0 {
		w.Tickers = tickers
	}
	if err := w.Validate(); err != nil {
		return model.Workload{}, err
	}
	return w, nil
}

func runResearch(ctx context.Context, out io.Writer, searcher search.Searcher, w model.Workload) error {
	resp := agent.New(searcher).Research(ctx, w)
	return printJSON(out, resp)
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "write output")
	}
	return nil
}

func init() {
	researchCmd.Flags().StringVar(&researchWorkload, "workload", "", "workload JSON file, - for stdin (default: built-in workload)")
	researchCmd.Flags().StringSliceVar(&researchTickers, "tickers", nil, "override the workload's tickers (comma-separated)")
	rootCmd.AddCommand(researchCmd)
}
