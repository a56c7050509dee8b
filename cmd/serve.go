package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/invest-bench/internal/agent"
	"github.com/sells-group/invest-bench/internal/config"
	"github.com/sells-group/invest-bench/internal/evaluator"
	"github.com/sells-group/invest-bench/internal/messenger"
	"github.com/sells-group/invest-bench/internal/monitoring"
	"github.com/sells-group/invest-bench/pkg/a2a"
)

const shutdownTimeout = 10 * time.Second

var (
	serveHost    string
	servePort    int
	serveCardURL string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host an actor over A2A",
}

var serveAgentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Serve the research agent",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyServeFlags(&cfg.Agent)
		if err := cfg.Validate("agent"); err != nil {
			return err
		}
		provider, err := newProvider(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reg := newRegistry()
		stack := newSearchStack(cfg, provider, monitoring.NewMetrics(reg))
		return listenAndServe(ctx, cfg.Agent.Addr(), newAgentServer(cfg.Agent.PublicURL(), stack, reg))
	},
}

var serveEvaluatorCmd = &cobra.Command{
	Use:   "evaluator",
	Short: "Serve the evaluator",
	RunE: func(cmd *cobra.Command, args []string) error {
		applyServeFlags(&cfg.Evaluator)
		if err := cfg.Validate("evaluator"); err != nil {
			return err
		}
		provider, err := newProvider(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reg := newRegistry()
		stack := newSearchStack(cfg, provider, monitoring.NewMetrics(reg))
		transport := a2a.NewClient(a2a.WithTimeout(cfg.Messenger.Timeout()))
		srv := newEvaluatorServer(cfg.Evaluator.PublicURL(), stack, transport, reg)
		return listenAndServe(ctx, cfg.Evaluator.Addr(), srv)
	},
}

// applyServeFlags overlays explicitly set flags onto sc.
func applyServeFlags(sc *config.ServerConfig) {
	if serveHost != "" {
		sc.Host = serveHost
	}
	if servePort != 0 {
		sc.Port = servePort
	}
	if serveCardURL != "" {
		sc.CardURL = serveCardURL
	}
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// newAgentServer hosts the research agent. Every request gets a fresh Agent
// and therefore a fresh run id.
func newAgentServer(url string, stack *searchStack, reg *prometheus.Registry) *a2a.Server {
	return a2a.NewServer(agent.Card(url), func() a2a.Executor {
		return agent.New(stack.client(nil), agent.WithMetrics(stack.metrics))
	}, hostRoutes(reg)...)
}

// newEvaluatorServer hosts the evaluator. Every request gets a fresh
// Evaluator with its own Messenger sessions and spend tally.
func newEvaluatorServer(url string, stack *searchStack, transport messenger.Transport, reg *prometheus.Registry) *a2a.Server {
	return a2a.NewServer(evaluator.Card(url), func() a2a.Executor {
		tally := stack.newTally()
		return evaluator.New(
			messenger.New(transport, messenger.WithMetrics(stack.metrics)),
			stack.client(tally),
			evaluator.WithMetrics(stack.metrics),
			evaluator.WithTally(tally),
		)
	}, hostRoutes(reg)...)
}

func hostRoutes(reg *prometheus.Registry) []a2a.ServerOption {
	return []a2a.ServerOption{
		a2a.WithHandler("/health", http.HandlerFunc(handleHealth)),
		a2a.WithHandler("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// listenAndServe runs h on addr until ctx is cancelled, then shuts down
// gracefully.
func listenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.L().Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "server shutdown")
		}
		return nil
	})
	return g.Wait()
}

func init() {
	serveCmd.PersistentFlags().StringVar(&serveHost, "host", "", "listen host (default from config)")
	serveCmd.PersistentFlags().IntVar(&servePort, "port", 0, "listen port (default from config)")
	serveCmd.PersistentFlags().StringVar(&serveCardURL, "card-url", "", "URL advertised in the agent card (default http://host:port/)")
	serveCmd.AddCommand(serveAgentCmd, serveEvaluatorCmd)
	rootCmd.AddCommand(serveCmd)
}
