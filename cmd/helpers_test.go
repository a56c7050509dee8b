//go:build !integration

package main

import (
	"net"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invest-bench/internal/config"
	"github.com/sells-group/invest-bench/internal/cost"
	"github.com/sells-group/invest-bench/internal/monitoring"
	"github.com/sells-group/invest-bench/pkg/a2a"
	"github.com/sells-group/invest-bench/pkg/perplexity"
	"github.com/sells-group/invest-bench/pkg/perplexity/mocks"
)

// getFreePort returns a free TCP port on localhost.
func getFreePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func testConfig() *config.Config {
	return &config.Config{
		Perplexity: config.PerplexityConfig{Key: "pplx-test"},
		Messenger:  config.MessengerConfig{TimeoutSecs: 5},
		Pricing:    cost.DefaultRates(),
	}
}

// rrProvider answers research-window searches with bullish RR news and
// verification-window searches with a 41% rally.
func rrProvider(t *testing.T) *mocks.MockClient {
	provider := mocks.NewMockClient(t)
	provider.On("Search", mock.Anything, mock.MatchedBy(func(r perplexity.SearchRequest) bool {
		return r.SearchAfterDateFilter == "06/01/2025"
	})).Return(&perplexity.SearchResponse{Results: []perplexity.SearchResult{
		{Title: "RR posts record quarter", Snippet: "Guidance raised"},
	}}, nil).Maybe()
	provider.On("Search", mock.Anything, mock.MatchedBy(func(r perplexity.SearchRequest) bool {
		return r.SearchAfterDateFilter == "12/01/2025"
	})).Return(&perplexity.SearchResponse{Results: []perplexity.SearchResult{
		{Title: "RR rallies 41% in December"},
	}}, nil).Maybe()
	return provider
}

// hosts starts the agent and evaluator servers over one stack.
func hosts(t *testing.T, provider perplexity.Client) (agentURL, evaluatorURL string, reg *prometheus.Registry) {
	t.Helper()
	reg = newRegistry()
	stack := newSearchStack(testConfig(), provider, monitoring.NewMetrics(reg))

	agentHost := httptest.NewServer(newAgentServer("", stack, reg))
	t.Cleanup(agentHost.Close)

	evalHost := httptest.NewServer(newEvaluatorServer("", stack, a2a.NewClient(), reg))
	t.Cleanup(evalHost.Close)

	return agentHost.URL, evalHost.URL, reg
}
