package a2a

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Executor runs one task. Executors report progress through updater and
// should leave the task terminal. A returned error marks a still-running
// task failed.
type Executor interface {
	Execute(ctx context.Context, msg Message, updater *TaskUpdater) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, msg Message, updater *TaskUpdater) error

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, msg Message, updater *TaskUpdater) error {
	return f(ctx, msg, updater)
}

// ExecutorFactory builds a fresh executor per request so concurrent
// requests never share run state.
type ExecutorFactory func() Executor

// Server hosts one actor: its agent card and the JSON-RPC endpoint.
type Server struct {
	card    AgentCard
	factory ExecutorFactory
	router  chi.Router
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithHandler mounts an extra handler, e.g. metrics or health checks.
func WithHandler(pattern string, h http.Handler) ServerOption {
	return func(s *Server) {
		s.router.Handle(pattern, h)
	}
}

// NewServer builds the router for card, creating executors with factory.
func NewServer(card AgentCard, factory ExecutorFactory, opts ...ServerOption) *Server {
	s := &Server{card: card, factory: factory}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Get(CardPath, s.handleCard)
	r.Post("/", s.handleRPC)
	s.router = r

	for _, o := range opts {
		o(s)
	}
	return s
}

// Card returns the published agent card.
func (s *Server) Card() AgentCard {
	return s.card
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleCard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.card)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, nil, CodeParseError, "Parse error")
		return
	}
	if req.JSONRPC != jsonRPCVersion || req.Method == "" {
		writeRPCError(w, req.ID, CodeInvalidRequest, "Invalid Request")
		return
	}
	if req.Method != MethodSendMessage {
		writeRPCError(w, req.ID, CodeMethodNotFound, "Method not found: "+req.Method)
		return
	}

	var params MessageSendParams
	if err := json.Unmarshal(req.Params, &params); err != nil || len(params.Message.Parts) == 0 {
		writeRPCError(w, req.ID, CodeInvalidParams, "Invalid params: message with at least one part is required")
		return
	}

	task := s.run(r.Context(), params.Message)
	result, err := json.Marshal(task)
	if err != nil {
		writeRPCError(w, req.ID, CodeInternalError, "marshal task")
		return
	}
	writeJSON(w, Response{JSONRPC: jsonRPCVersion, ID: req.ID, Result: result})
}

func (s *Server) run(ctx context.Context, msg Message) Task {
	updater := NewTaskUpdater(msg)
	submitted := updater.Task()
	log := zap.L().With(
		zap.String("actor", s.card.Name),
		zap.String("task_id", submitted.ID),
		zap.String("context_id", submitted.ContextID),
	)

	if err := s.factory().Execute(ctx, msg, updater); err != nil {
		log.Error("a2a: executor failed", zap.Error(err))
		// An executor that already finished the task keeps its own status.
		_ = updater.Failed(err.Error())
	}

	task := updater.Task()
	log.Info("a2a: task finished", zap.String("status", string(task.Status.State)))
	return task
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("a2a: write response", zap.Error(err))
	}
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, msg string) {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	writeJSON(w, Response{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: msg},
	})
}
