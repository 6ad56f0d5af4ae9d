package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rpggio/activitylog/internal/repository"
	"github.com/rs/cors"
)

// RPCHandler handles method dispatch for an authenticated caller.
type RPCHandler interface {
	Handle(ctx context.Context, caller repository.Caller, method string, params json.RawMessage) (any, error)
}

// Options configure the HTTP surface.
type Options struct {
	Handler RPCHandler
	// Auth authenticates /rpc and /events. Nil leaves them open, which only
	// makes sense together with StaticCallerMiddleware.
	Auth func(http.Handler) http.Handler
	// Events serves /events when set.
	Events http.Handler
	// MCP serves /mcp when set. It authenticates on its own.
	MCP            http.Handler
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server wires HTTP handlers.
type Server struct {
	handler RPCHandler
	logger  *slog.Logger
}

// NewServer creates the HTTP router with middleware.
func NewServer(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{handler: opts.Handler, logger: logger}

	r := chi.NewRouter()
	r.Get("/health", srv.handleHealth)
	if opts.MCP != nil {
		r.Handle("/mcp", opts.MCP)
		r.Handle("/mcp/*", opts.MCP)
	}

	r.Group(func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth)
		}
		r.Post("/rpc", srv.handleRPC)
		if opts.Events != nil {
			r.Get("/events", opts.Events.ServeHTTP)
		}
	})

	if len(opts.AllowedOrigins) == 0 {
		return r
	}
	return cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Mcp-Session-Id"},
		AllowCredentials: true,
	}).Handler(r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r.Body)
	if err != nil {
		if errors.Is(err, errParse) {
			WriteError(w, nil, ErrParseCode, "parse error", nil)
			return
		}
		WriteError(w, nil, ErrInvalidReq, "invalid request", nil)
		return
	}

	caller, ok := CallerFromContext(r.Context())
	if !ok || caller.ProfileID == "" {
		http.Error(w, "missing caller", http.StatusUnauthorized)
		return
	}

	result, err := s.handler.Handle(r.Context(), caller, req.Method, req.Params)
	if err != nil {
		code, data := classify(err)
		if code == ErrInternal {
			s.logger.Error("rpc failed", "method", req.Method, "profile_id", caller.ProfileID, "error", err)
		}
		WriteError(w, req.ID, code, err.Error(), data)
		return
	}

	WriteResult(w, req.ID, result)
}
