// Package server exposes the engine over HTTP for operators: loading and
// patching snapshots, rollback, the kill switch and decision explanations.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/OrlandoBitencourt/pennant/internal/codec"
	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/evaluator"
	"github.com/OrlandoBitencourt/pennant/internal/registry"
)

// MaxPayloadBytes bounds request bodies.
const MaxPayloadBytes = 4 << 20

// Engine defines what the admin server needs from the engine
type Engine interface {
	Namespaces() []string
	EncodeSnapshot(namespace string) ([]byte, error)
	LoadPayload(ctx context.Context, namespace string, data []byte) (registry.HistoryEntry, error)
	PatchPayload(ctx context.Context, namespace string, data []byte) (registry.HistoryEntry, error)
	Rollback(ctx context.Context, namespace string, steps int) (registry.HistoryEntry, error)
	DisableAll(ctx context.Context, namespace string) error
	EnableAll(ctx context.Context, namespace string) error
	Enabled(namespace string) (bool, error)
	History(namespace string) ([]registry.HistoryEntry, error)
	Explain(ctx context.Context, id domain.ToggleID, evalCtx domain.Context) (domain.Decision, error)
	Analyze(namespace, key string) (evaluator.FlagAnalysis, error)
}

// AdminServer provides admin HTTP endpoints
type AdminServer struct {
	engine Engine
	logger *slog.Logger
	router *chi.Mux
	server *http.Server
}

// NewAdminServer creates a new admin server listening on addr.
func NewAdminServer(engine Engine, addr string, logger *slog.Logger) *AdminServer {
	if logger == nil {
		logger = slog.Default()
	}

	a := &AdminServer{
		engine: engine,
		logger: logger,
		router: chi.NewRouter(),
	}
	a.routes()

	a.server = &http.Server{
		Addr:              addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a
}

func (a *AdminServer) routes() {
	a.router.Use(middleware.RequestID)
	a.router.Use(RequestLogger(a.logger))
	a.router.Use(middleware.Recoverer)
	a.router.Use(render.SetContentType(render.ContentTypeJSON))

	a.router.Get("/health", a.handleHealth)

	a.router.Route("/namespaces", func(r chi.Router) {
		r.Get("/", a.handleNamespaces)

		r.Route("/{ns}", func(r chi.Router) {
			r.Get("/snapshot", a.handleGetSnapshot)
			r.Put("/snapshot", a.handleLoad)
			r.Patch("/snapshot", a.handlePatch)
			r.Post("/rollback", a.handleRollback)
			r.Post("/disable", a.handleKillSwitch(false))
			r.Post("/enable", a.handleKillSwitch(true))
			r.Get("/history", a.handleHistory)
			r.Post("/explain", a.handleExplain)
			r.Get("/flags/{key}", a.handleAnalyze)
			r.With(ContextMiddleware).Get("/evaluate/{key}", a.handleEvaluate)
		})
	})
}

// Handler returns the routed handler, for tests and embedding.
func (a *AdminServer) Handler() http.Handler {
	return a.router
}

// Start starts the admin HTTP server
func (a *AdminServer) Start() error {
	a.logger.Info("admin server listening", "addr", a.server.Addr)
	return a.server.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (a *AdminServer) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

func (a *AdminServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (a *AdminServer) handleNamespaces(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string][]string{"namespaces": a.engine.Namespaces()})
}

func (a *AdminServer) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := a.engine.EncodeSnapshot(chi.URLParam(r, "ns"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *AdminServer) handleLoad(w http.ResponseWriter, r *http.Request) {
	a.install(w, r, a.engine.LoadPayload)
}

func (a *AdminServer) handlePatch(w http.ResponseWriter, r *http.Request) {
	a.install(w, r, a.engine.PatchPayload)
}

func (a *AdminServer) install(w http.ResponseWriter, r *http.Request,
	apply func(context.Context, string, []byte) (registry.HistoryEntry, error)) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxPayloadBytes))
	if err != nil {
		a.badRequest(w, r, "ERR_BODY", "Failed to read request body: "+err.Error())
		return
	}

	entry, err := apply(r.Context(), chi.URLParam(r, "ns"), body)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	render.JSON(w, r, entry)
}

type rollbackRequest struct {
	Steps int `json:"steps"`
}

func (a *AdminServer) handleRollback(w http.ResponseWriter, r *http.Request) {
	req := rollbackRequest{Steps: 1}
	if r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
			a.badRequest(w, r, "ERR_INVALID_JSON", "Invalid JSON payload: "+err.Error())
			return
		}
	}

	entry, err := a.engine.Rollback(r.Context(), chi.URLParam(r, "ns"), req.Steps)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	render.JSON(w, r, entry)
}

func (a *AdminServer) handleKillSwitch(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ns := chi.URLParam(r, "ns")

		var err error
		if enabled {
			err = a.engine.EnableAll(r.Context(), ns)
		} else {
			err = a.engine.DisableAll(r.Context(), ns)
		}
		if err != nil {
			a.fail(w, r, err)
			return
		}
		render.JSON(w, r, map[string]any{"namespace": ns, "enabled": enabled})
	}
}

type historyResponse struct {
	Namespace string                  `json:"namespace"`
	Enabled   bool                    `json:"enabled"`
	Entries   []registry.HistoryEntry `json:"entries"`
}

func (a *AdminServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	ns := chi.URLParam(r, "ns")

	entries, err := a.engine.History(ns)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	enabled, err := a.engine.Enabled(ns)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	render.JSON(w, r, historyResponse{Namespace: ns, Enabled: enabled, Entries: entries})
}

// ExplainRequest is the body of POST /namespaces/{ns}/explain.
type ExplainRequest struct {
	Key     string         `json:"key"`
	Context ContextRequest `json:"context"`
}

// ContextRequest is the wire form of an evaluation context.
type ContextRequest struct {
	StableID string              `json:"stableId"`
	Locale   string              `json:"locale,omitempty"`
	Platform string              `json:"platform,omitempty"`
	Version  string              `json:"version,omitempty"`
	Axes     map[string][]string `json:"axes,omitempty"`
}

// ToContext converts the request into a domain context.
func (c ContextRequest) ToContext() (domain.Context, error) {
	ctx := domain.NewContext(domain.StableID(c.StableID)).
		WithLocale(c.Locale).
		WithPlatform(c.Platform)
	if c.Version != "" {
		v, err := domain.ParseVersion(c.Version)
		if err != nil {
			return domain.Context{}, err
		}
		ctx = ctx.WithVersion(v)
	}
	for name, values := range c.Axes {
		ctx = ctx.WithAxis(name, values...)
	}
	return ctx, nil
}

func (a *AdminServer) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req ExplainRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		a.badRequest(w, r, "ERR_INVALID_JSON", "Invalid JSON payload: "+err.Error())
		return
	}
	if req.Key == "" {
		a.badRequest(w, r, "ERR_VALIDATION", "key is required")
		return
	}

	evalCtx, err := req.Context.ToContext()
	if err != nil {
		a.fail(w, r, err)
		return
	}

	decision, err := a.engine.Explain(r.Context(), domain.NewToggleID(chi.URLParam(r, "ns"), req.Key), evalCtx)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	render.JSON(w, r, decision)
}

// EvaluateResponse is the body of a header-driven evaluation.
type EvaluateResponse struct {
	Toggle domain.ToggleID     `json:"toggle"`
	Value  any                 `json:"value"`
	Kind   domain.DecisionKind `json:"kind"`
}

// handleEvaluate resolves a toggle for the context carried in request headers.
func (a *AdminServer) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	evalCtx, _ := EvalContext(r.Context())

	decision, err := a.engine.Explain(r.Context(), domain.NewToggleID(chi.URLParam(r, "ns"), chi.URLParam(r, "key")), evalCtx)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	render.JSON(w, r, EvaluateResponse{Toggle: decision.Toggle, Value: decision.Value, Kind: decision.Kind})
}

func (a *AdminServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	analysis, err := a.engine.Analyze(chi.URLParam(r, "ns"), chi.URLParam(r, "key"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	render.JSON(w, r, analysis)
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Path    string `json:"path,omitempty"`
}

func (a *AdminServer) badRequest(w http.ResponseWriter, r *http.Request, code, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{Code: code, Message: message})
}

// fail maps engine errors onto HTTP statuses.
func (a *AdminServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	resp := ErrorResponse{Code: "ERR_INTERNAL", Message: err.Error()}

	if be, ok := codec.AsBoundaryError(err); ok {
		status = http.StatusBadRequest
		resp.Code = "ERR_BOUNDARY"
		resp.Kind = be.Kind.String()
		resp.Path = be.Path
	} else {
		switch {
		case domain.IsNotFound(err):
			status, resp.Code = http.StatusNotFound, "ERR_NOT_FOUND"
		case errors.Is(err, registry.ErrRollbackUnavailable):
			status, resp.Code = http.StatusConflict, "ERR_ROLLBACK_UNAVAILABLE"
		case domain.IsValidationError(err):
			status, resp.Code = http.StatusBadRequest, "ERR_VALIDATION"
		}
	}

	if status >= http.StatusInternalServerError {
		a.logger.Error("admin request failed", "path", r.URL.Path, "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}
