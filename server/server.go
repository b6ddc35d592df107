// Package server exposes the scoring, storage, and optimization APIs over
// HTTP. It is a thin layer: every handler validates input, calls into the
// core packages, and maps their errors onto status codes.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promptdash/promptdash/gateway"
	"github.com/promptdash/promptdash/optimizer"
	"github.com/promptdash/promptdash/quality"
	"github.com/promptdash/promptdash/store"
	"github.com/promptdash/promptdash/utils"
)

var validate = validator.New()

// PromptStore is the persistence surface the handlers need.
type PromptStore interface {
	Create(ctx context.Context, text string, tags []string, score quality.Score, features quality.FeatureVector, parentID *uuid.UUID) (*store.Prompt, error)
	Get(ctx context.Context, id uuid.UUID) (*store.Prompt, error)
	List(ctx context.Context) ([]store.Prompt, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Analytics(ctx context.Context) (store.Analytics, error)
	ExportCSV(ctx context.Context) (string, error)
	ExportJSON(ctx context.Context) ([]byte, error)
}

// Optimizer is the optimization surface the handlers need.
type Optimizer interface {
	Optimize(ctx context.Context, params optimizer.Params) (*optimizer.Result, error)
	EstimateCost(prompt string, currentQ, targetQ float64, strategy optimizer.Strategy) (optimizer.CostEstimate, error)
	SaveResult(ctx context.Context, result *optimizer.Result, parentID *uuid.UUID) (uuid.UUID, error)
}

// Generator is the ad-hoc generation surface the handlers need.
type Generator interface {
	Generate(ctx context.Context, req gateway.Request) (*gateway.Response, error)
	GenerateStructured(ctx context.Context, req gateway.Request, out any) (*gateway.Response, error)
}

type Server struct {
	store     PromptStore
	optimizer Optimizer
	generator Generator
	logger    utils.Logger
}

func New(promptStore PromptStore, opt Optimizer, gen Generator, logger utils.Logger) *Server {
	return &Server{
		store:     promptStore,
		optimizer: opt,
		generator: gen,
		logger:    logger,
	}
}

// Routes assembles the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/api/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/analyze", s.handleAnalyze)
	r.Post("/api/analyze/llm", s.handleLLMAnalyze)
	r.Post("/api/optimize", s.handleOptimize)
	r.Post("/api/optimize/estimate", s.handleEstimate)
	r.Post("/api/generate", s.handleGenerate)

	r.Route("/api/prompts", func(r chi.Router) {
		r.Get("/", s.handleListPrompts)
		r.Post("/", s.handleCreatePrompt)
		r.Post("/bulk", s.handleBulkAnalyze)
		r.Get("/export", s.handleExport)
		r.Post("/refine", s.handleRefine)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetPrompt)
			r.Delete("/", s.handleDeletePrompt)
			r.Post("/analyze", s.handleAnalyzePrompt)
			r.Post("/variants", s.handleVariants)
		})
	})

	r.Get("/api/analytics", s.handleAnalytics)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration_ms", float64(time.Since(start))/float64(time.Millisecond))
	})
}

// statusFor maps core errors onto HTTP status codes: validation and
// configuration problems are the caller's fault, provider and breaker
// failures are upstream faults.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, quality.ErrInvalidFeatureVector),
		errors.Is(err, optimizer.ErrInvalidStrategy):
		return http.StatusBadRequest
	case errors.Is(err, optimizer.ErrCostLimitExceeded):
		return http.StatusPaymentRequired
	case gateway.IsConfig(err):
		return http.StatusBadRequest
	case gateway.IsCircuitOpen(err):
		return http.StatusServiceUnavailable
	case gateway.IsProviderCallFailed(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
