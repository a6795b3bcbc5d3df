package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/shrike/internal/casework"
	"github.com/opensource-finance/shrike/internal/domain"
	"github.com/opensource-finance/shrike/internal/model"
	"github.com/opensource-finance/shrike/internal/pipeline"
	"github.com/opensource-finance/shrike/internal/rules"
	"github.com/opensource-finance/shrike/internal/scoring"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// Deps bundles the handler dependencies.
type Deps struct {
	Repo      domain.Repository
	Cache     domain.Cache
	Bus       domain.EventBus
	Evaluator *rules.Evaluator
	Scorer    *model.Scorer
	Processor *pipeline.Processor
	Configs   *scoring.ConfigStore
	Casework  *casework.Service
	Version   string
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, deps Deps) *Server {
	handler := NewHandler(deps)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for the dashboard
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Transactions
	router.Post("/transactions", handler.IngestTransaction)
	router.Get("/transactions/{id}", handler.GetTransaction)

	// Dashboard
	router.Get("/dashboard/kpis", handler.DashboardKPIs)
	router.Get("/dashboard/alerts-over-time", handler.AlertsOverTime)

	// Alerts
	router.Get("/alerts", handler.ListAlerts)
	router.Get("/alerts/{id}", handler.GetAlert)
	router.Put("/alerts/{id}", handler.UpdateAlert)
	router.Post("/alerts/{id}/action", handler.AlertAction)

	// Cases
	router.Get("/cases", handler.ListCases)
	router.Post("/cases", handler.CreateCase)
	router.Post("/cases/notes", handler.AddCaseNote)
	router.Get("/cases/{id}", handler.GetCase)
	router.Put("/cases/{id}", handler.UpdateCase)
	router.Post("/cases/{id}/assign", handler.AssignCase)

	// Rules
	router.Get("/rules", handler.ListRules)
	router.Post("/rules", handler.CreateRule)
	router.Get("/rules/{id}", handler.GetRule)
	router.Put("/rules/{id}", handler.UpdateRule)
	router.Delete("/rules/{id}", handler.DeleteRule)

	// Model analysis
	router.Get("/analysis/results", handler.AnalysisResults)
	router.Get("/analysis/trends", handler.AnalysisTrends)

	// Reports
	router.Get("/reports/templates", handler.ReportTemplates)
	router.Get("/reports/stats", handler.ReportStats)
	router.Get("/reports/trends", handler.ReportTrends)
	router.Post("/reports/generate", handler.GenerateReport)
	router.Get("/reports/export", handler.ExportReport)

	// SARs
	router.Get("/sars", handler.ListSARs)
	router.Post("/sars", handler.CreateSAR)
	router.Get("/sars/stats", handler.SARStats)
	router.Get("/sars/export/batch", handler.ExportSARs)
	router.Get("/sars/{id}", handler.GetSAR)
	router.Put("/sars/{id}", handler.UpdateSAR)
	router.Post("/sars/{id}/file", handler.FileSAR)

	// Scoring configuration
	router.Get("/config", handler.GetConfig)
	router.Put("/config", handler.UpdateConfig)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
