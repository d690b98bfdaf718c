// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/portfolio-engine/internal/logging"
	"github.com/portfolio-engine/internal/metrics"
	"github.com/portfolio-engine/internal/models"
	"github.com/portfolio-engine/internal/service"
	"github.com/portfolio-engine/internal/types"
)

// PortfolioServiceInterface defines the portfolio operations the API exposes
type PortfolioServiceInterface interface {
	Analyze(ctx context.Context, owner string, tolerance types.RiskTolerance) (*models.PortfolioAnalysis, error)
	Opportunities(ctx context.Context, owner string, tolerance types.RiskTolerance) (*models.OpportunityResult, error)
	Invalidate(ctx context.Context, owner string) error
	Monitor() *service.PerformanceMonitor
}

// Server represents the HTTP API server.
type Server struct {
	router           *mux.Router
	httpServer       *http.Server
	portfolioService PortfolioServiceInterface
	metrics          *metrics.Metrics
	config           *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RequestsPerSecond int // per client
	Burst             int
}

// NewServer creates a new API server instance. m may be nil to disable request metrics.
func NewServer(config *ServerConfig, portfolioService PortfolioServiceInterface, m *metrics.Metrics) *Server {
	s := &Server{
		router:           mux.NewRouter(),
		portfolioService: portfolioService,
		metrics:          m,
		config:           config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	// order matters: request logging and metrics see recovered panics and rate-limited requests
	s.router.Use(RequestIDMiddleware)
	s.router.Use(LoggingMiddleware)
	s.router.Use(MetricsMiddleware(s.metrics))
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/portfolios/{owner}", s.handleGetPortfolio).Methods("GET")
	api.HandleFunc("/portfolios/{owner}/metrics", s.handleGetMetrics).Methods("GET")
	api.HandleFunc("/portfolios/{owner}/opportunities", s.handleGetOpportunities).Methods("GET")
	api.HandleFunc("/portfolios/{owner}/predictions", s.handleGetPredictions).Methods("GET")
	api.HandleFunc("/portfolios/{owner}/rebalancing", s.handleGetRebalancing).Methods("GET")
	api.HandleFunc("/portfolios/{owner}/cache", s.handleInvalidate).Methods("DELETE")

	api.HandleFunc("/stats", s.handleStats).Methods("GET")
}

// Handler returns the root handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "portfolio-engine",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
