package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/portfolio-engine/internal/models"
	"github.com/portfolio-engine/internal/types"
)

const defaultRiskTolerance = types.RiskMedium

// portfolioRequest extracts the owner path variable and the riskTolerance query parameter.
// Validation happens in the service so cached and uncached paths reject the same input.
func portfolioRequest(r *http.Request) (string, types.RiskTolerance) {
	owner := mux.Vars(r)["owner"]
	tolerance := types.RiskTolerance(r.URL.Query().Get("riskTolerance"))
	if tolerance == "" {
		tolerance = defaultRiskTolerance
	}
	return owner, tolerance
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) (*models.PortfolioAnalysis, bool) {
	owner, tolerance := portfolioRequest(r)
	analysis, err := s.portfolioService.Analyze(r.Context(), owner, tolerance)
	if err != nil {
		respondError(w, r, err)
		return nil, false
	}
	return analysis, true
}

// handleGetPortfolio handles GET /api/portfolios/{owner}
func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	if analysis, ok := s.analyze(w, r); ok {
		respondJSON(w, http.StatusOK, analysis)
	}
}

// handleGetMetrics handles GET /api/portfolios/{owner}/metrics
func (s *Server) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	if analysis, ok := s.analyze(w, r); ok {
		respondJSON(w, http.StatusOK, analysis.Metrics)
	}
}

// handleGetPredictions handles GET /api/portfolios/{owner}/predictions
func (s *Server) handleGetPredictions(w http.ResponseWriter, r *http.Request) {
	if analysis, ok := s.analyze(w, r); ok {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"owner":       analysis.Owner,
			"predictions": analysis.Predictions,
			"insights":    analysis.Insights,
			"warnings":    analysis.Warnings,
		})
	}
}

// handleGetRebalancing handles GET /api/portfolios/{owner}/rebalancing
func (s *Server) handleGetRebalancing(w http.ResponseWriter, r *http.Request) {
	if analysis, ok := s.analyze(w, r); ok {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"owner":       analysis.Owner,
			"suggestions": analysis.Suggestions,
		})
	}
}

// handleGetOpportunities handles GET /api/portfolios/{owner}/opportunities
func (s *Server) handleGetOpportunities(w http.ResponseWriter, r *http.Request) {
	owner, tolerance := portfolioRequest(r)
	result, err := s.portfolioService.Opportunities(r.Context(), owner, tolerance)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleInvalidate handles DELETE /api/portfolios/{owner}/cache
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]
	if err := s.portfolioService.Invalidate(r.Context(), owner); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	monitor := s.portfolioService.Monitor()
	if monitor == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stats": monitor.Stats(),
		"check": monitor.Check(),
	})
}
