package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/portfolio-engine/internal/adapter"
	"github.com/portfolio-engine/internal/errors"
	"github.com/portfolio-engine/internal/logging"
	"github.com/portfolio-engine/internal/models"
	"github.com/portfolio-engine/internal/storage"
	"github.com/portfolio-engine/internal/types"
)

// PortfolioService runs the full analysis pipeline for one owner:
// balances, enrichment, metrics, insights, predictions and rebalancing.
type PortfolioService struct {
	balances      adapter.BalanceSource
	enricher      *AssetEnricher
	aggregator    *MetricsAggregator
	insights      *InsightEngine
	advisor       *RebalancingAdvisor
	opportunities *OpportunityAggregator
	cache         *storage.CacheService
	monitor       *PerformanceMonitor
	now           func() time.Time
}

// NewPortfolioService creates a new portfolio service. cache may be nil to disable caching.
func NewPortfolioService(
	balances adapter.BalanceSource,
	enricher *AssetEnricher,
	insights *InsightEngine,
	opportunities *OpportunityAggregator,
	cache *storage.CacheService,
) *PortfolioService {
	return &PortfolioService{
		balances:      balances,
		enricher:      enricher,
		aggregator:    NewMetricsAggregator(),
		insights:      insights,
		advisor:       NewRebalancingAdvisor(),
		opportunities: opportunities,
		cache:         cache,
		monitor:       NewPerformanceMonitor(),
		now:           time.Now,
	}
}

// Analyze returns the combined analysis for owner.
// A balance source failure aborts the request; per-asset and insight source failures do not.
func (s *PortfolioService) Analyze(ctx context.Context, owner string, tolerance types.RiskTolerance) (*models.PortfolioAnalysis, error) {
	owner, err := normalizeOwner(owner)
	if err != nil {
		return nil, err
	}
	tolerance, err = types.ParseRiskTolerance(string(tolerance))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	analysis, cached, err := s.analyzeCached(ctx, owner, tolerance)
	if err != nil {
		s.monitor.RecordFailure()
		return nil, err
	}
	s.monitor.RecordAnalysis(time.Since(start), cached)
	return analysis, nil
}

func (s *PortfolioService) analyzeCached(ctx context.Context, owner string, tolerance types.RiskTolerance) (*models.PortfolioAnalysis, bool, error) {
	compute := func(ctx context.Context) (interface{}, error) {
		return s.analyze(ctx, owner, tolerance)
	}

	if s.cache == nil {
		v, err := compute(ctx)
		if err != nil {
			return nil, false, err
		}
		return v.(*models.PortfolioAnalysis), false, nil
	}

	var analysis models.PortfolioAnalysis
	key := storage.GenerateCacheKey(storage.CacheKeyPortfolio, owner, string(tolerance))
	cached, err := s.cache.GetOrCompute(ctx, key, &analysis, compute)
	if err != nil {
		return nil, false, err
	}
	return &analysis, cached, nil
}

// Monitor returns the latency monitor of served analyses
func (s *PortfolioService) Monitor() *PerformanceMonitor {
	return s.monitor
}

// Opportunities analyses owner's holdings, then ranks the catalog against them
func (s *PortfolioService) Opportunities(ctx context.Context, owner string, tolerance types.RiskTolerance) (*models.OpportunityResult, error) {
	analysis, err := s.Analyze(ctx, owner, tolerance)
	if err != nil {
		return nil, err
	}
	return s.opportunities.GetOpportunities(ctx, analysis.Assets, analysis.RiskTolerance)
}

// Invalidate drops every cached analysis for owner
func (s *PortfolioService) Invalidate(ctx context.Context, owner string) error {
	owner, err := normalizeOwner(owner)
	if err != nil {
		return err
	}
	if s.cache == nil {
		return nil
	}
	prefix := storage.GenerateCacheKey(storage.CacheKeyPortfolio, owner) + ":"
	if err := s.cache.InvalidatePrefix(ctx, prefix); err != nil {
		return errors.NewCacheError("invalidate", err)
	}
	return nil
}

func (s *PortfolioService) analyze(ctx context.Context, owner string, tolerance types.RiskTolerance) (*models.PortfolioAnalysis, error) {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"component": "portfolio",
		"owner":     owner,
	})
	start := s.now()

	records, err := s.balances.GetBalances(ctx, owner)
	if err != nil {
		if errors.IsUserError(err) {
			return nil, err
		}
		logger.WithError(err).Error("Balance source failed")
		return nil, errors.NewSourceUnavailableError("balances", err)
	}

	enriched, err := s.enricher.Enrich(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("failed to enrich assets: %w", err)
	}

	analysis := &models.PortfolioAnalysis{
		Owner:         owner,
		RiskTolerance: tolerance,
		Assets:        enriched.Assets,
		SkippedAssets: len(enriched.Skipped),
	}
	analysis.Metrics = s.aggregator.Compute(analysis.Assets)
	analysis.Predictions = s.insights.Predict(analysis.Assets, analysis.Metrics)
	analysis.Suggestions = s.advisor.Suggest(analysis.Assets, analysis.Metrics)

	insights, err := s.insights.Insights(ctx, analysis.Assets, analysis.Metrics)
	if err != nil {
		analysis.Warnings = append(analysis.Warnings, "market insights unavailable")
	}
	analysis.Insights = insights

	if n := len(enriched.Skipped); n > 0 {
		analysis.Warnings = append(analysis.Warnings, fmt.Sprintf("%d asset(s) could not be priced and were skipped", n))
	}
	analysis.GeneratedAt = s.now().UTC()

	logger.WithFields(map[string]interface{}{
		"assets":      len(analysis.Assets),
		"skipped":     analysis.SkippedAssets,
		"total_value": analysis.Metrics.TotalValue,
		"duration_ms": analysis.GeneratedAt.Sub(start).Milliseconds(),
	}).Info("Portfolio analyzed")

	return analysis, nil
}

func normalizeOwner(owner string) (string, error) {
	owner = strings.ToLower(strings.TrimSpace(owner))
	if owner == "" {
		return "", errors.NewInvalidParameterError("owner", "owner is required")
	}
	return owner, nil
}
