package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/portfolio-engine/internal/models"
	"github.com/portfolio-engine/internal/types"
)

// catalogInsightConfidence maps catalog urgency onto market insight confidence
var catalogInsightConfidence = map[types.Urgency]float64{
	types.UrgencyHigh:   80,
	types.UrgencyMedium: 65,
	types.UrgencyLow:    50,
}

// CatalogInsightSource surfaces catalog DeFi insights that touch the holdings as market insights
type CatalogInsightSource struct {
	catalog CatalogProvider
}

// NewCatalogInsightSource creates an insight source backed by catalog
func NewCatalogInsightSource(catalog CatalogProvider) *CatalogInsightSource {
	return &CatalogInsightSource{catalog: catalog}
}

// GetInsights implements adapter.InsightSource
func (s *CatalogInsightSource) GetInsights(ctx context.Context, assets []models.PortfolioAsset) ([]models.MarketInsight, error) {
	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	relevant := relevantInsights(catalog.Insights, assets)
	out := make([]models.MarketInsight, 0, len(relevant))
	for i := range relevant {
		insight := &relevant[i]
		out = append(out, models.MarketInsight{
			ID:          "catalog-" + insight.ID,
			Type:        marketInsightType(insight.Type),
			Title:       insight.Title,
			Description: insight.Description,
			Impact:      insight.Impact,
			Confidence:  catalogInsightConfidence[insight.Urgency],
			AssetTypes:  matchedAssetTypes(insight, assets),
			Timestamp:   insight.Timestamp,
		})
	}
	return out, nil
}

func marketInsightType(t types.DeFiInsightType) types.InsightType {
	switch t {
	case types.DeFiInsightRiskAlert:
		return types.InsightRisk
	case types.DeFiInsightMarketMove:
		return types.InsightTrend
	default:
		return types.InsightOpportunity
	}
}

// matchedAssetTypes lists, in first-seen order, the types of the assets an insight touches
func matchedAssetTypes(insight *models.DeFiInsight, assets []models.PortfolioAsset) []types.AssetType {
	seen := make(map[types.AssetType]bool)
	var out []types.AssetType
	for _, a := range assets {
		if seen[a.Type] {
			continue
		}
		chains := map[types.ChainID]bool{a.Blockchain: true}
		symbols := map[string]bool{strings.ToUpper(a.Symbol): a.Symbol != ""}
		name := strings.ToLower(a.Name)
		heldProtocol := func(protocol string) bool {
			p := strings.ToLower(protocol)
			return p != "" && strings.Contains(name, p)
		}
		if insightMatches(insight, chains, symbols, heldProtocol) {
			seen[a.Type] = true
			out = append(out, a.Type)
		}
	}
	return out
}
