package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/portfolio-engine/internal/logging"
	"github.com/portfolio-engine/internal/models"
	"github.com/portfolio-engine/internal/storage"
	"github.com/portfolio-engine/internal/types"
)

// maxCrossChainRiskFactors is the most risk factors a cross-chain entry may list under medium tolerance
const maxCrossChainRiskFactors = 2

// utilizationCeiling is the highest lending utilization admitted per tolerance, in percent
var utilizationCeiling = map[types.RiskTolerance]float64{
	types.RiskLow:    80,
	types.RiskMedium: 90,
	types.RiskHigh:   95,
}

// impermanentLossCap is the highest estimated impermanent loss admitted per tolerance, in percent.
// High tolerance has no cap.
var impermanentLossCap = map[types.RiskTolerance]float64{
	types.RiskLow:    2,
	types.RiskMedium: 10,
}

// OpportunityAggregator filters and ranks the catalog for one set of holdings and a risk tolerance
type OpportunityAggregator struct {
	catalog CatalogProvider
	cache   *storage.CacheService
}

// NewOpportunityAggregator creates an aggregator. cache may be nil to disable caching.
func NewOpportunityAggregator(catalog CatalogProvider, cache *storage.CacheService) *OpportunityAggregator {
	return &OpportunityAggregator{
		catalog: catalog,
		cache:   cache,
	}
}

// GetOpportunities returns the catalog entries admitted by tolerance, ranked, plus the catalog
// insights relevant to the holdings. Results are cached per (asset identities, tolerance);
// concurrent identical requests share one computation and failures are never cached.
func (o *OpportunityAggregator) GetOpportunities(ctx context.Context, assets []models.PortfolioAsset, tolerance types.RiskTolerance) (*models.OpportunityResult, error) {
	tolerance, err := types.ParseRiskTolerance(string(tolerance))
	if err != nil {
		return nil, err
	}

	compute := func(ctx context.Context) (interface{}, error) {
		catalog, err := o.catalog.Catalog(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		return FilterCatalog(catalog, assets, tolerance), nil
	}

	if o.cache == nil {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		return v.(*models.OpportunityResult), nil
	}

	keys := make([]string, len(assets))
	for i := range assets {
		keys[i] = assets[i].Key()
	}
	key := storage.GenerateSetKey(storage.CacheKeyOpportunities, keys, string(tolerance))

	var result models.OpportunityResult
	hit, err := o.cache.GetOrCompute(ctx, key, &result, compute)
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"component":     "opportunities",
		"riskTolerance": tolerance,
		"assets":        len(assets),
		"cached":        hit,
	}).Debug("Opportunities resolved")

	return &result, nil
}

// FilterCatalog applies the risk filters and ranking to a catalog snapshot.
// It is pure: equal inputs always produce equal outputs.
func FilterCatalog(catalog *models.Catalog, assets []models.PortfolioAsset, tolerance types.RiskTolerance) *models.OpportunityResult {
	result := &models.OpportunityResult{
		RiskTolerance:  tolerance,
		Protocols:      []models.DeFiProtocol{},
		Lending:        []models.LendingOpportunity{},
		Strategies:     []models.YieldStrategy{},
		CrossChain:     []models.CrossChainOpportunity{},
		LiquidityPools: []models.LiquidityPool{},
		Arbitrage:      []models.ArbitrageOpportunity{},
		Insights:       []models.DeFiInsight{},
		CatalogAsOf:    catalog.UpdatedAt,
	}

	for _, p := range catalog.Protocols {
		if tolerance.Admits(p.RiskLevel) {
			result.Protocols = append(result.Protocols, p)
		}
	}
	sort.SliceStable(result.Protocols, func(i, j int) bool {
		a, b := result.Protocols[i], result.Protocols[j]
		return rankDesc(a.TVL, b.TVL, a.ID, b.ID)
	})

	for _, l := range catalog.Lending {
		if admitsLending(tolerance, &l) {
			result.Lending = append(result.Lending, l)
		}
	}
	sort.SliceStable(result.Lending, func(i, j int) bool {
		a, b := result.Lending[i], result.Lending[j]
		return rankDesc(a.SupplyAPY, b.SupplyAPY, a.ID, b.ID)
	})

	for _, s := range catalog.Strategies {
		if tolerance.Admits(s.RiskLevel) {
			result.Strategies = append(result.Strategies, s)
		}
	}
	sort.SliceStable(result.Strategies, func(i, j int) bool {
		a, b := result.Strategies[i], result.Strategies[j]
		return rankDesc(a.APY, b.APY, a.ID, b.ID)
	})

	for _, c := range catalog.CrossChain {
		if admitsCrossChain(tolerance, &c) {
			result.CrossChain = append(result.CrossChain, c)
		}
	}
	sort.SliceStable(result.CrossChain, func(i, j int) bool {
		a, b := result.CrossChain[i], result.CrossChain[j]
		return rankDesc(a.APY, b.APY, a.ID, b.ID)
	})

	for _, p := range catalog.Pools {
		if admitsPool(tolerance, &p) {
			result.LiquidityPools = append(result.LiquidityPools, p)
		}
	}
	sort.SliceStable(result.LiquidityPools, func(i, j int) bool {
		a, b := result.LiquidityPools[i], result.LiquidityPools[j]
		return rankDesc(a.Volume24h, b.Volume24h, a.ID, b.ID)
	})

	for _, a := range catalog.Arbitrage {
		if tolerance.Admits(a.RiskLevel) && tolerance.Admits(a.Complexity.RiskLevel()) {
			result.Arbitrage = append(result.Arbitrage, a)
		}
	}
	sort.SliceStable(result.Arbitrage, func(i, j int) bool {
		a, b := result.Arbitrage[i], result.Arbitrage[j]
		return rankDesc(a.EstimatedProfit, b.EstimatedProfit, a.ID, b.ID)
	})

	result.Insights = relevantInsights(catalog.Insights, assets)
	return result
}

func admitsLending(tolerance types.RiskTolerance, l *models.LendingOpportunity) bool {
	ceiling, ok := utilizationCeiling[tolerance]
	return ok && tolerance.Admits(l.RiskLevel) && l.Utilization <= ceiling
}

func admitsPool(tolerance types.RiskTolerance, p *models.LiquidityPool) bool {
	if !tolerance.Admits(p.RiskLevel) {
		return false
	}
	if limit, capped := impermanentLossCap[tolerance]; capped {
		return p.ImpermanentLoss <= limit
	}
	return true
}

// admitsCrossChain excludes every bridge under low tolerance
func admitsCrossChain(tolerance types.RiskTolerance, c *models.CrossChainOpportunity) bool {
	switch tolerance {
	case types.RiskLow:
		return false
	case types.RiskMedium:
		return tolerance.Admits(c.RiskLevel) && len(c.RiskFactors) <= maxCrossChainRiskFactors
	default:
		return tolerance.Admits(c.RiskLevel)
	}
}

func rankDesc(a, b float64, idA, idB string) bool {
	if a != b {
		return a > b
	}
	return idA < idB
}

// relevantInsights keeps catalog insights touching a held blockchain, protocol or symbol,
// ordered by urgency, then recency
func relevantInsights(insights []models.DeFiInsight, assets []models.PortfolioAsset) []models.DeFiInsight {
	chains := make(map[types.ChainID]bool)
	symbols := make(map[string]bool)
	names := make([]string, 0, len(assets))
	for _, a := range assets {
		chains[a.Blockchain] = true
		if a.Symbol != "" {
			symbols[strings.ToUpper(a.Symbol)] = true
		}
		names = append(names, strings.ToLower(a.Name))
	}

	heldProtocol := func(protocol string) bool {
		p := strings.ToLower(protocol)
		for _, name := range names {
			if p != "" && strings.Contains(name, p) {
				return true
			}
		}
		return false
	}

	out := []models.DeFiInsight{}
	for _, insight := range insights {
		if insightMatches(&insight, chains, symbols, heldProtocol) {
			out = append(out, insight)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Urgency.Weight() != b.Urgency.Weight() {
			return a.Urgency.Weight() > b.Urgency.Weight()
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.ID < b.ID
	})
	return out
}

func insightMatches(insight *models.DeFiInsight, chains map[types.ChainID]bool, symbols map[string]bool, heldProtocol func(string) bool) bool {
	for _, chain := range insight.Blockchains {
		if chains[chain] {
			return true
		}
	}
	for _, symbol := range insight.Assets {
		if symbols[strings.ToUpper(symbol)] {
			return true
		}
	}
	for _, protocol := range insight.Protocols {
		if heldProtocol(protocol) {
			return true
		}
	}
	return false
}
