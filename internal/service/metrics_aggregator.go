package service

import (
	"math"
	"sort"

	"github.com/portfolio-engine/internal/models"
	"github.com/portfolio-engine/internal/types"
)

// performerCount is the size of the top and bottom performer lists
const performerCount = 5

// MetricsAggregator reduces an asset list into one PortfolioMetrics snapshot
type MetricsAggregator struct{}

// NewMetricsAggregator creates a new metrics aggregator
func NewMetricsAggregator() *MetricsAggregator {
	return &MetricsAggregator{}
}

// Compute aggregates assets. An empty list yields models.EmptyMetrics().
func (a *MetricsAggregator) Compute(assets []models.PortfolioAsset) *models.PortfolioMetrics {
	m := models.EmptyMetrics()
	if len(assets) == 0 {
		return m
	}

	var apySum, riskWeighted, liquidityWeighted float64
	for _, asset := range assets {
		m.TotalValue += asset.TotalValue
		m.TotalPnL += asset.PnL
		m.DailyChange += asset.DailyChange
		// per-asset period changes are per-unit price moves, scaled to value by balance
		m.WeeklyChange += asset.Balance * asset.WeeklyChange
		m.MonthlyChange += asset.Balance * asset.MonthlyChange
		m.YearlyChange += asset.Balance * asset.YearlyChange
		apySum += asset.APY
		riskWeighted += asset.RiskScore * asset.TotalValue
		liquidityWeighted += asset.LiquidityScore * asset.TotalValue

		m.AssetTypes[asset.Type] += asset.TotalValue
		m.BlockchainDistribution[asset.Blockchain] += asset.TotalValue
	}

	m.AssetCount = len(assets)
	m.AverageAPY = apySum / float64(len(assets))

	if costBasis := m.TotalValue - m.TotalPnL; costBasis != 0 {
		m.TotalPnLPercentage = m.TotalPnL / costBasis * 100
	}
	if m.TotalValue > 0 {
		m.RiskScore = riskWeighted / m.TotalValue
		m.LiquidityRatio = liquidityWeighted / m.TotalValue
	}
	m.DiversificationScore = DiversificationScore(m.AssetTypes, m.TotalValue)
	m.TopPerformers, m.Underperformers = rankPerformers(assets)

	return m
}

// DiversificationScore is max(0, 100 - 100*HHI) over value share per asset type
func DiversificationScore(byType map[types.AssetType]float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	hhi := 0.0
	for _, value := range byType {
		share := value / total
		hhi += share * share
	}
	return math.Max(0, 100-100*hhi)
}

// rankPerformers orders assets by pnlPercentage descending, ties broken by identity.
// Below performerCount assets both lists hold every asset; otherwise the lists are disjoint.
func rankPerformers(assets []models.PortfolioAsset) ([]models.PortfolioAsset, []models.PortfolioAsset) {
	ranked := make([]models.PortfolioAsset, len(assets))
	copy(ranked, assets)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].PnLPercentage != ranked[j].PnLPercentage {
			return ranked[i].PnLPercentage > ranked[j].PnLPercentage
		}
		return ranked[i].Key() < ranked[j].Key()
	})

	n := len(ranked)
	topN := performerCount
	if n < topN {
		topN = n
	}
	top := append([]models.PortfolioAsset{}, ranked[:topN]...)

	bottomN := performerCount
	if n >= performerCount && n-topN < bottomN {
		bottomN = n - topN
	}
	if n < bottomN {
		bottomN = n
	}
	under := make([]models.PortfolioAsset, 0, bottomN)
	for i := n - 1; i >= n-bottomN; i-- {
		under = append(under, ranked[i])
	}
	return top, under
}
