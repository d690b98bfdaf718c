package models

import "github.com/portfolio-engine/internal/types"

// PortfolioMetrics is an aggregate computed over one asset list at one point in time
type PortfolioMetrics struct {
	TotalValue             float64                     `json:"totalValue"`
	TotalPnL               float64                     `json:"totalPnl"`
	TotalPnLPercentage     float64                     `json:"totalPnlPercentage"`
	DailyChange            float64                     `json:"dailyChange"`
	WeeklyChange           float64                     `json:"weeklyChange"`
	MonthlyChange          float64                     `json:"monthlyChange"`
	YearlyChange           float64                     `json:"yearlyChange"`
	AverageAPY             float64                     `json:"averageApy"`
	RiskScore              float64                     `json:"riskScore"`
	DiversificationScore   float64                     `json:"diversificationScore"`
	LiquidityRatio         float64                     `json:"liquidityRatio"`
	AssetCount             int                         `json:"assetCount"`
	AssetTypes             map[types.AssetType]float64 `json:"assetTypes"`
	BlockchainDistribution map[types.ChainID]float64   `json:"blockchainDistribution"`
	TopPerformers          []PortfolioAsset            `json:"topPerformers"`
	Underperformers        []PortfolioAsset            `json:"underperformers"`
}

// EmptyMetrics returns the zero-valued metrics used for an empty asset list.
// Maps and lists are empty rather than nil so they serialize as {} and [].
func EmptyMetrics() *PortfolioMetrics {
	return &PortfolioMetrics{
		AssetTypes:             make(map[types.AssetType]float64),
		BlockchainDistribution: make(map[types.ChainID]float64),
		TopPerformers:          []PortfolioAsset{},
		Underperformers:        []PortfolioAsset{},
	}
}
