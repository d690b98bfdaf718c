package models

import (
	"time"

	"github.com/portfolio-engine/internal/types"
)

// PortfolioAnalysis is the combined result returned for one owner
type PortfolioAnalysis struct {
	Owner         string                  `json:"owner"`
	RiskTolerance types.RiskTolerance     `json:"riskTolerance"`
	Assets        []PortfolioAsset        `json:"assets"`
	Metrics       *PortfolioMetrics       `json:"metrics"`
	Insights      []MarketInsight         `json:"insights"`
	Predictions   []PortfolioPrediction   `json:"predictions"`
	Suggestions   []RebalancingSuggestion `json:"suggestions"`
	SkippedAssets int                     `json:"skippedAssets"`
	Warnings      []string                `json:"warnings,omitempty"`
	GeneratedAt   time.Time               `json:"generatedAt"`
}
