package models

import (
	"time"

	"github.com/portfolio-engine/internal/types"
)

// MarketInsight is a timestamped qualitative statement about the user's holdings
type MarketInsight struct {
	ID          string            `json:"id"`
	Type        types.InsightType `json:"type"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Impact      types.Impact      `json:"impact"`
	Confidence  float64           `json:"confidence"` // 0-100
	AssetTypes  []types.AssetType `json:"assetTypes"`
	Timestamp   time.Time         `json:"timestamp"`
}

// PredictionFactor is one named contributor to a prediction
type PredictionFactor struct {
	Name   string  `json:"name"`
	Impact float64 `json:"impact"` // signed
	Weight float64 `json:"weight"`
}

// PredictionScenarios is the fixed band around the point estimate
type PredictionScenarios struct {
	Optimistic  float64 `json:"optimistic"`
	Realistic   float64 `json:"realistic"`
	Pessimistic float64 `json:"pessimistic"`
}

// PortfolioPrediction is one projected value for one timeframe
type PortfolioPrediction struct {
	Timeframe                 types.Timeframe     `json:"timeframe"`
	CurrentValue              float64             `json:"currentValue"`
	PredictedValue            float64             `json:"predictedValue"`
	PredictedChange           float64             `json:"predictedChange"`
	PredictedChangePercentage float64             `json:"predictedChangePercentage"`
	Confidence                float64             `json:"confidence"`
	Factors                   []PredictionFactor  `json:"factors"`
	Scenarios                 PredictionScenarios `json:"scenarios"`
}
