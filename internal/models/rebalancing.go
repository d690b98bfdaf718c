package models

import "github.com/portfolio-engine/internal/types"

// ExpectedImpact is the estimated effect of applying a suggestion
type ExpectedImpact struct {
	RiskChange            float64 `json:"riskChange"`
	ReturnChange          float64 `json:"returnChange"`
	DiversificationChange float64 `json:"diversificationChange"`
}

// TradeAction is one sell or buy leg of a suggestion
type TradeAction struct {
	AssetID string  `json:"assetId"`
	Symbol  string  `json:"symbol"`
	Amount  float64 `json:"amount"` // units of the asset
	Value   float64 `json:"value"`  // quote currency
}

// SuggestionActions groups the legs of a suggestion
type SuggestionActions struct {
	Sell []TradeAction `json:"sell"`
	Buy  []TradeAction `json:"buy"`
}

// RebalancingSuggestion is one actionable recommendation
type RebalancingSuggestion struct {
	ID                  string               `json:"id"`
	Type                types.SuggestionType `json:"type"`
	Severity            types.Severity       `json:"severity"`
	AssetType           types.AssetType      `json:"assetType,omitempty"`
	Title               string               `json:"title"`
	Description         string               `json:"description"`
	CurrentAllocation   float64              `json:"currentAllocation"`
	SuggestedAllocation float64              `json:"suggestedAllocation"`
	ExpectedImpact      ExpectedImpact       `json:"expectedImpact"`
	Actions             SuggestionActions    `json:"actions"`
	EstimatedCost       float64              `json:"estimatedCost"`
	EstimatedTime       string               `json:"estimatedTime"`
}
