// Package types provides common type definitions for the portfolio engine.
package types

import (
	"fmt"
	"strings"
)

// AssetType represents the normalized category of a holding
type AssetType string

const (
	// AssetRealEstate represents tokenized property
	AssetRealEstate AssetType = "real-estate"
	// AssetCommodity represents tokenized commodities such as gold or oil
	AssetCommodity AssetType = "commodity"
	// AssetEquity represents tokenized shares and equity funds
	AssetEquity AssetType = "equity"
	// AssetBond represents tokenized debt instruments
	AssetBond AssetType = "bond"
	// AssetCrypto represents native crypto assets (the classifier fallback)
	AssetCrypto AssetType = "crypto"
	// AssetNFT represents non-fungible tokens
	AssetNFT AssetType = "nft"
)

// AllAssetTypes lists every asset type in classifier priority order
var AllAssetTypes = []AssetType{
	AssetRealEstate,
	AssetNFT,
	AssetBond,
	AssetCommodity,
	AssetEquity,
	AssetCrypto,
}

// IsValid reports whether the asset type is one of the known categories
func (a AssetType) IsValid() bool {
	for _, t := range AllAssetTypes {
		if t == a {
			return true
		}
	}
	return false
}

// RiskLevel is the qualitative risk tier of a catalog entry
type RiskLevel string

const (
	// RiskLow represents conservative entries
	RiskLow RiskLevel = "low"
	// RiskMedium represents moderate entries
	RiskMedium RiskLevel = "medium"
	// RiskHigh represents aggressive entries
	RiskHigh RiskLevel = "high"
)

// rank orders risk levels so that tolerance checks are a single comparison
func (r RiskLevel) rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	default:
		return 4
	}
}

// RiskTolerance is the caller-supplied tier gating which catalog entries surface.
// It shares its values with RiskLevel.
type RiskTolerance = RiskLevel

// Admits reports whether an entry of the given risk level is allowed under this tolerance.
// Unknown levels are never admitted.
func (r RiskLevel) Admits(level RiskLevel) bool {
	if !r.IsValid() || !level.IsValid() {
		return false
	}
	return level.rank() <= r.rank()
}

// IsValid reports whether the risk level is low, medium or high
func (r RiskLevel) IsValid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// ParseRiskTolerance parses a caller-supplied risk tolerance
func ParseRiskTolerance(s string) (RiskTolerance, error) {
	level := RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	if !level.IsValid() {
		return "", &ServiceError{
			Code:    "INVALID_RISK_TOLERANCE",
			Message: fmt.Sprintf("invalid risk tolerance %q: must be low, medium or high", s),
			Details: map[string]interface{}{"riskTolerance": s},
		}
	}
	return level, nil
}

// InsightType represents the kind of a portfolio market insight
type InsightType string

const (
	InsightTrend       InsightType = "trend"
	InsightOpportunity InsightType = "opportunity"
	InsightRisk        InsightType = "risk"
	InsightAlert       InsightType = "alert"
)

// DeFiInsightType represents the kind of a DeFi catalog insight
type DeFiInsightType string

const (
	DeFiInsightMarketMove     DeFiInsightType = "market-move"
	DeFiInsightProtocolUpdate DeFiInsightType = "protocol-update"
	DeFiInsightYieldChange    DeFiInsightType = "yield-change"
	DeFiInsightRiskAlert      DeFiInsightType = "risk-alert"
)

// Impact is the expected direction of an insight or factor
type Impact string

const (
	ImpactPositive Impact = "positive"
	ImpactNegative Impact = "negative"
	ImpactNeutral  Impact = "neutral"
)

// Urgency is the attention level of a DeFi insight
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Weight orders urgencies for ranking
func (u Urgency) Weight() int {
	switch u {
	case UrgencyHigh:
		return 3
	case UrgencyMedium:
		return 2
	case UrgencyLow:
		return 1
	default:
		return 0
	}
}

// SuggestionType represents the kind of a rebalancing suggestion
type SuggestionType string

const (
	SuggestionOverweight        SuggestionType = "overweight"
	SuggestionUnderweight       SuggestionType = "underweight"
	SuggestionRiskAdjustment    SuggestionType = "risk-adjustment"
	SuggestionYieldOptimization SuggestionType = "yield-optimization"
)

// Severity represents how pressing a suggestion is
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Timeframe is a prediction horizon
type Timeframe string

const (
	Timeframe1D  Timeframe = "1d"
	Timeframe7D  Timeframe = "7d"
	Timeframe30D Timeframe = "30d"
	Timeframe90D Timeframe = "90d"
	Timeframe1Y  Timeframe = "1y"
)

// AllTimeframes lists the prediction horizons from shortest to longest
var AllTimeframes = []Timeframe{Timeframe1D, Timeframe7D, Timeframe30D, Timeframe90D, Timeframe1Y}

// Multiplier returns the trend scaling factor for the timeframe.
// Multipliers grow monotonically with the horizon.
func (t Timeframe) Multiplier() float64 {
	switch t {
	case Timeframe1D:
		return 0.01
	case Timeframe7D:
		return 0.05
	case Timeframe30D:
		return 0.15
	case Timeframe90D:
		return 0.35
	case Timeframe1Y:
		return 1.0
	default:
		return 0
	}
}

// ArbitrageComplexity is the execution complexity tier of an arbitrage opportunity
type ArbitrageComplexity string

const (
	ComplexitySimple   ArbitrageComplexity = "simple"
	ComplexityModerate ArbitrageComplexity = "moderate"
	ComplexityComplex  ArbitrageComplexity = "complex"
)

// RiskLevel maps a complexity tier onto the risk scale used for filtering
func (c ArbitrageComplexity) RiskLevel() RiskLevel {
	switch c {
	case ComplexitySimple:
		return RiskLow
	case ComplexityModerate:
		return RiskMedium
	case ComplexityComplex:
		return RiskHigh
	default:
		return ""
	}
}

// ChainID represents supported blockchain networks
type ChainID string

const (
	// ChainEthereum represents the Ethereum mainnet
	ChainEthereum ChainID = "ethereum"
	// ChainPolygon represents the Polygon network
	ChainPolygon ChainID = "polygon"
	// ChainArbitrum represents the Arbitrum network
	ChainArbitrum ChainID = "arbitrum"
	// ChainOptimism represents the Optimism network
	ChainOptimism ChainID = "optimism"
	// ChainBase represents the Base network
	ChainBase ChainID = "base"
	// ChainBNB represents the BNB Chain (BSC)
	ChainBNB ChainID = "bnb"
	// ChainSolana represents the Solana network
	ChainSolana ChainID = "solana"
)

// IsEVM reports whether the chain uses 20-byte hex addresses
func (c ChainID) IsEVM() bool {
	switch c {
	case ChainEthereum, ChainPolygon, ChainArbitrum, ChainOptimism, ChainBase, ChainBNB:
		return true
	default:
		return false
	}
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
