package models

import (
	"time"

	"github.com/portfolio-engine/internal/types"
)

// DeFiProtocol describes a protocol the user could deposit into
type DeFiProtocol struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Blockchain types.ChainID   `json:"blockchain"`
	Category   string          `json:"category"` // lending, dex, liquid-staking, yield, derivatives
	TVL        float64         `json:"tvl"`
	APY        float64         `json:"apy"`
	RiskLevel  types.RiskLevel `json:"riskLevel"`
	Audited    bool            `json:"audited"`
	Tokens     []string        `json:"tokens"`
}

// LendingOpportunity describes a single lending market
type LendingOpportunity struct {
	ID          string          `json:"id"`
	Protocol    string          `json:"protocol"`
	Blockchain  types.ChainID   `json:"blockchain"`
	Asset       string          `json:"asset"`
	SupplyAPY   float64         `json:"supplyApy"`
	BorrowAPY   float64         `json:"borrowApy"`
	Utilization float64         `json:"utilization"` // percent, 0-100
	TVL         float64         `json:"tvl"`
	RiskLevel   types.RiskLevel `json:"riskLevel"`
}

// YieldStrategy describes a multi-step yield strategy
type YieldStrategy struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Protocol    string          `json:"protocol"`
	Blockchain  types.ChainID   `json:"blockchain"`
	APY         float64         `json:"apy"`
	TVL         float64         `json:"tvl"`
	RiskLevel   types.RiskLevel `json:"riskLevel"`
	Steps       []string        `json:"steps"`
	MinDeposit  float64         `json:"minDeposit"`
	LockPeriod  string          `json:"lockPeriod,omitempty"`
	Description string          `json:"description"`
}

// CrossChainOpportunity describes a yield that requires bridging between networks
type CrossChainOpportunity struct {
	ID          string          `json:"id"`
	Protocol    string          `json:"protocol"`
	SourceChain types.ChainID   `json:"sourceChain"`
	TargetChain types.ChainID   `json:"targetChain"`
	Asset       string          `json:"asset"`
	APY         float64         `json:"apy"`
	BridgeFee   float64         `json:"bridgeFee"`
	Volume      float64         `json:"volume"`
	RiskLevel   types.RiskLevel `json:"riskLevel"`
	RiskFactors []string        `json:"riskFactors"`
}

// LiquidityPool describes an AMM pool
type LiquidityPool struct {
	ID              string          `json:"id"`
	Protocol        string          `json:"protocol"`
	Blockchain      types.ChainID   `json:"blockchain"`
	Pair            string          `json:"pair"`
	APY             float64         `json:"apy"`
	TVL             float64         `json:"tvl"`
	Volume24h       float64         `json:"volume24h"`
	Fee             float64         `json:"fee"`
	ImpermanentLoss float64         `json:"impermanentLoss"` // estimated, percent
	RiskLevel       types.RiskLevel `json:"riskLevel"`
}

// ArbitrageOpportunity describes a price discrepancy between venues
type ArbitrageOpportunity struct {
	ID              string                    `json:"id"`
	Asset           string                    `json:"asset"`
	BuyVenue        string                    `json:"buyVenue"`
	SellVenue       string                    `json:"sellVenue"`
	Blockchain      types.ChainID             `json:"blockchain"`
	ProfitPercent   float64                   `json:"profitPercent"`
	EstimatedProfit float64                   `json:"estimatedProfit"`
	Volume          float64                   `json:"volume"`
	Complexity      types.ArbitrageComplexity `json:"complexity"`
	RiskLevel       types.RiskLevel           `json:"riskLevel"`
	Simulated       bool                      `json:"simulated"`
}

// DeFiInsight is a catalog-level statement about a protocol or market
type DeFiInsight struct {
	ID          string                `json:"id"`
	Type        types.DeFiInsightType `json:"type"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Impact      types.Impact          `json:"impact"`
	Urgency     types.Urgency         `json:"urgency"`
	Protocols   []string              `json:"protocols"`
	Blockchains []types.ChainID       `json:"blockchains"`
	Assets      []string              `json:"assets"` // symbols
	Timestamp   time.Time             `json:"timestamp"`
}

// Catalog is a read-mostly snapshot of every opportunity sub-catalog
type Catalog struct {
	Protocols  []DeFiProtocol          `json:"protocols"`
	Lending    []LendingOpportunity    `json:"lending"`
	Strategies []YieldStrategy         `json:"strategies"`
	CrossChain []CrossChainOpportunity `json:"crossChain"`
	Pools      []LiquidityPool         `json:"liquidityPools"`
	Arbitrage  []ArbitrageOpportunity  `json:"arbitrage"`
	Insights   []DeFiInsight           `json:"insights"`
	UpdatedAt  time.Time               `json:"updatedAt"`
}

// OpportunityResult is the filtered, ranked view of a catalog for one user and tolerance
type OpportunityResult struct {
	RiskTolerance  types.RiskTolerance     `json:"riskTolerance"`
	Protocols      []DeFiProtocol          `json:"protocols"`
	Lending        []LendingOpportunity    `json:"lending"`
	Strategies     []YieldStrategy         `json:"strategies"`
	CrossChain     []CrossChainOpportunity `json:"crossChain"`
	LiquidityPools []LiquidityPool         `json:"liquidityPools"`
	Arbitrage      []ArbitrageOpportunity  `json:"arbitrage"`
	Insights       []DeFiInsight           `json:"insights"`
	CatalogAsOf    time.Time               `json:"catalogAsOf"`
}
