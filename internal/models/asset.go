// Package models defines the value objects that flow through the portfolio engine.
package models

import (
	"strings"
	"time"

	"github.com/portfolio-engine/internal/types"
)

// BalanceRecord is one raw holding as returned by a balance source
type BalanceRecord struct {
	ContractAddress string            `json:"contractAddress"`
	TokenID         *string           `json:"tokenId,omitempty"`
	Network         types.ChainID     `json:"network"`
	Balance         float64           `json:"balance"`
	Name            *string           `json:"name,omitempty"`
	Symbol          *string           `json:"symbol,omitempty"`
	OriginalPrice   *float64          `json:"originalPrice,omitempty"` // Cost basis per unit
	StakingRewards  *float64          `json:"stakingRewards,omitempty"`
	APY             *float64          `json:"apy,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Key returns the composite identity of the record: contract, token id and network
func (b *BalanceRecord) Key() string {
	tokenID := ""
	if b.TokenID != nil {
		tokenID = *b.TokenID
	}
	return AssetKey(b.ContractAddress, tokenID, b.Network)
}

// AssetKey builds the composite identity used for assets and balance records
func AssetKey(contractAddress, tokenID string, network types.ChainID) string {
	return strings.ToLower(string(network)) + ":" + strings.ToLower(contractAddress) + ":" + tokenID
}

// NativeContract is the contract address used for a chain's native coin
const NativeContract = "native"

// MarketID is the identifier a market data source prices a holding by.
// Token ids are ignored: every token of a collection shares the collection price.
func MarketID(network types.ChainID, contractAddress string) string {
	return strings.ToLower(string(network)) + ":" + strings.ToLower(contractAddress)
}

// MarketID returns the market identifier for this record
func (b *BalanceRecord) MarketID() string {
	return MarketID(b.Network, b.ContractAddress)
}

// MarketData is a market snapshot for one asset identifier
type MarketData struct {
	Price            float64 `json:"price"`
	Change24h        float64 `json:"change24h"`
	ChangePercent24h float64 `json:"changePercent24h"`
	Volume24h        float64 `json:"volume24h"`
	MarketCap        float64 `json:"marketCap"`
	Name             string  `json:"name"`
	Symbol           string  `json:"symbol"`
}

// PricePoint is one entry of a historical price series
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// PortfolioAsset is one owned holding normalized across chains and asset types.
// Assets are built once per aggregation and never mutated afterwards.
type PortfolioAsset struct {
	ID                    string          `json:"id"`
	ContractAddress       string          `json:"contractAddress"`
	TokenID               string          `json:"tokenId,omitempty"`
	Blockchain            types.ChainID   `json:"blockchain"`
	Name                  string          `json:"name"`
	Symbol                string          `json:"symbol"`
	Type                  types.AssetType `json:"type"`
	Balance               float64         `json:"balance"`
	CurrentPrice          float64         `json:"currentPrice"`
	TotalValue            float64         `json:"totalValue"`
	OriginalPrice         float64         `json:"originalPrice"`
	PnL                   float64         `json:"pnl"`
	PnLPercentage         float64         `json:"pnlPercentage"`
	DailyChange           float64         `json:"dailyChange"`
	DailyChangePercentage float64         `json:"dailyChangePercentage"`
	WeeklyChange          float64         `json:"weeklyChange"`
	MonthlyChange         float64         `json:"monthlyChange"`
	YearlyChange          float64         `json:"yearlyChange"`
	APY                   float64         `json:"apy"`
	StakingRewards        float64         `json:"stakingRewards"`
	RiskScore             float64         `json:"riskScore"`
	LiquidityScore        float64         `json:"liquidityScore"`
	LastUpdated           time.Time       `json:"lastUpdated"`
}

// Key returns the composite identity of the asset
func (a *PortfolioAsset) Key() string {
	return AssetKey(a.ContractAddress, a.TokenID, a.Blockchain)
}
