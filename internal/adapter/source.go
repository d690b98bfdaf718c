// Package adapter connects the portfolio engine to external balance and market data sources.
package adapter

import (
	"context"

	"github.com/portfolio-engine/internal/models"
)

// BalanceSource returns the raw holdings of one owner
type BalanceSource interface {
	GetBalances(ctx context.Context, owner string) ([]models.BalanceRecord, error)
}

// HistorySource returns a daily price series for one market identifier, most recent first
type HistorySource interface {
	GetHistory(ctx context.Context, marketID string, days int) ([]models.PricePoint, error)
}

// MarketDataSource prices assets by market identifier (see models.MarketID).
// Identifiers the source cannot price are absent from the returned map.
type MarketDataSource interface {
	HistorySource
	GetMarketData(ctx context.Context, marketIDs []string) (map[string]models.MarketData, error)
}

// HistoryStore persists price series; storage.PriceHistoryRepository implements it
type HistoryStore interface {
	HistorySource
	InsertHistory(ctx context.Context, marketID string, points []models.PricePoint) error
}

// InsightSource supplies externally produced market insights for a set of holdings
type InsightSource interface {
	GetInsights(ctx context.Context, assets []models.PortfolioAsset) ([]models.MarketInsight, error)
}
