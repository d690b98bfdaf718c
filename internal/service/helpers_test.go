package service

import (
	"time"

	"github.com/portfolio-engine/internal/models"
	"github.com/portfolio-engine/internal/types"
)

var testNow = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

// testAsset builds an enriched asset with a consistent value identity
func testAsset(contract string, assetType types.AssetType, balance, price float64) models.PortfolioAsset {
	a := models.PortfolioAsset{
		ContractAddress: contract,
		Blockchain:      types.ChainEthereum,
		Name:            contract,
		Symbol:          contract,
		Type:            assetType,
		Balance:         balance,
		CurrentPrice:    price,
		TotalValue:      balance * price,
		OriginalPrice:   price,
		RiskScore:       50,
		LastUpdated:     testNow,
	}
	a.ID = a.Key()
	return a
}

// dailySeries returns n points ending at testNow, most recent first, with prices from price(i)
func dailySeries(n int, price func(i int) float64) []models.PricePoint {
	points := make([]models.PricePoint, n)
	for i := 0; i < n; i++ {
		points[i] = models.PricePoint{
			Timestamp: testNow.AddDate(0, 0, -i),
			Price:     price(i),
		}
	}
	return points
}

func flatSeries(n int, price float64) []models.PricePoint {
	return dailySeries(n, func(int) float64 { return price })
}
