package service

import (
	"context"
	stderrors "errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/portfolio-engine/internal/adapter"
	"github.com/portfolio-engine/internal/models"
	"github.com/portfolio-engine/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	apartment = "0x1111111111111111111111111111111111111111"
	goldToken = "0x2222222222222222222222222222222222222222"
	stableTkn = "0x3333333333333333333333333333333333333333"
)

func newTestEnricher(market adapter.MarketDataSource) *AssetEnricher {
	e := NewAssetEnricher(market, EnricherConfig{Workers: 4, Timeout: time.Second, HistoryDays: 30}, nil)
	e.now = func() time.Time { return testNow }
	return e
}

func TestEnrich_DowntownApartment(t *testing.T) {
	market := adapter.NewStaticMarketSource()
	market.SetMarketData(models.MarketID(types.ChainEthereum, apartment), models.MarketData{Price: 5, Name: "Downtown Apartment"})

	result, err := newTestEnricher(market).Enrich(context.Background(), []models.BalanceRecord{{
		ContractAddress: apartment,
		Network:         types.ChainEthereum,
		Balance:         10,
		Name:            strPtr("Downtown Apartment"),
		OriginalPrice:   floatPtr(4),
	}})
	require.NoError(t, err)
	require.Len(t, result.Assets, 1)
	assert.Empty(t, result.Skipped)

	asset := result.Assets[0]
	assert.Equal(t, 50.0, asset.TotalValue)
	assert.Equal(t, 10.0, asset.PnL)
	assert.Equal(t, 25.0, asset.PnLPercentage)
	assert.Equal(t, types.AssetRealEstate, asset.Type)
	assert.Equal(t, neutralRiskScore, asset.RiskScore, "no history means neutral risk")
	assert.Equal(t, 0.0, asset.LiquidityScore, "no market cap means no liquidity score")
	assert.Equal(t, asset.Key(), asset.ID)
	assert.Equal(t, testNow, asset.LastUpdated)
}

func TestEnrich_DefaultsAndPeriodChanges(t *testing.T) {
	market := adapter.NewStaticMarketSource()
	id := models.MarketID(types.ChainEthereum, goldToken)
	market.SetMarketData(id, models.MarketData{
		Price:            100,
		Change24h:        2,
		ChangePercent24h: 2.04,
		Volume24h:        5_000,
		MarketCap:        1_000_000,
		Symbol:           "PAXG",
		Name:             "Pax Gold",
	})
	// 100 today, falling back one unit per day
	market.SetHistory(id, dailySeries(40, func(i int) float64 { return 100 - float64(i) }))

	result, err := newTestEnricher(market).Enrich(context.Background(), []models.BalanceRecord{{
		ContractAddress: goldToken,
		Network:         types.ChainEthereum,
		Balance:         3,
		APY:             floatPtr(1.5),
	}})
	require.NoError(t, err)
	require.Len(t, result.Assets, 1)

	asset := result.Assets[0]
	assert.Equal(t, "Pax Gold", asset.Name, "name falls back to market data")
	assert.Equal(t, "PAXG", asset.Symbol)
	assert.Equal(t, types.AssetCommodity, asset.Type)
	assert.Equal(t, 100.0, asset.OriginalPrice, "cost basis defaults to current price")
	assert.Equal(t, 0.0, asset.PnL)
	assert.Equal(t, 0.0, asset.PnLPercentage)
	assert.Equal(t, 6.0, asset.DailyChange)
	assert.Equal(t, 2.04, asset.DailyChangePercentage)
	assert.Equal(t, 7.0, asset.WeeklyChange)
	assert.Equal(t, 30.0, asset.MonthlyChange)
	assert.Equal(t, 30.0, asset.YearlyChange, "yearly window is clamped to the 31 points fetched")
	assert.Equal(t, 1.5, asset.APY)
	assert.Equal(t, 5.0, asset.LiquidityScore)
	assert.Less(t, asset.RiskScore, 50.0)
}

func TestEnrich_SkipsFailuresAndKeepsOrder(t *testing.T) {
	market := adapter.NewStaticMarketSource()
	market.SetMarketData(models.MarketID(types.ChainEthereum, apartment), models.MarketData{Price: 1})
	market.SetMarketData(models.MarketID(types.ChainEthereum, stableTkn), models.MarketData{Price: 1})
	market.FailFor(models.MarketID(types.ChainPolygon, stableTkn), stderrors.New("upstream down"))

	// one good record, one without market data, one failing lookup, three malformed, one good
	records := []models.BalanceRecord{
		{ContractAddress: stableTkn, Network: types.ChainEthereum, Balance: 1},
		{ContractAddress: goldToken, Network: types.ChainEthereum, Balance: 1},
		{ContractAddress: stableTkn, Network: types.ChainPolygon, Balance: 1},
		{ContractAddress: "", Network: types.ChainEthereum, Balance: 1},
		{ContractAddress: apartment, Network: types.ChainEthereum, Balance: -1},
		{ContractAddress: apartment, Network: types.ChainEthereum, Balance: math.NaN()},
		{ContractAddress: apartment, Network: types.ChainEthereum, Balance: 2},
	}

	result, err := newTestEnricher(market).Enrich(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, result.Assets, 2)
	assert.Equal(t, models.MarketID(types.ChainEthereum, stableTkn), models.MarketID(result.Assets[0].Blockchain, result.Assets[0].ContractAddress))
	assert.Equal(t, models.MarketID(types.ChainEthereum, apartment), models.MarketID(result.Assets[1].Blockchain, result.Assets[1].ContractAddress))

	reasons := map[string]int{}
	for _, s := range result.Skipped {
		reasons[s.Reason]++
	}
	assert.Equal(t, map[string]int{SkipMalformed: 3, SkipNoMarketData: 1, SkipSourceFailure: 1}, reasons)
}

func TestEnrich_MergesDuplicateIdentities(t *testing.T) {
	market := adapter.NewStaticMarketSource()
	market.SetMarketData(models.MarketID(types.ChainEthereum, stableTkn), models.MarketData{Price: 2})

	records := []models.BalanceRecord{
		{ContractAddress: stableTkn, Network: types.ChainEthereum, Balance: 1.5},
		{ContractAddress: "0X3333333333333333333333333333333333333333", Network: types.ChainEthereum, Balance: 2.5},
	}

	result, err := newTestEnricher(market).Enrich(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, result.Assets, 1)
	assert.Equal(t, 4.0, result.Assets[0].Balance)
	assert.Equal(t, 8.0, result.Assets[0].TotalValue)
}

func TestEnrich_EmptyInput(t *testing.T) {
	result, err := newTestEnricher(adapter.NewStaticMarketSource()).Enrich(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, result.Assets)
	assert.Empty(t, result.Assets)
}

// batchCountingMarket records every GetMarketData call it serves
type batchCountingMarket struct {
	*adapter.StaticMarketSource
	mu      sync.Mutex
	batches [][]string
}

func (m *batchCountingMarket) GetMarketData(ctx context.Context, marketIDs []string) (map[string]models.MarketData, error) {
	m.mu.Lock()
	m.batches = append(m.batches, append([]string(nil), marketIDs...))
	m.mu.Unlock()
	return m.StaticMarketSource.GetMarketData(ctx, marketIDs)
}

func TestEnrich_PricesWholeBatchInOneLookup(t *testing.T) {
	static := adapter.NewStaticMarketSource()
	for _, contract := range []string{apartment, goldToken, stableTkn} {
		static.SetMarketData(models.MarketID(types.ChainEthereum, contract), models.MarketData{Price: 1})
	}
	market := &batchCountingMarket{StaticMarketSource: static}

	result, err := newTestEnricher(market).Enrich(context.Background(), []models.BalanceRecord{
		{ContractAddress: apartment, Network: types.ChainEthereum, Balance: 1},
		{ContractAddress: goldToken, Network: types.ChainEthereum, Balance: 1},
		{ContractAddress: stableTkn, Network: types.ChainEthereum, Balance: 1},
	})
	require.NoError(t, err)
	assert.Len(t, result.Assets, 3)

	require.Len(t, market.batches, 1)
	assert.ElementsMatch(t, []string{
		models.MarketID(types.ChainEthereum, apartment),
		models.MarketID(types.ChainEthereum, goldToken),
		models.MarketID(types.ChainEthereum, stableTkn),
	}, market.batches[0])
}

func TestEnrich_FailedBatchFallsBackPerAsset(t *testing.T) {
	static := adapter.NewStaticMarketSource()
	static.SetMarketData(models.MarketID(types.ChainEthereum, apartment), models.MarketData{Price: 3})
	static.FailFor(models.MarketID(types.ChainEthereum, goldToken), stderrors.New("upstream down"))
	market := &batchCountingMarket{StaticMarketSource: static}

	result, err := newTestEnricher(market).Enrich(context.Background(), []models.BalanceRecord{
		{ContractAddress: apartment, Network: types.ChainEthereum, Balance: 2},
		{ContractAddress: goldToken, Network: types.ChainEthereum, Balance: 1},
	})
	require.NoError(t, err)
	require.Len(t, result.Assets, 1)
	assert.Equal(t, 6.0, result.Assets[0].TotalValue)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, SkipSourceFailure, result.Skipped[0].Reason)

	assert.Len(t, market.batches, 3, "one batch lookup, then one per asset")
	assert.Len(t, market.batches[0], 2)
}

// slowMarket blocks history lookups for one identifier until the context ends
type slowMarket struct {
	*adapter.StaticMarketSource
	slowID string
}

func (s *slowMarket) GetHistory(ctx context.Context, marketID string, days int) ([]models.PricePoint, error) {
	if marketID == s.slowID {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.StaticMarketSource.GetHistory(ctx, marketID, days)
}

func TestEnrich_TimeoutSkipsOnlyThatAsset(t *testing.T) {
	static := adapter.NewStaticMarketSource()
	static.SetMarketData(models.MarketID(types.ChainEthereum, apartment), models.MarketData{Price: 1})
	static.SetMarketData(models.MarketID(types.ChainEthereum, goldToken), models.MarketData{Price: 1})
	market := &slowMarket{StaticMarketSource: static, slowID: models.MarketID(types.ChainEthereum, goldToken)}

	e := NewAssetEnricher(market, EnricherConfig{Workers: 2, Timeout: 20 * time.Millisecond}, nil)
	result, err := e.Enrich(context.Background(), []models.BalanceRecord{
		{ContractAddress: goldToken, Network: types.ChainEthereum, Balance: 1},
		{ContractAddress: apartment, Network: types.ChainEthereum, Balance: 1},
	})
	require.NoError(t, err)
	require.Len(t, result.Assets, 1)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, SkipTimeout, result.Skipped[0].Reason)
}

func TestEnrich_CancelledContextFailsBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestEnricher(adapter.NewStaticMarketSource()).Enrich(ctx, []models.BalanceRecord{
		{ContractAddress: apartment, Network: types.ChainEthereum, Balance: 1},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRiskScore(t *testing.T) {
	assert.Equal(t, 50.0, RiskScore(flatSeries(9, 10)), "short series is neutral")
	assert.Equal(t, 0.0, RiskScore(flatSeries(30, 10)), "flat series has no volatility")

	// alternating 50% swings saturate the scale
	swings := dailySeries(30, func(i int) float64 {
		if i%2 == 0 {
			return 150
		}
		return 100
	})
	assert.Equal(t, 100.0, RiskScore(swings))
}

func TestLiquidityScore(t *testing.T) {
	assert.Equal(t, 0.0, LiquidityScore(100, 0))
	assert.Equal(t, 0.0, LiquidityScore(100, -5))
	assert.Equal(t, 10.0, LiquidityScore(10, 1000))
	assert.Equal(t, 100.0, LiquidityScore(1000, 1000))
}

// Property: every enriched asset satisfies totalValue == balance * currentPrice
func TestEnrich_ValueIdentityProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("totalValue equals balance times price", prop.ForAll(
		func(balance, price, original float64) bool {
			asset := buildAsset(&models.BalanceRecord{
				ContractAddress: apartment,
				Network:         types.ChainEthereum,
				Balance:         balance,
				OriginalPrice:   &original,
			}, models.MarketData{Price: price}, nil, testNow)

			want := balance * price
			if math.Abs(asset.TotalValue-want) > 1e-9*math.Max(1, math.Abs(want)) {
				return false
			}
			costBasis := balance * original
			return math.Abs(asset.PnL-(want-costBasis)) <= 1e-9*math.Max(1, math.Abs(want)+math.Abs(costBasis))
		},
		gen.Float64Range(0, 1e9),
		gen.Float64Range(0, 1e6),
		gen.Float64Range(0, 1e6),
	))

	properties.Property("risk score stays within bounds", prop.ForAll(
		func(prices []float64) bool {
			points := dailySeries(len(prices), func(i int) float64 { return prices[i] })
			score := RiskScore(points)
			return score >= 0 && score <= 100
		},
		gen.SliceOf(gen.Float64Range(0.01, 1e5)),
	))

	properties.TestingRun(t)
}
