package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/portfolio-engine/internal/adapter"
	"github.com/portfolio-engine/internal/errors"
	"github.com/portfolio-engine/internal/models"
	"github.com/portfolio-engine/internal/storage"
	"github.com/portfolio-engine/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOwner = "0x00000000219ab540356cBB839Cbe05303d7705Fa"

type portfolioFixture struct {
	balances *adapter.StaticBalanceSource
	market   *adapter.StaticMarketSource
	catalog  *countingCatalog
	insights *stubInsightSource
	service  *PortfolioService
}

func newPortfolioFixture(t *testing.T) *portfolioFixture {
	t.Helper()

	f := &portfolioFixture{
		balances: adapter.NewStaticBalanceSource(),
		market:   adapter.NewStaticMarketSource(),
		catalog:  &countingCatalog{catalog: DefaultCatalog()},
		insights: &stubInsightSource{},
	}

	store := storage.NewMemoryCache()
	portfolioCache := storage.NewCacheService(store, "portfolio", time.Minute, nil)
	opportunityCache := storage.NewCacheService(store, "opportunities", 15*time.Minute, nil)

	enricher := newTestEnricher(f.market)
	insights := newTestInsightEngine(f.insights)
	f.service = NewPortfolioService(
		f.balances,
		enricher,
		insights,
		NewOpportunityAggregator(f.catalog, opportunityCache),
		portfolioCache,
	)
	f.service.now = func() time.Time { return testNow }
	return f
}

// seedHoldings gives the owner an apartment token, ETH and USDC on Ethereum
func (f *portfolioFixture) seedHoldings() {
	f.balances.SetHoldings(testOwner, []models.BalanceRecord{
		{ContractAddress: apartment, Network: types.ChainEthereum, Balance: 10, Name: strPtr("Downtown Apartment"), OriginalPrice: floatPtr(4)},
		{ContractAddress: models.NativeContract, Network: types.ChainEthereum, Balance: 2, Symbol: strPtr("ETH"), Name: strPtr("Ether"), APY: floatPtr(3.5)},
		{ContractAddress: stableTkn, Network: types.ChainEthereum, Balance: 5000, Symbol: strPtr("USDC"), Name: strPtr("USD Coin")},
	})
	f.market.SetMarketData(models.MarketID(types.ChainEthereum, apartment), models.MarketData{Price: 5})
	f.market.SetMarketData(models.MarketID(types.ChainEthereum, models.NativeContract), models.MarketData{Price: 3000, Volume24h: 1e10, MarketCap: 3.6e11})
	f.market.SetMarketData(models.MarketID(types.ChainEthereum, stableTkn), models.MarketData{Price: 1})
	f.market.SetHistory(models.MarketID(types.ChainEthereum, models.NativeContract), dailySeries(31, func(i int) float64 { return 3000 - float64(i)*10 }))
}

func TestAnalyze_FullPipeline(t *testing.T) {
	f := newPortfolioFixture(t)
	f.seedHoldings()

	analysis, err := f.service.Analyze(context.Background(), testOwner, types.RiskMedium)
	require.NoError(t, err)

	assert.Equal(t, "0x00000000219ab540356cbb839cbe05303d7705fa", analysis.Owner)
	assert.Equal(t, types.RiskMedium, analysis.RiskTolerance)
	require.Len(t, analysis.Assets, 3)
	assert.Equal(t, types.AssetRealEstate, analysis.Assets[0].Type)
	assert.Equal(t, 50.0, analysis.Assets[0].TotalValue)
	assert.Equal(t, 6000.0, analysis.Assets[1].TotalValue)
	assert.Equal(t, 300.0, analysis.Assets[1].MonthlyChange)

	require.NotNil(t, analysis.Metrics)
	assert.Equal(t, 11050.0, analysis.Metrics.TotalValue)
	assert.Equal(t, 3, analysis.Metrics.AssetCount)
	assert.Len(t, analysis.Predictions, len(types.AllTimeframes))
	assert.NotEmpty(t, analysis.Suggestions)
	assert.NotEmpty(t, analysis.Insights)
	assert.Empty(t, analysis.Warnings)
	assert.Equal(t, 0, analysis.SkippedAssets)
	assert.Equal(t, testNow, analysis.GeneratedAt)
}

func TestAnalyze_CachedWithinTTL(t *testing.T) {
	f := newPortfolioFixture(t)
	f.seedHoldings()
	ctx := context.Background()

	first, err := f.service.Analyze(ctx, testOwner, types.RiskLow)
	require.NoError(t, err)
	balanceCalls, marketCalls := f.balances.Calls(), f.market.Calls()

	second, err := f.service.Analyze(ctx, testOwner, types.RiskLow)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, balanceCalls, f.balances.Calls(), "no balance fetch on a cache hit")
	assert.Equal(t, marketCalls, f.market.Calls(), "no market fetch on a cache hit")

	require.NoError(t, f.service.Invalidate(ctx, testOwner))
	_, err = f.service.Analyze(ctx, testOwner, types.RiskLow)
	require.NoError(t, err)
	assert.Equal(t, balanceCalls+1, f.balances.Calls())
}

func TestAnalyze_BalanceFailureAbortsAndIsNotCached(t *testing.T) {
	f := newPortfolioFixture(t)
	f.seedHoldings()
	f.balances.SetError(stderrors.New("indexer unreachable"))
	ctx := context.Background()

	analysis, err := f.service.Analyze(ctx, testOwner, types.RiskLow)
	require.Error(t, err)
	assert.Nil(t, analysis, "no partial portfolio")
	assert.True(t, errors.IsSourceUnavailable(err))
	assert.Equal(t, "portfolio data unavailable, retry", errors.Categorize(err).Message)

	f.balances.SetError(nil)
	analysis, err = f.service.Analyze(ctx, testOwner, types.RiskLow)
	require.NoError(t, err)
	assert.Len(t, analysis.Assets, 3)
	assert.EqualValues(t, 2, f.balances.Calls())
}

func TestAnalyze_PerAssetFailuresAreSkipped(t *testing.T) {
	f := newPortfolioFixture(t)
	f.seedHoldings()
	f.market.FailFor(models.MarketID(types.ChainEthereum, stableTkn), stderrors.New("rate limited"))

	analysis, err := f.service.Analyze(context.Background(), testOwner, types.RiskLow)
	require.NoError(t, err)
	assert.Len(t, analysis.Assets, 2)
	assert.Equal(t, 1, analysis.SkippedAssets)
	assert.Len(t, analysis.Warnings, 1)
}

func TestAnalyze_InsightSourceFailureIsAWarning(t *testing.T) {
	f := newPortfolioFixture(t)
	f.seedHoldings()
	f.insights.err = stderrors.New("news feed down")

	analysis, err := f.service.Analyze(context.Background(), testOwner, types.RiskLow)
	require.NoError(t, err)
	assert.Contains(t, analysis.Warnings, "market insights unavailable")
	assert.Len(t, analysis.Assets, 3)
	assert.NotEmpty(t, analysis.Predictions)
}

func TestAnalyze_EmptyWallet(t *testing.T) {
	f := newPortfolioFixture(t)

	analysis, err := f.service.Analyze(context.Background(), testOwner, types.RiskLow)
	require.NoError(t, err)

	assert.Empty(t, analysis.Assets)
	assert.Equal(t, 0.0, analysis.Metrics.TotalValue)
	assert.Equal(t, 0, analysis.Metrics.AssetCount)
	assert.NotNil(t, analysis.Metrics.TopPerformers)
	assert.Empty(t, analysis.Metrics.TopPerformers)
	assert.Empty(t, analysis.Suggestions)
	assert.Equal(t, 0, f.insights.calls)
}

func TestAnalyze_InvalidInput(t *testing.T) {
	f := newPortfolioFixture(t)

	_, err := f.service.Analyze(context.Background(), "  ", types.RiskLow)
	require.Error(t, err)
	assert.True(t, errors.IsUserError(err))

	_, err = f.service.Analyze(context.Background(), testOwner, types.RiskLevel("yolo"))
	require.Error(t, err)
	assert.True(t, errors.IsUserError(err))
	assert.EqualValues(t, 0, f.balances.Calls())
}

func TestOpportunities_CachedPerHoldingsAndTolerance(t *testing.T) {
	f := newPortfolioFixture(t)
	f.seedHoldings()
	ctx := context.Background()

	low, err := f.service.Opportunities(ctx, testOwner, types.RiskLow)
	require.NoError(t, err)
	assert.Empty(t, low.CrossChain)
	assert.Equal(t, types.RiskLow, low.RiskTolerance)

	marketCalls := f.market.Calls()
	again, err := f.service.Opportunities(ctx, testOwner, types.RiskLow)
	require.NoError(t, err)
	assert.Equal(t, low, again)
	assert.EqualValues(t, 1, f.catalog.calls.Load())
	assert.Equal(t, marketCalls, f.market.Calls())

	high, err := f.service.Opportunities(ctx, testOwner, types.RiskHigh)
	require.NoError(t, err)
	assert.NotEmpty(t, high.CrossChain)
	assert.GreaterOrEqual(t, len(high.Protocols), len(low.Protocols))
}
