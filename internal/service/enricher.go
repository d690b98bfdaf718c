package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/portfolio-engine/internal/adapter"
	"github.com/portfolio-engine/internal/errors"
	"github.com/portfolio-engine/internal/logging"
	"github.com/portfolio-engine/internal/metrics"
	"github.com/portfolio-engine/internal/models"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

const (
	// minRiskPoints is the series length below which risk falls back to neutral
	minRiskPoints = 10
	// neutralRiskScore is used when history is too short to measure volatility
	neutralRiskScore = 50.0
	riskScale        = 1000.0
	liquidityScale   = 1000.0

	weekDays  = 7
	monthDays = 30
	yearDays  = 365
)

// Skip reasons reported for assets dropped from a batch
const (
	SkipMalformed     = "malformed"
	SkipNoMarketData  = "no_market_data"
	SkipSourceFailure = "source_failure"
	SkipTimeout       = "timeout"
)

// EnricherConfig bounds enrichment work
type EnricherConfig struct {
	Workers     int
	Timeout     time.Duration // per asset
	HistoryDays int
}

// SkippedAsset identifies a balance record that could not be enriched
type SkippedAsset struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// EnrichResult is the outcome of one enrichment batch
type EnrichResult struct {
	Assets  []models.PortfolioAsset
	Skipped []SkippedAsset
}

// AssetEnricher turns raw balance records into priced, scored portfolio assets
type AssetEnricher struct {
	market  adapter.MarketDataSource
	cfg     EnricherConfig
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewAssetEnricher creates a new asset enricher
func NewAssetEnricher(market adapter.MarketDataSource, cfg EnricherConfig, m *metrics.Metrics) *AssetEnricher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.HistoryDays < 1 {
		cfg.HistoryDays = monthDays
	}
	return &AssetEnricher{
		market:  market,
		cfg:     cfg,
		metrics: m,
		now:     time.Now,
	}
}

// Enrich prices every record concurrently. A record that fails is skipped and logged;
// the batch only fails when ctx itself is done. Output order follows input order,
// with duplicate identities merged into their first occurrence.
func (e *AssetEnricher) Enrich(ctx context.Context, records []models.BalanceRecord) (*EnrichResult, error) {
	logger := logging.FromContext(ctx).WithComponent("enricher")
	result := &EnrichResult{Assets: []models.PortfolioAsset{}}

	normalized, malformed := normalizeRecords(records)
	for _, skip := range malformed {
		logger.WithFields(map[string]interface{}{
			"asset":  skip.Key,
			"reason": skip.Reason,
		}).Warn("Skipping malformed balance record")
		e.metrics.AssetSkipped(SkipMalformed)
		result.Skipped = append(result.Skipped, SkippedAsset{Key: skip.Key, Reason: SkipMalformed})
	}

	prices, err := e.prefetchMarketData(ctx, normalized)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.WithError(err).WithField("assets", len(normalized)).
			Warn("Batch market data lookup failed, falling back to per-asset lookups")
	}

	assets := make([]*models.PortfolioAsset, len(normalized))
	errs := make([]error, len(normalized))

	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for i := range normalized {
		g.Go(func() error {
			assets[i], errs[i] = e.enrichOne(ctx, &normalized[i], prices)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, asset := range assets {
		if errs[i] != nil {
			reason := skipReason(errs[i])
			logger.WithFields(map[string]interface{}{
				"asset":  normalized[i].Key(),
				"reason": reason,
			}).WithError(errs[i]).Warn("Skipping asset that could not be enriched")
			e.metrics.AssetSkipped(reason)
			result.Skipped = append(result.Skipped, SkippedAsset{Key: normalized[i].Key(), Reason: reason})
			continue
		}
		result.Assets = append(result.Assets, *asset)
	}
	return result, nil
}

var (
	errNoMarketData = stderrors.New("no market data")
	errAssetTimeout = stderrors.New("asset enrichment timed out")
)

func skipReason(err error) string {
	switch {
	case stderrors.Is(err, errAssetTimeout):
		return SkipTimeout
	case stderrors.Is(err, errNoMarketData):
		return SkipNoMarketData
	case errors.IsMalformedRecord(err):
		return SkipMalformed
	default:
		return SkipSourceFailure
	}
}

// prefetchMarketData resolves snapshots for the whole batch in one source call.
// A nil map with a nil error means there was nothing to look up.
func (e *AssetEnricher) prefetchMarketData(ctx context.Context, records []models.BalanceRecord) (map[string]models.MarketData, error) {
	if len(records) == 0 {
		return nil, nil
	}
	ids := make([]string, len(records))
	for i := range records {
		ids[i] = records[i].MarketID()
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	prices, err := e.market.GetMarketData(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get market data for %d assets: %w", len(ids), err)
	}
	return prices, nil
}

// enrichOne builds one asset. prices holds the batch snapshots; when nil the asset's
// snapshot is fetched on its own.
func (e *AssetEnricher) enrichOne(ctx context.Context, record *models.BalanceRecord, prices map[string]models.MarketData) (*models.PortfolioAsset, error) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	asset, err := e.fetchAndBuild(ctx, record, prices)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w: %v", errAssetTimeout, err)
	}
	return asset, err
}

func (e *AssetEnricher) fetchAndBuild(ctx context.Context, record *models.BalanceRecord, prices map[string]models.MarketData) (*models.PortfolioAsset, error) {
	marketID := record.MarketID()
	snapshot := prices
	if snapshot == nil {
		var err error
		snapshot, err = e.market.GetMarketData(ctx, []string{marketID})
		if err != nil {
			return nil, fmt.Errorf("failed to get market data: %w", err)
		}
	}
	data, ok := snapshot[marketID]
	if !ok {
		return nil, errNoMarketData
	}
	if data.Price < 0 || math.IsNaN(data.Price) || math.IsInf(data.Price, 0) {
		return nil, errors.NewMalformedRecordError("market", "price must be a finite non-negative number")
	}

	history, err := e.market.GetHistory(ctx, marketID, e.cfg.HistoryDays)
	if err != nil {
		return nil, fmt.Errorf("failed to get price history: %w", err)
	}

	return buildAsset(record, data, history, e.now()), nil
}

// buildAsset derives every computed field of an asset from its inputs
func buildAsset(record *models.BalanceRecord, data models.MarketData, history []models.PricePoint, now time.Time) *models.PortfolioAsset {
	name := firstNonEmpty(deref(record.Name), data.Name, record.ContractAddress)
	symbol := firstNonEmpty(deref(record.Symbol), data.Symbol)

	originalPrice := data.Price
	if record.OriginalPrice != nil {
		originalPrice = *record.OriginalPrice
	}

	totalValue := record.Balance * data.Price
	costBasis := record.Balance * originalPrice
	pnl := totalValue - costBasis
	pnlPercentage := 0.0
	if costBasis != 0 {
		pnlPercentage = pnl / costBasis * 100
	}

	tokenID := ""
	if record.TokenID != nil {
		tokenID = *record.TokenID
	}

	asset := &models.PortfolioAsset{
		ContractAddress:       record.ContractAddress,
		TokenID:               tokenID,
		Blockchain:            record.Network,
		Name:                  name,
		Symbol:                symbol,
		Type:                  ClassifyAsset(name, symbol, record.Metadata),
		Balance:               record.Balance,
		CurrentPrice:          data.Price,
		TotalValue:            totalValue,
		OriginalPrice:         originalPrice,
		PnL:                   pnl,
		PnLPercentage:         pnlPercentage,
		DailyChange:           record.Balance * data.Change24h,
		DailyChangePercentage: data.ChangePercent24h,
		WeeklyChange:          priceChange(history, weekDays),
		MonthlyChange:         priceChange(history, monthDays),
		YearlyChange:          priceChange(history, yearDays),
		APY:                   deref(record.APY),
		StakingRewards:        deref(record.StakingRewards),
		RiskScore:             RiskScore(history),
		LiquidityScore:        LiquidityScore(data.Volume24h, data.MarketCap),
		LastUpdated:           now.UTC(),
	}
	asset.ID = asset.Key()
	return asset
}

// priceChange is the difference between the latest point and the point n days back,
// clamped to the oldest available point
func priceChange(points []models.PricePoint, n int) float64 {
	if len(points) == 0 {
		return 0
	}
	idx := n
	if idx > len(points)-1 {
		idx = len(points) - 1
	}
	return points[0].Price - points[idx].Price
}

// RiskScore is the population standard deviation of daily returns scaled into 0-100.
// Series shorter than 10 points score a neutral 50.
func RiskScore(points []models.PricePoint) float64 {
	if len(points) < minRiskPoints {
		return neutralRiskScore
	}

	// points are most recent first
	returns := make([]float64, 0, len(points)-1)
	for i := 0; i < len(points)-1; i++ {
		prev := points[i+1].Price
		if prev <= 0 {
			continue
		}
		returns = append(returns, (points[i].Price-prev)/prev)
	}
	if len(returns) < 2 {
		return neutralRiskScore
	}

	return clamp(stat.PopStdDev(returns, nil)*riskScale, 0, 100)
}

// LiquidityScore is 24h volume over market cap scaled into 0-100
func LiquidityScore(volume24h, marketCap float64) float64 {
	if marketCap <= 0 {
		return 0
	}
	return clamp(volume24h/marketCap*liquidityScale, 0, 100)
}

type malformedRecord struct {
	Key    string
	Reason string
}

// normalizeRecords validates records, checksums EVM contract addresses and merges
// duplicate identities by summing balances
func normalizeRecords(records []models.BalanceRecord) ([]models.BalanceRecord, []malformedRecord) {
	var out []models.BalanceRecord
	var malformed []malformedRecord
	index := make(map[string]int, len(records))

	for _, r := range records {
		r.ContractAddress = strings.TrimSpace(r.ContractAddress)
		if reason := validateRecord(&r); reason != "" {
			malformed = append(malformed, malformedRecord{Key: r.Key(), Reason: reason})
			continue
		}
		if r.Network.IsEVM() && common.IsHexAddress(r.ContractAddress) {
			r.ContractAddress = common.HexToAddress(r.ContractAddress).Hex()
		}

		key := r.Key()
		if i, ok := index[key]; ok {
			out[i].Balance += r.Balance
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}
	return out, malformed
}

func validateRecord(r *models.BalanceRecord) string {
	switch {
	case r.ContractAddress == "":
		return "missing contract address"
	case r.Network == "":
		return "missing network"
	case math.IsNaN(r.Balance) || math.IsInf(r.Balance, 0):
		return "balance is not finite"
	case r.Balance < 0:
		return "negative balance"
	case r.OriginalPrice != nil && (*r.OriginalPrice < 0 || math.IsNaN(*r.OriginalPrice)):
		return "invalid original price"
	}
	return ""
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
