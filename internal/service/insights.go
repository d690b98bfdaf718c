package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/portfolio-engine/internal/adapter"
	"github.com/portfolio-engine/internal/errors"
	"github.com/portfolio-engine/internal/logging"
	"github.com/portfolio-engine/internal/models"
	"github.com/portfolio-engine/internal/types"
)

const (
	minConfidence     = 20.0
	maxConfidence     = 90.0
	volatilityPenalty = 10.0

	optimisticFactor  = 1.2
	pessimisticFactor = 0.8

	trendFactorWeight           = 0.5
	volatilityFactorWeight      = 0.3
	diversificationFactorWeight = 0.2

	concentrationShare  = 0.5
	highVolatilityScore = 70.0
	strongMomentumRatio = 0.10
	lowYieldAPY         = 2.0
	materialValue       = 1000.0
)

// Prediction factor names
const (
	FactorMarketTrend     = "market-trend"
	FactorVolatility      = "volatility"
	FactorDiversification = "diversification"
)

var insightNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("portfolio-engine/insights"))

// InsightEngine derives insights and value predictions from an enriched asset list
type InsightEngine struct {
	source adapter.InsightSource
	now    func() time.Time
}

// NewInsightEngine creates an insight engine. source is optional.
func NewInsightEngine(source adapter.InsightSource) *InsightEngine {
	return &InsightEngine{
		source: source,
		now:    time.Now,
	}
}

// TrendScore is the value-weighted average of monthlyChange/totalValue
func TrendScore(assets []models.PortfolioAsset) float64 {
	total := 0.0
	for _, a := range assets {
		total += a.TotalValue
	}
	if total <= 0 {
		return 0
	}

	trend := 0.0
	for _, a := range assets {
		if a.TotalValue <= 0 {
			continue
		}
		trend += (a.TotalValue / total) * (a.MonthlyChange / a.TotalValue)
	}
	return trend
}

// Volatility is the value-weighted average of riskScore/100
func Volatility(assets []models.PortfolioAsset) float64 {
	total := 0.0
	weighted := 0.0
	for _, a := range assets {
		total += a.TotalValue
		weighted += a.TotalValue * a.RiskScore / 100
	}
	if total <= 0 {
		return 0
	}
	return weighted / total
}

// Predict projects the portfolio value for every timeframe.
// Predicted values never go below zero; a floored projection has all three scenarios at 0
// even though its predicted change is negative.
func (e *InsightEngine) Predict(assets []models.PortfolioAsset, metrics *models.PortfolioMetrics) []models.PortfolioPrediction {
	if metrics == nil {
		metrics = models.EmptyMetrics()
	}
	current := metrics.TotalValue
	trend := TrendScore(assets)
	volatility := Volatility(assets)
	confidence := math.Max(minConfidence, maxConfidence-volatility*volatilityPenalty)

	factors := []models.PredictionFactor{
		{Name: FactorMarketTrend, Impact: trend, Weight: trendFactorWeight},
		{Name: FactorVolatility, Impact: -volatility, Weight: volatilityFactorWeight},
		{Name: FactorDiversification, Impact: metrics.DiversificationScore / 100, Weight: diversificationFactorWeight},
	}

	predictions := make([]models.PortfolioPrediction, 0, len(types.AllTimeframes))
	for _, tf := range types.AllTimeframes {
		predicted := math.Max(0, current*(1+trend*tf.Multiplier()))
		change := predicted - current
		changePct := 0.0
		if current != 0 {
			changePct = change / current * 100
		}

		predictions = append(predictions, models.PortfolioPrediction{
			Timeframe:                 tf,
			CurrentValue:              current,
			PredictedValue:            predicted,
			PredictedChange:           change,
			PredictedChangePercentage: changePct,
			Confidence:                confidence,
			Factors:                   append([]models.PredictionFactor(nil), factors...),
			Scenarios: models.PredictionScenarios{
				Optimistic:  predicted * optimisticFactor,
				Realistic:   predicted,
				Pessimistic: predicted * pessimisticFactor,
			},
		})
	}
	return predictions
}

// Insights returns generated and market insights that concern held asset types,
// ordered by confidence. A failing insight source does not drop the generated insights:
// they are returned together with a source-unavailable error.
func (e *InsightEngine) Insights(ctx context.Context, assets []models.PortfolioAsset, metrics *models.PortfolioMetrics) ([]models.MarketInsight, error) {
	insights := e.GenerateInsights(assets, metrics)

	var sourceErr error
	if e.source != nil && len(assets) > 0 {
		external, err := e.source.GetInsights(ctx, assets)
		if err != nil {
			logging.FromContext(ctx).WithComponent("insights").WithError(err).Warn("Market insight source failed")
			sourceErr = errors.NewSourceUnavailableError("insights", err)
		} else {
			for _, insight := range external {
				insights = append(insights, e.normalizeExternal(insight))
			}
		}
	}

	return rankInsights(insights, assets), sourceErr
}

// GenerateInsights derives insights from the asset list alone
func (e *InsightEngine) GenerateInsights(assets []models.PortfolioAsset, metrics *models.PortfolioMetrics) []models.MarketInsight {
	if len(assets) == 0 {
		return []models.MarketInsight{}
	}
	if metrics == nil {
		metrics = models.EmptyMetrics()
	}
	now := e.now().UTC()
	var out []models.MarketInsight

	if metrics.TotalValue > 0 {
		for _, assetType := range types.AllAssetTypes {
			share := metrics.AssetTypes[assetType] / metrics.TotalValue
			if share <= concentrationShare {
				continue
			}
			out = append(out, models.MarketInsight{
				ID:          insightID("concentration", string(assetType)),
				Type:        types.InsightRisk,
				Title:       fmt.Sprintf("High concentration in %s", assetType),
				Description: fmt.Sprintf("%.1f%% of the portfolio is held in %s assets.", share*100, assetType),
				Impact:      types.ImpactNegative,
				Confidence:  85,
				AssetTypes:  []types.AssetType{assetType},
				Timestamp:   now,
			})
		}
	}

	if volatile := selectAssets(assets, func(a *models.PortfolioAsset) bool { return a.RiskScore >= highVolatilityScore }); len(volatile) > 0 {
		out = append(out, models.MarketInsight{
			ID:          insightID("volatility", assetKeys(volatile)...),
			Type:        types.InsightAlert,
			Title:       "High volatility holdings",
			Description: fmt.Sprintf("%s showed large daily price swings over the last month.", symbolList(volatile)),
			Impact:      types.ImpactNegative,
			Confidence:  75,
			AssetTypes:  assetTypesOf(volatile),
			Timestamp:   now,
		})
	}

	if movers := selectAssets(assets, func(a *models.PortfolioAsset) bool {
		return a.CurrentPrice > 0 && a.MonthlyChange/a.CurrentPrice >= strongMomentumRatio
	}); len(movers) > 0 {
		out = append(out, models.MarketInsight{
			ID:          insightID("momentum", assetKeys(movers)...),
			Type:        types.InsightTrend,
			Title:       "Strong monthly momentum",
			Description: fmt.Sprintf("%s gained at least 10%% over the last 30 days.", symbolList(movers)),
			Impact:      types.ImpactPositive,
			Confidence:  70,
			AssetTypes:  assetTypesOf(movers),
			Timestamp:   now,
		})
	}

	if idle := selectAssets(assets, func(a *models.PortfolioAsset) bool {
		return a.APY < lowYieldAPY && a.TotalValue > materialValue
	}); len(idle) > 0 {
		out = append(out, models.MarketInsight{
			ID:          insightID("low-yield", assetKeys(idle)...),
			Type:        types.InsightOpportunity,
			Title:       "Idle assets earning little yield",
			Description: fmt.Sprintf("%s earn under 2%% APY and could be staked or lent.", symbolList(idle)),
			Impact:      types.ImpactPositive,
			Confidence:  65,
			AssetTypes:  assetTypesOf(idle),
			Timestamp:   now,
		})
	}

	return out
}

func (e *InsightEngine) normalizeExternal(insight models.MarketInsight) models.MarketInsight {
	if insight.ID == "" {
		insight.ID = insightID("market", string(insight.Type), insight.Title)
	}
	if insight.Timestamp.IsZero() {
		insight.Timestamp = e.now().UTC()
	}
	insight.Confidence = clamp(insight.Confidence, 0, 100)
	return insight
}

// rankInsights keeps insights whose asset types intersect the held types
func rankInsights(insights []models.MarketInsight, assets []models.PortfolioAsset) []models.MarketInsight {
	held := make(map[types.AssetType]bool)
	for _, a := range assets {
		held[a.Type] = true
	}

	out := []models.MarketInsight{}
	for _, insight := range insights {
		for _, t := range insight.AssetTypes {
			if held[t] {
				out = append(out, insight)
				break
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return rankDesc(out[i].Confidence, out[j].Confidence, out[i].ID, out[j].ID)
	})
	return out
}

func insightID(kind string, parts ...string) string {
	return uuid.NewSHA1(insightNamespace, []byte(kind+"|"+strings.Join(parts, "|"))).String()
}

func selectAssets(assets []models.PortfolioAsset, keep func(*models.PortfolioAsset) bool) []models.PortfolioAsset {
	var out []models.PortfolioAsset
	for i := range assets {
		if keep(&assets[i]) {
			out = append(out, assets[i])
		}
	}
	return out
}

func assetKeys(assets []models.PortfolioAsset) []string {
	keys := make([]string, len(assets))
	for i := range assets {
		keys[i] = assets[i].Key()
	}
	sort.Strings(keys)
	return keys
}

// assetTypesOf returns the distinct types in priority order
func assetTypesOf(assets []models.PortfolioAsset) []types.AssetType {
	seen := make(map[types.AssetType]bool)
	for _, a := range assets {
		seen[a.Type] = true
	}
	var out []types.AssetType
	for _, t := range types.AllAssetTypes {
		if seen[t] {
			out = append(out, t)
		}
	}
	return out
}

func symbolList(assets []models.PortfolioAsset) string {
	symbols := make([]string, 0, len(assets))
	for _, a := range assets {
		symbols = append(symbols, firstNonEmpty(a.Symbol, a.Name, a.ContractAddress))
	}
	return strings.Join(symbols, ", ")
}
