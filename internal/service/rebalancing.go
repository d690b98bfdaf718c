package service

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/portfolio-engine/internal/models"
	"github.com/portfolio-engine/internal/types"
)

const (
	// overweightShare is the allocation, in percent, above which a type is overweight
	overweightShare = 40.0
	// severeOverweightShare escalates an overweight suggestion to high severity
	severeOverweightShare = 60.0
	targetAllocation      = 30.0

	// stakingPositionRatio is the fraction of an idle asset moved into a staking-equivalent position
	stakingPositionRatio = 0.30
	stakingEquivalentAPY = 4.0

	tradeCostRate = 0.001
	minTradeCost  = 5.0
	rebalanceTime = "1-3 days"
	yieldMoveTime = "under 1 hour"
)

var suggestionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("portfolio-engine/suggestions"))

// RebalancingAdvisor turns an asset list and its metrics into rebalancing suggestions
type RebalancingAdvisor struct{}

// NewRebalancingAdvisor creates a new rebalancing advisor
func NewRebalancingAdvisor() *RebalancingAdvisor {
	return &RebalancingAdvisor{}
}

// Suggest applies the overweight rule per asset type, then the yield-optimization rule.
// Overweight suggestions are ordered by share, largest first.
func (r *RebalancingAdvisor) Suggest(assets []models.PortfolioAsset, metrics *models.PortfolioMetrics) []models.RebalancingSuggestion {
	suggestions := []models.RebalancingSuggestion{}
	if len(assets) == 0 || metrics == nil || metrics.TotalValue <= 0 {
		return suggestions
	}

	suggestions = append(suggestions, overweightSuggestions(assets, metrics)...)
	if s := yieldOptimization(assets, metrics); s != nil {
		suggestions = append(suggestions, *s)
	}
	return suggestions
}

type typeShare struct {
	assetType types.AssetType
	share     float64 // percent
}

func overweightSuggestions(assets []models.PortfolioAsset, metrics *models.PortfolioMetrics) []models.RebalancingSuggestion {
	var over []typeShare
	for assetType, value := range metrics.AssetTypes {
		share := value / metrics.TotalValue * 100
		if share > overweightShare {
			over = append(over, typeShare{assetType: assetType, share: share})
		}
	}
	sort.Slice(over, func(i, j int) bool {
		if over[i].share != over[j].share {
			return over[i].share > over[j].share
		}
		return over[i].assetType < over[j].assetType
	})

	out := make([]models.RebalancingSuggestion, 0, len(over))
	for _, o := range over {
		severity := types.SeverityMedium
		if o.share > severeOverweightShare {
			severity = types.SeverityHigh
		}

		// sell the same fraction of every holding of the type to land on the target
		excess := o.share - targetAllocation
		fraction := excess / o.share
		sells := []models.TradeAction{}
		moved := 0.0
		for _, a := range assets {
			if a.Type != o.assetType || a.TotalValue <= 0 {
				continue
			}
			sells = append(sells, models.TradeAction{
				AssetID: a.ID,
				Symbol:  a.Symbol,
				Amount:  a.Balance * fraction,
				Value:   a.TotalValue * fraction,
			})
			moved += a.TotalValue * fraction
		}

		out = append(out, models.RebalancingSuggestion{
			ID:                  suggestionID(types.SuggestionOverweight, string(o.assetType)),
			Type:                types.SuggestionOverweight,
			Severity:            severity,
			AssetType:           o.assetType,
			Title:               fmt.Sprintf("Reduce %s exposure", o.assetType),
			Description:         fmt.Sprintf("%s makes up %.1f%% of the portfolio; consider trimming it toward %.0f%%.", o.assetType, o.share, targetAllocation),
			CurrentAllocation:   o.share,
			SuggestedAllocation: targetAllocation,
			ExpectedImpact: models.ExpectedImpact{
				RiskChange:            -excess / 10,
				ReturnChange:          0,
				DiversificationChange: excess / 2,
			},
			Actions:       models.SuggestionActions{Sell: sells, Buy: []models.TradeAction{}},
			EstimatedCost: tradeCost(moved),
			EstimatedTime: rebalanceTime,
		})
	}
	return out
}

// yieldOptimization emits one aggregate suggestion covering every material low-yield asset
func yieldOptimization(assets []models.PortfolioAsset, metrics *models.PortfolioMetrics) *models.RebalancingSuggestion {
	buys := []models.TradeAction{}
	idleValue, moved, gained := 0.0, 0.0, 0.0
	var keys []string

	for _, a := range assets {
		if a.APY >= lowYieldAPY || a.TotalValue <= materialValue {
			continue
		}
		value := a.TotalValue * stakingPositionRatio
		buys = append(buys, models.TradeAction{
			AssetID: a.ID,
			Symbol:  a.Symbol,
			Amount:  a.Balance * stakingPositionRatio,
			Value:   value,
		})
		idleValue += a.TotalValue
		moved += value
		gained += value * (stakingEquivalentAPY - a.APY) / 100
		keys = append(keys, a.Key())
	}
	if len(buys) == 0 {
		return nil
	}
	sort.Strings(keys)

	currentShare := idleValue / metrics.TotalValue * 100
	return &models.RebalancingSuggestion{
		ID:                  suggestionID(types.SuggestionYieldOptimization, keys...),
		Type:                types.SuggestionYieldOptimization,
		Severity:            types.SeverityLow,
		Title:               "Put idle assets to work",
		Description:         fmt.Sprintf("%d holding(s) earn under %.0f%% APY; staking %.0f%% of each could add yield.", len(buys), lowYieldAPY, stakingPositionRatio*100),
		CurrentAllocation:   currentShare,
		SuggestedAllocation: currentShare * (1 - stakingPositionRatio),
		ExpectedImpact: models.ExpectedImpact{
			RiskChange:            0,
			ReturnChange:          gained / metrics.TotalValue * 100,
			DiversificationChange: 0,
		},
		Actions:       models.SuggestionActions{Sell: []models.TradeAction{}, Buy: buys},
		EstimatedCost: tradeCost(moved),
		EstimatedTime: yieldMoveTime,
	}
}

// tradeCost is a flat fee estimate, not live gas or exchange pricing
func tradeCost(moved float64) float64 {
	return math.Max(minTradeCost, moved*tradeCostRate)
}

func suggestionID(kind types.SuggestionType, parts ...string) string {
	name := string(kind)
	for _, p := range parts {
		name += "|" + p
	}
	return uuid.NewSHA1(suggestionNamespace, []byte(name)).String()
}
