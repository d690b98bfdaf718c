package service

import (
	"context"
	"time"

	"github.com/portfolio-engine/internal/models"
	"github.com/portfolio-engine/internal/types"
)

// CatalogProvider supplies the current opportunity catalog snapshot
type CatalogProvider interface {
	Catalog(ctx context.Context) (*models.Catalog, error)
}

// staticCatalogAsOf pins the built-in catalog's timestamp so results stay reproducible
var staticCatalogAsOf = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// StaticCatalog serves the built-in reference catalog.
// Every call returns a fresh copy; arbitrage figures are simulated and labeled as such.
type StaticCatalog struct{}

// NewStaticCatalog creates the built-in catalog provider
func NewStaticCatalog() *StaticCatalog {
	return &StaticCatalog{}
}

// Catalog returns the reference catalog
func (s *StaticCatalog) Catalog(ctx context.Context) (*models.Catalog, error) {
	return DefaultCatalog(), nil
}

// DefaultCatalog builds the reference catalog used when no database catalog is configured.
// It is also the seed data for the catalog tables.
func DefaultCatalog() *models.Catalog {
	return &models.Catalog{
		Protocols: []models.DeFiProtocol{
			{ID: "aave-v3-ethereum", Name: "Aave", Blockchain: types.ChainEthereum, Category: "lending", TVL: 11_200_000_000, APY: 3.1, RiskLevel: types.RiskLow, Audited: true, Tokens: []string{"USDC", "USDT", "DAI", "WETH"}},
			{ID: "lido-ethereum", Name: "Lido", Blockchain: types.ChainEthereum, Category: "liquid-staking", TVL: 23_500_000_000, APY: 3.6, RiskLevel: types.RiskLow, Audited: true, Tokens: []string{"ETH", "stETH"}},
			{ID: "compound-v3-ethereum", Name: "Compound", Blockchain: types.ChainEthereum, Category: "lending", TVL: 2_400_000_000, APY: 4.2, RiskLevel: types.RiskLow, Audited: true, Tokens: []string{"USDC", "WETH"}},
			{ID: "uniswap-v3-arbitrum", Name: "Uniswap", Blockchain: types.ChainArbitrum, Category: "dex", TVL: 480_000_000, APY: 12.4, RiskLevel: types.RiskMedium, Audited: true, Tokens: []string{"ETH", "USDC", "ARB"}},
			{ID: "curve-ethereum", Name: "Curve", Blockchain: types.ChainEthereum, Category: "dex", TVL: 1_900_000_000, APY: 5.8, RiskLevel: types.RiskMedium, Audited: true, Tokens: []string{"USDC", "USDT", "DAI", "FRAX"}},
			{ID: "quickswap-polygon", Name: "QuickSwap", Blockchain: types.ChainPolygon, Category: "dex", TVL: 95_000_000, APY: 18.5, RiskLevel: types.RiskMedium, Audited: true, Tokens: []string{"MATIC", "USDC"}},
			{ID: "gmx-arbitrum", Name: "GMX", Blockchain: types.ChainArbitrum, Category: "derivatives", TVL: 520_000_000, APY: 21.3, RiskLevel: types.RiskHigh, Audited: true, Tokens: []string{"ETH", "BTC", "USDC"}},
			{ID: "pendle-ethereum", Name: "Pendle", Blockchain: types.ChainEthereum, Category: "yield", TVL: 3_100_000_000, APY: 16.7, RiskLevel: types.RiskHigh, Audited: true, Tokens: []string{"stETH", "USDe"}},
		},
		Lending: []models.LendingOpportunity{
			{ID: "aave-usdc-ethereum", Protocol: "Aave", Blockchain: types.ChainEthereum, Asset: "USDC", SupplyAPY: 4.8, BorrowAPY: 6.2, Utilization: 78, TVL: 3_400_000_000, RiskLevel: types.RiskLow},
			{ID: "compound-usdc-ethereum", Protocol: "Compound", Blockchain: types.ChainEthereum, Asset: "USDC", SupplyAPY: 5.1, BorrowAPY: 6.9, Utilization: 86, TVL: 1_100_000_000, RiskLevel: types.RiskLow},
			{ID: "aave-weth-ethereum", Protocol: "Aave", Blockchain: types.ChainEthereum, Asset: "WETH", SupplyAPY: 1.9, BorrowAPY: 2.6, Utilization: 72, TVL: 2_800_000_000, RiskLevel: types.RiskLow},
			{ID: "aave-usdt-polygon", Protocol: "Aave", Blockchain: types.ChainPolygon, Asset: "USDT", SupplyAPY: 6.4, BorrowAPY: 8.3, Utilization: 89, TVL: 62_000_000, RiskLevel: types.RiskMedium},
			{ID: "radiant-usdc-arbitrum", Protocol: "Radiant", Blockchain: types.ChainArbitrum, Asset: "USDC", SupplyAPY: 9.7, BorrowAPY: 13.1, Utilization: 93, TVL: 41_000_000, RiskLevel: types.RiskHigh},
			{ID: "venus-usdt-bnb", Protocol: "Venus", Blockchain: types.ChainBNB, Asset: "USDT", SupplyAPY: 11.2, BorrowAPY: 15.4, Utilization: 97, TVL: 230_000_000, RiskLevel: types.RiskHigh},
		},
		Strategies: []models.YieldStrategy{
			{ID: "steth-hold", Name: "Liquid staked ETH", Protocol: "Lido", Blockchain: types.ChainEthereum, APY: 3.6, TVL: 23_500_000_000, RiskLevel: types.RiskLow, Steps: []string{"Stake ETH for stETH", "Hold stETH"}, MinDeposit: 0.01, Description: "Earn consensus rewards on ETH without running a validator"},
			{ID: "stable-lending-ladder", Name: "Stablecoin lending ladder", Protocol: "Aave", Blockchain: types.ChainEthereum, APY: 4.9, TVL: 3_400_000_000, RiskLevel: types.RiskLow, Steps: []string{"Split stablecoins across Aave and Compound", "Rebalance weekly toward the higher supply rate"}, MinDeposit: 100, Description: "Supply-only stablecoin lending across blue-chip markets"},
			{ID: "curve-3pool-lp", Name: "Curve 3pool LP", Protocol: "Curve", Blockchain: types.ChainEthereum, APY: 5.8, TVL: 180_000_000, RiskLevel: types.RiskMedium, Steps: []string{"Deposit USDC into 3pool", "Stake LP tokens in the gauge", "Claim CRV weekly"}, MinDeposit: 500, Description: "Stable swap fees plus gauge emissions"},
			{ID: "steth-loop", Name: "Leveraged stETH loop", Protocol: "Aave", Blockchain: types.ChainEthereum, APY: 8.9, TVL: 410_000_000, RiskLevel: types.RiskHigh, Steps: []string{"Supply stETH", "Borrow WETH", "Stake WETH for stETH", "Repeat up to 3x"}, MinDeposit: 1, LockPeriod: "none", Description: "Amplified staking yield with liquidation risk"},
			{ID: "pendle-pt-usde", Name: "Fixed yield on USDe", Protocol: "Pendle", Blockchain: types.ChainEthereum, APY: 16.7, TVL: 950_000_000, RiskLevel: types.RiskHigh, Steps: []string{"Buy PT-USDe", "Hold to maturity"}, MinDeposit: 100, LockPeriod: "until maturity", Description: "Fixed rate from principal tokens"},
		},
		CrossChain: []models.CrossChainOpportunity{
			{ID: "stargate-usdc-eth-arb", Protocol: "Stargate", SourceChain: types.ChainEthereum, TargetChain: types.ChainArbitrum, Asset: "USDC", APY: 9.7, BridgeFee: 0.06, Volume: 48_000_000, RiskLevel: types.RiskMedium, RiskFactors: []string{"bridge smart contract risk", "destination lending utilization"}},
			{ID: "hop-eth-eth-opt", Protocol: "Hop", SourceChain: types.ChainEthereum, TargetChain: types.ChainOptimism, Asset: "ETH", APY: 6.1, BridgeFee: 0.04, Volume: 21_000_000, RiskLevel: types.RiskMedium, RiskFactors: []string{"bridge liquidity depth"}},
			{ID: "wormhole-usdc-eth-sol", Protocol: "Wormhole", SourceChain: types.ChainEthereum, TargetChain: types.ChainSolana, Asset: "USDC", APY: 12.3, BridgeFee: 0.1, Volume: 33_000_000, RiskLevel: types.RiskHigh, RiskFactors: []string{"guardian set trust", "wrapped asset depeg", "non-EVM destination"}},
			{ID: "celer-usdt-bnb-polygon", Protocol: "Celer", SourceChain: types.ChainBNB, TargetChain: types.ChainPolygon, Asset: "USDT", APY: 10.4, BridgeFee: 0.08, Volume: 9_500_000, RiskLevel: types.RiskMedium, RiskFactors: []string{"bridge smart contract risk", "validator liveness", "destination pool depth"}},
		},
		Pools: []models.LiquidityPool{
			{ID: "curve-3pool", Protocol: "Curve", Blockchain: types.ChainEthereum, Pair: "USDC/USDT/DAI", APY: 3.2, TVL: 180_000_000, Volume24h: 42_000_000, Fee: 0.01, ImpermanentLoss: 0.1, RiskLevel: types.RiskLow},
			{ID: "uniswap-usdc-usdt", Protocol: "Uniswap", Blockchain: types.ChainEthereum, Pair: "USDC/USDT", APY: 2.8, TVL: 65_000_000, Volume24h: 95_000_000, Fee: 0.01, ImpermanentLoss: 0.2, RiskLevel: types.RiskLow},
			{ID: "uniswap-weth-usdc-arb", Protocol: "Uniswap", Blockchain: types.ChainArbitrum, Pair: "WETH/USDC", APY: 14.6, TVL: 120_000_000, Volume24h: 210_000_000, Fee: 0.05, ImpermanentLoss: 6.5, RiskLevel: types.RiskMedium},
			{ID: "quickswap-matic-usdc", Protocol: "QuickSwap", Blockchain: types.ChainPolygon, Pair: "MATIC/USDC", APY: 19.1, TVL: 14_000_000, Volume24h: 6_800_000, Fee: 0.3, ImpermanentLoss: 9.2, RiskLevel: types.RiskMedium},
			{ID: "uniswap-arb-weth", Protocol: "Uniswap", Blockchain: types.ChainArbitrum, Pair: "ARB/WETH", APY: 38.4, TVL: 22_000_000, Volume24h: 18_000_000, Fee: 0.3, ImpermanentLoss: 17.8, RiskLevel: types.RiskHigh},
		},
		Arbitrage: []models.ArbitrageOpportunity{
			{ID: "usdc-curve-uniswap", Asset: "USDC", BuyVenue: "Curve", SellVenue: "Uniswap", Blockchain: types.ChainEthereum, ProfitPercent: 0.08, EstimatedProfit: 80, Volume: 100_000, Complexity: types.ComplexitySimple, RiskLevel: types.RiskLow, Simulated: true},
			{ID: "weth-uniswap-sushiswap-arb", Asset: "WETH", BuyVenue: "SushiSwap", SellVenue: "Uniswap", Blockchain: types.ChainArbitrum, ProfitPercent: 0.35, EstimatedProfit: 175, Volume: 50_000, Complexity: types.ComplexityModerate, RiskLevel: types.RiskMedium, Simulated: true},
			{ID: "steth-eth-curve-balancer", Asset: "stETH", BuyVenue: "Curve", SellVenue: "Balancer", Blockchain: types.ChainEthereum, ProfitPercent: 0.22, EstimatedProfit: 440, Volume: 200_000, Complexity: types.ComplexityModerate, RiskLevel: types.RiskMedium, Simulated: true},
			{ID: "matic-cross-dex-triangle", Asset: "MATIC", BuyVenue: "QuickSwap", SellVenue: "Uniswap", Blockchain: types.ChainPolygon, ProfitPercent: 1.4, EstimatedProfit: 560, Volume: 40_000, Complexity: types.ComplexityComplex, RiskLevel: types.RiskHigh, Simulated: true},
		},
		Insights: []models.DeFiInsight{
			{ID: "insight-aave-usdc-rate", Type: types.DeFiInsightYieldChange, Title: "USDC supply rates rising on Aave", Description: "Utilization on the Ethereum USDC market has pushed supply APY above 4.5%.", Impact: types.ImpactPositive, Urgency: types.UrgencyMedium, Protocols: []string{"Aave"}, Blockchains: []types.ChainID{types.ChainEthereum}, Assets: []string{"USDC"}, Timestamp: staticCatalogAsOf},
			{ID: "insight-steth-discount", Type: types.DeFiInsightMarketMove, Title: "stETH trading at a discount", Description: "stETH trades below ETH on secondary markets; looped positions carry elevated liquidation risk.", Impact: types.ImpactNegative, Urgency: types.UrgencyHigh, Protocols: []string{"Lido"}, Blockchains: []types.ChainID{types.ChainEthereum}, Assets: []string{"stETH", "ETH"}, Timestamp: staticCatalogAsOf},
			{ID: "insight-arbitrum-incentives", Type: types.DeFiInsightProtocolUpdate, Title: "New liquidity incentives on Arbitrum", Description: "Incentive programs boost LP rewards for major Arbitrum pools.", Impact: types.ImpactPositive, Urgency: types.UrgencyLow, Protocols: []string{"Uniswap"}, Blockchains: []types.ChainID{types.ChainArbitrum}, Assets: []string{"ARB"}, Timestamp: staticCatalogAsOf},
			{ID: "insight-bnb-utilization", Type: types.DeFiInsightRiskAlert, Title: "Venus USDT utilization above 95%", Description: "Withdrawals from the Venus USDT market may be delayed while utilization stays elevated.", Impact: types.ImpactNegative, Urgency: types.UrgencyHigh, Protocols: []string{"Venus"}, Blockchains: []types.ChainID{types.ChainBNB}, Assets: []string{"USDT"}, Timestamp: staticCatalogAsOf},
		},
		UpdatedAt: staticCatalogAsOf,
	}
}
