package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/portfolio-engine/internal/models"
	"github.com/portfolio-engine/internal/types"
)

// pgxQuerier is the subset of pgxpool.Pool the repository needs
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CatalogRepository loads and stores the opportunity catalog in Postgres
type CatalogRepository struct {
	db pgxQuerier
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *PostgresDB) *CatalogRepository {
	return &CatalogRepository{db: db.Pool()}
}

// LoadCatalog reads every sub-catalog in a stable order
func (r *CatalogRepository) LoadCatalog(ctx context.Context, insightLimit int) (*models.Catalog, error) {
	catalog := &models.Catalog{UpdatedAt: time.Now().UTC()}
	var err error

	if catalog.Protocols, err = r.loadProtocols(ctx); err != nil {
		return nil, err
	}
	if catalog.Lending, err = r.loadLending(ctx); err != nil {
		return nil, err
	}
	if catalog.Strategies, err = r.loadStrategies(ctx); err != nil {
		return nil, err
	}
	if catalog.CrossChain, err = r.loadCrossChain(ctx); err != nil {
		return nil, err
	}
	if catalog.Pools, err = r.loadPools(ctx); err != nil {
		return nil, err
	}
	if catalog.Arbitrage, err = r.loadArbitrage(ctx); err != nil {
		return nil, err
	}
	if catalog.Insights, err = r.loadInsights(ctx, insightLimit); err != nil {
		return nil, err
	}

	return catalog, nil
}

func (r *CatalogRepository) loadProtocols(ctx context.Context) ([]models.DeFiProtocol, error) {
	query := `
		SELECT id, name, blockchain, category, tvl, apy, risk_level, audited, tokens
		FROM catalog_protocols
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query protocols: %w", err)
	}
	defer rows.Close()

	out := make([]models.DeFiProtocol, 0)
	for rows.Next() {
		var p models.DeFiProtocol
		var chain, risk string
		if err := rows.Scan(&p.ID, &p.Name, &chain, &p.Category, &p.TVL, &p.APY, &risk, &p.Audited, &p.Tokens); err != nil {
			return nil, fmt.Errorf("failed to scan protocol: %w", err)
		}
		p.Blockchain = types.ChainID(chain)
		p.RiskLevel = types.RiskLevel(risk)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) loadLending(ctx context.Context) ([]models.LendingOpportunity, error) {
	query := `
		SELECT id, protocol, blockchain, asset, supply_apy, borrow_apy, utilization, tvl, risk_level
		FROM catalog_lending
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query lending markets: %w", err)
	}
	defer rows.Close()

	out := make([]models.LendingOpportunity, 0)
	for rows.Next() {
		var l models.LendingOpportunity
		var chain, risk string
		if err := rows.Scan(&l.ID, &l.Protocol, &chain, &l.Asset, &l.SupplyAPY, &l.BorrowAPY, &l.Utilization, &l.TVL, &risk); err != nil {
			return nil, fmt.Errorf("failed to scan lending market: %w", err)
		}
		l.Blockchain = types.ChainID(chain)
		l.RiskLevel = types.RiskLevel(risk)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) loadStrategies(ctx context.Context) ([]models.YieldStrategy, error) {
	query := `
		SELECT id, name, protocol, blockchain, apy, tvl, risk_level, steps, min_deposit, lock_period, description
		FROM catalog_strategies
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategies: %w", err)
	}
	defer rows.Close()

	out := make([]models.YieldStrategy, 0)
	for rows.Next() {
		var s models.YieldStrategy
		var chain, risk string
		if err := rows.Scan(&s.ID, &s.Name, &s.Protocol, &chain, &s.APY, &s.TVL, &risk, &s.Steps, &s.MinDeposit, &s.LockPeriod, &s.Description); err != nil {
			return nil, fmt.Errorf("failed to scan strategy: %w", err)
		}
		s.Blockchain = types.ChainID(chain)
		s.RiskLevel = types.RiskLevel(risk)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) loadCrossChain(ctx context.Context) ([]models.CrossChainOpportunity, error) {
	query := `
		SELECT id, protocol, source_chain, target_chain, asset, apy, bridge_fee, volume, risk_level, risk_factors
		FROM catalog_cross_chain
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cross-chain opportunities: %w", err)
	}
	defer rows.Close()

	out := make([]models.CrossChainOpportunity, 0)
	for rows.Next() {
		var c models.CrossChainOpportunity
		var source, target, risk string
		if err := rows.Scan(&c.ID, &c.Protocol, &source, &target, &c.Asset, &c.APY, &c.BridgeFee, &c.Volume, &risk, &c.RiskFactors); err != nil {
			return nil, fmt.Errorf("failed to scan cross-chain opportunity: %w", err)
		}
		c.SourceChain = types.ChainID(source)
		c.TargetChain = types.ChainID(target)
		c.RiskLevel = types.RiskLevel(risk)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) loadPools(ctx context.Context) ([]models.LiquidityPool, error) {
	query := `
		SELECT id, protocol, blockchain, pair, apy, tvl, volume_24h, fee, impermanent_loss, risk_level
		FROM catalog_pools
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query liquidity pools: %w", err)
	}
	defer rows.Close()

	out := make([]models.LiquidityPool, 0)
	for rows.Next() {
		var p models.LiquidityPool
		var chain, risk string
		if err := rows.Scan(&p.ID, &p.Protocol, &chain, &p.Pair, &p.APY, &p.TVL, &p.Volume24h, &p.Fee, &p.ImpermanentLoss, &risk); err != nil {
			return nil, fmt.Errorf("failed to scan liquidity pool: %w", err)
		}
		p.Blockchain = types.ChainID(chain)
		p.RiskLevel = types.RiskLevel(risk)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) loadArbitrage(ctx context.Context) ([]models.ArbitrageOpportunity, error) {
	query := `
		SELECT id, asset, buy_venue, sell_venue, blockchain, profit_percent, estimated_profit, volume, complexity, risk_level, simulated
		FROM catalog_arbitrage
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query arbitrage opportunities: %w", err)
	}
	defer rows.Close()

	out := make([]models.ArbitrageOpportunity, 0)
	for rows.Next() {
		var a models.ArbitrageOpportunity
		var chain, complexity, risk string
		if err := rows.Scan(&a.ID, &a.Asset, &a.BuyVenue, &a.SellVenue, &chain, &a.ProfitPercent, &a.EstimatedProfit, &a.Volume, &complexity, &risk, &a.Simulated); err != nil {
			return nil, fmt.Errorf("failed to scan arbitrage opportunity: %w", err)
		}
		a.Blockchain = types.ChainID(chain)
		a.Complexity = types.ArbitrageComplexity(complexity)
		a.RiskLevel = types.RiskLevel(risk)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) loadInsights(ctx context.Context, limit int) ([]models.DeFiInsight, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, type, title, description, impact, urgency, protocols, blockchains, assets, created_at
		FROM catalog_insights
		ORDER BY created_at DESC, id
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query insights: %w", err)
	}
	defer rows.Close()

	out := make([]models.DeFiInsight, 0)
	for rows.Next() {
		var in models.DeFiInsight
		var typ, impact, urgency string
		var chains []string
		if err := rows.Scan(&in.ID, &typ, &in.Title, &in.Description, &impact, &urgency, &in.Protocols, &chains, &in.Assets, &in.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}
		in.Type = types.DeFiInsightType(typ)
		in.Impact = types.Impact(impact)
		in.Urgency = types.Urgency(urgency)
		for _, c := range chains {
			in.Blockchains = append(in.Blockchains, types.ChainID(c))
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// ReplaceCatalog swaps the stored catalog for the given one in a single transaction
func (r *CatalogRepository) ReplaceCatalog(ctx context.Context, catalog *models.Catalog) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // no-op after commit
	}()

	if _, err := tx.Exec(ctx, `TRUNCATE catalog_protocols, catalog_lending, catalog_strategies,
		catalog_cross_chain, catalog_pools, catalog_arbitrage, catalog_insights`); err != nil {
		return fmt.Errorf("failed to truncate catalog: %w", err)
	}

	batch := &pgx.Batch{}
	for _, p := range catalog.Protocols {
		batch.Queue(`INSERT INTO catalog_protocols (id, name, blockchain, category, tvl, apy, risk_level, audited, tokens)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			p.ID, p.Name, string(p.Blockchain), p.Category, p.TVL, p.APY, string(p.RiskLevel), p.Audited, nonNil(p.Tokens))
	}
	for _, l := range catalog.Lending {
		batch.Queue(`INSERT INTO catalog_lending (id, protocol, blockchain, asset, supply_apy, borrow_apy, utilization, tvl, risk_level)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			l.ID, l.Protocol, string(l.Blockchain), l.Asset, l.SupplyAPY, l.BorrowAPY, l.Utilization, l.TVL, string(l.RiskLevel))
	}
	for _, s := range catalog.Strategies {
		batch.Queue(`INSERT INTO catalog_strategies (id, name, protocol, blockchain, apy, tvl, risk_level, steps, min_deposit, lock_period, description)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			s.ID, s.Name, s.Protocol, string(s.Blockchain), s.APY, s.TVL, string(s.RiskLevel), nonNil(s.Steps), s.MinDeposit, s.LockPeriod, s.Description)
	}
	for _, c := range catalog.CrossChain {
		batch.Queue(`INSERT INTO catalog_cross_chain (id, protocol, source_chain, target_chain, asset, apy, bridge_fee, volume, risk_level, risk_factors)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			c.ID, c.Protocol, string(c.SourceChain), string(c.TargetChain), c.Asset, c.APY, c.BridgeFee, c.Volume, string(c.RiskLevel), nonNil(c.RiskFactors))
	}
	for _, p := range catalog.Pools {
		batch.Queue(`INSERT INTO catalog_pools (id, protocol, blockchain, pair, apy, tvl, volume_24h, fee, impermanent_loss, risk_level)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			p.ID, p.Protocol, string(p.Blockchain), p.Pair, p.APY, p.TVL, p.Volume24h, p.Fee, p.ImpermanentLoss, string(p.RiskLevel))
	}
	for _, a := range catalog.Arbitrage {
		batch.Queue(`INSERT INTO catalog_arbitrage (id, asset, buy_venue, sell_venue, blockchain, profit_percent, estimated_profit, volume, complexity, risk_level, simulated)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			a.ID, a.Asset, a.BuyVenue, a.SellVenue, string(a.Blockchain), a.ProfitPercent, a.EstimatedProfit, a.Volume, string(a.Complexity), string(a.RiskLevel), a.Simulated)
	}
	for _, in := range catalog.Insights {
		chains := make([]string, len(in.Blockchains))
		for i, c := range in.Blockchains {
			chains[i] = string(c)
		}
		batch.Queue(`INSERT INTO catalog_insights (id, type, title, description, impact, urgency, protocols, blockchains, assets, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			in.ID, string(in.Type), in.Title, in.Description, string(in.Impact), string(in.Urgency), nonNil(in.Protocols), chains, nonNil(in.Assets), in.Timestamp)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert catalog rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit catalog: %w", err)
	}
	return nil
}

// nonNil keeps NOT NULL array columns from receiving NULL
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
