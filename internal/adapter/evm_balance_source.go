package adapter

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/portfolio-engine/internal/config"
	"github.com/portfolio-engine/internal/errors"
	"github.com/portfolio-engine/internal/logging"
	"github.com/portfolio-engine/internal/metrics"
	"github.com/portfolio-engine/internal/models"
	"github.com/portfolio-engine/internal/retry"
	"github.com/portfolio-engine/internal/types"
	"github.com/shopspring/decimal"
)

const balanceSourceName = "balances"

const erc20ABIJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"type":"function"}
]`

var erc20ABI = mustParseABI(erc20ABIJSON)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid ABI: %v", err))
	}
	return parsed
}

// nativeMeta names the gas token of each EVM chain
var nativeMeta = map[types.ChainID][2]string{
	types.ChainEthereum: {"Ether", "ETH"},
	types.ChainPolygon:  {"Polygon", "POL"},
	types.ChainArbitrum: {"Ether", "ETH"},
	types.ChainOptimism: {"Ether", "ETH"},
	types.ChainBase:     {"Ether", "ETH"},
	types.ChainBNB:      {"BNB", "BNB"},
}

type evmChain struct {
	id     types.ChainID
	pool   *RPCPool
	tokens []common.Address
}

// EVMBalanceSource reads native and ERC-20 balances over JSON-RPC.
// Only the configured token list is read; the source does not discover tokens.
type EVMBalanceSource struct {
	chains  []*evmChain
	retry   *retry.RetryConfig
	metrics *metrics.Metrics
}

// NewEVMBalanceSource creates a balance source for every enabled EVM chain with RPC endpoints
func NewEVMBalanceSource(cfg config.ChainsConfig, m *metrics.Metrics) (*EVMBalanceSource, error) {
	return newEVMBalanceSource(cfg, m, func(endpoints []string) (*RPCPool, error) {
		return NewRPCPool(&RPCPoolConfig{Endpoints: endpoints})
	})
}

func newEVMBalanceSource(cfg config.ChainsConfig, m *metrics.Metrics, newPool func([]string) (*RPCPool, error)) (*EVMBalanceSource, error) {
	s := &EVMBalanceSource{
		retry:   retry.DefaultRetryConfig(),
		metrics: m,
	}
	s.retry.Retryable = func(err error) bool { return !isExecutionReverted(err) }

	for _, name := range cfg.Enabled {
		chainID := types.ChainID(name)
		chainCfg := cfg.Chains[name]
		if !chainID.IsEVM() {
			logging.WithField("chain", name).Warn("Skipping non-EVM chain for on-chain balances")
			continue
		}
		if len(chainCfg.RPCURLs) == 0 {
			logging.WithField("chain", name).Warn("Skipping chain without RPC endpoint")
			continue
		}

		pool, err := newPool(chainCfg.RPCURLs)
		if err != nil {
			return nil, NewAdapterError(chainID, "NewEVMBalanceSource", err, nil)
		}

		chain := &evmChain{id: chainID, pool: pool}
		for _, token := range chainCfg.Tokens {
			if !common.IsHexAddress(token) {
				return nil, NewAdapterError(chainID, "NewEVMBalanceSource", ErrInvalidAddress, map[string]interface{}{
					"token": token,
				})
			}
			chain.tokens = append(chain.tokens, common.HexToAddress(token))
		}
		s.chains = append(s.chains, chain)
	}

	if len(s.chains) == 0 {
		return nil, fmt.Errorf("no EVM chain configured with an RPC endpoint")
	}
	return s, nil
}

// GetBalances returns every non-zero holding of owner across the configured chains.
// A chain that cannot be read fails the whole call; a reverting token contract is skipped.
func (s *EVMBalanceSource) GetBalances(ctx context.Context, owner string) ([]models.BalanceRecord, error) {
	if !common.IsHexAddress(owner) {
		return nil, errors.NewInvalidParameterError("owner", "not a valid EVM address")
	}
	account := common.HexToAddress(owner)

	results := make([][]models.BalanceRecord, len(s.chains))
	errs := make([]error, len(s.chains))

	var wg sync.WaitGroup
	for i, chain := range s.chains {
		wg.Add(1)
		go func(i int, chain *evmChain) {
			defer wg.Done()
			results[i], errs[i] = s.chainBalances(ctx, chain, account)
		}(i, chain)
	}
	wg.Wait()

	var out []models.BalanceRecord
	for i, err := range errs {
		if err != nil {
			s.metrics.SourceError(balanceSourceName)
			return nil, errors.NewSourceUnavailableError(balanceSourceName, err)
		}
		out = append(out, results[i]...)
	}
	return out, nil
}

func (s *EVMBalanceSource) chainBalances(ctx context.Context, chain *evmChain, account common.Address) ([]models.BalanceRecord, error) {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"component": "evm_balance_source",
		"chain":     chain.id,
	})

	var records []models.BalanceRecord

	var native *big.Int
	err := s.call(ctx, chain, func(client ethCaller) error {
		var err error
		native, err = client.BalanceAt(ctx, account, nil)
		return err
	})
	if err != nil {
		return nil, NewAdapterError(chain.id, "BalanceAt", err, nil)
	}
	if native.Sign() > 0 {
		meta := nativeMeta[chain.id]
		name, symbol := meta[0], meta[1]
		records = append(records, models.BalanceRecord{
			ContractAddress: models.NativeContract,
			Network:         chain.id,
			Balance:         toUnits(native, 18),
			Name:            &name,
			Symbol:          &symbol,
		})
	}

	for _, token := range chain.tokens {
		raw, err := s.tokenBalance(ctx, chain, token, account)
		if err != nil {
			if isExecutionReverted(err) {
				logger.WithError(err).WithField("token", token.Hex()).Warn("Token contract reverted, skipping")
				continue
			}
			return nil, NewAdapterError(chain.id, "balanceOf", err, map[string]interface{}{
				"token": token.Hex(),
			})
		}
		if raw.Sign() == 0 {
			continue
		}

		record := models.BalanceRecord{
			ContractAddress: token.Hex(),
			Network:         chain.id,
		}

		decimals := uint8(18)
		if out, err := s.callToken(ctx, chain, token, "decimals"); err == nil && len(out) == 1 {
			if d, ok := out[0].(uint8); ok {
				decimals = d
			}
		}
		record.Balance = toUnits(raw, int32(decimals))

		if out, err := s.callToken(ctx, chain, token, "symbol"); err == nil && len(out) == 1 {
			if sym, ok := out[0].(string); ok && sym != "" {
				record.Symbol = &sym
			}
		}
		if out, err := s.callToken(ctx, chain, token, "name"); err == nil && len(out) == 1 {
			if name, ok := out[0].(string); ok && name != "" {
				record.Name = &name
			}
		}

		records = append(records, record)
	}

	return records, nil
}

func (s *EVMBalanceSource) tokenBalance(ctx context.Context, chain *evmChain, token, account common.Address) (*big.Int, error) {
	out, err := s.callToken(ctx, chain, token, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unexpected balanceOf output length %d", len(out))
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf output type %T", out[0])
	}
	return balance, nil
}

// callToken performs an eth_call of an ERC-20 view method and decodes its outputs
func (s *EVMBalanceSource) callToken(ctx context.Context, chain *evmChain, token common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	var raw []byte
	err = s.call(ctx, chain, func(client ethCaller) error {
		var err error
		raw, err = client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("execution reverted: empty %s result", method)
	}
	return erc20ABI.Unpack(method, raw)
}

// call runs fn against the chain's active endpoint with retries, rotating endpoints on 429
func (s *EVMBalanceSource) call(ctx context.Context, chain *evmChain, fn func(ethCaller) error) error {
	return retry.Do(ctx, s.retry, func(ctx context.Context, attempt int) error {
		client, index, err := chain.pool.Client(ctx)
		if err != nil {
			return err
		}
		err = fn(client)
		if IsRateLimitError(err) {
			if failErr := chain.pool.OnRateLimited(index); failErr != nil {
				return fmt.Errorf("%w: %v", failErr, err)
			}
		}
		return err
	})
}

// Close releases every RPC connection
func (s *EVMBalanceSource) Close() {
	for _, chain := range s.chains {
		chain.pool.Close()
	}
}

func toUnits(raw *big.Int, decimals int32) float64 {
	return decimal.NewFromBigInt(raw, -decimals).InexactFloat64()
}

func isExecutionReverted(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}
