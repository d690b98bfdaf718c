package adapter

import (
	"context"
	stderrors "errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/portfolio-engine/internal/config"
	"github.com/portfolio-engine/internal/errors"
	"github.com/portfolio-engine/internal/models"
	"github.com/portfolio-engine/internal/retry"
	"github.com/portfolio-engine/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testOwner = "0x00000000219ab540356cBB839Cbe05303d7705Fa"
	usdc      = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	usdt      = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
	brokenTkn = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
)

// fakeChain answers JSON-RPC calls from in-memory state with ABI-encoded outputs
type fakeChain struct {
	mu        sync.Mutex
	native    *big.Int
	balances  map[common.Address]*big.Int
	decimals  map[common.Address]uint8
	symbols   map[common.Address]string
	reverting map[common.Address]bool
	err       error
	calls     int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		native:    big.NewInt(0),
		balances:  make(map[common.Address]*big.Int),
		decimals:  make(map[common.Address]uint8),
		symbols:   make(map[common.Address]string),
		reverting: make(map[common.Address]bool),
	}
}

func (f *fakeChain) setToken(addr string, balance *big.Int, decimals uint8, symbol string) {
	a := common.HexToAddress(addr)
	f.balances[a] = balance
	f.decimals[a] = decimals
	f.symbols[a] = symbol
}

func (f *fakeChain) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return new(big.Int).Set(f.native), nil
}

func (f *fakeChain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.reverting[*msg.To] {
		return nil, stderrors.New("execution reverted")
	}

	method, err := erc20ABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "balanceOf":
		return method.Outputs.Pack(f.balances[*msg.To])
	case "decimals":
		return method.Outputs.Pack(f.decimals[*msg.To])
	case "symbol":
		return method.Outputs.Pack(f.symbols[*msg.To])
	default:
		return method.Outputs.Pack(f.symbols[*msg.To] + " Token")
	}
}

func newTestEVMSource(t *testing.T, endpoints map[string]*fakeChain, cfg config.ChainsConfig) *EVMBalanceSource {
	t.Helper()

	src, err := newEVMBalanceSource(cfg, nil, func(urls []string) (*RPCPool, error) {
		return newRPCPool(&RPCPoolConfig{Endpoints: urls}, func(ctx context.Context, url string) (ethCaller, error) {
			fake, ok := endpoints[url]
			if !ok {
				return nil, stderrors.New("unknown endpoint " + url)
			}
			return fake, nil
		}, time.Now)
	})
	require.NoError(t, err)

	retryable := src.retry.Retryable
	src.retry = &retry.RetryConfig{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1,
		Retryable:    retryable,
	}
	return src
}

func ethereumOnly(tokens ...string) config.ChainsConfig {
	return config.ChainsConfig{
		Enabled: []string{"ethereum"},
		Chains: map[string]config.ChainConfig{
			"ethereum": {RPCURLs: []string{"rpc-a", "rpc-b"}, Tokens: tokens},
		},
	}
}

func TestEVMBalanceSource_NativeAndTokens(t *testing.T) {
	chain := newFakeChain()
	chain.native = new(big.Int).Mul(big.NewInt(15), big.NewInt(1e17)) // 1.5 ETH
	chain.setToken(usdc, big.NewInt(2_500_000), 6, "USDC")
	chain.setToken(usdt, big.NewInt(0), 6, "USDT")
	chain.reverting[common.HexToAddress(brokenTkn)] = true

	src := newTestEVMSource(t, map[string]*fakeChain{"rpc-a": chain}, ethereumOnly(usdc, usdt, brokenTkn))

	records, err := src.GetBalances(context.Background(), testOwner)
	require.NoError(t, err)
	require.Len(t, records, 2)

	native := records[0]
	assert.Equal(t, models.NativeContract, native.ContractAddress)
	assert.Equal(t, types.ChainEthereum, native.Network)
	assert.Equal(t, 1.5, native.Balance)
	require.NotNil(t, native.Symbol)
	assert.Equal(t, "ETH", *native.Symbol)

	token := records[1]
	assert.Equal(t, common.HexToAddress(usdc).Hex(), token.ContractAddress)
	assert.Equal(t, 2.5, token.Balance)
	require.NotNil(t, token.Symbol)
	assert.Equal(t, "USDC", *token.Symbol)
	require.NotNil(t, token.Name)
	assert.Equal(t, "USDC Token", *token.Name)
}

func TestEVMBalanceSource_InvalidOwner(t *testing.T) {
	src := newTestEVMSource(t, map[string]*fakeChain{"rpc-a": newFakeChain()}, ethereumOnly())

	_, err := src.GetBalances(context.Background(), "not-an-address")
	require.Error(t, err)
	assert.True(t, errors.IsUserError(err))
}

func TestEVMBalanceSource_RPCFailureIsSourceUnavailable(t *testing.T) {
	chain := newFakeChain()
	chain.err = stderrors.New("connection refused")
	src := newTestEVMSource(t, map[string]*fakeChain{"rpc-a": chain}, ethereumOnly())

	_, err := src.GetBalances(context.Background(), testOwner)
	require.Error(t, err)
	assert.True(t, errors.IsSourceUnavailable(err))
	assert.Equal(t, 2, chain.calls, "one retry before giving up")
}

func TestEVMBalanceSource_FailsOverOnRateLimit(t *testing.T) {
	limited := newFakeChain()
	limited.err = stderrors.New("429 Too Many Requests")
	healthy := newFakeChain()
	healthy.native = big.NewInt(1e18)

	src := newTestEVMSource(t, map[string]*fakeChain{"rpc-a": limited, "rpc-b": healthy}, ethereumOnly())

	records, err := src.GetBalances(context.Background(), testOwner)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1.0, records[0].Balance)
	assert.Equal(t, 1, src.chains[0].pool.CurrentIndex())
}

func TestNewEVMBalanceSource_Validation(t *testing.T) {
	_, err := newEVMBalanceSource(config.ChainsConfig{
		Enabled: []string{"solana"},
		Chains:  map[string]config.ChainConfig{"solana": {RPCURLs: []string{"x"}}},
	}, nil, func([]string) (*RPCPool, error) { return nil, nil })
	assert.Error(t, err, "no EVM chain left")

	_, err = newEVMBalanceSource(ethereumOnly("0xnothex"), nil, func(urls []string) (*RPCPool, error) {
		return newRPCPool(&RPCPoolConfig{Endpoints: urls}, nil, time.Now)
	})
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestRPCPool_OnRateLimited(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	pool, err := newRPCPool(&RPCPoolConfig{Endpoints: []string{"a", "b"}, CooldownTime: time.Minute}, nil, func() time.Time { return now })
	require.NoError(t, err)

	require.NoError(t, pool.OnRateLimited(0))
	assert.Equal(t, 1, pool.CurrentIndex())

	// a stale report for endpoint 0 is ignored
	require.NoError(t, pool.OnRateLimited(0))
	assert.Equal(t, 1, pool.CurrentIndex())

	assert.ErrorIs(t, pool.OnRateLimited(1), ErrAllEndpointsRateLimited)

	now = now.Add(2 * time.Minute)
	require.NoError(t, pool.OnRateLimited(1))
	assert.Equal(t, 0, pool.CurrentIndex())
}

func TestIsRateLimitError(t *testing.T) {
	assert.True(t, IsRateLimitError(stderrors.New("429 Too Many Requests")))
	assert.True(t, IsRateLimitError(stderrors.New("project rate limit reached")))
	assert.False(t, IsRateLimitError(stderrors.New("connection refused")))
	assert.False(t, IsRateLimitError(nil))
}
