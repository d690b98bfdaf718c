package adapter

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/portfolio-engine/internal/logging"
)

// ethCaller is the subset of ethclient.Client the balance source needs
type ethCaller interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// dialFunc connects to one RPC endpoint
type dialFunc func(ctx context.Context, url string) (ethCaller, error)

func dialEthClient(ctx context.Context, url string) (ethCaller, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// RPCPool manages multiple RPC endpoints with failover on rate limiting (429).
// Strategy: stick to the current endpoint until it is rate limited, then switch to the next.
type RPCPool struct {
	endpoints    []string
	clients      []ethCaller
	dial         dialFunc
	currentIndex int
	mu           sync.Mutex
	cooldowns    map[int]time.Time
	cooldownTime time.Duration
	now          func() time.Time
}

// RPCPoolConfig holds configuration for creating an RPC pool
type RPCPoolConfig struct {
	// Endpoints is a list of RPC URLs, primary first
	Endpoints []string
	// CooldownTime is how long a rate-limited endpoint is skipped. Default: 60 seconds
	CooldownTime time.Duration
}

// NewRPCPool creates a pool. Endpoints are dialed lazily on first use.
func NewRPCPool(cfg *RPCPoolConfig) (*RPCPool, error) {
	return newRPCPool(cfg, dialEthClient, time.Now)
}

func newRPCPool(cfg *RPCPoolConfig, dial dialFunc, now func() time.Time) (*RPCPool, error) {
	if cfg == nil || len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one RPC endpoint is required")
	}

	cooldownTime := cfg.CooldownTime
	if cooldownTime == 0 {
		cooldownTime = 60 * time.Second
	}

	return &RPCPool{
		endpoints:    cfg.Endpoints,
		clients:      make([]ethCaller, len(cfg.Endpoints)),
		dial:         dial,
		cooldowns:    make(map[int]time.Time),
		cooldownTime: cooldownTime,
		now:          now,
	}, nil
}

// Client returns the active client and its index, connecting on first use
func (p *RPCPool) Client(ctx context.Context) (ethCaller, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.clients[p.currentIndex] == nil {
		client, err := p.dial(ctx, p.endpoints[p.currentIndex])
		if err != nil {
			return nil, p.currentIndex, fmt.Errorf("failed to connect to endpoint %d: %w", p.currentIndex, err)
		}
		p.clients[p.currentIndex] = client
	}
	return p.clients[p.currentIndex], p.currentIndex, nil
}

// OnRateLimited marks endpoint index as cooling down and moves to the next available endpoint.
// Reports from a stale index (another caller already switched) are ignored.
func (p *RPCPool) OnRateLimited(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if index != p.currentIndex {
		return nil
	}

	now := p.now()
	p.cooldowns[index] = now
	logging.WithFields(map[string]interface{}{
		"component": "rpc_pool",
		"endpoint":  index,
	}).Warn("RPC endpoint rate limited, marking cooldown")

	for i := 1; i <= len(p.endpoints); i++ {
		next := (index + i) % len(p.endpoints)
		if started, ok := p.cooldowns[next]; ok {
			if now.Sub(started) < p.cooldownTime {
				continue
			}
			delete(p.cooldowns, next)
		}
		p.currentIndex = next
		return nil
	}

	return ErrAllEndpointsRateLimited
}

// CurrentIndex returns the active endpoint index
func (p *RPCPool) CurrentIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentIndex
}

// EndpointCount returns the number of endpoints in the pool
func (p *RPCPool) EndpointCount() int {
	return len(p.endpoints)
}

// Close closes all client connections
func (p *RPCPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, client := range p.clients {
		if c, ok := client.(*ethclient.Client); ok {
			c.Close()
		}
		p.clients[i] = nil
	}
}

// IsRateLimitError checks if an error indicates rate limiting (429)
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "throttl")
}
