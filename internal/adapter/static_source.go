package adapter

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/portfolio-engine/internal/models"
)

// StaticBalanceSource serves fixed holdings per owner
type StaticBalanceSource struct {
	mu       sync.RWMutex
	holdings map[string][]models.BalanceRecord
	err      error
	calls    atomic.Int64
}

// NewStaticBalanceSource creates a balance source with no holdings
func NewStaticBalanceSource() *StaticBalanceSource {
	return &StaticBalanceSource{holdings: make(map[string][]models.BalanceRecord)}
}

// SetHoldings replaces the holdings of owner
func (s *StaticBalanceSource) SetHoldings(owner string, records []models.BalanceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdings[strings.ToLower(owner)] = append([]models.BalanceRecord(nil), records...)
}

// SetError makes every subsequent call fail with err; nil clears it
func (s *StaticBalanceSource) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns the number of GetBalances calls served
func (s *StaticBalanceSource) Calls() int64 {
	return s.calls.Load()
}

// GetBalances returns a copy of the owner's holdings; unknown owners hold nothing
func (s *StaticBalanceSource) GetBalances(ctx context.Context, owner string) ([]models.BalanceRecord, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]models.BalanceRecord(nil), s.holdings[strings.ToLower(owner)]...), nil
}

// StaticMarketSource serves fixed market snapshots and price series
type StaticMarketSource struct {
	mu      sync.RWMutex
	market  map[string]models.MarketData
	history map[string][]models.PricePoint
	failing map[string]error
	calls   atomic.Int64
}

// NewStaticMarketSource creates an empty market source
func NewStaticMarketSource() *StaticMarketSource {
	return &StaticMarketSource{
		market:  make(map[string]models.MarketData),
		history: make(map[string][]models.PricePoint),
		failing: make(map[string]error),
	}
}

// SetMarketData sets the snapshot for marketID
func (s *StaticMarketSource) SetMarketData(marketID string, data models.MarketData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.market[strings.ToLower(marketID)] = data
}

// SetHistory sets the series for marketID, most recent first
func (s *StaticMarketSource) SetHistory(marketID string, points []models.PricePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[strings.ToLower(marketID)] = append([]models.PricePoint(nil), points...)
}

// FailFor makes every lookup touching marketID fail with err
func (s *StaticMarketSource) FailFor(marketID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[strings.ToLower(marketID)] = err
}

// Calls returns the number of GetMarketData and GetHistory calls served
func (s *StaticMarketSource) Calls() int64 {
	return s.calls.Load()
}

// GetMarketData returns snapshots for the known identifiers
func (s *StaticMarketSource) GetMarketData(ctx context.Context, marketIDs []string) (map[string]models.MarketData, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.MarketData, len(marketIDs))
	for _, id := range marketIDs {
		key := strings.ToLower(id)
		if err, ok := s.failing[key]; ok {
			return nil, err
		}
		if data, ok := s.market[key]; ok {
			out[id] = data
		}
	}
	return out, nil
}

// GetHistory returns at most days+1 points for marketID
func (s *StaticMarketSource) GetHistory(ctx context.Context, marketID string, days int) ([]models.PricePoint, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	key := strings.ToLower(marketID)
	if err, ok := s.failing[key]; ok {
		return nil, err
	}
	points := s.history[key]
	if len(points) > days+1 {
		points = points[:days+1]
	}
	return append([]models.PricePoint(nil), points...), nil
}
