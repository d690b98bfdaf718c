package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/portfolio-engine/internal/config"
	"github.com/portfolio-engine/internal/errors"
	"github.com/portfolio-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usdcLower = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"

// memoryHistoryStore records written series and serves them back
type memoryHistoryStore struct {
	mu      sync.Mutex
	series  map[string][]models.PricePoint
	inserts int
}

func newMemoryHistoryStore() *memoryHistoryStore {
	return &memoryHistoryStore{series: make(map[string][]models.PricePoint)}
}

func (m *memoryHistoryStore) GetHistory(ctx context.Context, marketID string, days int) ([]models.PricePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.series[marketID], nil
}

func (m *memoryHistoryStore) InsertHistory(ctx context.Context, marketID string, points []models.PricePoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	m.series[marketID] = points
	return nil
}

func newTestMarketClient(t *testing.T, handler http.HandlerFunc, history HistoryStore) *HTTPMarketClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewHTTPMarketClient(config.SourcesConfig{
		MarketDataURL:     srv.URL,
		APIKey:            "test-key",
		RequestsPerSecond: 1000,
		Timeout:           time.Second,
	}, history, nil)
	client.http.RetryMax = 0
	return client
}

func TestHTTPMarketClient_GetMarketData(t *testing.T) {
	var sawKey string
	client := newTestMarketClient(t, func(w http.ResponseWriter, r *http.Request) {
		sawKey = r.Header.Get("x-cg-pro-api-key")
		switch {
		case r.URL.Path == "/simple/price":
			assert.Equal(t, "ethereum", r.URL.Query().Get("ids"))
			fmt.Fprint(w, `{"ethereum":{"usd":2000,"usd_market_cap":240000000000,"usd_24h_vol":12000000000,"usd_24h_change":10}}`)
		case r.URL.Path == "/simple/token_price/ethereum":
			assert.Equal(t, usdcLower, r.URL.Query().Get("contract_addresses"))
			fmt.Fprint(w, `{"`+usdcLower+`":{"usd":1.0001,"usd_market_cap":3.2e10,"usd_24h_vol":5e9,"usd_24h_change":null}}`)
		case strings.HasPrefix(r.URL.Path, "/simple/token_price/"):
			fmt.Fprint(w, `{}`)
		default:
			http.NotFound(w, r)
		}
	}, nil)

	ethID := models.MarketID("ethereum", models.NativeContract)
	usdcID := "ethereum:" + usdc
	unknownID := "polygon:0x0000000000000000000000000000000000000001"

	data, err := client.GetMarketData(context.Background(), []string{ethID, usdcID, unknownID, "garbage"})
	require.NoError(t, err)
	assert.Equal(t, "test-key", sawKey)
	require.Len(t, data, 2)

	eth := data[ethID]
	assert.Equal(t, 2000.0, eth.Price)
	assert.Equal(t, 10.0, eth.ChangePercent24h)
	assert.InDelta(t, 181.818, eth.Change24h, 0.001)
	assert.Equal(t, 2.4e11, eth.MarketCap)

	stable := data[usdcID]
	assert.InDelta(t, 1.0001, stable.Price, 1e-9)
	assert.Equal(t, 0.0, stable.Change24h)
	assert.Equal(t, 5e9, stable.Volume24h)
}

func TestHTTPMarketClient_GetHistoryMostRecentFirst(t *testing.T) {
	store := newMemoryHistoryStore()
	client := newTestMarketClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/ethereum/contract/"+usdcLower+"/market_chart", r.URL.Path)
		assert.Equal(t, "daily", r.URL.Query().Get("interval"))
		fmt.Fprint(w, `{"prices":[[1700000000000,1.0],[1700086400000,2.0],[1700172800000,3.0]]}`)
	}, store)

	points, err := client.GetHistory(context.Background(), "ethereum:"+usdc, 1)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 3.0, points[0].Price)
	assert.Equal(t, 2.0, points[1].Price)
	assert.True(t, points[0].Timestamp.After(points[1].Timestamp))
	assert.Equal(t, 1, store.inserts, "fetched series is written through")
}

func TestHTTPMarketClient_HistoryFallsBackToStore(t *testing.T) {
	store := newMemoryHistoryStore()
	marketID := "ethereum:" + usdc
	stored := []models.PricePoint{{Timestamp: time.Unix(1_700_000_000, 0).UTC(), Price: 0.99}}
	require.NoError(t, store.InsertHistory(context.Background(), marketID, stored))

	client := newTestMarketClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}, store)

	points, err := client.GetHistory(context.Background(), marketID, 30)
	require.NoError(t, err)
	assert.Equal(t, stored, points)
}

func TestHTTPMarketClient_FailureIsSourceUnavailable(t *testing.T) {
	client := newTestMarketClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}, nil)

	_, err := client.GetHistory(context.Background(), "ethereum:"+usdc, 30)
	require.Error(t, err)
	assert.True(t, errors.IsSourceUnavailable(err))

	_, err = client.GetMarketData(context.Background(), []string{"ethereum:native"})
	require.Error(t, err)
	assert.True(t, errors.IsSourceUnavailable(err))
}

func TestHTTPMarketClient_UnknownNetworkHistory(t *testing.T) {
	client := newTestMarketClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request %s", r.URL.Path)
	}, nil)

	_, err := client.GetHistory(context.Background(), "tron:0xabc", 30)
	require.Error(t, err)
	assert.False(t, errors.IsSourceUnavailable(err))
}
