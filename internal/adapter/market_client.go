package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/portfolio-engine/internal/circuitbreaker"
	"github.com/portfolio-engine/internal/config"
	"github.com/portfolio-engine/internal/errors"
	"github.com/portfolio-engine/internal/logging"
	"github.com/portfolio-engine/internal/metrics"
	"github.com/portfolio-engine/internal/models"
	"github.com/portfolio-engine/internal/types"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const marketSourceName = "market"

// platformIDs maps chains onto the market API's asset platform ids
var platformIDs = map[types.ChainID]string{
	types.ChainEthereum: "ethereum",
	types.ChainPolygon:  "polygon-pos",
	types.ChainArbitrum: "arbitrum-one",
	types.ChainOptimism: "optimistic-ethereum",
	types.ChainBase:     "base",
	types.ChainBNB:      "binance-smart-chain",
	types.ChainSolana:   "solana",
}

// nativeCoinIDs maps chains onto the coin id of their native gas token
var nativeCoinIDs = map[types.ChainID]string{
	types.ChainEthereum: "ethereum",
	types.ChainPolygon:  "matic-network",
	types.ChainArbitrum: "ethereum",
	types.ChainOptimism: "ethereum",
	types.ChainBase:     "ethereum",
	types.ChainBNB:      "binancecoin",
	types.ChainSolana:   "solana",
}

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// HTTPMarketClient reads prices from a CoinGecko-compatible REST API
type HTTPMarketClient struct {
	baseURL string
	apiKey  string
	http    *retryablehttp.Client
	limiter *rate.Limiter
	breaker *circuitbreaker.CircuitBreaker
	history HistoryStore
	metrics *metrics.Metrics
}

// NewHTTPMarketClient creates a market client. history may be nil.
func NewHTTPMarketClient(cfg config.SourcesConfig, history HistoryStore, m *metrics.Metrics) *HTTPMarketClient {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	breakerCfg := circuitbreaker.DefaultConfig(marketSourceName)
	breakerCfg.OnStateChange = func(name string, _, to circuitbreaker.State) {
		m.BreakerState(name, to.Value())
	}

	return &HTTPMarketClient{
		baseURL: strings.TrimRight(cfg.MarketDataURL, "/"),
		apiKey:  cfg.APIKey,
		http:    newRetryClient(cfg.Timeout),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		breaker: circuitbreaker.NewCircuitBreaker(breakerCfg),
		history: history,
		metrics: m,
	}
}

// newRetryClient creates a new HTTP client with retry capabilities
func newRetryClient(timeout time.Duration) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.Logger = nil
	if timeout > 0 {
		c.HTTPClient.Timeout = timeout
	}
	return c
}

// simplePrice is one entry of the /simple endpoints
type simplePrice struct {
	USD       decimal.Decimal `json:"usd"`
	MarketCap decimal.Decimal `json:"usd_market_cap"`
	Volume    decimal.Decimal `json:"usd_24h_vol"`
	Change    decimal.Decimal `json:"usd_24h_change"`
}

func (p simplePrice) toMarketData() models.MarketData {
	data := models.MarketData{
		Price:            p.USD.InexactFloat64(),
		ChangePercent24h: p.Change.InexactFloat64(),
		Volume24h:        p.Volume.InexactFloat64(),
		MarketCap:        p.MarketCap.InexactFloat64(),
	}

	// change24h in quote currency: price - price/(1+pct/100)
	base := one.Add(p.Change.Div(hundred))
	if !base.IsZero() {
		data.Change24h = p.USD.Sub(p.USD.Div(base)).InexactFloat64()
	}
	return data
}

type marketChart struct {
	Prices [][2]decimal.Decimal `json:"prices"`
}

type marketRef struct {
	id       string
	network  types.ChainID
	contract string
}

func parseMarketID(id string) (marketRef, bool) {
	network, contract, ok := strings.Cut(strings.ToLower(id), ":")
	if !ok || contract == "" {
		return marketRef{}, false
	}
	return marketRef{id: id, network: types.ChainID(network), contract: contract}, true
}

// GetMarketData prices the given identifiers, batching one request per platform
func (c *HTTPMarketClient) GetMarketData(ctx context.Context, marketIDs []string) (map[string]models.MarketData, error) {
	logger := logging.FromContext(ctx).WithComponent("market_client")

	natives := make(map[string][]string) // coin id -> market ids
	tokens := make(map[string]map[string][]string)
	for _, id := range marketIDs {
		ref, ok := parseMarketID(id)
		if !ok {
			logger.WithField("marketId", id).Debug("Skipping unparseable market id")
			continue
		}
		if ref.contract == models.NativeContract {
			if coin, ok := nativeCoinIDs[ref.network]; ok {
				natives[coin] = append(natives[coin], id)
			}
			continue
		}
		platform, ok := platformIDs[ref.network]
		if !ok {
			continue
		}
		if tokens[platform] == nil {
			tokens[platform] = make(map[string][]string)
		}
		tokens[platform][ref.contract] = append(tokens[platform][ref.contract], id)
	}

	out := make(map[string]models.MarketData, len(marketIDs))

	if len(natives) > 0 {
		query := simpleQuery()
		query.Set("ids", strings.Join(sortedKeys(natives), ","))

		var resp map[string]simplePrice
		if err := c.getJSON(ctx, "/simple/price", query, &resp); err != nil {
			return nil, err
		}
		for coin, ids := range natives {
			if p, ok := resp[coin]; ok {
				for _, id := range ids {
					out[id] = p.toMarketData()
				}
			}
		}
	}

	for platform, contracts := range tokens {
		query := simpleQuery()
		query.Set("contract_addresses", strings.Join(sortedKeys(contracts), ","))

		var resp map[string]simplePrice
		if err := c.getJSON(ctx, "/simple/token_price/"+platform, query, &resp); err != nil {
			return nil, err
		}
		for contract, p := range resp {
			for _, id := range contracts[strings.ToLower(contract)] {
				out[id] = p.toMarketData()
			}
		}
	}

	return out, nil
}

// GetHistory returns a daily series, most recent first. Fetched series are written
// through to the history store, which also serves as fallback when the API fails.
func (c *HTTPMarketClient) GetHistory(ctx context.Context, marketID string, days int) ([]models.PricePoint, error) {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"component": "market_client",
		"marketId":  marketID,
	})

	points, err := c.fetchHistory(ctx, marketID, days)
	if err == nil {
		if c.history != nil && len(points) > 0 {
			if err := c.history.InsertHistory(ctx, marketID, points); err != nil {
				logger.WithError(err).Warn("Failed to persist price history")
			}
		}
		return points, nil
	}

	if c.history == nil {
		return nil, err
	}

	stored, storeErr := c.history.GetHistory(ctx, marketID, days)
	if storeErr != nil || len(stored) == 0 {
		return nil, err
	}
	logger.WithError(err).Info("Serving price history from store")
	return stored, nil
}

func (c *HTTPMarketClient) fetchHistory(ctx context.Context, marketID string, days int) ([]models.PricePoint, error) {
	ref, ok := parseMarketID(marketID)
	if !ok {
		return nil, errors.NewInvalidParameterError("marketId", "expected <network>:<contract>")
	}

	var path string
	if ref.contract == models.NativeContract {
		coin, ok := nativeCoinIDs[ref.network]
		if !ok {
			return nil, errors.NewNotFoundError("market", marketID)
		}
		path = "/coins/" + coin + "/market_chart"
	} else {
		platform, ok := platformIDs[ref.network]
		if !ok {
			return nil, errors.NewNotFoundError("market", marketID)
		}
		path = "/coins/" + platform + "/contract/" + ref.contract + "/market_chart"
	}

	query := url.Values{}
	query.Set("vs_currency", "usd")
	query.Set("days", strconv.Itoa(days))
	query.Set("interval", "daily")

	var chart marketChart
	if err := c.getJSON(ctx, path, query, &chart); err != nil {
		return nil, err
	}

	// The API returns oldest first
	points := make([]models.PricePoint, 0, len(chart.Prices))
	for i := len(chart.Prices) - 1; i >= 0; i-- {
		entry := chart.Prices[i]
		points = append(points, models.PricePoint{
			Timestamp: time.UnixMilli(entry[0].IntPart()).UTC(),
			Price:     entry[1].InexactFloat64(),
		})
		if len(points) == days+1 {
			break
		}
	}
	return points, nil
}

func (c *HTTPMarketClient) getJSON(ctx context.Context, path string, query url.Values, dest interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	err := c.breaker.Execute(ctx, func() error {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("x-cg-pro-api-key", c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("market data request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("market data request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("failed to decode market data: %w", err)
		}
		return nil
	})
	if err != nil {
		c.metrics.SourceError(marketSourceName)
		if ctx.Err() != nil {
			return err
		}
		return errors.NewSourceUnavailableError(marketSourceName, err)
	}
	return nil
}

func simpleQuery() url.Values {
	query := url.Values{}
	query.Set("vs_currencies", "usd")
	query.Set("include_market_cap", "true")
	query.Set("include_24hr_vol", "true")
	query.Set("include_24hr_change", "true")
	return query
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
