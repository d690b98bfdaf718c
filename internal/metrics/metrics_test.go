package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.CacheHit("catalog")
	m.CacheHit("catalog")
	m.CacheMiss("catalog")
	m.SourceError("balance")
	m.AssetSkipped("missing_market_data")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("catalog", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("catalog", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sourceErrors.WithLabelValues("balance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skippedAssets.WithLabelValues("missing_market_data")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CacheHit("portfolio")
		m.ObserveRequest("/health", "200", time.Millisecond)
		m.BreakerState("market", 1)
		m.CatalogRefresh("ok")
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveRequest("/api/portfolios/{owner}", "200", 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "portfolio_http_requests_total"))
}
