package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/portfolio-engine/internal/logging"
	"github.com/portfolio-engine/internal/metrics"
	"github.com/portfolio-engine/internal/models"
	"github.com/portfolio-engine/internal/storage"
	"github.com/robfig/cron/v3"
)

// catalogInsightLimit caps how many catalog insights a refresh loads
const catalogInsightLimit = 100

// CatalogLoader reads a full catalog from persistent storage
type CatalogLoader interface {
	LoadCatalog(ctx context.Context, insightLimit int) (*models.Catalog, error)
}

// CatalogRefresher keeps an in-memory catalog snapshot current by reloading it on a cron schedule.
// Until the first successful load, and whenever the loader is unavailable at startup,
// it serves the fallback provider's catalog.
type CatalogRefresher struct {
	loader   CatalogLoader
	fallback CatalogProvider
	cache    *storage.CacheService
	metrics  *metrics.Metrics
	timeout  time.Duration

	mu       sync.RWMutex
	snapshot *models.Catalog

	cron *cron.Cron
}

// NewCatalogRefresher creates a refresher. cache may be nil; when set, cached opportunity
// results are invalidated after every successful reload.
func NewCatalogRefresher(loader CatalogLoader, fallback CatalogProvider, cache *storage.CacheService, m *metrics.Metrics) *CatalogRefresher {
	return &CatalogRefresher{
		loader:   loader,
		fallback: fallback,
		cache:    cache,
		metrics:  m,
		timeout:  30 * time.Second,
		cron:     cron.New(cron.WithSeconds()),
	}
}

// Catalog returns the current snapshot, falling back when nothing has been loaded yet
func (r *CatalogRefresher) Catalog(ctx context.Context) (*models.Catalog, error) {
	r.mu.RLock()
	snapshot := r.snapshot
	r.mu.RUnlock()

	if snapshot != nil {
		return snapshot, nil
	}
	return r.fallback.Catalog(ctx)
}

// Refresh reloads the catalog once. On failure the previous snapshot stays in place.
func (r *CatalogRefresher) Refresh(ctx context.Context) error {
	logger := logging.FromContext(ctx).WithComponent("catalog_refresher")

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	catalog, err := r.loader.LoadCatalog(ctx, catalogInsightLimit)
	if err != nil {
		r.metrics.CatalogRefresh("error")
		logger.WithError(err).Warn("Catalog reload failed, keeping previous snapshot")
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	r.mu.Lock()
	r.snapshot = catalog
	r.mu.Unlock()

	if r.cache != nil {
		prefix := string(storage.CacheKeyOpportunities) + ":"
		if err := r.cache.InvalidatePrefix(ctx, prefix); err != nil {
			logger.WithError(err).Warn("Failed to invalidate cached opportunities")
		}
	}

	r.metrics.CatalogRefresh("success")
	logger.WithFields(map[string]interface{}{
		"protocols":  len(catalog.Protocols),
		"lending":    len(catalog.Lending),
		"strategies": len(catalog.Strategies),
		"pools":      len(catalog.Pools),
		"insights":   len(catalog.Insights),
	}).Info("Catalog reloaded")
	return nil
}

// Start performs an initial load and schedules periodic reloads.
// Schedule accepts cron expressions with seconds or descriptors such as "@every 10m".
func (r *CatalogRefresher) Start(ctx context.Context, schedule string) error {
	logger := logging.FromContext(ctx).WithComponent("catalog_refresher")

	if err := r.Refresh(ctx); err != nil {
		logger.Warn("Serving built-in catalog until the next successful reload")
	}

	if _, err := r.cron.AddFunc(schedule, func() {
		_ = r.Refresh(context.Background())
	}); err != nil {
		return fmt.Errorf("invalid catalog refresh schedule %q: %w", schedule, err)
	}

	r.cron.Start()
	logger.WithField("schedule", schedule).Info("Catalog refresher started")
	return nil
}

// Stop halts scheduling and waits for a running reload to finish
func (r *CatalogRefresher) Stop() {
	<-r.cron.Stop().Done()
}
