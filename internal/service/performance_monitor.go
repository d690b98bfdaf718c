package service

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	// slowAnalysis is the latency above which a served analysis counts as slow
	slowAnalysis = 2 * time.Second
	// cachedAnalysisBudget is the latency a cache hit is expected to stay under
	cachedAnalysisBudget = 100 * time.Millisecond
	minHitRate           = 70.0
	monitorSamples       = 1000
)

// PerformanceMonitor keeps a rolling window of analysis latencies split by cache outcome
type PerformanceMonitor struct {
	mu            sync.RWMutex
	cachedTimes   []time.Duration
	computedTimes []time.Duration
	cacheHits     int64
	cacheMisses   int64
	failures      int64
	slow          int64
	maxSamples    int
}

// NewPerformanceMonitor creates a new performance monitor
func NewPerformanceMonitor() *PerformanceMonitor {
	return &PerformanceMonitor{
		cachedTimes:   make([]time.Duration, 0, monitorSamples),
		computedTimes: make([]time.Duration, 0, monitorSamples),
		maxSamples:    monitorSamples,
	}
}

// RecordAnalysis records one served analysis
func (pm *PerformanceMonitor) RecordAnalysis(duration time.Duration, cached bool) {
	if pm == nil {
		return
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if cached {
		pm.cacheHits++
		pm.cachedTimes = appendWindow(pm.cachedTimes, duration, pm.maxSamples)
	} else {
		pm.cacheMisses++
		pm.computedTimes = appendWindow(pm.computedTimes, duration, pm.maxSamples)
	}
	if duration > slowAnalysis {
		pm.slow++
	}
}

// RecordFailure counts an analysis that returned an error
func (pm *PerformanceMonitor) RecordFailure() {
	if pm == nil {
		return
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.failures++
}

func appendWindow(window []time.Duration, d time.Duration, max int) []time.Duration {
	window = append(window, d)
	if len(window) > max {
		window = window[len(window)-max:]
	}
	return window
}

// Stats returns the current latency statistics
func (pm *PerformanceMonitor) Stats() *PerformanceStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	stats := &PerformanceStats{
		Analyses:    pm.cacheHits + pm.cacheMisses,
		CacheHits:   pm.cacheHits,
		CacheMisses: pm.cacheMisses,
		Failures:    pm.failures,
		Slow:        pm.slow,
	}
	if stats.Analyses > 0 {
		stats.CacheHitRate = float64(pm.cacheHits) / float64(stats.Analyses) * 100
	}

	stats.AvgCachedMs, stats.P95CachedMs, stats.P99CachedMs = summarize(pm.cachedTimes)
	stats.AvgComputedMs, stats.P95ComputedMs, _ = summarize(pm.computedTimes)
	return stats
}

// summarize returns the mean, p95 and p99 of samples in milliseconds
func summarize(samples []time.Duration) (avg, p95, p99 float64) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	ms := make([]float64, len(samples))
	for i, d := range samples {
		ms[i] = float64(d) / float64(time.Millisecond)
	}
	sort.Float64s(ms)

	return stat.Mean(ms, nil),
		stat.Quantile(0.95, stat.Empirical, ms, nil),
		stat.Quantile(0.99, stat.Empirical, ms, nil)
}

// Reset clears all samples and counters
func (pm *PerformanceMonitor) Reset() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.cachedTimes = make([]time.Duration, 0, monitorSamples)
	pm.computedTimes = make([]time.Duration, 0, monitorSamples)
	pm.cacheHits = 0
	pm.cacheMisses = 0
	pm.failures = 0
	pm.slow = 0
}

// Check reports whether cached analyses stay within budget
func (pm *PerformanceMonitor) Check() *PerformanceCheck {
	stats := pm.Stats()
	budgetMs := float64(cachedAnalysisBudget.Milliseconds())

	check := &PerformanceCheck{
		Passed: true,
		Issues: make([]string, 0),
	}

	if stats.AvgCachedMs > budgetMs {
		check.Passed = false
		check.Issues = append(check.Issues,
			fmt.Sprintf("Average cached analysis time (%.2fms) exceeds %.0fms", stats.AvgCachedMs, budgetMs))
	}
	if stats.P95CachedMs > budgetMs {
		check.Passed = false
		check.Issues = append(check.Issues,
			fmt.Sprintf("P95 cached analysis time (%.2fms) exceeds %.0fms", stats.P95CachedMs, budgetMs))
	}

	// advisory only
	if stats.CacheHitRate < minHitRate && stats.Analyses > 100 {
		check.Issues = append(check.Issues,
			fmt.Sprintf("Cache hit rate (%.2f%%) is below %.0f%%, consider a longer portfolio TTL", stats.CacheHitRate, minHitRate))
	}

	return check
}

// PerformanceStats contains analysis latency statistics
type PerformanceStats struct {
	Analyses      int64   `json:"analyses"`
	CacheHits     int64   `json:"cacheHits"`
	CacheMisses   int64   `json:"cacheMisses"`
	Failures      int64   `json:"failures"`
	Slow          int64   `json:"slow"`
	CacheHitRate  float64 `json:"cacheHitRate"` // percentage
	AvgCachedMs   float64 `json:"avgCachedMs"`
	P95CachedMs   float64 `json:"p95CachedMs"`
	P99CachedMs   float64 `json:"p99CachedMs"`
	AvgComputedMs float64 `json:"avgComputedMs"`
	P95ComputedMs float64 `json:"p95ComputedMs"`
}

// PerformanceCheck contains performance check results
type PerformanceCheck struct {
	Passed bool     `json:"passed"`
	Issues []string `json:"issues"`
}
