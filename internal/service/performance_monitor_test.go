package service

import (
	"context"
	"testing"
	"time"

	"github.com/portfolio-engine/internal/types"
)

func TestPerformanceMonitor_RecordAnalysis(t *testing.T) {
	pm := NewPerformanceMonitor()

	pm.RecordAnalysis(50*time.Millisecond, true)
	pm.RecordAnalysis(75*time.Millisecond, true)
	pm.RecordAnalysis(90*time.Millisecond, true)
	pm.RecordAnalysis(200*time.Millisecond, false)
	pm.RecordAnalysis(300*time.Millisecond, false)
	pm.RecordFailure()

	stats := pm.Stats()

	if stats.Analyses != 5 {
		t.Errorf("Expected 5 analyses, got %d", stats.Analyses)
	}
	if stats.CacheHits != 3 {
		t.Errorf("Expected 3 cache hits, got %d", stats.CacheHits)
	}
	if stats.CacheMisses != 2 {
		t.Errorf("Expected 2 cache misses, got %d", stats.CacheMisses)
	}
	if stats.Failures != 1 {
		t.Errorf("Expected 1 failure, got %d", stats.Failures)
	}
	if stats.CacheHitRate != 60.0 {
		t.Errorf("Expected cache hit rate 60%%, got %.2f%%", stats.CacheHitRate)
	}
	if stats.AvgCachedMs < 71 || stats.AvgCachedMs > 72 {
		t.Errorf("Expected average cached time around 71.67ms, got %.2fms", stats.AvgCachedMs)
	}
	if stats.AvgComputedMs != 250 {
		t.Errorf("Expected average computed time 250ms, got %.2fms", stats.AvgComputedMs)
	}
}

func TestPerformanceMonitor_Check(t *testing.T) {
	pm := NewPerformanceMonitor()

	for i := 0; i < 100; i++ {
		pm.RecordAnalysis(5*time.Millisecond, true)
	}
	if check := pm.Check(); !check.Passed {
		t.Errorf("Performance check should pass, but got issues: %v", check.Issues)
	}

	pm.Reset()
	for i := 0; i < 100; i++ {
		pm.RecordAnalysis(150*time.Millisecond, true)
	}
	check := pm.Check()
	if check.Passed {
		t.Error("Performance check should fail for slow cache hits")
	}
	if len(check.Issues) == 0 {
		t.Error("Expected performance issues to be reported")
	}
}

func TestPerformanceMonitor_Slow(t *testing.T) {
	pm := NewPerformanceMonitor()

	pm.RecordAnalysis(50*time.Millisecond, true)
	pm.RecordAnalysis(3*time.Second, false)
	pm.RecordAnalysis(time.Second, false)

	if stats := pm.Stats(); stats.Slow != 1 {
		t.Errorf("Expected 1 slow analysis, got %d", stats.Slow)
	}
}

func TestPerformanceMonitor_Reset(t *testing.T) {
	pm := NewPerformanceMonitor()
	pm.RecordAnalysis(50*time.Millisecond, true)
	pm.RecordAnalysis(100*time.Millisecond, false)

	if stats := pm.Stats(); stats.Analyses != 2 {
		t.Errorf("Expected 2 analyses before reset, got %d", stats.Analyses)
	}

	pm.Reset()

	stats := pm.Stats()
	if stats.Analyses != 0 || stats.CacheHits != 0 {
		t.Errorf("Expected empty stats after reset, got %+v", stats)
	}
}

func TestPerformanceMonitor_Percentiles(t *testing.T) {
	pm := NewPerformanceMonitor()

	for i := 1; i <= 100; i++ {
		pm.RecordAnalysis(time.Duration(i)*time.Millisecond, true)
	}

	stats := pm.Stats()
	if stats.P95CachedMs < 94 || stats.P95CachedMs > 96 {
		t.Errorf("Expected P95 around 95ms, got %.2fms", stats.P95CachedMs)
	}
	if stats.P99CachedMs < 98 || stats.P99CachedMs > 100 {
		t.Errorf("Expected P99 around 99ms, got %.2fms", stats.P99CachedMs)
	}
}

func TestPerformanceMonitor_WindowIsBounded(t *testing.T) {
	pm := NewPerformanceMonitor()
	for i := 0; i < monitorSamples+50; i++ {
		pm.RecordAnalysis(time.Millisecond, true)
	}
	if n := len(pm.cachedTimes); n != monitorSamples {
		t.Errorf("Expected %d samples kept, got %d", monitorSamples, n)
	}
	if stats := pm.Stats(); stats.CacheHits != int64(monitorSamples+50) {
		t.Errorf("Counters should not be windowed, got %d hits", stats.CacheHits)
	}
}

func TestPortfolioService_RecordsAnalyses(t *testing.T) {
	f := newPortfolioFixture(t)
	f.seedHoldings()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.service.Analyze(ctx, testOwner, types.RiskLow); err != nil {
			t.Fatalf("Analyze failed: %v", err)
		}
	}
	f.balances.SetError(context.DeadlineExceeded)
	_, _ = f.service.Analyze(ctx, testOwner, types.RiskHigh)

	stats := f.service.Monitor().Stats()
	if stats.CacheMisses != 1 || stats.CacheHits != 2 {
		t.Errorf("Expected 1 miss and 2 hits, got %d and %d", stats.CacheMisses, stats.CacheHits)
	}
	if stats.Failures != 1 {
		t.Errorf("Expected 1 failure, got %d", stats.Failures)
	}
}
