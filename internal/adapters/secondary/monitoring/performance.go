package monitoring

import (
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/fredcamaral/texdeck/internal/domain/ports"
)

// PerformanceMetrics holds generation counters and runtime measurements
type PerformanceMetrics struct {
	// Timing metrics
	AppStartTime      time.Time
	LastOperationTime time.Time
	LastDeckDuration  time.Duration
	AverageDeckTime   time.Duration

	// Memory metrics
	MemoryUsage    int64
	GoroutineCount int
	HeapSize       int64
	StackSize      int64
	GCCount        uint32

	// Operation counters
	Decks             int64
	FailedDecks       int64
	Slides            int64
	Formulas          int64
	FormulaFailures   int64
	HTTPRequests      int64
	StreamConnections int64

	mu sync.RWMutex
}

// PerformanceMonitor records generation statistics and samples the runtime
type PerformanceMonitor struct {
	metrics  *PerformanceMetrics
	interval time.Duration
	ticker   *time.Ticker
	stopCh   chan struct{}
	running  bool
	mu       sync.RWMutex
}

// NewPerformanceMonitor creates a new performance monitor
func NewPerformanceMonitor() *PerformanceMonitor {
	return &PerformanceMonitor{
		metrics: &PerformanceMetrics{
			AppStartTime: time.Now(),
		},
		interval: 30 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start begins periodic runtime sampling
func (pm *PerformanceMonitor) Start(ctx context.Context) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.running {
		return
	}

	pm.running = true
	pm.ticker = time.NewTicker(pm.interval)
	pm.updateMetrics()

	go pm.collectMetrics(ctx, pm.ticker, pm.stopCh)
}

// Stop stops runtime sampling
func (pm *PerformanceMonitor) Stop() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if !pm.running {
		return
	}

	pm.running = false
	if pm.ticker != nil {
		pm.ticker.Stop()
	}
	close(pm.stopCh)
	pm.stopCh = make(chan struct{})
}

// collectMetrics runs the metric collection loop
func (pm *PerformanceMonitor) collectMetrics(ctx context.Context, ticker *time.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			pm.updateMetrics()
		}
	}
}

// updateMetrics samples memory and goroutine counts
func (pm *PerformanceMonitor) updateMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	pm.metrics.mu.Lock()
	defer pm.metrics.mu.Unlock()

	pm.metrics.MemoryUsage = safeUint64ToInt64(memStats.Alloc)
	pm.metrics.HeapSize = safeUint64ToInt64(memStats.HeapAlloc)
	pm.metrics.StackSize = safeUint64ToInt64(memStats.StackInuse)
	pm.metrics.GoroutineCount = runtime.NumGoroutine()
	pm.metrics.GCCount = memStats.NumGC
}

// RecordDeck implements ports.StatsRecorder
func (pm *PerformanceMonitor) RecordDeck(slides, formulas, formulaFailures int, elapsed time.Duration, err error) {
	pm.metrics.mu.Lock()
	defer pm.metrics.mu.Unlock()

	pm.metrics.Decks++
	if err != nil {
		pm.metrics.FailedDecks++
	}
	pm.metrics.Slides += int64(slides)
	pm.metrics.Formulas += int64(formulas)
	pm.metrics.FormulaFailures += int64(formulaFailures)
	pm.metrics.LastDeckDuration = elapsed
	pm.metrics.LastOperationTime = time.Now()

	if pm.metrics.AverageDeckTime == 0 {
		pm.metrics.AverageDeckTime = elapsed
	} else {
		// Exponential moving average
		alpha := 0.1
		pm.metrics.AverageDeckTime = time.Duration(
			float64(pm.metrics.AverageDeckTime)*(1-alpha) + float64(elapsed)*alpha,
		)
	}
}

// Snapshot implements ports.StatsRecorder
func (pm *PerformanceMonitor) Snapshot() ports.GenerationStats {
	pm.metrics.mu.RLock()
	defer pm.metrics.mu.RUnlock()

	return ports.GenerationStats{
		StartedAt:       pm.metrics.AppStartTime,
		Decks:           pm.metrics.Decks,
		FailedDecks:     pm.metrics.FailedDecks,
		Slides:          pm.metrics.Slides,
		Formulas:        pm.metrics.Formulas,
		FormulaFailures: pm.metrics.FormulaFailures,
		LastDuration:    pm.metrics.LastDeckDuration,
		AverageDuration: pm.metrics.AverageDeckTime,
	}
}

// RecordHTTPRequest records an HTTP request
func (pm *PerformanceMonitor) RecordHTTPRequest() {
	pm.metrics.mu.Lock()
	defer pm.metrics.mu.Unlock()

	pm.metrics.HTTPRequests++
}

// RecordStreamConnection records a progress stream connection
func (pm *PerformanceMonitor) RecordStreamConnection() {
	pm.metrics.mu.Lock()
	defer pm.metrics.mu.Unlock()

	pm.metrics.StreamConnections++
}

// GetMetrics returns a copy of current metrics
func (pm *PerformanceMonitor) GetMetrics() PerformanceMetrics {
	pm.metrics.mu.RLock()
	defer pm.metrics.mu.RUnlock()

	// Return a copy without the mutex to avoid data races
	return PerformanceMetrics{
		AppStartTime:      pm.metrics.AppStartTime,
		LastOperationTime: pm.metrics.LastOperationTime,
		LastDeckDuration:  pm.metrics.LastDeckDuration,
		AverageDeckTime:   pm.metrics.AverageDeckTime,
		MemoryUsage:       pm.metrics.MemoryUsage,
		GoroutineCount:    pm.metrics.GoroutineCount,
		HeapSize:          pm.metrics.HeapSize,
		StackSize:         pm.metrics.StackSize,
		GCCount:           pm.metrics.GCCount,
		Decks:             pm.metrics.Decks,
		FailedDecks:       pm.metrics.FailedDecks,
		Slides:            pm.metrics.Slides,
		Formulas:          pm.metrics.Formulas,
		FormulaFailures:   pm.metrics.FormulaFailures,
		HTTPRequests:      pm.metrics.HTTPRequests,
		StreamConnections: pm.metrics.StreamConnections,
	}
}

// GetUptime returns application uptime
func (pm *PerformanceMonitor) GetUptime() time.Duration {
	pm.metrics.mu.RLock()
	defer pm.metrics.mu.RUnlock()

	return time.Since(pm.metrics.AppStartTime)
}

// IsHealthy performs a basic health check
func (pm *PerformanceMonitor) IsHealthy() bool {
	metrics := pm.GetMetrics()

	// Health criteria
	maxMemory := int64(500 * 1024 * 1024) // 500MB
	maxGoroutines := 1000

	return metrics.MemoryUsage < maxMemory &&
		metrics.GoroutineCount < maxGoroutines
}

// GetHealthStatus returns detailed health information
func (pm *PerformanceMonitor) GetHealthStatus() map[string]interface{} {
	metrics := pm.GetMetrics()
	uptime := pm.GetUptime()

	return map[string]interface{}{
		"healthy":    pm.IsHealthy(),
		"uptime":     uptime.String(),
		"memory_mb":  metrics.MemoryUsage / (1024 * 1024),
		"heap_mb":    metrics.HeapSize / (1024 * 1024),
		"goroutines": metrics.GoroutineCount,
		"gc_cycles":  metrics.GCCount,
		"operations": map[string]interface{}{
			"decks":              metrics.Decks,
			"failed_decks":       metrics.FailedDecks,
			"slides":             metrics.Slides,
			"formulas":           metrics.Formulas,
			"formula_failures":   metrics.FormulaFailures,
			"http_requests":      metrics.HTTPRequests,
			"stream_connections": metrics.StreamConnections,
		},
		"performance": map[string]interface{}{
			"avg_deck_time_ms":  metrics.AverageDeckTime.Milliseconds(),
			"last_deck_time_ms": metrics.LastDeckDuration.Milliseconds(),
		},
	}
}

// GetMemoryStats returns detailed memory statistics
func (pm *PerformanceMonitor) GetMemoryStats() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]interface{}{
		"alloc_mb":       safeUint64ToInt64(memStats.Alloc) / (1024 * 1024),
		"total_alloc_mb": safeUint64ToInt64(memStats.TotalAlloc) / (1024 * 1024),
		"sys_mb":         safeUint64ToInt64(memStats.Sys) / (1024 * 1024),
		"heap_alloc_mb":  safeUint64ToInt64(memStats.HeapAlloc) / (1024 * 1024),
		"heap_objects":   safeUint64ToInt64(memStats.HeapObjects),
		"gc_cycles":      memStats.NumGC,
		"next_gc_mb":     safeUint64ToInt64(memStats.NextGC) / (1024 * 1024),
	}
}

// safeUint64ToInt64 safely converts uint64 to int64, capping at max int64 value
func safeUint64ToInt64(val uint64) int64 {
	if val > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(val)
}

// Ensure PerformanceMonitor implements ports.StatsRecorder
var _ ports.StatsRecorder = (*PerformanceMonitor)(nil)
