package bot

import (
	"discord-baitchannel-bot/internal/metrics"
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"
)

// PerformanceMonitor tracks gateway and REST latency
type PerformanceMonitor struct {
	// Event processing metrics
	eventCount   atomic.Uint64
	eventLatency atomic.Int64 // nanoseconds

	// REST API metrics
	restCallCount atomic.Uint64
	restErrors    atomic.Uint64
	restLatency   atomic.Int64 // nanoseconds

	// WebSocket metrics
	wsLatency atomic.Int64 // milliseconds

	startTime time.Time
}

// NewPerformanceMonitor creates a new performance monitor
func NewPerformanceMonitor() *PerformanceMonitor {
	return &PerformanceMonitor{
		startTime: time.Now(),
	}
}

// TrackEvent records event dispatch time
func (pm *PerformanceMonitor) TrackEvent(duration time.Duration) {
	pm.eventCount.Add(1)
	pm.eventLatency.Store(duration.Nanoseconds())
}

// TrackREST records REST API call time
func (pm *PerformanceMonitor) TrackREST(duration time.Duration, failed bool) {
	pm.restCallCount.Add(1)
	if failed {
		pm.restErrors.Add(1)
	}
	pm.restLatency.Store(duration.Nanoseconds())
}

// UpdateWSLatency updates WebSocket latency
func (pm *PerformanceMonitor) UpdateWSLatency(latency time.Duration) {
	pm.wsLatency.Store(latency.Milliseconds())
}

// GetStats returns current performance statistics
func (pm *PerformanceMonitor) GetStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"uptime_seconds":   time.Since(pm.startTime).Seconds(),
		"event_count":      pm.eventCount.Load(),
		"event_latency_ns": pm.eventLatency.Load(),
		"rest_call_count":  pm.restCallCount.Load(),
		"rest_error_count": pm.restErrors.Load(),
		"rest_latency_ns":  pm.restLatency.Load(),
		"ws_latency_ms":    pm.wsLatency.Load(),
		"goroutines":       runtime.NumGoroutine(),
		"memory_alloc_mb":  m.Alloc / 1024 / 1024,
	}
}

// PerfTransport wraps http.RoundTripper to track REST latency
type PerfTransport struct {
	Base    http.RoundTripper
	Monitor *PerformanceMonitor
}

func (t *PerfTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	elapsed := time.Since(start)

	status := "error"
	if resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	metrics.RESTRequestDuration.WithLabelValues(req.Method, status).Observe(elapsed.Seconds())
	if t.Monitor != nil {
		t.Monitor.TrackREST(elapsed, err != nil || (resp != nil && resp.StatusCode >= 400))
	}
	return resp, err
}
