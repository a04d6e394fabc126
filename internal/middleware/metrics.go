package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics holds the process-wide counters served on /metrics.
type Metrics struct {
	requests     atomic.Uint64
	inFlight     atomic.Int64
	clientErrors atomic.Uint64
	serverErrors atomic.Uint64

	analyses       atomic.Uint64
	analysesFailed atomic.Uint64
	itemsDetected  atomic.Uint64
	statsFailures  atomic.Uint64

	started time.Time
}

var metrics = &Metrics{started: time.Now()}

// RecordAnalysis counts one persisted scan and its items.
func RecordAnalysis(items int) {
	metrics.analyses.Add(1)
	if items > 0 {
		metrics.itemsDetected.Add(uint64(items))
	}
}

// IncrementAnalysesFailed counts analyze calls that ended without a scan.
func IncrementAnalysesFailed() { metrics.analysesFailed.Add(1) }

// IncrementStatsFailures counts counter updates that failed after their write committed.
func IncrementStatsFailures() { metrics.statsFailures.Add(1) }

// RequestStats groups HTTP counters in a Snapshot.
type RequestStats struct {
	Total        uint64 `json:"total"`
	InFlight     int64  `json:"in_flight"`
	ClientErrors uint64 `json:"client_errors"`
	ServerErrors uint64 `json:"server_errors"`
}

// AnalysisStats groups ingestion counters in a Snapshot.
type AnalysisStats struct {
	Total         uint64 `json:"total"`
	Failed        uint64 `json:"failed"`
	ItemsDetected uint64 `json:"items_detected"`
	StatsFailures uint64 `json:"stats_failures"`
}

// Snapshot is the /metrics response body.
type Snapshot struct {
	Requests       RequestStats  `json:"requests"`
	Analyses       AnalysisStats `json:"analyses"`
	UptimeSeconds  float64       `json:"uptime_seconds"`
	Goroutines     int           `json:"goroutines"`
	HeapAllocBytes uint64        `json:"heap_alloc_bytes"`
}

// GetMetrics reads every counter once.
func GetMetrics() Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return Snapshot{
		Requests: RequestStats{
			Total:        metrics.requests.Load(),
			InFlight:     metrics.inFlight.Load(),
			ClientErrors: metrics.clientErrors.Load(),
			ServerErrors: metrics.serverErrors.Load(),
		},
		Analyses: AnalysisStats{
			Total:         metrics.analyses.Load(),
			Failed:        metrics.analysesFailed.Load(),
			ItemsDetected: metrics.itemsDetected.Load(),
			StatsFailures: metrics.statsFailures.Load(),
		},
		UptimeSeconds:  time.Since(metrics.started).Seconds(),
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: mem.HeapAlloc,
	}
}

// MetricsMiddleware counts requests by outcome class.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.requests.Add(1)
		metrics.inFlight.Add(1)
		defer metrics.inFlight.Add(-1)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		switch {
		case wrapped.statusCode >= 500:
			metrics.serverErrors.Add(1)
		case wrapped.statusCode >= 400:
			metrics.clientErrors.Add(1)
		}
	})
}

// MetricsHandler serves GetMetrics as JSON.
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
