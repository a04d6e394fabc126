package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// CheckTimeout bounds every health probe.
const CheckTimeout = 3 * time.Second

// HealthChecker is a dependency that can report whether it is usable.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// DatabaseHealthChecker pings the SQL pool.
type DatabaseHealthChecker struct {
	DB *sql.DB
}

func (d *DatabaseHealthChecker) Check(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

// HealthStatus is the /health response body.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
}

// CheckStatus is the outcome of one probe.
type CheckStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// runChecks probes every checker concurrently and waits for all of them.
func runChecks(ctx context.Context, checkers map[string]HealthChecker) map[string]CheckStatus {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]CheckStatus, len(checkers))
	)
	for name, c := range checkers {
		name, c := name, c
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, CheckTimeout)
			defer cancel()

			start := time.Now()
			st := CheckStatus{Status: "healthy"}
			if err := c.Check(cctx); err != nil {
				st = CheckStatus{Status: "unhealthy", Message: err.Error()}
			}
			st.LatencyMS = time.Since(start).Milliseconds()

			mu.Lock()
			out[name] = st
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

// HealthHandler reports every dependency; 503 when any is unhealthy.
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := HealthStatus{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
			Checks:    runChecks(r.Context(), checkers),
		}
		code := http.StatusOK
		for _, c := range health.Checks {
			if c.Status != "healthy" {
				health.Status = "unhealthy"
				code = http.StatusServiceUnavailable
				break
			}
		}
		writeJSONStatus(w, code, health)
	}
}

// ReadinessHandler answers 503 as soon as one dependency fails, without
// per-check details.
func ReadinessHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ctx := errgroup.WithContext(r.Context())
		for _, c := range checkers {
			c := c
			g.Go(func() error {
				cctx, cancel := context.WithTimeout(ctx, CheckTimeout)
				defer cancel()
				return c.Check(cctx)
			})
		}

		status, code := "ready", http.StatusOK
		if err := g.Wait(); err != nil {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		writeJSONStatus(w, code, map[string]any{
			"status":    status,
			"timestamp": time.Now().UTC(),
		})
	}
}

// LivenessHandler only proves the process serves HTTP.
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
