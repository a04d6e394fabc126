package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/bryanwahyu/docguard/internal/application/analysis"
	appdetection "github.com/bryanwahyu/docguard/internal/application/detection"
	appdocs "github.com/bryanwahyu/docguard/internal/application/documents"
	"github.com/bryanwahyu/docguard/internal/application/stats"
	"github.com/bryanwahyu/docguard/internal/domain/detection"
	"github.com/bryanwahyu/docguard/internal/domain/errs"
	"github.com/bryanwahyu/docguard/internal/logging"
	"github.com/bryanwahyu/docguard/internal/middleware"
)

// Deps wires the router to the application services and middleware settings.
type Deps struct {
	Documents *appdocs.Service
	Analysis  *analysis.Service
	Stats     *stats.Service
	Detection *appdetection.Service

	APIKeys        map[string]middleware.Principal
	AllowedOrigins []string
	// RateLimiter nil disables rate limiting.
	RateLimiter *middleware.RateLimiter
	Checkers    map[string]middleware.HealthChecker
}

type Router struct {
	docs      *appdocs.Service
	analysis  *analysis.Service
	stats     *stats.Service
	detection *appdetection.Service
}

func NewRouter(d Deps) http.Handler {
	r := &Router{docs: d.Documents, analysis: d.Analysis, stats: d.Stats, detection: d.Detection}
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	mux.Get("/health", middleware.HealthHandler(d.Checkers))
	mux.Get("/health/live", middleware.LivenessHandler)
	mux.Get("/health/ready", middleware.ReadinessHandler(d.Checkers))
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Use(middleware.APIKeyAuth(d.APIKeys))
		if d.RateLimiter != nil {
			rt.Use(middleware.RateLimitMiddleware(d.RateLimiter))
		}

		rt.Post("/analyze", r.wrap(r.handleAnalyze))

		rt.Get("/documents", r.wrap(r.handleListDocuments))
		rt.Post("/documents", r.wrap(r.handleCreateDocument))
		rt.Get("/documents/{id}", r.wrap(r.handleGetDocument))
		rt.Patch("/documents/{id}", r.wrap(r.handleUpdateDocument))
		rt.Get("/documents/{id}/scans", r.wrap(r.handleDocumentScans))
		rt.Post("/documents/{id}/share", r.wrap(r.handleShareDocument))

		rt.Get("/scans", r.wrap(r.handleListScans))
		rt.Get("/scans/{id}", r.wrap(r.handleGetScan))

		if r.detection != nil {
			rt.Get("/detection/models", r.wrap(r.handleListModels))
			rt.Get("/detection/models/{id}", r.wrap(r.handleGetModel))
			rt.Get("/detection/jobs", r.wrap(r.handleListJobs))
			rt.Get("/detection/jobs/{id}", r.wrap(r.handleGetJob))
		}

		rt.Get("/users/me/stats", r.wrap(r.handleMyStats))
		rt.With(middleware.RequireAdmin).Post("/admin/users/{id}/stats/reset", r.wrap(r.handleResetStats))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest is a client error that is not tied to one field.
type badRequest string

func (b badRequest) Error() string { return string(b) }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		var (
			ve  *errs.ValidationError
			pe  *errs.PersistenceError
			se  *errs.StatsUpdateError
			ee  *detection.EngineError
			bad badRequest
		)
		switch {
		case errors.As(err, &ve):
			writeJSON(w, http.StatusBadRequest, ve.Fields)
		case errors.As(err, &bad):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": string(bad)})
		case errors.As(err, &ee):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": ee.Message})
		case errors.As(err, &pe):
			logging.FromContext(req.Context()).Error("persistence failure", "op", pe.Op, "err", pe.Err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to save analysis results"})
		case errors.As(err, &se) && se.ScanID != 0:
			middleware.IncrementStatsFailures()
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error":   "Analysis saved but user statistics could not be updated",
				"scan_id": se.ScanID,
			})
		case errors.Is(err, errs.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		case errors.As(err, &se):
			middleware.IncrementStatsFailures()
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update user statistics"})
		case errors.Is(err, errs.ErrForbidden):
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		case errors.Is(err, detection.ErrQuotaExceeded):
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "detection quota exceeded"})
		case errors.Is(err, detection.ErrEngineUnavailable):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "detection engine unavailable"})
		default:
			logging.FromContext(req.Context()).Error("request failed", "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON body, reporting malformed input as a 400.
func decodeJSON(w http.ResponseWriter, req *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

func pathID(req *http.Request) (int64, error) {
	id, ok := middleware.ParseID(chi.URLParam(req, "id"))
	if !ok {
		return 0, errs.ErrNotFound
	}
	return id, nil
}
