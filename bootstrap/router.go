package bootstrap

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/schemasmith/schemasmith/api"
	"github.com/schemasmith/schemasmith/openapi"
)

// buildRouter assembles the root router: static management endpoints first,
// with everything unmatched falling through to the entity dispatcher.
func (a *App) buildRouter() chi.Router {
	cfg := a.Config
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(newLoggingMiddleware(a.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", a.liveness)
	r.Get("/health/live", a.liveness)
	r.Get("/health/ready", a.readiness)
	r.Get("/version", version)

	if a.Metrics != nil {
		r.Handle(cfg.Metrics.Path, promhttp.Handler())
	}
	if cfg.OpenAPI.Enabled {
		gen := openapi.NewGenerator(a.Store, Version, a.Logger)
		r.Get("/openapi.json", gen.ServeHTTP)
	}

	models := api.NewModelHandler(a.Store, a.Schema, a.Coordinator, a.Logger, cfg.Production())
	r.Mount("/models", models.Routes())

	// Synthesized entity routes: anything not claimed above is resolved
	// against the dispatcher table at request time.
	r.NotFound(a.Dispatcher.ServeHTTP)

	return r
}

func (a *App) liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "schemasmith",
	})
}

// readiness reports ready once a data-access handle is live, or when nothing
// is registered yet so no handle is expected.
func (a *App) readiness(w http.ResponseWriter, r *http.Request) {
	if a.Handles.Current() != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ready",
			"mounted": a.Dispatcher.Bases(),
		})
		return
	}

	defs, err := a.Store.List(r.Context())
	if err == nil && len(defs) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "mounted": []string{}})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "no data-access handle"})
}

func version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "schemasmith",
		"version": Version,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func newLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
