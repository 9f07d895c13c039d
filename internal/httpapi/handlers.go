package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/roniherschmann/visit-counter/internal/config"
	"github.com/roniherschmann/visit-counter/internal/core"
	"github.com/roniherschmann/visit-counter/internal/metrics"
	"github.com/roniherschmann/visit-counter/internal/store"
)

const maxBodyBytes = 64 << 10

type Router struct {
	rec   *core.Recorder
	store store.Store
}

func NewRouter(cfg config.Config, rec *core.Recorder, s store.Store) http.Handler {
	r := chi.NewRouter()
	// Logging middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", dur).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	api := &Router{
		rec:   rec,
		store: s,
	}

	r.MethodFunc(http.MethodGet, "/healthz", api.handleHealth)
	r.MethodFunc(http.MethodGet, "/readyz", api.handleReady)

	// Metrics
	r.MethodFunc(http.MethodGet, "/metrics", metrics.Handler)

	r.MethodFunc(http.MethodGet, "/visits", api.handleVisits)
	r.Group(func(r chi.Router) {
		if cfg.VisitRateLimit > 0 {
			r.Use(httprate.Limit(cfg.VisitRateLimit, cfg.VisitRateWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					writeJSON(w, map[string]string{"error": "rate limit exceeded"}, http.StatusTooManyRequests)
				}),
			))
		}
		r.MethodFunc(http.MethodPost, "/visits", api.handleVisits)
	})

	// Everything else is answered by the dispatcher as an unsupported route.
	r.NotFound(api.handleVisits)
	r.MethodNotAllowed(api.handleVisits)

	return r
}

// handleVisits forwards the request to the dispatcher keyed by
// "<METHOD> <path>" and writes its response verbatim.
func (rt *Router) handleVisits(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, map[string]string{"error": "request body too large"}, http.StatusBadRequest)
		return
	}

	res := rt.rec.Handle(r.Context(), core.Request{
		RouteKey: r.Method + " " + r.URL.Path,
		Body:     string(body),
	})
	for k, v := range res.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(res.StatusCode)
	w.Write(res.Body)
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (rt *Router) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := rt.store.Ping(ctx); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("store not ready")
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
