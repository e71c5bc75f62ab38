package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"leadtrack/internal/platform/metrics"
	"leadtrack/pkg/platform/httputil"
	"leadtrack/pkg/platform/middleware/device"
	"leadtrack/pkg/platform/middleware/metadata"
	request "leadtrack/pkg/platform/middleware/request"
	"leadtrack/pkg/platform/middleware/requesttime"
)

// StoreCheck names the health probe that drives the store gauge.
const StoreCheck = "store"

const probeTimeout = 2 * time.Second

// Registrar mounts a group of routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck is one dependency probed by /health.
type HealthCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Config carries what the router wires together.
type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	Routes         []Registrar
	Checks         []HealthCheck
}

// NewRouter applies the shared middleware stack and mounts every route group
// plus /health and /metrics.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(cfg.Logger))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(device.Middleware)
	r.Use(request.Logger(cfg.Logger))
	r.Use(metrics.LatencyMiddleware(cfg.Metrics))
	if cfg.RequestTimeout > 0 {
		r.Use(request.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", healthHandler(cfg.Checks, cfg.Metrics, cfg.Logger))
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	for _, routes := range cfg.Routes {
		routes.Register(r)
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthHandler runs every probe concurrently. Any failed probe makes the
// response 503.
func healthHandler(checks []HealthCheck, m *metrics.Metrics, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		results := make([]error, len(checks))
		var g errgroup.Group
		for i, check := range checks {
			g.Go(func() error {
				results[i] = check.Probe(ctx)
				return results[i]
			})
		}
		failed := g.Wait() != nil

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		for i, check := range checks {
			status := "ok"
			if err := results[i]; err != nil {
				status = err.Error()
				logger.WarnContext(r.Context(), "health probe failed",
					"check", check.Name,
					"error", err,
				)
			}
			resp.Checks[check.Name] = status
			if check.Name == StoreCheck && m != nil {
				m.SetStoreUp(results[i] == nil)
			}
		}

		if failed {
			resp.Status = "unavailable"
			httputil.WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}
