package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"leadtrack/internal/audit"
	jwttoken "leadtrack/internal/jwt_token"
	"leadtrack/internal/leads/cache"
	leadshandler "leadtrack/internal/leads/handler"
	leadsmetrics "leadtrack/internal/leads/metrics"
	"leadtrack/internal/leads/schema"
	"leadtrack/internal/leads/service"
	"leadtrack/internal/platform/config"
	"leadtrack/internal/platform/httpserver"
	"leadtrack/internal/platform/logger"
	"leadtrack/internal/platform/metrics"
	"leadtrack/internal/platform/redis"
	"leadtrack/internal/ratelimit"
	"leadtrack/internal/recordstore/backend"
	"leadtrack/internal/tracking"
	trackinghandler "leadtrack/internal/tracking/handler"
	httptransport "leadtrack/internal/transport/http"
	"leadtrack/pkg/platform/circuit"
)

const (
	startupTimeout  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
	leadCachePrefix = "leadtrack:lead:"
)

// main wires the record store, caches, audit sink and HTTP routes, then
// serves until SIGINT or SIGTERM.
func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	startCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.New(registry)
	leadMetrics := leadsmetrics.New(registry)

	variant, err := schema.ParseVariant(cfg.Store.SchemaVariant)
	if err != nil {
		return err
	}
	store, closeStore, err := backend.Open(startCtx, cfg.Store, variant, log)
	if err != nil {
		return err
	}
	defer closeStore()

	var checks []httptransport.HealthCheck

	leadCache := cache.Cache(cache.NewInMemoryCache(cfg.LeadsTTL))
	redisClient, err := redis.New(startCtx, cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, caching leads in memory", "error", err)
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		breaker := circuit.New("lead-cache", circuit.WithFailureThreshold(3), circuit.WithCooldown(10*time.Second))
		leadCache = cache.NewFallbackCache(
			cache.NewRedisCache(redisClient.Client, leadCachePrefix+variant.String()+":", cfg.LeadsTTL),
			leadCache, breaker, log,
		)
		checks = append(checks, httptransport.HealthCheck{Name: "redis", Probe: redisClient.Health})
	}

	var auditStore audit.Store = audit.NewInMemoryStore()
	if len(cfg.Audit.Brokers) > 0 {
		kafkaStore, err := audit.NewKafkaStore(startCtx, cfg.Audit.Brokers, cfg.Audit.Topic)
		if err != nil {
			return err
		}
		defer kafkaStore.Close()
		auditStore = kafkaStore
		checks = append(checks, httptransport.HealthCheck{Name: "audit", Probe: kafkaStore.Ping})
	}
	auditPublisher := audit.NewPublisher(auditStore,
		audit.WithAsyncBuffer(cfg.Audit.Buffer),
		audit.WithLogger(log),
	)
	defer auditPublisher.Close()

	leads := service.New(store, variant,
		service.WithLogger(log),
		service.WithMetrics(leadMetrics),
		service.WithAuditPublisher(auditPublisher),
		service.WithCache(leadCache),
	)
	if err := leads.Ping(startCtx); err != nil {
		log.Warn("record store not reachable at startup, lookups will fall back", "error", err)
		httpMetrics.SetStoreUp(false)
	} else {
		httpMetrics.SetStoreUp(true)
	}
	checks = append([]httptransport.HealthCheck{{Name: httptransport.StoreCheck, Probe: leads.Ping}}, checks...)

	tracker := tracking.NewTracker(leads,
		tracking.WithLogger(log),
		tracking.WithMetrics(leadMetrics),
		tracking.WithAuditPublisher(auditPublisher),
	)

	var lookupLimit *ratelimit.Window
	if cfg.RateLimit.Limit > 0 {
		lookupLimit = ratelimit.NewWindow(cfg.RateLimit.Limit, cfg.RateLimit.Window)
		go sweepLimiter(lookupLimit, cfg.RateLimit.Window)
	}

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)
	if cfg.Auth.AdminTokenHash == "" {
		log.Warn("ADMIN_TOKEN_HASH is not set, admin tokens cannot be issued")
	}

	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Metrics:        httpMetrics,
		Gatherer:       registry,
		RequestTimeout: cfg.RequestTimeout,
		Routes: []httptransport.Registrar{
			trackinghandler.New(tracker, log, trackinghandler.WithLookupLimit(lookupLimit)),
			leadshandler.New(leads, log, jwttoken.NewMiddlewareValidator(jwtService)),
			jwttoken.NewTokenHandler(jwtService, []byte(cfg.Auth.AdminTokenHash), cfg.Auth.TokenTTL, log),
		},
		Checks: checks,
	})

	srv := httpserver.New(cfg.Addr, router)
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting leadtrack",
			"addr", cfg.Addr,
			"backend", cfg.Store.Backend,
			"schema_variant", variant.String(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return err
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return srv.Shutdown(ctx)
}

// sweepLimiter drops idle client buckets so the limiter does not grow with
// every address seen.
func sweepLimiter(limiter *ratelimit.Window, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for range ticker.C {
		limiter.Sweep()
	}
}
