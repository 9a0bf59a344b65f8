package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"safety-dashboard/internal/health"
	"safety-dashboard/internal/hub"
	"safety-dashboard/internal/lifecycle"
	"safety-dashboard/internal/platform/config"
	"safety-dashboard/internal/platform/logger"
	"safety-dashboard/internal/platform/metrics"
	"safety-dashboard/internal/ratelimit"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const version = "1.0.0"

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	databaseURL := config.GetEnv("DATABASE_URL", "postgres://localhost:5432/dashboard")
	redisURL := config.GetEnv("REDIS_URL", "redis://localhost:6379/0")
	rateLimitMax := config.GetEnvInt("RATE_LIMIT_MAX", 60)
	rateLimitWindow := config.GetEnvDuration("RATE_LIMIT_WINDOW", ratelimit.DefaultWindow)
	probeTimeout := config.GetEnvDuration("PROBE_TIMEOUT", health.DefaultProbeTimeout)
	shutdownGrace := config.GetEnvDuration("SHUTDOWN_GRACE", lifecycle.DefaultGracePeriod)
	closeTimeout := config.GetEnvDuration("DEPENDENCY_CLOSE_TIMEOUT", lifecycle.DefaultCloseTimeout)

	log := logger.New(logLevel, logFormat)

	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		log.Error("invalid database configuration", "error", err)
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Error("invalid redis configuration", "error", err)
		os.Exit(1)
	}
	cache := redis.NewClient(redisOpts)

	met := metrics.New()
	monitor := health.NewMonitor(log, probeTimeout,
		health.NewStorePinger(pool),
		health.NewCachePinger(cache),
	)
	healthHandler := health.NewHandler(monitor, log, version)

	limiter := ratelimit.NewLimiter(rateLimitMax, rateLimitWindow)

	broadcastHub := hub.New(log, met)
	hubHandler := hub.NewHandler(broadcastHub, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))

	r.Get("/health", healthHandler.Liveness)
	r.Get("/ready", healthHandler.Readiness)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		met.Handler(func() {
			conns, rooms := broadcastHub.Stats()
			met.SetActiveConnections(conns)
			met.SetActiveRooms(rooms)
		}).ServeHTTP(w, req)
	})

	// Admitted traffic only beyond this point.
	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(limiter, log, met))
		r.Get("/ws", hubHandler.ServeWS)
		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/rooms/{room}/broadcast", hubHandler.BroadcastRoom)
		})
	})

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	seq := lifecycle.New(log, shutdownGrace, closeTimeout)
	seq.OnDrain(monitor.StartDraining)
	seq.AddDrainer("http server", srv.Shutdown)
	// srv.Shutdown does not track hijacked connections; give open websockets
	// the rest of the grace period to close voluntarily.
	seq.AddDrainer("websocket connections", broadcastHub.DrainWait)
	seq.AddForceCloser(broadcastHub.CloseAll)
	seq.AddForceCloser(func() { _ = srv.Close() })
	seq.AddDependency("cache", func(ctx context.Context) error { return cache.Close() })
	seq.AddDependency("store", func(ctx context.Context) error { pool.Close(); return nil })

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"version", version,
		"rate_limit_max", rateLimitMax,
		"rate_limit_window", rateLimitWindow.String(),
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received")
	os.Exit(seq.Shutdown())
}
