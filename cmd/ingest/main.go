package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"

	"github.com/crashgate-systems/crashgate/common/logging"
	"github.com/crashgate-systems/crashgate/internal/clientaddr"
	"github.com/crashgate-systems/crashgate/internal/config"
	"github.com/crashgate-systems/crashgate/internal/dedupe"
	"github.com/crashgate-systems/crashgate/internal/dispatch"
	"github.com/crashgate-systems/crashgate/internal/handlers"
	"github.com/crashgate-systems/crashgate/internal/projects"
	"github.com/crashgate-systems/crashgate/internal/server"
	"github.com/crashgate-systems/crashgate/internal/throttle"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("ingest"))
	logging.SetDefault(logger)

	slog.Info("Starting ingest service",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("log_format", cfg.Logging.Format),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}

	// Run database migrations
	m, err := migrate.New("file://"+cfg.Database.MigrationsDir, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to initialize migrations: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	if version, dirty, err := m.Version(); err == nil {
		slog.Info("Database migrations applied", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	}

	ctx := context.Background()

	// Project key authentication: Postgres behind an in-process TTL cache,
	// with a Redis block cache in front for repeat rejections.
	pgAuth, err := projects.NewPostgresAuthenticator(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	auth := projects.NewCachedAuthenticator(pgAuth, cfg.Auth.CacheTTL)
	defer auth.Close()

	// Dedup store
	dedupeStore, err := dedupe.NewRedisStore(cfg.Redis.URL, cfg.Redis.DedupTTL)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer dedupeStore.Close()

	redisOpt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("Invalid redis URL: %v", err)
	}
	blockClient := redis.NewClient(redisOpt)
	defer blockClient.Close()
	blocks := projects.NewBlockCache(blockClient, cfg.Auth.BlockTTL)

	// Event queue
	queue, err := dispatch.NewJetStreamDispatcher(ctx, cfg.NATS.URL, cfg.NATS.StreamName)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer queue.Close()
	slog.Info("Event queue ready", slog.String("nats_url", cfg.NATS.URL), slog.String("stream", cfg.NATS.StreamName))

	// Client address resolution
	resolver, err := clientaddr.NewResolver(cfg.ClientAddr.TrustedProxies)
	if err != nil {
		log.Fatalf("Invalid trusted proxy configuration: %v", err)
	}

	// Per-project request rate limiting; a broken rate limiter degrades to
	// no limiting rather than blocking ingest startup.
	var limiter throttle.Limiter
	if cfg.Ingestion.ThrottleEnabled {
		limiter, err = throttle.NewRedisLimiter(cfg.Redis.URL, cfg.Ingestion.RateLimitRequests, cfg.Ingestion.RateLimitWindow)
		if err != nil {
			slog.Warn("Rate limiter unavailable, continuing without request rate limiting", slog.String("error", err.Error()))
			limiter = &throttle.NoOpLimiter{}
		}
	} else {
		limiter = &throttle.NoOpLimiter{}
	}
	defer limiter.Close()

	handler := handlers.NewIngestHandler(auth, blocks, dedupeStore, resolver, queue, limiter, handlers.Options{
		MaxEventSize:     cfg.Ingestion.MaxEventSize,
		MaxEnvelopeItems: cfg.Ingestion.MaxEnvelopeItems,
		ThrottleEnabled:  cfg.Ingestion.ThrottleEnabled,
		ExposeTaskID:     cfg.Debug.ExposeTaskID,
	}, logger)
	router := server.NewRouter(handler)

	// Create server with config values
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("Ingest service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	slog.Info("Server stopped")
}
