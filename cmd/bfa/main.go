package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kitchenunity/cabinet-bfa-go/internal/bootstrap"
	"github.com/kitchenunity/cabinet-bfa-go/internal/config"
	"github.com/kitchenunity/cabinet-bfa-go/internal/handler"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/cache"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/observability"
	"github.com/kitchenunity/cabinet-bfa-go/internal/service"
	"github.com/kitchenunity/cabinet-bfa-go/internal/tenant"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(observability.LoggerConfig{Service: "kitchenunity-bfa", Level: cfg.LogLevel})
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("storage_driver", cfg.StorageDriver),
		zap.String("blob_driver", cfg.BlobDriver),
		zap.Bool("redis", cfg.RedisAddr != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Bool("dev_hosts_enabled", cfg.DevHostsEnabled),
		zap.Bool("first_store_fallback", cfg.AllowFirstStoreFallback),
	)
	if cfg.AllowFirstStoreFallback {
		logger.Warn("first-store fallback is enabled; unresolved hosts land in the oldest store")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "kitchenunity-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	// --- Store of record ---
	backend, err := bootstrap.OpenBackend(startCtx, cfg, metrics, logger)
	if err != nil {
		logger.Fatal("failed to open store of record", zap.Error(err))
	}
	defer backend.Close()

	if backend.Migrate != nil {
		if err := backend.Migrate(startCtx); err != nil {
			logger.Fatal("migration failed", zap.Error(err))
		}
	}
	if cfg.SeedFile != "" {
		sum, err := backend.ApplySeed(startCtx, cfg.SeedFile)
		if err != nil {
			logger.Fatal("seeding failed", zap.String("file", cfg.SeedFile), zap.Error(err))
		}
		logger.Info("fixtures applied",
			zap.String("file", cfg.SeedFile),
			zap.Int("stores", sum.Stores),
			zap.Int("profiles", sum.Profiles),
		)
	}

	// --- Blobs ---
	blobs, err := bootstrap.OpenBlobs(startCtx, cfg)
	if err != nil {
		logger.Fatal("failed to open blob store", zap.Error(err))
	}

	// --- Caches ---
	caches, err := bootstrap.OpenCaches(startCtx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open caches", zap.Error(err))
	}
	defer caches.Close()

	// Sessions hold live state and stay in-process.
	sessionCache := cache.New[*service.Session](cfg.SessionTTL)
	defer sessionCache.Close()

	// --- Services ---
	now := time.Now
	tenants := service.NewTenantService(
		tenant.NewResolver(cfg.TenantOptions()),
		backend.Profiles,
		backend.Directory,
		caches.Profiles,
		caches.Stores,
		metrics,
		logger,
	)
	stores := service.NewStores(backend.Repos, now, metrics, logger)

	svc := handler.Services{
		Auth:        service.NewAuthService(cfg.JWTSecret, cfg.JWTAccessTTL, logger),
		Sessions:    service.NewSessions(sessionCache, stores, tenants, metrics, logger),
		Lifecycle:   service.NewLifecycle(logger),
		Stores:      service.NewStoreService(backend.Directory, tenants, logger).WithDefaultTaxRate(cfg.DefaultTaxRate),
		Capture:     service.NewLeadCapture(stores.Leads, tenants, logger),
		Insights:    service.NewInsights(tenants, now),
		Attachments: service.NewAttachments(blobs, now, logger),
		Ready:       backend.Ready,
	}

	// --- Router ---
	router := handler.NewRouter(svc, metrics, logger, cfg.CORSAllowedOrigins)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
