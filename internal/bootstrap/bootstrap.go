// Package bootstrap builds the store of record, blob store and caches
// selected by configuration. Both binaries share it.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kitchenunity/cabinet-bfa-go/internal/config"
	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/blob"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/cache"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/memstore"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/observability"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/resilience"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/sqlstore"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/supabase"
	"github.com/kitchenunity/cabinet-bfa-go/internal/port"
	"github.com/kitchenunity/cabinet-bfa-go/internal/seed"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Backend is an opened store of record.
type Backend struct {
	Driver    string
	Repos     port.Repositories
	Directory port.StoreDirectory
	Profiles  port.ProfileStore
	// Seed is nil for backends that cannot take fixtures.
	Seed *seed.Target
	// Migrate creates missing tables. Nil when the backend needs none.
	Migrate func(ctx context.Context) error
	Ready   func(ctx context.Context) error
	Close   func() error
}

// OpenBackend opens the store of record named by cfg.StorageDriver.
func OpenBackend(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *zap.Logger) (*Backend, error) {
	now := time.Now
	switch cfg.StorageDriver {
	case config.StorageMemory:
		dir := memstore.NewDirectory(now)
		repos := memstore.NewRepositories(now)
		b := &Backend{
			Driver:    cfg.StorageDriver,
			Repos:     repos,
			Directory: dir,
			Profiles:  dir,
			Ready:     func(context.Context) error { return nil },
			Close:     func() error { return nil },
		}
		return b, b.attachSeed(dir)

	case config.StorageSupabase:
		if cfg.SupabaseURL == "" {
			return nil, fmt.Errorf("storage driver %q needs SUPABASE_URL", cfg.StorageDriver)
		}
		client := supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase", logger),
			resilience.Config{
				MaxRetries:     cfg.MaxRetries,
				InitialBackoff: cfg.InitialBackoff,
				MaxConcurrency: cfg.MaxConcurrency,
			},
			metrics,
			logger,
		)
		dir := supabase.NewDirectory(client)
		return &Backend{
			Driver:    cfg.StorageDriver,
			Repos:     supabase.NewRepositories(client),
			Directory: dir,
			Profiles:  dir,
			Ready: func(ctx context.Context) error {
				_, err := dir.ListStores(ctx)
				return err
			},
			Close: func() error { return nil },
		}, nil

	case config.StoragePostgres, config.StorageSQLite:
		dialect, dsn := sqlstore.Postgres, cfg.DatabaseURL
		if cfg.StorageDriver == config.StorageSQLite {
			dialect, dsn = sqlstore.SQLite, cfg.SQLitePath
		}
		if dsn == "" {
			return nil, fmt.Errorf("storage driver %q: no database configured", cfg.StorageDriver)
		}
		db, err := sqlstore.Open(ctx, dialect, dsn, logger)
		if err != nil {
			return nil, err
		}
		dir := sqlstore.NewDirectory(db, now)
		b := &Backend{
			Driver:    cfg.StorageDriver,
			Repos:     sqlstore.NewRepositories(db, now),
			Directory: dir,
			Profiles:  dir,
			Migrate:   db.Migrate,
			Ready:     db.Ping,
			Close:     db.Close,
		}
		return b, b.attachSeed(dir)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

func (b *Backend) attachSeed(dir seed.Directory) error {
	target, err := seed.TargetFor(dir, b.Repos)
	if err != nil {
		return err
	}
	b.Seed = &target
	return nil
}

// ApplySeed loads the fixture at path into b.
func (b *Backend) ApplySeed(ctx context.Context, path string) (*seed.Summary, error) {
	if b.Seed == nil {
		return nil, fmt.Errorf("storage driver %q: %w", b.Driver, seed.ErrNotSeedable)
	}
	f, err := seed.Load(path)
	if err != nil {
		return nil, err
	}
	return seed.Apply(ctx, f, *b.Seed, time.Now)
}

// OpenBlobs opens the attachment blob store named by cfg.BlobDriver.
func OpenBlobs(ctx context.Context, cfg *config.Config) (port.BlobStore, error) {
	switch cfg.BlobDriver {
	case config.BlobMemory, "":
		return blob.NewMemory(), nil
	case config.BlobS3:
		s3, err := blob.NewS3(ctx, blob.S3Config{
			Bucket:     cfg.BlobS3Bucket,
			Region:     cfg.BlobS3Region,
			Endpoint:   cfg.BlobS3Endpoint,
			PathStyle:  cfg.BlobS3PathStyle,
			HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		})
		if err != nil {
			return nil, err
		}
		return s3, nil
	}
	return nil, fmt.Errorf("unknown blob driver %q", cfg.BlobDriver)
}

// Caches are the directory caches the tenant service reads through.
type Caches struct {
	Profiles port.Cache[*domain.Profile]
	Stores   port.Cache[[]domain.Store]
	Close    func()
}

// OpenCaches returns Redis-backed caches when REDIS_ADDR is set, so every
// replica sees the same directory, and in-process caches otherwise.
func OpenCaches(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Caches, error) {
	if cfg.RedisAddr == "" {
		profiles := cache.New[*domain.Profile](cfg.CacheTTL)
		stores := cache.New[[]domain.Store](cfg.CacheTTL)
		return &Caches{
			Profiles: profiles,
			Stores:   stores,
			Close: func() {
				profiles.Close()
				stores.Close()
			},
		}, nil
	}

	client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	logger.Info("directory caches backed by redis", zap.String("addr", cfg.RedisAddr))
	return &Caches{
		Profiles: cache.NewRedis[*domain.Profile](client, "ku:profile", cfg.CacheTTL, logger),
		Stores:   cache.NewRedis[[]domain.Store](client, "ku:stores", cfg.CacheTTL, logger),
		Close:    func() { closeRedis(client, logger) },
	}, nil
}

func closeRedis(client *redis.Client, logger *zap.Logger) {
	if err := client.Close(); err != nil {
		logger.Warn("redis close failed", zap.Error(err))
	}
}
