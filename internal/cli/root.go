// Package cli implements kuctl, the operator command line.
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/kitchenunity/cabinet-bfa-go/internal/bootstrap"
	"github.com/kitchenunity/cabinet-bfa-go/internal/config"
	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/cache"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/observability"
	"github.com/kitchenunity/cabinet-bfa-go/internal/service"
	"github.com/kitchenunity/cabinet-bfa-go/internal/tenant"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	EnvFile string
	Driver  string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for kuctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "kuctl",
		Short: "Operate a Kitchen Unity deployment",
		Long:  "kuctl migrates and seeds the store of record, exports ledgers and issues development tokens.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return config.LoadDotEnv(opts.EnvFile)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log to stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before reading configuration")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "override STORAGE_DRIVER")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewStoresCommand(opts))
	cmd.AddCommand(NewExportLedgerCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// env is what a command needs to reach the store of record.
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	backend *bootstrap.Backend
	closers []func()
}

func (o *RootOptions) config() *config.Config {
	cfg := config.Load()
	if o.Driver != "" {
		cfg.StorageDriver = o.Driver
	}
	return cfg
}

func (o *RootOptions) logger(cfg *config.Config) *zap.Logger {
	if !o.Verbose {
		return zap.NewNop()
	}
	return observability.NewLogger(observability.LoggerConfig{Service: "kuctl", Level: cfg.LogLevel})
}

// open connects to the configured store of record. The caller closes it.
func (o *RootOptions) open(ctx context.Context) (*env, error) {
	cfg := o.config()
	logger := o.logger(cfg)
	metrics := observability.NewMetrics()

	backend, err := bootstrap.OpenBackend(ctx, cfg, metrics, logger)
	if err != nil {
		return nil, NewCommandError("open store of record", err)
	}
	return &env{cfg: cfg, logger: logger, metrics: metrics, backend: backend}, nil
}

func (e *env) close() {
	for _, c := range e.closers {
		c()
	}
	if err := e.backend.Close(); err != nil {
		e.logger.Warn("close failed", zap.Error(err))
	}
}

// tenants builds a tenant service over in-process directory caches.
func (e *env) tenants() *service.TenantService {
	profiles := cache.New[*domain.Profile](e.cfg.CacheTTL)
	stores := cache.New[[]domain.Store](e.cfg.CacheTTL)
	e.closers = append(e.closers, profiles.Close, stores.Close)
	return service.NewTenantService(
		tenant.NewResolver(e.cfg.TenantOptions()),
		e.backend.Profiles,
		e.backend.Directory,
		profiles,
		stores,
		e.metrics,
		e.logger,
	)
}
