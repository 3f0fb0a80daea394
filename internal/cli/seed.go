package cli

import (
	"fmt"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"

	"github.com/spf13/cobra"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	File      string
	NoMigrate bool
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a YAML fixture into the store of record",
		Long: `Load stores, profiles and tenant rows from a YAML fixture.

Stores that already exist are skipped; profiles and rows are upserted by id,
so a fixture can be applied repeatedly.`,
		Example: "  kuctl seed --file deploy/seed/demo.yaml --driver sqlite",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "fixture file (required)")
	cmd.Flags().BoolVar(&opts.NoMigrate, "no-migrate", false, "skip creating missing tables first")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runSeed(cmd *cobra.Command, opts *SeedOptions) error {
	ctx := cmd.Context()
	e, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	if e.backend.Migrate != nil && !opts.NoMigrate {
		if err := e.backend.Migrate(ctx); err != nil {
			return NewFailure("migrate", err)
		}
	}

	summary, err := e.backend.ApplySeed(ctx, opts.File)
	if err != nil {
		return NewFailure("seed "+opts.File, err)
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeJSON(out, summary)
	}
	fmt.Fprintf(out, "stores:   %d created, %d skipped\n", summary.Stores, summary.StoresSkipped)
	fmt.Fprintf(out, "profiles: %d\n", summary.Profiles)
	for _, kind := range domain.Kinds {
		if n := summary.Rows[kind]; n > 0 {
			fmt.Fprintf(out, "%-9s %d\n", string(kind)+":", n)
		}
	}
	return nil
}
