package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	*RootOptions
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables in the store of record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func runMigrate(cmd *cobra.Command, opts *MigrateOptions) error {
	e, err := opts.open(cmd.Context())
	if err != nil {
		return err
	}
	defer e.close()

	out := cmd.OutOrStdout()
	if e.backend.Migrate == nil {
		fmt.Fprintf(out, "storage driver %s needs no migration\n", e.backend.Driver)
		return nil
	}
	if err := e.backend.Migrate(cmd.Context()); err != nil {
		return NewFailure("migrate", err)
	}
	fmt.Fprintf(out, "migrated %s store of record\n", e.backend.Driver)
	return nil
}
