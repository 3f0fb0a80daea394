package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"

	"github.com/spf13/cobra"
)

// NewStoresCommand creates the stores command.
func NewStoresCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stores",
		Short: "List registered stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rootOpts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			stores, err := e.backend.Directory.ListStores(cmd.Context())
			if err != nil {
				return NewFailure("list stores", err)
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), stores)
			}
			return printStores(cmd, stores)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func printStores(cmd *cobra.Command, stores []domain.Store) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tTAX\tWEBHOOK")
	for _, s := range stores {
		hook := "open"
		if s.WebhookSecretHash != "" {
			hook = "token"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\n", s.ID, s.Name, s.Status, s.TaxRate(), hook)
	}
	return tw.Flush()
}
