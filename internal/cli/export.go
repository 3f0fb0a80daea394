package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"
	"github.com/kitchenunity/cabinet-bfa-go/internal/infra/export"
	"github.com/kitchenunity/cabinet-bfa-go/internal/service"

	"github.com/spf13/cobra"
)

// ExportLedgerOptions holds flags for the export-ledger command.
type ExportLedgerOptions struct {
	*RootOptions
	StoreID string
	Out     string
}

// NewExportLedgerCommand creates the export-ledger command.
func NewExportLedgerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportLedgerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export-ledger",
		Short: "Write a store's sales ledger as an XLSX workbook",
		Example: `  kuctl export-ledger --store store-1
  kuctl export-ledger --store all --out ledger.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExportLedger(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVarP(&opts.StoreID, "store", "s", "", `store id, or "all" for every store (required)`)
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output file (default ledger-<store>-<date>.xlsx)")
	_ = cmd.MarkFlagRequired("store")

	return cmd
}

func runExportLedger(cmd *cobra.Command, opts *ExportLedgerOptions) error {
	ctx := cmd.Context()
	e, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	tenants := e.tenants()
	if opts.StoreID != domain.AllStores {
		if _, err := tenants.Store(ctx, opts.StoreID); err != nil {
			return NewCommandError("unknown store "+opts.StoreID, err)
		}
	}

	// The operator acts as an administrator of the selected scope.
	scope := domain.Scope{StoreID: opts.StoreID, Role: domain.RoleAdmin}
	sess := service.NewSession(service.NewStores(e.backend.Repos, time.Now, e.metrics, e.logger), scope, e.metrics, e.logger)
	if err := sess.Load(ctx); err != nil {
		return NewFailure("load "+opts.StoreID, err)
	}

	entries, err := service.NewInsights(tenants, time.Now).Ledger(ctx, sess)
	if err != nil {
		return NewFailure("build ledger", err)
	}
	book, err := export.LedgerXLSX(entries)
	if err != nil {
		return NewFailure("render ledger", err)
	}

	path := opts.Out
	if path == "" {
		path = fmt.Sprintf("ledger-%s-%s.xlsx", opts.StoreID, time.Now().Format("20060102"))
	}
	if err := os.WriteFile(path, book, 0o644); err != nil {
		return NewCommandError("write "+path, err)
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeJSON(out, map[string]any{"file": path, "entries": len(entries)})
	}
	fmt.Fprintf(out, "wrote %d ledger rows to %s\n", len(entries), filepath.Clean(path))
	return nil
}
