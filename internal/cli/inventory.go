package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/albardn2/karma-sub001/internal/model"
	"github.com/albardn2/karma-sub001/internal/report"
)

// InventoryCreateOptions holds flags for the inventory create command.
type InventoryCreateOptions struct {
	*RootOptions
	Material    string
	Warehouse   string
	Unit        string
	Currency    string
	CostPerUnit string
	Quantity    string
	CreatedBy   string
}

// NewInventoryCommand creates the inventory command group.
func NewInventoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Inspect lots and the ledger",
	}
	cmd.AddCommand(newInventoryCreateCommand(rootOpts))
	cmd.AddCommand(newInventoryListCommand(rootOpts))
	cmd.AddCommand(newInventoryFIFOCommand(rootOpts))
	cmd.AddCommand(newInventoryReconcileCommand(rootOpts))
	cmd.AddCommand(newInventoryExportCommand(rootOpts))
	return cmd
}

func newInventoryCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InventoryCreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a new lot",
		Long: `Open a lot of an existing material with an opening balance.

Example:
  karma inventory create --material mat-green --warehouse wh-main \
      --unit kg --currency USD --cost 2.10 --quantity 500`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInventoryCreate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Material, "material", "", "material UUID (required)")
	cmd.Flags().StringVar(&opts.Warehouse, "warehouse", "", "warehouse UUID")
	cmd.Flags().StringVar(&opts.Unit, "unit", "", "unit of measure")
	cmd.Flags().StringVar(&opts.Currency, "currency", "", "currency of cost_per_unit")
	cmd.Flags().StringVar(&opts.CostPerUnit, "cost", "0", "cost per unit")
	cmd.Flags().StringVar(&opts.Quantity, "quantity", "0", "opening quantity")
	cmd.Flags().StringVar(&opts.CreatedBy, "created-by", "", "user UUID")
	_ = cmd.MarkFlagRequired("material")

	return cmd
}

func runInventoryCreate(opts *InventoryCreateOptions, cmd *cobra.Command) error {
	cost, err := decimal.NewFromString(opts.CostPerUnit)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --cost", err)
	}
	qty, err := decimal.NewFromString(opts.Quantity)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --quantity", err)
	}

	svc, _, err := opts.openService(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer closeService(svc)

	f := opts.formatter(cmd)
	lot, err := svc.CreateInventory(cmd.Context(), model.InventoryCreate{
		MaterialUUID:  opts.Material,
		WarehouseUUID: opts.Warehouse,
		Unit:          opts.Unit,
		Currency:      opts.Currency,
		CostPerUnit:   cost,
		Quantity:      qty,
		CreatedByUUID: opts.CreatedBy,
	})
	if err != nil {
		return reportError(f, "lot rejected", err)
	}
	return f.Render(lot, func(w io.Writer) error {
		return report.LotsTable(w, []model.Inventory{lot})
	})
}

func newInventoryListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List every lot",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := rootOpts.openService(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeService(svc)

			f := rootOpts.formatter(cmd)
			lots, _, err := svc.Snapshot(cmd.Context())
			if err != nil {
				return reportError(f, "list failed", err)
			}
			return f.Render(lots, func(w io.Writer) error {
				return report.LotsTable(w, lots)
			})
		},
	}
}

func newInventoryFIFOCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fifo <material-uuid> <quantity>",
		Short: "Show the lots that would cover a quantity, oldest first",
		Long: `Select lots of a material oldest-first until they cover the quantity.

When ledger.reject_shortfall is set, a quantity the stock cannot cover
fails instead of returning the partial selection.

Example:
  karma inventory fifo mat-bag 40`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := decimal.NewFromString(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid quantity", err)
			}

			svc, _, err := rootOpts.openService(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeService(svc)

			f := rootOpts.formatter(cmd)
			lots, err := svc.SelectFIFO(cmd.Context(), args[0], qty)
			if err != nil {
				return reportError(f, "selection failed", err)
			}
			return f.Render(lots, func(w io.Writer) error {
				fmt.Fprintf(w, "%s selected for %s %s\n\n", report.FormatCount(len(lots), "lot"), qty, args[0])
				return report.LotsTable(w, lots)
			})
		},
	}
}

func newInventoryReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Replay every lot's events and report discrepancies",
		Long: `Replay the non-deleted events of every lot over its opening balance and
compare the result with the stored balances.

Exit codes:
  0 - Every lot reconciles
  1 - At least one discrepancy
  2 - Command error`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := rootOpts.openService(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeService(svc)

			f := rootOpts.formatter(cmd)
			ds, err := svc.Reconcile(cmd.Context())
			if err != nil {
				return reportError(f, "reconcile failed", err)
			}
			if err := f.Render(ds, func(w io.Writer) error { return report.DiscrepancyTable(w, ds) }); err != nil {
				return err
			}
			if len(ds) > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%s out of balance", report.FormatCount(len(ds), "lot")))
			}
			return nil
		},
	}
}

func newInventoryExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "export <file.xlsx>",
		Short:         "Export lots and events to an xlsx workbook",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := rootOpts.openService(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeService(svc)

			f := rootOpts.formatter(cmd)
			lots, events, err := svc.Snapshot(cmd.Context())
			if err != nil {
				return reportError(f, "export failed", err)
			}

			out, err := os.Create(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to create workbook", err)
			}
			if err := report.WriteWorkbook(out, lots, events); err != nil {
				out.Close()
				return WrapExitError(ExitCommandError, "failed to write workbook", err)
			}
			if err := out.Close(); err != nil {
				return WrapExitError(ExitCommandError, "failed to write workbook", err)
			}

			return f.Done(map[string]any{"file": args[0], "lots": len(lots), "events": len(events)},
				"Wrote %s and %s to %s",
				report.FormatCount(len(lots), "lot"), report.FormatCount(len(events), "event"), args[0])
		},
	}
}
