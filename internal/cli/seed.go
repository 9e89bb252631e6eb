package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/albardn2/karma-sub001/internal/facade"
	"github.com/albardn2/karma-sub001/internal/report"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Load reference data and opening lots",
		Long: `Register the materials, warehouses and other reference records listed
in a YAML seed file and open its lots, all in one transaction.

Example seed file:
  references:
    - { kind: material, uuid: mat-green, name: Green beans }
    - { kind: warehouse, uuid: wh-main, name: Main }
  lots:
    - material_uuid: mat-green
      warehouse_uuid: wh-main
      unit: kg
      currency: USD
      cost_per_unit: 2
      quantity: 100

Examples:
  karma seed ./seed.yaml
  karma seed ./seed.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runSeed(opts *RootOptions, path string, cmd *cobra.Command) error {
	seed, err := facade.LoadSeed(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load seed", err)
	}

	svc, _, err := opts.openService(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer closeService(svc)

	f := opts.formatter(cmd)
	lots, err := svc.ApplySeed(cmd.Context(), seed)
	if err != nil {
		return reportError(f, "seed failed", err)
	}

	return f.Render(lots, func(w io.Writer) error {
		fmt.Fprintf(w, "✓ Registered %s, opened %s\n\n",
			report.FormatCount(len(seed.References), "reference"),
			report.FormatCount(len(lots), "lot"))
		return report.LotsTable(w, lots)
	})
}
