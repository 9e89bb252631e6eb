package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/albardn2/karma-sub001/internal/store"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Long: `Open the configured SQLite database, creating it if it does not exist,
and apply every pending schema migration.

Examples:
  karma migrate
  karma migrate --db ./karma.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(rootOpts, cmd)
		},
	}
	return cmd
}

func runMigrate(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}

	st, err := store.Open(cmd.Context(), cfg.Database.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	f := opts.formatter(cmd)
	return f.Done(map[string]string{"database": cfg.Database.Path}, "Database %s is up to date", cfg.Database.Path)
}
