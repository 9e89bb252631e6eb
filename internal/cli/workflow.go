package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/albardn2/karma-sub001/internal/model"
	"github.com/albardn2/karma-sub001/internal/report"
	"github.com/albardn2/karma-sub001/internal/workflow"
)

// WorkflowStartOptions holds flags for the workflow start command.
type WorkflowStartOptions struct {
	*RootOptions
	Params     []string
	ParamsFile string
	Trip       string
	CreatedBy  string
}

// NewWorkflowCommand creates the workflow command group.
func NewWorkflowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Register, start and inspect workflows",
	}
	cmd.AddCommand(newWorkflowSyncCommand(rootOpts))
	cmd.AddCommand(newWorkflowStartCommand(rootOpts))
	cmd.AddCommand(newWorkflowShowCommand(rootOpts))
	cmd.AddCommand(newWorkflowCancelCommand(rootOpts))
	return cmd
}

func newWorkflowSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [definitions-dir]",
		Short: "Register workflow definitions from YAML files",
		Long: `Load every *.yaml workflow definition in a directory and register it.
Definitions are upserted by name, so re-running sync is safe.

Defaults to workflow.definitions_dir from the config.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := rootOpts.openService(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeService(svc)

			dir := cfg.Workflow.DefinitionsDir
			if len(args) == 1 {
				dir = args[0]
			}

			f := rootOpts.formatter(cmd)
			f.VerboseLog("Loading definitions from %s", dir)
			defs, err := workflow.LoadDefinitionDir(dir)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load definitions", err)
			}

			wfs, err := svc.SyncDefinitions(cmd.Context(), defs)
			if err != nil {
				return reportError(f, "sync failed", err)
			}
			return f.Render(wfs, func(w io.Writer) error {
				for _, wf := range wfs {
					fmt.Fprintf(w, "  %s  %s\n", wf.UUID, wf.Name)
				}
				_, err := fmt.Fprintf(w, "✓ Registered %s\n", report.FormatCount(len(wfs), "workflow"))
				return err
			})
		},
	}
}

func newWorkflowStartCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WorkflowStartOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "start <workflow-name>",
		Short: "Start an execution of a registered workflow",
		Long: `Start an execution of a workflow by name. Parameters given on the
command line override those from --params-file. Values are parsed as
YAML, so numbers and lists keep their type.

Examples:
  karma workflow start roasting
  karma workflow start roasting --param process_type=roast \
      --param 'mapper={mat-roasted: [mat-bag, 0.5]}'
  karma workflow start delivery --trip trip-7 --params-file delivery.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflowStart(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Params, "param", nil, "parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.ParamsFile, "params-file", "", "YAML file of parameters")
	cmd.Flags().StringVar(&opts.Trip, "trip", "", "trip UUID to attach")
	cmd.Flags().StringVar(&opts.CreatedBy, "created-by", "", "user UUID")

	return cmd
}

func runWorkflowStart(opts *WorkflowStartOptions, name string, cmd *cobra.Command) error {
	params, err := parseParams(opts.ParamsFile, opts.Params)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid parameters", err)
	}

	svc, _, err := opts.openService(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer closeService(svc)

	f := opts.formatter(cmd)
	exec, err := svc.StartWorkflow(cmd.Context(), name, model.ExecutionCreate{
		Parameters:    params,
		TripUUID:      opts.Trip,
		CreatedByUUID: opts.CreatedBy,
	})
	if err != nil {
		return reportError(f, "start rejected", err)
	}
	return f.Render(exec, func(w io.Writer) error { return report.ExecutionTable(w, exec) })
}

// parseParams merges a YAML parameters file with key=value overrides.
func parseParams(file string, pairs []string) (map[string]any, error) {
	params := map[string]any{}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &params); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		if params == nil {
			params = map[string]any{}
		}
	}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("parameter %q must have the form key=value", pair)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("parameter %s: %w", key, err)
		}
		params[key] = v
	}
	return params, nil
}

func newWorkflowShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <execution-uuid>",
		Short:         "Show an execution and its tasks",
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
			exec, err := svc.Execution(cmd.Context(), args[0])
			if err != nil {
				return reportError(f, "lookup failed", err)
			}
			return f.Render(exec, func(w io.Writer) error { return report.ExecutionTable(w, exec) })
		},
	}
}

func newWorkflowCancelCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <execution-uuid>",
		Short: "Cancel a running execution",
		Long: `Cancel an execution and every task that has not finished.
Completed work, including its inventory events, is left in place.`,
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
			exec, err := svc.CancelExecution(cmd.Context(), args[0])
			if err != nil {
				return reportError(f, "cancel rejected", err)
			}
			return f.Done(exec, "Execution %s is %s", exec.UUID, exec.Status)
		},
	}
}
