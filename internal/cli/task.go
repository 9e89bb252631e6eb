package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/albardn2/karma-sub001/internal/model"
)

// TaskCompleteOptions holds flags for the task complete command.
type TaskCompleteOptions struct {
	*RootOptions
	Payload     string
	PayloadFile string
	CompletedBy string
	RequestID   string
}

// NewTaskCommand creates the task command group.
func NewTaskCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Complete workflow tasks",
	}
	cmd.AddCommand(newTaskCompleteCommand(rootOpts))
	return cmd
}

func newTaskCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TaskCompleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "complete <task-uuid>",
		Short: "Complete a task with an operator payload",
		Long: `Validate a payload against the task's operator schema, run the task's
callbacks and mark it completed. The whole completion is one transaction.

The payload is JSON via --payload or YAML/JSON via --payload-file.

Examples:
  karma task complete wf-0004 --payload '{"inputs":[{"inventory_uuid":"inv-1","quantity":100}]}'
  karma task complete wf-0004 --payload-file roast.yaml --request-id roast-1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskComplete(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Payload, "payload", "", "JSON payload")
	cmd.Flags().StringVar(&opts.PayloadFile, "payload-file", "", "YAML or JSON payload file")
	cmd.Flags().StringVar(&opts.CompletedBy, "completed-by", "", "user UUID")
	cmd.Flags().StringVar(&opts.RequestID, "request-id", "", "idempotency key for retries")
	cmd.MarkFlagsMutuallyExclusive("payload", "payload-file")

	return cmd
}

func runTaskComplete(opts *TaskCompleteOptions, taskUUID string, cmd *cobra.Command) error {
	payload, err := readPayload(opts.Payload, opts.PayloadFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid payload", err)
	}

	svc, _, err := opts.openService(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer closeService(svc)

	f := opts.formatter(cmd)
	task, exec, err := svc.CompleteTask(cmd.Context(), model.TaskCompletion{
		TaskExecutionUUID: taskUUID,
		CompletedByUUID:   opts.CompletedBy,
		Result:            payload,
		RequestID:         opts.RequestID,
	})
	if err != nil {
		return reportError(f, "completion rejected", err)
	}
	return f.Done(map[string]any{"task": task, "execution": exec},
		"Task %s (%s) is %s\n  Execution %s is %s", task.Name, task.UUID, task.Status, exec.UUID, exec.Status)
}

// readPayload decodes an inline JSON payload or a payload file. Numbers
// from JSON keep their literal text so decimal quantities are exact.
func readPayload(inline, file string) (map[string]any, error) {
	payload := map[string]any{}
	switch {
	case inline != "":
		dec := json.NewDecoder(bytes.NewReader([]byte(inline)))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			return nil, err
		}
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		if payload == nil {
			payload = map[string]any{}
		}
	}
	return payload, nil
}
