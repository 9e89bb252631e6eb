package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/albardn2/karma-sub001/internal/apperr"
	"github.com/albardn2/karma-sub001/internal/facade"
	"github.com/albardn2/karma-sub001/internal/ledger"
	"github.com/albardn2/karma-sub001/internal/model"
	"github.com/albardn2/karma-sub001/internal/store"
	"github.com/albardn2/karma-sub001/internal/testutil"
	"github.com/albardn2/karma-sub001/internal/workflow"
)

// Harness executes one scenario against a private store.
//
// Identifiers come from sequence generators ("inv-0001" for ledger records,
// "wf-0001" for workflow records) and timestamps from a step clock, so two
// runs of the same scenario produce the same trace byte for byte.
type Harness struct {
	svc     *facade.Service
	symbols map[string]string
	execs   []string
	seq     int64
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh database file under a temporary directory
// that is removed afterwards.
//
// Execution flow:
// 1. Open and migrate the store
// 2. Sync the scenario's workflow definitions
// 3. Apply setup (references and lots)
// 4. Execute flow steps with expect validation
// 5. Read back final state and evaluate assertions
//
// The returned error covers infrastructure and setup failures only; a
// failing step or assertion is reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "karma-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(ctx, filepath.Join(dir, "scenario.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewStepClock()
	l := ledger.NewService(
		ledger.WithIDGenerator(testutil.NewSequenceIDs("inv")),
		ledger.WithClock(clock),
	)
	e := workflow.NewEngine(l,
		workflow.WithIDGenerator(testutil.NewSequenceIDs("wf")),
		workflow.WithClock(clock),
	)

	h := &Harness{
		svc:     facade.New(st, l, e),
		symbols: map[string]string{},
	}

	if err := h.syncWorkflows(ctx, scenario.Workflows); err != nil {
		return nil, fmt.Errorf("failed to sync workflows: %w", err)
	}
	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	h.executeFlow(ctx, scenario.Flow, result)

	if err := h.collectState(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to read final state: %w", err)
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Service: h.svc,
		Symbols: h.symbols,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func (h *Harness) syncWorkflows(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	defs := make([]workflow.Definition, 0, len(paths))
	for _, p := range paths {
		def, err := workflow.LoadDefinitionFile(p)
		if err != nil {
			return err
		}
		defs = append(defs, def)
	}
	_, err := h.svc.SyncDefinitions(ctx, defs)
	return err
}

// executeSetup registers references and opens lots in one transaction, then
// binds each named lot.
func (h *Harness) executeSetup(ctx context.Context, setup Setup) error {
	seed := facade.Seed{References: setup.References}
	for _, lot := range setup.Lots {
		seed.Lots = append(seed.Lots, lot.InventoryCreate)
	}
	lots, err := h.svc.ApplySeed(ctx, seed)
	if err != nil {
		return err
	}
	for i, lot := range setup.Lots {
		if lot.As != "" {
			if err := h.bind(lot.As, lots[i].UUID); err != nil {
				return fmt.Errorf("setup.lots[%d]: %w", i, err)
			}
		}
	}
	return nil
}

// executeFlow runs every step, recording an invocation and a completion
// for each. A step that fails unexpectedly, or succeeds when a failure was
// expected, marks the result failed; the flow continues either way.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) {
	for i, step := range flow {
		args, err := h.resolve(step.Args)
		if err != nil {
			result.AddError(fmt.Sprintf("flow[%d] %s: %v", i, step.Op, err))
			continue
		}

		h.seq++
		result.AddInvocationTrace(step.Op, args.(map[string]any), h.seq)

		out, err := h.invoke(ctx, step, args.(map[string]any))

		h.seq++
		if err != nil {
			outcome, msg := describeError(err)
			result.AddCompletionTrace(step.Op, outcome, map[string]any{"error": msg}, h.seq)
			if mismatch := checkFailure(step.Expect, outcome, msg); mismatch != "" {
				result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Op, mismatch))
			}
			continue
		}

		result.AddCompletionTrace(step.Op, OutcomeOK, out, h.seq)
		if step.Expect != nil {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected %s, got ok", i, step.Op, step.Expect.Error))
		}
	}
}

// describeError returns the outcome and message recorded for a failed step.
func describeError(err error) (string, string) {
	if ae, ok := err.(*apperr.Error); ok {
		return string(ae.Kind), ae.Message
	}
	if kind := apperr.KindOf(err); kind != "" {
		return string(kind), err.Error()
	}
	return "ERROR", err.Error()
}

// checkFailure compares a failure against the step's expect clause and
// returns a description of the mismatch, or "".
func checkFailure(expect *ExpectClause, outcome, msg string) string {
	if expect == nil {
		return fmt.Sprintf("unexpected %s: %s", outcome, msg)
	}
	if expect.Error != outcome {
		return fmt.Sprintf("expected %s, got %s: %s", expect.Error, outcome, msg)
	}
	if expect.Message != "" && !strings.Contains(msg, expect.Message) {
		return fmt.Sprintf("expected message containing %q, got %q", expect.Message, msg)
	}
	return ""
}

func (h *Harness) invoke(ctx context.Context, step FlowStep, args map[string]any) (map[string]any, error) {
	switch step.Op {
	case OpCreateEvent:
		var req model.InventoryEventCreate
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		ev, err := h.svc.CreateEvent(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := h.bindIf(step.As, ev.UUID); err != nil {
			return nil, err
		}
		return map[string]any{
			"event":          ev.UUID,
			"inventory_uuid": ev.InventoryUUID,
			"quantity":       ev.Quantity.String(),
			"original_delta": ev.OriginalDelta.String(),
		}, nil

	case OpDeleteEvent:
		var req struct {
			Event string `json:"event"`
		}
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		ev, err := h.svc.DeleteEvent(ctx, req.Event)
		if err != nil {
			return nil, err
		}
		return map[string]any{"event": ev.UUID, "is_deleted": ev.IsDeleted}, nil

	case OpSelectFIFO:
		var req struct {
			Material string          `json:"material"`
			Quantity decimal.Decimal `json:"quantity"`
		}
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		lots, err := h.svc.SelectFIFO(ctx, req.Material, req.Quantity)
		if err != nil {
			return nil, err
		}
		selected := make([]any, 0, len(lots))
		for _, lot := range lots {
			selected = append(selected, map[string]any{
				"uuid":             lot.UUID,
				"current_quantity": lot.CurrentQuantity.String(),
			})
		}
		return map[string]any{"lots": selected}, nil

	case OpStartWorkflow:
		var req struct {
			Workflow   string         `json:"workflow"`
			Parameters map[string]any `json:"parameters"`
			TripUUID   string         `json:"trip_uuid"`
			CreatedBy  string         `json:"created_by"`
		}
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		exec, err := h.svc.StartWorkflow(ctx, req.Workflow, model.ExecutionCreate{
			Parameters:    req.Parameters,
			TripUUID:      req.TripUUID,
			CreatedByUUID: req.CreatedBy,
		})
		if err != nil {
			return nil, err
		}
		h.execs = append(h.execs, exec.UUID)
		tasks := map[string]any{}
		for _, t := range exec.TaskExecutions {
			tasks[t.Name] = t.UUID
			if step.As != "" {
				if err := h.bind(step.As+"."+t.Name, t.UUID); err != nil {
					return nil, err
				}
			}
		}
		if err := h.bindIf(step.As, exec.UUID); err != nil {
			return nil, err
		}
		return map[string]any{
			"execution": exec.UUID,
			"status":    string(exec.Status),
			"tasks":     tasks,
		}, nil

	case OpCompleteTask:
		var req struct {
			Task        string         `json:"task"`
			CompletedBy string         `json:"completed_by"`
			RequestID   string         `json:"request_id"`
			Result      map[string]any `json:"result"`
		}
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		task, exec, err := h.svc.CompleteTask(ctx, model.TaskCompletion{
			TaskExecutionUUID: req.Task,
			CompletedByUUID:   req.CompletedBy,
			Result:            req.Result,
			RequestID:         req.RequestID,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"task":             task.UUID,
			"task_status":      string(task.Status),
			"execution":        exec.UUID,
			"execution_status": string(exec.Status),
		}, nil

	case OpCancelExecution:
		var req struct {
			Execution string `json:"execution"`
		}
		if err := decodeArgs(args, &req); err != nil {
			return nil, err
		}
		exec, err := h.svc.CancelExecution(ctx, req.Execution)
		if err != nil {
			return nil, err
		}
		return map[string]any{"execution": exec.UUID, "status": string(exec.Status)}, nil
	}
	return nil, fmt.Errorf("unknown op %q", step.Op)
}

// collectState reads back every lot and every execution the flow started.
func (h *Harness) collectState(ctx context.Context, result *Result) error {
	lots, _, err := h.svc.Snapshot(ctx)
	if err != nil {
		return err
	}
	result.Lots = make([]LotState, 0, len(lots))
	for _, lot := range lots {
		result.Lots = append(result.Lots, lotState(lot))
	}

	for _, id := range h.execs {
		exec, err := h.svc.Execution(ctx, id)
		if err != nil {
			return err
		}
		state := ExecutionState{UUID: exec.UUID, Status: exec.Status, Tasks: map[string]model.Status{}}
		for _, t := range exec.TaskExecutions {
			state.Tasks[t.Name] = t.Status
		}
		result.Executions = append(result.Executions, state)
	}
	return nil
}

func (h *Harness) bind(name, id string) error {
	if _, ok := h.symbols[name]; ok {
		return fmt.Errorf("symbol $%s is already bound", name)
	}
	h.symbols[name] = id
	return nil
}

func (h *Harness) bindIf(name, id string) error {
	if name == "" {
		return nil
	}
	return h.bind(name, id)
}

// resolve copies v, replacing "$name" strings with bound identifiers.
func (h *Harness) resolve(v any) (any, error) {
	switch val := v.(type) {
	case string:
		if name, ok := strings.CutPrefix(val, "$"); ok {
			id, bound := h.symbols[name]
			if !bound {
				return nil, fmt.Errorf("unbound symbol %s", val)
			}
			return id, nil
		}
		return val, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			r, err := h.resolve(item)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			r, err := h.resolve(item)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	}
	return v, nil
}

// decodeArgs maps resolved args onto a request struct through JSON.
// Unknown argument names are rejected.
func decodeArgs(args map[string]any, v any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	return nil
}
