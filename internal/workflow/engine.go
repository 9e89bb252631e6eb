package workflow

import (
	"context"
	"log/slog"
	"maps"

	"github.com/albardn2/karma-sub001/internal/apperr"
	"github.com/albardn2/karma-sub001/internal/clock"
	"github.com/albardn2/karma-sub001/internal/ids"
	"github.com/albardn2/karma-sub001/internal/ledger"
	"github.com/albardn2/karma-sub001/internal/model"
)

// DefaultTripCurrency is recorded on trip outputs unless overridden.
const DefaultTripCurrency = "SYP"

// Cancellation reasons recorded on executions and tasks.
const (
	ExecutionCancelledMessage = "Workflow execution was cancelled by user"
	TaskCancelledMessage      = "Task execution was cancelled by user"
)

// Engine creates, completes and cancels workflow executions.
//
// Engine holds no per-request state; every method runs against the
// Repository of the caller's transaction.
type Engine struct {
	ledger       *ledger.Service
	ids          ids.Generator
	clock        clock.Clock
	tripCurrency string
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithIDGenerator overrides the UUIDv7 generator.
func WithIDGenerator(g ids.Generator) EngineOption {
	return func(e *Engine) { e.ids = g }
}

// WithClock overrides the wall clock.
func WithClock(c clock.Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithTripCurrency sets the currency recorded on trip outputs.
func WithTripCurrency(currency string) EngineOption {
	return func(e *Engine) {
		if currency != "" {
			e.tripCurrency = currency
		}
	}
}

// NewEngine creates an Engine that posts ledger events through l.
func NewEngine(l *ledger.Service, opts ...EngineOption) *Engine {
	e := &Engine{
		ledger:       l,
		ids:          ids.UUIDv7Generator{},
		clock:        clock.System{},
		tripCurrency: DefaultTripCurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) env(repo Repository) Env {
	return Env{
		Repo:         repo,
		Ledger:       e.ledger,
		IDs:          e.ids,
		Clock:        e.clock,
		TripCurrency: e.tripCurrency,
	}
}

// CreateExecution starts a workflow. Caller parameters override the
// workflow's defaults key by key. Every task template becomes one pending
// task execution, in template order.
func (e *Engine) CreateExecution(ctx context.Context, repo Repository, req model.ExecutionCreate) (model.WorkflowExecution, error) {
	wf, err := repo.GetWorkflow(ctx, req.WorkflowUUID)
	if err != nil {
		return model.WorkflowExecution{}, err
	}
	if wf.IsDeleted {
		return model.WorkflowExecution{}, apperr.NotFound("workflow", req.WorkflowUUID)
	}
	if req.TripUUID != "" {
		if _, err := repo.GetTrip(ctx, req.TripUUID); err != nil {
			return model.WorkflowExecution{}, err
		}
	}

	params := make(map[string]any, len(wf.Parameters)+len(req.Parameters))
	maps.Copy(params, wf.Parameters)
	maps.Copy(params, req.Parameters)

	exec := model.WorkflowExecution{
		UUID:          e.ids.New(),
		WorkflowUUID:  wf.UUID,
		Parameters:    params,
		Status:        model.StatusInProgress,
		StartTime:     e.clock.Now(),
		TripUUID:      req.TripUUID,
		CreatedByUUID: req.CreatedByUUID,
	}
	for i, tmpl := range wf.Tasks {
		exec.TaskExecutions = append(exec.TaskExecutions, model.TaskExecution{
			UUID:                  e.ids.New(),
			WorkflowExecutionUUID: exec.UUID,
			Name:                  tmpl.Name,
			Operator:              tmpl.Operator,
			Position:              i,
			Status:                model.StatusPending,
			DependsOn:             tmpl.DependsOn,
			CallbackFns:           tmpl.CallbackFns,
		})
	}

	if err := repo.InsertExecution(ctx, &exec); err != nil {
		return model.WorkflowExecution{}, err
	}

	slog.Info("workflow execution created",
		"execution", exec.UUID,
		"workflow", wf.Name,
		"tasks", len(exec.TaskExecutions))
	return exec, nil
}

// CancelExecution cancels a non-terminal execution and every non-terminal
// task it owns.
func (e *Engine) CancelExecution(ctx context.Context, repo Repository, executionUUID string) (model.WorkflowExecution, error) {
	exec, err := repo.GetExecution(ctx, executionUUID)
	if err != nil {
		return model.WorkflowExecution{}, err
	}
	if exec.Status.Terminal() {
		return model.WorkflowExecution{}, apperr.BadRequest("workflow execution %s is already %s", executionUUID, exec.Status)
	}

	now := e.clock.Now()
	exec.Status = model.StatusCancelled
	exec.EndTime = &now
	exec.ErrorMessage = ExecutionCancelledMessage

	cancelled := 0
	for i := range exec.TaskExecutions {
		task := &exec.TaskExecutions[i]
		if task.Status.Terminal() {
			continue
		}
		task.Status = model.StatusCancelled
		task.EndTime = &now
		task.ErrorMessage = TaskCancelledMessage
		if err := repo.SaveTaskExecution(ctx, task); err != nil {
			return model.WorkflowExecution{}, err
		}
		cancelled++
	}

	if err := repo.SaveExecution(ctx, &exec); err != nil {
		return model.WorkflowExecution{}, err
	}

	slog.Info("workflow execution cancelled", "execution", exec.UUID, "tasks_cancelled", cancelled)
	return exec, nil
}

// CompleteTask completes one task execution through its operator and fires
// its callbacks. It returns the completed task and its (possibly completed)
// execution.
func (e *Engine) CompleteTask(ctx context.Context, repo Repository, req model.TaskCompletion) (model.TaskExecution, model.WorkflowExecution, error) {
	stored, err := repo.GetTaskExecution(ctx, req.TaskExecutionUUID)
	if apperr.IsNotFound(err) {
		return model.TaskExecution{}, model.WorkflowExecution{}, apperr.BadRequest("task execution %s not found", req.TaskExecutionUUID)
	}
	if err != nil {
		return model.TaskExecution{}, model.WorkflowExecution{}, err
	}

	exec, err := repo.GetExecution(ctx, stored.WorkflowExecutionUUID)
	if err != nil {
		return model.TaskExecution{}, model.WorkflowExecution{}, err
	}
	task := exec.Task(stored.UUID)

	if err := checkCompletable(&exec, task); err != nil {
		return model.TaskExecution{}, model.WorkflowExecution{}, err
	}

	op, err := OperatorFor(task.Operator)
	if err != nil {
		return model.TaskExecution{}, model.WorkflowExecution{}, err
	}

	env := e.env(repo)
	if err := op.Execute(ctx, env, &exec, task, req); err != nil {
		return model.TaskExecution{}, model.WorkflowExecution{}, err
	}
	if err := repo.SaveTaskExecution(ctx, task); err != nil {
		return model.TaskExecution{}, model.WorkflowExecution{}, err
	}

	for _, name := range task.CallbackFns {
		cb, err := CallbackFor(name)
		if err != nil {
			return model.TaskExecution{}, model.WorkflowExecution{}, err
		}
		if err := cb(ctx, env, &exec, task); err != nil {
			slog.Warn("callback failed", "callback", name, "task", task.UUID, "error", err)
			return model.TaskExecution{}, model.WorkflowExecution{}, err
		}
		slog.Debug("callback fired", "callback", name, "task", task.UUID)
	}

	if exec.AllCompleted() {
		now := e.clock.Now()
		exec.Status = model.StatusCompleted
		exec.EndTime = &now
	}
	if err := repo.SaveExecution(ctx, &exec); err != nil {
		return model.TaskExecution{}, model.WorkflowExecution{}, err
	}

	slog.Info("task completed",
		"task", task.UUID,
		"operator", task.Operator,
		"execution", exec.UUID,
		"execution_status", exec.Status)
	return *task, exec, nil
}

// checkCompletable enforces the task and execution state rules.
func checkCompletable(exec *model.WorkflowExecution, task *model.TaskExecution) error {
	if task.Status.Terminal() {
		return apperr.BadRequest("task execution %s is already %s", task.UUID, task.Status)
	}
	if exec.Status != model.StatusInProgress {
		return apperr.BadRequest("workflow execution %s is %s", exec.UUID, exec.Status)
	}
	for _, dep := range task.DependsOn {
		sibling := exec.TaskByName(dep)
		if sibling == nil {
			return apperr.BadRequest("task %s depends on unknown task %s", task.Name, dep)
		}
		if sibling.Status != model.StatusCompleted {
			return apperr.BadRequest("task %s depends on %s, which is %s", task.Name, dep, sibling.Status)
		}
	}
	return nil
}
