package workflow

import (
	"context"

	"github.com/albardn2/karma-sub001/internal/clock"
	"github.com/albardn2/karma-sub001/internal/ids"
	"github.com/albardn2/karma-sub001/internal/ledger"
	"github.com/albardn2/karma-sub001/internal/model"
)

// Repository is the transactional store view used by the engine, its
// operators and callbacks.
type Repository interface {
	ledger.Repository

	UpsertWorkflow(ctx context.Context, wf *model.Workflow) error
	GetWorkflow(ctx context.Context, uuid string) (model.Workflow, error)
	GetWorkflowByName(ctx context.Context, name string) (model.Workflow, error)

	InsertExecution(ctx context.Context, exec *model.WorkflowExecution) error
	GetExecution(ctx context.Context, uuid string) (model.WorkflowExecution, error)
	SaveExecution(ctx context.Context, exec *model.WorkflowExecution) error
	GetTaskExecution(ctx context.Context, uuid string) (model.TaskExecution, error)
	SaveTaskExecution(ctx context.Context, task *model.TaskExecution) error

	InsertProcess(ctx context.Context, p *model.Process) error
	ListProcesses(ctx context.Context, processType string) ([]model.Process, error)
	SaveProcessData(ctx context.Context, p *model.Process) error
	InsertQualityControl(ctx context.Context, qc *model.QualityControl) error

	InsertTrip(ctx context.Context, trip *model.Trip) error
	GetTrip(ctx context.Context, uuid string) (model.Trip, error)
	SaveTrip(ctx context.Context, trip *model.Trip) error
}

// Env is what operators and callbacks run against.
type Env struct {
	Repo   Repository
	Ledger *ledger.Service
	IDs    ids.Generator
	Clock  clock.Clock

	// TripCurrency is recorded on trip outputs.
	TripCurrency string
}
