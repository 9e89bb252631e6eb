package workflow

import (
	"context"
	"sync"

	"github.com/albardn2/karma-sub001/internal/apperr"
	"github.com/albardn2/karma-sub001/internal/model"
)

// Operator completes task executions of one operator type.
type Operator interface {
	Type() model.OperatorType

	// Validate checks a completion payload against the operator's schema
	// and business rules without side effects.
	Validate(payload map[string]any) error

	// Execute validates the payload, applies the operator's side effects and
	// marks task completed. exec is the owning execution with all of its
	// tasks loaded; task points into exec.TaskExecutions.
	Execute(ctx context.Context, env Env, exec *model.WorkflowExecution, task *model.TaskExecution, req model.TaskCompletion) error
}

var operators = sync.OnceValue(func() map[model.OperatorType]Operator {
	m := make(map[model.OperatorType]Operator)
	for _, op := range []Operator{
		ioProcessOperator{},
		qcOperator{},
		inventoryDumpOperator{},
		materialRefillOperator{},
		tripOperator{},
		startTripOperator{},
		tripAddInventoryOperator{},
		tripStopOperator{},
		tripFinishOperator{},
		noopOperator{},
	} {
		m[op.Type()] = op
	}
	return m
})

// OperatorFor returns the operator registered for t. Unknown types fail
// with an Unsupported error, which callers also see as BadRequest.
func OperatorFor(t model.OperatorType) (Operator, error) {
	op, ok := operators()[t]
	if !ok {
		return nil, apperr.Unsupported("operator type", string(t))
	}
	return op, nil
}

// completeTask applies the steps shared by every operator: store the
// payload as the result, mark completed, stamp times and completer.
func completeTask(env Env, task *model.TaskExecution, req model.TaskCompletion) error {
	result, err := toMap(req.Result)
	if err != nil {
		return apperr.BadRequest("invalid result payload: %v", err)
	}
	if result == nil {
		result = map[string]any{}
	}

	now := env.Clock.Now()
	if task.StartTime == nil {
		task.StartTime = &now
	}
	task.Result = result
	task.Status = model.StatusCompleted
	task.EndTime = &now
	task.CompletedByUUID = req.CompletedByUUID
	task.ErrorMessage = ""
	return nil
}
