package model

import (
	"time"
)

// Status is the lifecycle state of a workflow execution or task execution.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// OperatorType tags a task execution and selects its operator.
type OperatorType string

const (
	OperatorIOProcess        OperatorType = "io_process_operator"
	OperatorQC               OperatorType = "qc_operator"
	OperatorInventoryDump    OperatorType = "inventory_dump_operator"
	OperatorMaterialRefill   OperatorType = "material_refill_operator"
	OperatorTrip             OperatorType = "trip_operator"
	OperatorStartTrip        OperatorType = "start_trip_operator"
	OperatorTripAddInventory OperatorType = "trip_add_inventory_operator"
	OperatorTripStop         OperatorType = "trip_stop_operator"
	OperatorTripFinish       OperatorType = "trip_finish_operator"
	OperatorNoop             OperatorType = "noop_operator"
)

// TaskTemplate is one step of a workflow definition.
type TaskTemplate struct {
	Name        string       `json:"name" yaml:"name"`
	Operator    OperatorType `json:"operator" yaml:"operator"`
	DependsOn   []string     `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	CallbackFns []string     `json:"callback_fns,omitempty" yaml:"callback_fns,omitempty"`
}

// Workflow is a static workflow definition.
type Workflow struct {
	UUID        string         `json:"uuid"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Tasks       []TaskTemplate `json:"tasks"`
	IsDeleted   bool           `json:"is_deleted"`
	CreatedAt   time.Time      `json:"created_at"`
}

// WorkflowExecution is one run of a workflow.
type WorkflowExecution struct {
	UUID         string         `json:"uuid"`
	WorkflowUUID string         `json:"workflow_uuid"`
	Parameters   map[string]any `json:"parameters"`
	Status       Status         `json:"status"`
	Result       map[string]any `json:"result,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      *time.Time     `json:"end_time,omitempty"`

	TripUUID     string   `json:"trip_uuid,omitempty"`
	ProcessUUIDs []string `json:"process_uuids,omitempty"`

	CreatedByUUID string `json:"created_by_uuid,omitempty"`

	// TaskExecutions are loaded eagerly, ordered by position.
	TaskExecutions []TaskExecution `json:"task_executions"`
}

// Task returns the owned task execution with the given UUID, or nil.
func (e *WorkflowExecution) Task(uuid string) *TaskExecution {
	for i := range e.TaskExecutions {
		if e.TaskExecutions[i].UUID == uuid {
			return &e.TaskExecutions[i]
		}
	}
	return nil
}

// TaskByName returns the owned task execution created from the named
// template, or nil.
func (e *WorkflowExecution) TaskByName(name string) *TaskExecution {
	for i := range e.TaskExecutions {
		if e.TaskExecutions[i].Name == name {
			return &e.TaskExecutions[i]
		}
	}
	return nil
}

// TasksByOperator returns the owned task executions bound to op, in order.
func (e *WorkflowExecution) TasksByOperator(op OperatorType) []*TaskExecution {
	var out []*TaskExecution
	for i := range e.TaskExecutions {
		if e.TaskExecutions[i].Operator == op {
			out = append(out, &e.TaskExecutions[i])
		}
	}
	return out
}

// AllCompleted reports whether every owned task execution is completed.
func (e *WorkflowExecution) AllCompleted() bool {
	for _, t := range e.TaskExecutions {
		if t.Status != StatusCompleted {
			return false
		}
	}
	return len(e.TaskExecutions) > 0
}

// TaskExecution is one concrete task of a workflow execution.
type TaskExecution struct {
	UUID                  string         `json:"uuid"`
	WorkflowExecutionUUID string         `json:"workflow_execution_uuid"`
	Name                  string         `json:"name"`
	Operator              OperatorType   `json:"operator"`
	Position              int            `json:"position"`
	Status                Status         `json:"status"`
	Result                map[string]any `json:"result,omitempty"`
	DependsOn             []string       `json:"depends_on,omitempty"`
	CallbackFns           []string       `json:"callback_fns,omitempty"`
	StartTime             *time.Time     `json:"start_time,omitempty"`
	EndTime               *time.Time     `json:"end_time,omitempty"`
	CompletedByUUID       string         `json:"completed_by_uuid,omitempty"`
	ErrorMessage          string         `json:"error_message,omitempty"`
}

// TaskCompletion is a request to complete a task execution.
type TaskCompletion struct {
	TaskExecutionUUID string         `json:"task_execution_uuid"`
	CompletedByUUID   string         `json:"completed_by_uuid,omitempty"`
	Result            map[string]any `json:"result"`

	// RequestID makes retries of the same completion idempotent.
	RequestID string `json:"request_id,omitempty"`
}

// ExecutionCreate is a request to start a workflow.
type ExecutionCreate struct {
	WorkflowUUID  string         `json:"workflow_uuid"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	TripUUID      string         `json:"trip_uuid,omitempty"`
	CreatedByUUID string         `json:"created_by_uuid,omitempty"`
}
