package harness

import "github.com/albardn2/karma-sub001/internal/model"

// Trace event types.
const (
	EventInvocation = "invocation"
	EventCompletion = "completion"
)

// OutcomeOK is the completion outcome of a step that succeeded. Failed
// steps carry the error kind instead (NOT_FOUND, BAD_REQUEST, ...).
const OutcomeOK = "ok"

// TraceEvent is one invocation or completion in a scenario trace.
type TraceEvent struct {
	Type    string         `json:"type"`
	Op      string         `json:"op"`
	Args    map[string]any `json:"args,omitempty"`
	Outcome string         `json:"outcome,omitempty"`
	Result  map[string]any `json:"result,omitempty"`
	Seq     int64          `json:"seq"`
}

// LotState is the final balance of one lot.
type LotState struct {
	UUID             string `json:"uuid"`
	MaterialUUID     string `json:"material_uuid"`
	CurrentQuantity  string `json:"current_quantity"`
	OriginalQuantity string `json:"original_quantity"`
}

// ExecutionState is the final status of one workflow execution started by
// the scenario, with the status of each task keyed by task name.
type ExecutionState struct {
	UUID   string                  `json:"uuid"`
	Status model.Status            `json:"status"`
	Tasks  map[string]model.Status `json:"tasks"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains all invocations and completions in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Lots and Executions are read back after the flow has run.
	Lots       []LotState       `json:"lots"`
	Executions []ExecutionState `json:"executions,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddInvocationTrace adds an invocation to the trace.
func (r *Result) AddInvocationTrace(op string, args map[string]any, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type: EventInvocation,
		Op:   op,
		Args: args,
		Seq:  seq,
	})
}

// AddCompletionTrace adds a completion to the trace.
func (r *Result) AddCompletionTrace(op, outcome string, result map[string]any, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:    EventCompletion,
		Op:      op,
		Outcome: outcome,
		Result:  result,
		Seq:     seq,
	})
}

// lotState flattens a lot for the final-state snapshot.
func lotState(lot model.Inventory) LotState {
	return LotState{
		UUID:             lot.UUID,
		MaterialUUID:     lot.MaterialUUID,
		CurrentQuantity:  lot.CurrentQuantity.String(),
		OriginalQuantity: lot.OriginalQuantity.String(),
	}
}
