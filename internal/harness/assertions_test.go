package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albardn2/karma-sub001/internal/model"
)

func sampleTrace() []TraceEvent {
	r := NewResult()
	r.AddInvocationTrace(OpCreateEvent, nil, 1)
	r.AddCompletionTrace(OpCreateEvent, OutcomeOK, nil, 2)
	r.AddInvocationTrace(OpSelectFIFO, nil, 3)
	r.AddCompletionTrace(OpSelectFIFO, OutcomeOK, nil, 4)
	r.AddInvocationTrace(OpDeleteEvent, nil, 5)
	r.AddCompletionTrace(OpDeleteEvent, "NOT_FOUND", nil, 6)
	r.AddInvocationTrace(OpCreateEvent, nil, 7)
	r.AddCompletionTrace(OpCreateEvent, OutcomeOK, nil, 8)
	return r.Trace
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpDeleteEvent}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpDeleteEvent, Outcome: "NOT_FOUND"}))

	err := assertTraceContains(trace, Assertion{Op: OpDeleteEvent, Outcome: OutcomeOK})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "delete_event -> ok", ae.Expected)
	assert.Contains(t, err.Error(), "[6] delete_event -> NOT_FOUND")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()
	tests := []struct {
		name string
		ops  []string
		ok   bool
	}{
		{"in order", []string{OpCreateEvent, OpDeleteEvent}, true},
		{"repeated op", []string{OpCreateEvent, OpSelectFIFO, OpCreateEvent}, true},
		{"reversed", []string{OpDeleteEvent, OpSelectFIFO}, false},
		{"missing", []string{OpCancelExecution}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceOrder(trace, Assertion{Ops: tt.ops})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpCreateEvent, Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpDeleteEvent, Outcome: OutcomeOK, Count: 0}))

	err := assertTraceCount(trace, Assertion{Op: OpSelectFIFO, Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 occurrences")
}

func TestAssertLotState(t *testing.T) {
	lots := []LotState{
		{UUID: "inv-0001", MaterialUUID: "mat-a", CurrentQuantity: "7.5", OriginalQuantity: "10"},
		{UUID: "inv-0002", MaterialUUID: "mat-a", CurrentQuantity: "2.50", OriginalQuantity: "5"},
		{UUID: "inv-0003", MaterialUUID: "mat-b", CurrentQuantity: "1", OriginalQuantity: "1"},
	}
	symbols := map[string]string{"first": "inv-0001"}

	assert.NoError(t, assertLotState(lots, Assertion{Lot: "$first", Current: "7.50", Original: "10"}, symbols))
	assert.NoError(t, assertLotState(lots, Assertion{Material: "mat-a", Current: "10", Original: "15"}, symbols))
	assert.NoError(t, assertLotState(lots, Assertion{Material: "mat-c", Current: "0"}, symbols))

	err := assertLotState(lots, Assertion{Lot: "$first", Current: "8"}, symbols)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lot inv-0001 current_quantity = 8")

	err = assertLotState(lots, Assertion{Lot: "$ghost", Current: "1"}, symbols)
	assert.ErrorContains(t, err, "unbound symbol $ghost")
}

func TestAssertExecutionState(t *testing.T) {
	execs := []ExecutionState{{
		UUID:   "wf-0002",
		Status: model.StatusInProgress,
		Tasks:  map[string]model.Status{"roast": model.StatusCompleted, "inspect": model.StatusPending},
	}}
	symbols := map[string]string{"run": "wf-0002"}

	assert.NoError(t, assertExecutionState(execs, Assertion{Execution: "$run", Status: model.StatusInProgress}, symbols))
	assert.NoError(t, assertExecutionState(execs, Assertion{Task: "$run.roast", Status: model.StatusCompleted}, symbols))

	err := assertExecutionState(execs, Assertion{Task: "$run.inspect", Status: model.StatusCompleted}, symbols)
	assert.ErrorContains(t, err, "task inspect of execution wf-0002 is completed")

	err = assertExecutionState(execs, Assertion{Task: "$run.pack", Status: model.StatusCompleted}, symbols)
	assert.ErrorContains(t, err, "no such task")

	err = assertExecutionState(execs, Assertion{Task: "$run", Status: model.StatusCompleted}, symbols)
	assert.ErrorContains(t, err, "must have the form")
}

func TestEvaluateAssertions_CollectsFailures(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Op: OpCreateEvent},
		{Type: AssertTraceCount, Op: OpCreateEvent, Count: 5},
		{Type: AssertReconciled},
		{Type: "vibes"},
	}, nil)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "assertion[1]")
	assert.Contains(t, errs[1], "assertion[2]: reconciled requires ledger access")
	assert.Contains(t, errs[2], `assertion[3]: unknown assertion type "vibes"`)
}
