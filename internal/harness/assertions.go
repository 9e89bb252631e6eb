package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/albardn2/karma-sub001/internal/facade"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			if event.Type == EventCompletion {
				fmt.Fprintf(&buf, "  [%d] %s -> %s\n", event.Seq, event.Op, event.Outcome)
			}
		}
	}

	return buf.String()
}

// completions returns the completions of op whose outcome matches. An empty
// outcome matches any.
func completions(trace []TraceEvent, op, outcome string) []TraceEvent {
	var out []TraceEvent
	for _, event := range trace {
		if event.Type != EventCompletion || event.Op != op {
			continue
		}
		if outcome == "" || event.Outcome == outcome {
			out = append(out, event)
		}
	}
	return out
}

func describeOp(op, outcome string) string {
	if outcome == "" {
		return op
	}
	return op + " -> " + outcome
}

// assertTraceContains checks that op completed at least once with the
// given outcome.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	if len(completions(trace, assertion.Op, assertion.Outcome)) > 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describeOp(assertion.Op, assertion.Outcome),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the ops completed in the given order.
// Ops don't need to be consecutive (intervening steps are allowed), and an
// op may appear more than once in the list.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next == len(assertion.Ops) {
			break
		}
		if event.Type != EventCompletion || event.Op != assertion.Ops[next] {
			continue
		}
		if assertion.Outcome == "" || event.Outcome == assertion.Outcome {
			next++
		}
	}
	if next == len(assertion.Ops) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("ops in order: %v", assertion.Ops),
		Actual:   fmt.Sprintf("matched %d of %d, missing %s", next, len(assertion.Ops), assertion.Ops[next]),
		Trace:    trace,
	}
}

// assertTraceCount checks that op completed exactly Count times with the
// given outcome.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := len(completions(trace, assertion.Op, assertion.Outcome))
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, describeOp(assertion.Op, assertion.Outcome)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertLotState compares the balance of one lot, or the summed balance of
// every lot of a material, against the expected quantities.
func assertLotState(lots []LotState, assertion Assertion, symbols map[string]string) error {
	var (
		matched           []LotState
		subject           string
		current, original decimal.Decimal
	)
	if assertion.Lot != "" {
		id, err := lookup(symbols, assertion.Lot)
		if err != nil {
			return err
		}
		subject = "lot " + id
		for _, lot := range lots {
			if lot.UUID == id {
				matched = append(matched, lot)
			}
		}
		if len(matched) == 0 {
			return &AssertionError{Type: AssertLotState, Expected: subject, Actual: "no such lot"}
		}
	} else {
		subject = "material " + assertion.Material
		for _, lot := range lots {
			if lot.MaterialUUID == assertion.Material {
				matched = append(matched, lot)
			}
		}
	}

	for _, lot := range matched {
		current = current.Add(decimal.RequireFromString(lot.CurrentQuantity))
		original = original.Add(decimal.RequireFromString(lot.OriginalQuantity))
	}

	if err := compareQuantity(subject+" current_quantity", assertion.Current, current); err != nil {
		return err
	}
	return compareQuantity(subject+" original_quantity", assertion.Original, original)
}

func compareQuantity(what, expected string, actual decimal.Decimal) error {
	if expected == "" {
		return nil
	}
	want, err := decimal.NewFromString(expected)
	if err != nil {
		return fmt.Errorf("%s: invalid expected quantity %q: %w", what, expected, err)
	}
	if !want.Equal(actual) {
		return &AssertionError{
			Type:     AssertLotState,
			Expected: fmt.Sprintf("%s = %s", what, want),
			Actual:   actual.String(),
		}
	}
	return nil
}

// assertExecutionState checks the final status of an execution, or of one
// task referenced as "$execution.task".
func assertExecutionState(execs []ExecutionState, assertion Assertion, symbols map[string]string) error {
	ref, taskName := assertion.Execution, ""
	if assertion.Task != "" {
		var ok bool
		ref, taskName, ok = strings.Cut(assertion.Task, ".")
		if !ok {
			return fmt.Errorf("task reference %q must have the form $execution.task", assertion.Task)
		}
	}
	id, err := lookup(symbols, ref)
	if err != nil {
		return err
	}

	for _, exec := range execs {
		if exec.UUID != id {
			continue
		}
		actual, subject := exec.Status, "execution "+id
		if taskName != "" {
			subject = fmt.Sprintf("task %s of execution %s", taskName, id)
			status, ok := exec.Tasks[taskName]
			if !ok {
				return &AssertionError{Type: AssertExecutionState, Expected: subject, Actual: "no such task"}
			}
			actual = status
		}
		if actual != assertion.Status {
			return &AssertionError{
				Type:     AssertExecutionState,
				Expected: fmt.Sprintf("%s is %s", subject, assertion.Status),
				Actual:   string(actual),
			}
		}
		return nil
	}
	return &AssertionError{Type: AssertExecutionState, Expected: "execution " + id, Actual: "not started by this scenario"}
}

// assertReconciled replays the ledger and fails on any discrepancy.
func assertReconciled(ctx context.Context, svc *facade.Service) error {
	ds, err := svc.Reconcile(ctx)
	if err != nil {
		return err
	}
	if len(ds) == 0 {
		return nil
	}
	lots := make([]string, 0, len(ds))
	for _, d := range ds {
		lots = append(lots, d.InventoryUUID)
	}
	return &AssertionError{
		Type:     AssertReconciled,
		Expected: "every lot reconciles with its events",
		Actual:   fmt.Sprintf("%d discrepancies: %s", len(ds), strings.Join(lots, ", ")),
	}
}

// lookup resolves "$name" (or "name") to its bound identifier.
func lookup(symbols map[string]string, ref string) (string, error) {
	name := strings.TrimPrefix(ref, "$")
	id, ok := symbols[name]
	if !ok {
		return "", fmt.Errorf("unbound symbol $%s", name)
	}
	return id, nil
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx     context.Context
	Service *facade.Service
	Symbols map[string]string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides symbol bindings and ledger access for state
// assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	var symbols map[string]string
	if actx != nil {
		symbols = actx.Symbols
	}

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertLotState:
			err = assertLotState(result.Lots, assertion, symbols)
		case AssertExecutionState:
			err = assertExecutionState(result.Executions, assertion, symbols)
		case AssertReconciled:
			if actx == nil || actx.Service == nil {
				err = fmt.Errorf("reconciled requires ledger access")
			} else {
				err = assertReconciled(actx.Ctx, actx.Service)
			}
		default:
			err = fmt.Errorf("unknown assertion type %q", assertion.Type)
		}

		if err != nil {
			errors = append(errors, fmt.Sprintf("assertion[%d]: %v", i, err))
		}
	}

	return errors
}
