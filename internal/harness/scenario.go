package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/albardn2/karma-sub001/internal/facade"
	"github.com/albardn2/karma-sub001/internal/model"
)

// Scenario defines a ledger and workflow test scenario.
// Scenarios seed a fresh store, execute a flow of operations and assert on
// the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Workflows lists workflow definition files to sync before the flow.
	// Paths are relative to the scenario file location.
	Workflows []string `yaml:"workflows,omitempty"`

	// Setup seeds reference data and opening lots. Setup is assumed to
	// succeed; a failure aborts the scenario.
	Setup Setup `yaml:"setup"`

	// Flow contains the operations under test, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Setup is the scenario's opening state.
type Setup struct {
	References []facade.SeedReference `yaml:"references"`
	Lots       []LotSetup             `yaml:"lots"`
}

// LotSetup opens one lot. As binds the new lot's UUID to a symbol that
// later steps reference as "$name".
type LotSetup struct {
	As                    string `yaml:"as,omitempty"`
	model.InventoryCreate `yaml:",inline"`
}

// FlowStep is one operation of the main flow.
type FlowStep struct {
	// Op names the operation, one of the Op* constants.
	Op string `yaml:"op"`

	// As binds the step's primary identifier to a symbol: the event UUID
	// for create_event, the execution UUID for start_workflow. Tasks of a
	// started execution are bound as "$as.task_name".
	As string `yaml:"as,omitempty"`

	// Args are the operation arguments. String values of the form "$name"
	// are replaced by the bound identifier before the call.
	Args map[string]any `yaml:"args"`

	// Expect asserts that the step fails. Without it the step must
	// succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected failure of a step.
type ExpectClause struct {
	// Error is the expected error kind (NOT_FOUND, BAD_REQUEST,
	// UNSUPPORTED_OPERATION).
	Error string `yaml:"error"`

	// Message, when set, must be a substring of the error message.
	Message string `yaml:"message,omitempty"`
}

// Assertion validates the trace or the final state after the flow.
type Assertion struct {
	Type string `yaml:"type"`

	// Trace assertions.
	Op      string   `yaml:"op,omitempty"`
	Outcome string   `yaml:"outcome,omitempty"`
	Ops     []string `yaml:"ops,omitempty"`
	Count   int      `yaml:"count,omitempty"`

	// lot_state selects one lot by symbol, or every lot of a material.
	Lot      string `yaml:"lot,omitempty"`
	Material string `yaml:"material,omitempty"`
	Current  string `yaml:"current,omitempty"`
	Original string `yaml:"original,omitempty"`

	// execution_state selects an execution, or a task, by symbol.
	Execution string       `yaml:"execution,omitempty"`
	Task      string       `yaml:"task,omitempty"`
	Status    model.Status `yaml:"status,omitempty"`
}

// Flow operations.
const (
	OpCreateEvent     = "create_event"
	OpDeleteEvent     = "delete_event"
	OpSelectFIFO      = "select_fifo"
	OpStartWorkflow   = "start_workflow"
	OpCompleteTask    = "complete_task"
	OpCancelExecution = "cancel_execution"
)

var knownOps = []string{
	OpCreateEvent,
	OpDeleteEvent,
	OpSelectFIFO,
	OpStartWorkflow,
	OpCompleteTask,
	OpCancelExecution,
}

// Assertion types.
const (
	AssertTraceContains  = "trace_contains"
	AssertTraceOrder     = "trace_order"
	AssertTraceCount     = "trace_count"
	AssertLotState       = "lot_state"
	AssertExecutionState = "execution_state"
	AssertReconciled     = "reconciled"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Workflow paths are resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	for i, wf := range scenario.Workflows {
		if !filepath.IsAbs(wf) {
			scenario.Workflows[i] = filepath.Join(base, wf)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarioDir loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, wf := range s.Workflows {
		if _, err := os.Stat(wf); os.IsNotExist(err) {
			return fmt.Errorf("workflow file not found: %s", wf)
		}
	}

	for i, ref := range s.Setup.References {
		if ref.Kind == "" || ref.UUID == "" {
			return fmt.Errorf("setup.references[%d]: kind and uuid are required", i)
		}
	}

	for i, step := range s.Flow {
		if !slices.Contains(knownOps, step.Op) {
			return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
		}
		if step.Args == nil {
			return fmt.Errorf("flow[%d]: args is required (use empty map if no args)", i)
		}
		if step.Expect != nil && step.Expect.Error == "" {
			return fmt.Errorf("flow[%d].expect: error is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertLotState:
		if (a.Lot == "") == (a.Material == "") {
			return fmt.Errorf("assertions[%d]: exactly one of lot or material is required for lot_state", index)
		}
		if a.Current == "" && a.Original == "" {
			return fmt.Errorf("assertions[%d]: current or original is required for lot_state", index)
		}
	case AssertExecutionState:
		if (a.Execution == "") == (a.Task == "") {
			return fmt.Errorf("assertions[%d]: exactly one of execution or task is required for execution_state", index)
		}
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for execution_state", index)
		}
	case AssertReconciled:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
