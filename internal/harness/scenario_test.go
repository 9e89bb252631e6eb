package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albardn2/karma-sub001/internal/model"
)

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: test_scenario
description: "Test scenario for validation"
setup:
  references:
    - { kind: material, uuid: mat-1, name: Beans }
  lots:
    - as: beans
      material_uuid: mat-1
      unit: kg
      currency: USD
      cost_per_unit: 1.25
      quantity: 10
flow:
  - op: create_event
    as: e1
    args:
      inventory_uuid: $beans
      quantity: -2
      event_type: manual
assertions:
  - type: trace_contains
    op: create_event
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	require.Len(t, scenario.Setup.Lots, 1)
	lot := scenario.Setup.Lots[0]
	assert.Equal(t, "beans", lot.As)
	assert.Equal(t, "mat-1", lot.MaterialUUID)
	assert.Equal(t, "1.25", lot.CostPerUnit.String())
	assert.Equal(t, "10", lot.Quantity.String())
	assert.Equal(t, model.RefMaterial, scenario.Setup.References[0].Kind)
	require.Len(t, scenario.Flow, 1)
	assert.Equal(t, OpCreateEvent, scenario.Flow[0].Op)
	assert.Equal(t, "$beans", scenario.Flow[0].Args["inventory_uuid"])
	assert.Equal(t, "e1", scenario.Flow[0].As)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, t.TempDir(), `
name: typo
description: typo
flow:
  - op: create_event
    args: {}
assertion:
  - type: reconciled
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_ResolvesWorkflowPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "wf"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wf", "a.yaml"), []byte("name: a\n"), 0644))

	path := writeScenario(t, dir, `
name: wf
description: wf
workflows: [wf/a.yaml]
flow:
  - op: start_workflow
    args: { workflow: a }
assertions:
  - type: reconciled
`)
	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "wf", "a.yaml")}, scenario.Workflows)
}

func TestLoadScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\nflow: [{op: create_event, args: {}}]\nassertions: [{type: reconciled}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nflow: [{op: create_event, args: {}}]\nassertions: [{type: reconciled}]\n",
			wantErr: "description is required",
		},
		{
			name:    "empty flow",
			content: "name: n\ndescription: d\nassertions: [{type: reconciled}]\n",
			wantErr: "flow list is required",
		},
		{
			name:    "no assertions",
			content: "name: n\ndescription: d\nflow: [{op: create_event, args: {}}]\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "unknown op",
			content: "name: n\ndescription: d\nflow: [{op: teleport, args: {}}]\nassertions: [{type: reconciled}]\n",
			wantErr: `unknown op "teleport"`,
		},
		{
			name:    "missing args",
			content: "name: n\ndescription: d\nflow: [{op: create_event}]\nassertions: [{type: reconciled}]\n",
			wantErr: "args is required",
		},
		{
			name:    "expect without error",
			content: "name: n\ndescription: d\nflow: [{op: create_event, args: {}, expect: {message: x}}]\nassertions: [{type: reconciled}]\n",
			wantErr: "error is required",
		},
		{
			name:    "missing workflow file",
			content: "name: n\ndescription: d\nworkflows: [nope.yaml]\nflow: [{op: create_event, args: {}}]\nassertions: [{type: reconciled}]\n",
			wantErr: "workflow file not found",
		},
		{
			name:    "lot_state needs a subject",
			content: "name: n\ndescription: d\nflow: [{op: create_event, args: {}}]\nassertions: [{type: lot_state, current: '1'}]\n",
			wantErr: "exactly one of lot or material",
		},
		{
			name:    "lot_state needs a quantity",
			content: "name: n\ndescription: d\nflow: [{op: create_event, args: {}}]\nassertions: [{type: lot_state, lot: $x}]\n",
			wantErr: "current or original is required",
		},
		{
			name:    "execution_state needs a status",
			content: "name: n\ndescription: d\nflow: [{op: create_event, args: {}}]\nassertions: [{type: execution_state, execution: $x}]\n",
			wantErr: "status is required",
		},
		{
			name:    "unknown assertion",
			content: "name: n\ndescription: d\nflow: [{op: create_event, args: {}}]\nassertions: [{type: vibes}]\n",
			wantErr: `unknown assertion type "vibes"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), tt.content)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarioDir(t *testing.T) {
	scenarios, err := LoadScenarioDir("testdata/scenarios")
	require.NoError(t, err)

	names := make([]string, 0, len(scenarios))
	for _, s := range scenarios {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"cancel_run", "ledger_basics", "roast_and_inspect"}, names)
}
