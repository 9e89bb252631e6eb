// Package harness runs ledger and workflow scenarios as executable tests.
//
// A scenario seeds a fresh store, drives the same transactional operations
// the HTTP API exposes, and checks the resulting trace and final balances.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	workflows:
//	  - ../workflows/roasting.yaml
//	setup:
//	  references:
//	    - { kind: material, uuid: mat-green, name: Green beans }
//	  lots:
//	    - as: green
//	      material_uuid: mat-green
//	      unit: kg
//	      currency: USD
//	      cost_per_unit: 2
//	      quantity: 100
//	flow:
//	  - op: create_event
//	    as: spill
//	    args: { inventory_uuid: $green, quantity: -5, event_type: manual }
//	  - op: delete_event
//	    args: { event: $spill }
//	  - op: delete_event
//	    args: { event: $spill }
//	    expect:
//	      error: NOT_FOUND
//	assertions:
//	  - type: lot_state
//	    lot: $green
//	    current: "100"
//	  - type: reconciled
//
// Strings of the form "$name" refer to identifiers bound earlier with "as".
// start_workflow also binds each task of the new execution as
// "$name.task_name".
//
// # Operations
//
//   - create_event: posts an inventory event
//   - delete_event: reverses a manual event
//   - select_fifo: lists the lots that would cover a quantity
//   - start_workflow: starts a workflow by name
//   - complete_task: completes a task with a result payload
//   - cancel_execution: cancels an execution and its open tasks
//
// # Assertion Types
//
//   - trace_contains: an op completed at least once (optionally with an outcome)
//   - trace_order: ops completed in the given order
//   - trace_count: an op completed exactly N times
//   - lot_state: balances of one lot or of every lot of a material
//   - execution_state: final status of an execution or one of its tasks
//   - reconciled: every lot agrees with a replay of its events
//
// # Deterministic Testing
//
// Identifiers come from sequence generators and timestamps from a step
// clock, and each scenario runs against its own database file, so traces
// are identical across runs and can be compared against golden files.
package harness
