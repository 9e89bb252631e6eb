// Package workflow runs workflow executions: it expands a workflow
// definition into task executions, completes tasks through typed operators,
// fires the callbacks wired to each task, and cancels executions.
//
// # Lifecycle
//
// CreateExecution merges caller parameters over the workflow's defaults and
// creates one pending task execution per task template, in template order.
// CompleteTask then, for one task:
//
//  1. rejects missing or terminal tasks, executions that are not in
//     progress, and tasks whose depends_on siblings are not completed
//  2. resolves the operator for the task's operator type (fail closed)
//  3. lets the operator validate the payload against its CUE schema,
//     apply its side effects and mark the task completed
//  4. fires the task's callbacks in order
//  5. marks the execution completed once every task is completed
//
// Everything happens inside the caller's transaction; any error from an
// operator or callback rolls back the whole completion.
//
// CancelExecution moves a non-terminal execution to cancelled and cascades
// to every non-terminal task. Completed tasks are left untouched.
//
// # Registries
//
// Operators and callbacks live in immutable maps built once on first use.
// Workflow definitions are YAML files validated against both registries
// before they are stored.
package workflow
