package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/albardn2/karma-sub001/internal/apperr"
	"github.com/albardn2/karma-sub001/internal/model"
)

const executionColumns = `uuid, workflow_uuid, parameters, status, result, error_message,
	start_time, end_time, trip_uuid, process_uuids, created_by_uuid`

const taskColumns = `uuid, workflow_execution_uuid, name, operator_type, position, status, result,
	depends_on, callback_fns, start_time, end_time, completed_by_uuid, error_message`

// InsertExecution writes a new workflow execution together with all of its
// task executions.
func (t *Tx) InsertExecution(ctx context.Context, exec *model.WorkflowExecution) error {
	params, err := marshalJSON(exec.Parameters)
	if err != nil {
		return fmt.Errorf("write workflow execution: %w", err)
	}
	result, err := marshalNullableJSON(exec.Result)
	if err != nil {
		return fmt.Errorf("write workflow execution: %w", err)
	}
	processes, err := marshalJSON(exec.ProcessUUIDs)
	if err != nil {
		return fmt.Errorf("write workflow execution: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO workflow_execution (`+executionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		exec.UUID,
		exec.WorkflowUUID,
		params,
		string(exec.Status),
		result,
		exec.ErrorMessage,
		unixNano(exec.StartTime),
		nullTime(exec.EndTime),
		nullString(exec.TripUUID),
		processes,
		nullString(exec.CreatedByUUID),
	)
	if err != nil {
		return fmt.Errorf("write workflow execution: %w", err)
	}

	return t.insertTasks(ctx, exec.TaskExecutions)
}

// insertTasks batch-inserts task executions with one prepared statement.
func (t *Tx) insertTasks(ctx context.Context, tasks []model.TaskExecution) error {
	stmt, err := t.tx.PrepareContext(ctx, `
		INSERT INTO task_execution (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write task executions: %w", err)
	}
	defer stmt.Close()

	for _, task := range tasks {
		args, err := taskArgs(task)
		if err != nil {
			return fmt.Errorf("write task execution: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("write task execution: %w", err)
		}
	}
	return nil
}

// GetExecution returns a workflow execution with its task executions
// loaded in position order.
func (t *Tx) GetExecution(ctx context.Context, uuid string) (model.WorkflowExecution, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+executionColumns+` FROM workflow_execution WHERE uuid = ?`, uuid)
	exec, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.WorkflowExecution{}, apperr.NotFound("workflow_execution", uuid)
	}
	if err != nil {
		return model.WorkflowExecution{}, fmt.Errorf("read workflow execution: %w", err)
	}

	tasks, err := t.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM task_execution
		WHERE workflow_execution_uuid = ?
		ORDER BY position ASC
	`, uuid)
	if err != nil {
		return model.WorkflowExecution{}, err
	}
	exec.TaskExecutions = tasks
	return exec, nil
}

// SaveExecution updates the mutable fields of a workflow execution. Task
// executions are saved separately.
func (t *Tx) SaveExecution(ctx context.Context, exec *model.WorkflowExecution) error {
	params, err := marshalJSON(exec.Parameters)
	if err != nil {
		return fmt.Errorf("write workflow execution: %w", err)
	}
	result, err := marshalNullableJSON(exec.Result)
	if err != nil {
		return fmt.Errorf("write workflow execution: %w", err)
	}
	processes, err := marshalJSON(exec.ProcessUUIDs)
	if err != nil {
		return fmt.Errorf("write workflow execution: %w", err)
	}

	res, err := t.tx.ExecContext(ctx, `
		UPDATE workflow_execution
		SET parameters = ?, status = ?, result = ?, error_message = ?,
		    end_time = ?, trip_uuid = ?, process_uuids = ?
		WHERE uuid = ?
	`,
		params,
		string(exec.Status),
		result,
		exec.ErrorMessage,
		nullTime(exec.EndTime),
		nullString(exec.TripUUID),
		processes,
		exec.UUID,
	)
	if err != nil {
		return fmt.Errorf("write workflow execution: %w", err)
	}
	return requireRow(res, "workflow_execution", exec.UUID)
}

// GetTaskExecution returns a single task execution.
func (t *Tx) GetTaskExecution(ctx context.Context, uuid string) (model.TaskExecution, error) {
	tasks, err := t.queryTasks(ctx, `SELECT `+taskColumns+` FROM task_execution WHERE uuid = ?`, uuid)
	if err != nil {
		return model.TaskExecution{}, err
	}
	if len(tasks) == 0 {
		return model.TaskExecution{}, apperr.NotFound("task_execution", uuid)
	}
	return tasks[0], nil
}

// SaveTaskExecution updates the mutable fields of a task execution.
func (t *Tx) SaveTaskExecution(ctx context.Context, task *model.TaskExecution) error {
	result, err := marshalNullableJSON(task.Result)
	if err != nil {
		return fmt.Errorf("write task execution: %w", err)
	}

	res, err := t.tx.ExecContext(ctx, `
		UPDATE task_execution
		SET status = ?, result = ?, start_time = ?, end_time = ?,
		    completed_by_uuid = ?, error_message = ?
		WHERE uuid = ?
	`,
		string(task.Status),
		result,
		nullTime(task.StartTime),
		nullTime(task.EndTime),
		nullString(task.CompletedByUUID),
		task.ErrorMessage,
		task.UUID,
	)
	if err != nil {
		return fmt.Errorf("write task execution: %w", err)
	}
	return requireRow(res, "task_execution", task.UUID)
}

// ListExecutions returns workflow executions (without tasks), newest first.
func (t *Tx) ListExecutions(ctx context.Context) ([]model.WorkflowExecution, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+executionColumns+` FROM workflow_execution
		ORDER BY start_time DESC, uuid COLLATE BINARY DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query workflow executions: %w", err)
	}
	defer rows.Close()

	execs := []model.WorkflowExecution{}
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workflow execution: %w", err)
		}
		execs = append(execs, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflow executions: %w", err)
	}
	return execs, nil
}

func (t *Tx) queryTasks(ctx context.Context, query string, args ...any) ([]model.TaskExecution, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query task executions: %w", err)
	}
	defer rows.Close()

	tasks := []model.TaskExecution{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task execution: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task executions: %w", err)
	}
	return tasks, nil
}

func taskArgs(task model.TaskExecution) ([]any, error) {
	result, err := marshalNullableJSON(task.Result)
	if err != nil {
		return nil, err
	}
	dependsOn, err := marshalJSON(task.DependsOn)
	if err != nil {
		return nil, err
	}
	callbacks, err := marshalJSON(task.CallbackFns)
	if err != nil {
		return nil, err
	}
	return []any{
		task.UUID,
		task.WorkflowExecutionUUID,
		task.Name,
		string(task.Operator),
		task.Position,
		string(task.Status),
		result,
		dependsOn,
		callbacks,
		nullTime(task.StartTime),
		nullTime(task.EndTime),
		nullString(task.CompletedByUUID),
		task.ErrorMessage,
	}, nil
}

func scanExecution(row scanner) (model.WorkflowExecution, error) {
	var (
		exec            model.WorkflowExecution
		params, status  string
		processes       string
		result          sql.NullString
		trip, createdBy sql.NullString
		startTime       int64
		endTime         sql.NullInt64
	)
	err := row.Scan(
		&exec.UUID,
		&exec.WorkflowUUID,
		&params,
		&status,
		&result,
		&exec.ErrorMessage,
		&startTime,
		&endTime,
		&trip,
		&processes,
		&createdBy,
	)
	if err != nil {
		return model.WorkflowExecution{}, err
	}
	if err := unmarshalJSON(params, &exec.Parameters); err != nil {
		return model.WorkflowExecution{}, err
	}
	if exec.Parameters == nil {
		exec.Parameters = map[string]any{}
	}
	if exec.Result, err = unmarshalNullableJSON(result); err != nil {
		return model.WorkflowExecution{}, err
	}
	if err := unmarshalJSON(processes, &exec.ProcessUUIDs); err != nil {
		return model.WorkflowExecution{}, err
	}
	exec.Status = model.Status(status)
	exec.StartTime = fromUnixNano(startTime)
	exec.EndTime = timePtr(endTime)
	exec.TripUUID = trip.String
	exec.CreatedByUUID = createdBy.String
	return exec, nil
}

func scanTask(row scanner) (model.TaskExecution, error) {
	var (
		task                 model.TaskExecution
		operator, status     string
		dependsOn, callbacks string
		result, completedBy  sql.NullString
		startTime, endTime   sql.NullInt64
	)
	err := row.Scan(
		&task.UUID,
		&task.WorkflowExecutionUUID,
		&task.Name,
		&operator,
		&task.Position,
		&status,
		&result,
		&dependsOn,
		&callbacks,
		&startTime,
		&endTime,
		&completedBy,
		&task.ErrorMessage,
	)
	if err != nil {
		return model.TaskExecution{}, err
	}
	if task.Result, err = unmarshalNullableJSON(result); err != nil {
		return model.TaskExecution{}, err
	}
	if err := unmarshalJSON(dependsOn, &task.DependsOn); err != nil {
		return model.TaskExecution{}, err
	}
	if err := unmarshalJSON(callbacks, &task.CallbackFns); err != nil {
		return model.TaskExecution{}, err
	}
	task.Operator = model.OperatorType(operator)
	task.Status = model.Status(status)
	task.StartTime = timePtr(startTime)
	task.EndTime = timePtr(endTime)
	task.CompletedByUUID = completedBy.String
	return task, nil
}

// requireRow turns a zero-row update into a NotFound error.
func requireRow(res sql.Result, entity, uuid string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write %s: %w", entity, err)
	}
	if n == 0 {
		return apperr.NotFound(entity, uuid)
	}
	return nil
}
