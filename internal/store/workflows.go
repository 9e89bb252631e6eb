package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/albardn2/karma-sub001/internal/apperr"
	"github.com/albardn2/karma-sub001/internal/model"
)

const workflowColumns = `uuid, name, description, tags, parameters, tasks, is_deleted, created_at`

// UpsertWorkflow inserts a workflow or replaces the definition stored under
// the same name. On update wf.UUID is set to the existing row's UUID.
func (t *Tx) UpsertWorkflow(ctx context.Context, wf *model.Workflow) error {
	tags, err := marshalJSON(wf.Tags)
	if err != nil {
		return fmt.Errorf("write workflow: %w", err)
	}
	params, err := marshalJSON(wf.Parameters)
	if err != nil {
		return fmt.Errorf("write workflow: %w", err)
	}
	tasks, err := marshalJSON(wf.Tasks)
	if err != nil {
		return fmt.Errorf("write workflow: %w", err)
	}

	err = t.tx.QueryRowContext(ctx, `
		INSERT INTO workflow (`+workflowColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			description = excluded.description,
			tags = excluded.tags,
			parameters = excluded.parameters,
			tasks = excluded.tasks,
			is_deleted = excluded.is_deleted
		RETURNING uuid
	`,
		wf.UUID,
		wf.Name,
		wf.Description,
		tags,
		params,
		tasks,
		boolInt(wf.IsDeleted),
		unixNano(wf.CreatedAt),
	).Scan(&wf.UUID)
	if err != nil {
		return fmt.Errorf("write workflow: %w", err)
	}
	return nil
}

// GetWorkflow returns the workflow with the given UUID, including deleted
// definitions. Returns a NotFound error if no row exists.
func (t *Tx) GetWorkflow(ctx context.Context, uuid string) (model.Workflow, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflow WHERE uuid = ?`, uuid)
	return readWorkflow(row, uuid)
}

// GetWorkflowByName returns the workflow with the given unique name.
func (t *Tx) GetWorkflowByName(ctx context.Context, name string) (model.Workflow, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflow WHERE name = ?`, name)
	return readWorkflow(row, name)
}

// ListWorkflows returns all non-deleted workflows ordered by name.
func (t *Tx) ListWorkflows(ctx context.Context) ([]model.Workflow, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+workflowColumns+` FROM workflow
		WHERE is_deleted = 0
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query workflows: %w", err)
	}
	defer rows.Close()

	workflows := []model.Workflow{}
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		workflows = append(workflows, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflows: %w", err)
	}
	return workflows, nil
}

func readWorkflow(row *sql.Row, key string) (model.Workflow, error) {
	wf, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Workflow{}, apperr.NotFound("workflow", key)
	}
	if err != nil {
		return model.Workflow{}, fmt.Errorf("read workflow: %w", err)
	}
	return wf, nil
}

func scanWorkflow(row scanner) (model.Workflow, error) {
	var (
		wf                  model.Workflow
		tags, params, tasks string
		isDeleted           int
		createdAt           int64
	)
	if err := row.Scan(&wf.UUID, &wf.Name, &wf.Description, &tags, &params, &tasks, &isDeleted, &createdAt); err != nil {
		return model.Workflow{}, err
	}
	if err := unmarshalJSON(tags, &wf.Tags); err != nil {
		return model.Workflow{}, err
	}
	if err := unmarshalJSON(params, &wf.Parameters); err != nil {
		return model.Workflow{}, err
	}
	if err := unmarshalJSON(tasks, &wf.Tasks); err != nil {
		return model.Workflow{}, err
	}
	wf.IsDeleted = isDeleted == 1
	wf.CreatedAt = fromUnixNano(createdAt)
	return wf, nil
}
