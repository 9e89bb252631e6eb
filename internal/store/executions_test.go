package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albardn2/karma-sub001/internal/apperr"
	"github.com/albardn2/karma-sub001/internal/model"
)

func testWorkflow() model.Workflow {
	return model.Workflow{
		UUID:       "wf-1",
		Name:       "roasting",
		Tags:       []string{"production"},
		Parameters: map[string]any{"qc_type": "coated_peanuts_qc"},
		Tasks: []model.TaskTemplate{
			{Name: "roast", Operator: model.OperatorIOProcess, CallbackFns: []string{"create_process_from_workflow"}},
			{Name: "check", Operator: model.OperatorQC, DependsOn: []string{"roast"}},
		},
		CreatedAt: testEpoch,
	}
}

func TestWorkflow_UpsertKeepsUUID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx *Tx) error {
		wf := testWorkflow()
		require.NoError(t, tx.UpsertWorkflow(ctx, &wf))

		again := testWorkflow()
		again.UUID = "wf-2"
		again.Description = "updated"
		require.NoError(t, tx.UpsertWorkflow(ctx, &again))
		assert.Equal(t, "wf-1", again.UUID)

		got, err := tx.GetWorkflowByName(ctx, "roasting")
		require.NoError(t, err)
		assert.Equal(t, "updated", got.Description)
		assert.Equal(t, []string{"production"}, got.Tags)
		require.Len(t, got.Tasks, 2)
		assert.Equal(t, []string{"roast"}, got.Tasks[1].DependsOn)

		_, err = tx.GetWorkflow(ctx, "missing")
		assert.True(t, apperr.IsNotFound(err))
		return nil
	})
}

func TestExecution_InsertGetSave(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx *Tx) error {
		wf := testWorkflow()
		require.NoError(t, tx.UpsertWorkflow(ctx, &wf))

		exec := model.WorkflowExecution{
			UUID:         "ex-1",
			WorkflowUUID: "wf-1",
			Parameters:   map[string]any{"qc_type": "x"},
			Status:       model.StatusInProgress,
			StartTime:    testEpoch,
			TaskExecutions: []model.TaskExecution{
				{UUID: "t-2", WorkflowExecutionUUID: "ex-1", Name: "check", Operator: model.OperatorQC, Position: 1, Status: model.StatusPending},
				{UUID: "t-1", WorkflowExecutionUUID: "ex-1", Name: "roast", Operator: model.OperatorIOProcess, Position: 0, Status: model.StatusPending},
			},
		}
		require.NoError(t, tx.InsertExecution(ctx, &exec))

		got, err := tx.GetExecution(ctx, "ex-1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusInProgress, got.Status)
		assert.Nil(t, got.EndTime)
		require.Len(t, got.TaskExecutions, 2)
		assert.Equal(t, "t-1", got.TaskExecutions[0].UUID, "tasks ordered by position")

		task := got.TaskExecutions[0]
		end := testEpoch.Add(60)
		task.Status = model.StatusCompleted
		task.EndTime = &end
		task.Result = map[string]any{"ok": true}
		require.NoError(t, tx.SaveTaskExecution(ctx, &task))

		got.Status = model.StatusCancelled
		got.EndTime = &end
		got.ErrorMessage = "cancelled"
		require.NoError(t, tx.SaveExecution(ctx, &got))

		reread, err := tx.GetExecution(ctx, "ex-1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, reread.Status)
		assert.Equal(t, end, *reread.EndTime)
		assert.Equal(t, model.StatusCompleted, reread.TaskExecutions[0].Status)
		assert.Equal(t, true, reread.TaskExecutions[0].Result["ok"])

		_, err = tx.GetTaskExecution(ctx, "missing")
		assert.True(t, apperr.IsNotFound(err))
		return nil
	})
}

func TestTrip_SaveMissing(t *testing.T) {
	s := createTestStore(t)

	inTx(t, s, func(tx *Tx) error {
		err := tx.SaveTrip(context.Background(), &model.Trip{UUID: "nope", Status: model.TripPlanned})
		assert.True(t, apperr.IsNotFound(err))
		return nil
	})
}

func TestProcess_ListAndSaveData(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx *Tx) error {
		require.NoError(t, tx.InsertProcess(ctx, &model.Process{UUID: "p-2", Type: "roasting", CreatedAt: testEpoch.Add(time.Second)}))
		require.NoError(t, tx.InsertProcess(ctx, &model.Process{UUID: "p-1", Type: "roasting", CreatedAt: testEpoch.Add(time.Second)}))
		require.NoError(t, tx.InsertProcess(ctx, &model.Process{UUID: "p-0", Type: "roasting", CreatedAt: testEpoch}))
		require.NoError(t, tx.InsertProcess(ctx, &model.Process{UUID: "p-x", Type: "grinding", CreatedAt: testEpoch}))

		ps, err := tx.ListProcesses(ctx, "roasting")
		require.NoError(t, err)
		require.Len(t, ps, 3)
		assert.Equal(t, "p-0", ps[0].UUID)
		assert.Equal(t, "p-1", ps[1].UUID)
		assert.Equal(t, "p-2", ps[2].UUID)

		p := ps[0]
		p.Data.Inputs = append(p.Data.Inputs, model.ProcessInput{InventoryUUID: "inv-1", MaterialUUID: "mat-1"})
		require.NoError(t, tx.SaveProcessData(ctx, &p))

		reread, err := tx.GetProcess(ctx, "p-0")
		require.NoError(t, err)
		require.Len(t, reread.Data.Inputs, 1)
		assert.Equal(t, "inv-1", reread.Data.Inputs[0].InventoryUUID)

		err = tx.SaveProcessData(ctx, &model.Process{UUID: "missing"})
		assert.True(t, apperr.IsNotFound(err))
		return nil
	})
}
