package workflow

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/albardn2/karma-sub001/internal/ledger"
	"github.com/albardn2/karma-sub001/internal/model"
	"github.com/albardn2/karma-sub001/internal/store"
	"github.com/albardn2/karma-sub001/internal/testutil"
)

const (
	matRaw    = "mat-raw"
	matOut    = "mat-out"
	matPkg    = "mat-pkg"
	warehouse = "wh-1"
)

type fixture struct {
	t      *testing.T
	store  *store.Store
	ledger *ledger.Service
	engine *Engine
}

// newFixture opens a migrated store with three materials and one
// warehouse registered.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "wf.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clk := testutil.NewStepClock()
	l := ledger.NewService(
		ledger.WithIDGenerator(testutil.NewSequenceIDs("inv")),
		ledger.WithClock(clk),
	)
	e := NewEngine(l,
		WithIDGenerator(testutil.NewSequenceIDs("wf")),
		WithClock(clk),
	)

	f := &fixture{t: t, store: s, ledger: l, engine: e}
	f.tx(func(tx *store.Tx) error {
		for _, m := range []string{matRaw, matOut, matPkg} {
			if err := tx.PutReference(context.Background(), model.RefMaterial, m, m); err != nil {
				return err
			}
		}
		return tx.PutReference(context.Background(), model.RefWarehouse, warehouse, "main")
	})
	return f
}

// tx runs fn in a committed transaction and fails the test on error.
func (f *fixture) tx(fn func(*store.Tx) error) {
	f.t.Helper()
	require.NoError(f.t, f.store.RunInTransaction(context.Background(), fn))
}

// try runs fn in a transaction and returns its error.
func (f *fixture) try(fn func(*store.Tx) error) error {
	return f.store.RunInTransaction(context.Background(), fn)
}

func (f *fixture) lot(material, qty, cpu string) model.Inventory {
	f.t.Helper()
	var lot model.Inventory
	f.tx(func(tx *store.Tx) error {
		var err error
		lot, err = f.ledger.CreateInventory(context.Background(), tx, model.InventoryCreate{
			MaterialUUID: material,
			Unit:         "kg",
			Currency:     "USD",
			CostPerUnit:  dec(cpu),
			Quantity:     dec(qty),
		})
		return err
	})
	return lot
}

func (f *fixture) getLot(uuid string) model.Inventory {
	f.t.Helper()
	var lot model.Inventory
	f.tx(func(tx *store.Tx) error {
		var err error
		lot, err = tx.GetInventory(context.Background(), uuid)
		return err
	})
	return lot
}

// start syncs def and starts one execution of it.
func (f *fixture) start(def Definition, params map[string]any) model.WorkflowExecution {
	f.t.Helper()
	var exec model.WorkflowExecution
	f.tx(func(tx *store.Tx) error {
		ctx := context.Background()
		wfs, err := f.engine.SyncDefinitions(ctx, tx, []Definition{def})
		if err != nil {
			return err
		}
		exec, err = f.engine.CreateExecution(ctx, tx, model.ExecutionCreate{
			WorkflowUUID: wfs[0].UUID,
			Parameters:   params,
		})
		return err
	})
	return exec
}

func (f *fixture) complete(taskUUID string, result map[string]any) (model.TaskExecution, model.WorkflowExecution, error) {
	var (
		task model.TaskExecution
		exec model.WorkflowExecution
	)
	err := f.try(func(tx *store.Tx) error {
		var err error
		task, exec, err = f.engine.CompleteTask(context.Background(), tx, model.TaskCompletion{
			TaskExecutionUUID: taskUUID,
			CompletedByUUID:   "user-1",
			Result:            result,
		})
		return err
	})
	return task, exec, err
}

func (f *fixture) mustComplete(taskUUID string, result map[string]any) (model.TaskExecution, model.WorkflowExecution) {
	f.t.Helper()
	task, exec, err := f.complete(taskUUID, result)
	require.NoError(f.t, err)
	return task, exec
}

func (f *fixture) execution(uuid string) model.WorkflowExecution {
	f.t.Helper()
	var exec model.WorkflowExecution
	f.tx(func(tx *store.Tx) error {
		var err error
		exec, err = tx.GetExecution(context.Background(), uuid)
		return err
	})
	return exec
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func tmpl(name string, op model.OperatorType, deps []string, callbacks ...string) model.TaskTemplate {
	return model.TaskTemplate{Name: name, Operator: op, DependsOn: deps, CallbackFns: callbacks}
}
