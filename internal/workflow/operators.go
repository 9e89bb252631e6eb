package workflow

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/albardn2/karma-sub001/internal/apperr"
	"github.com/albardn2/karma-sub001/internal/model"
	"github.com/albardn2/karma-sub001/internal/schema"
)

// ioProcessOperator records the lots consumed and materials produced by a
// processing step. The ledger is touched later by callbacks.
type ioProcessOperator struct{}

func (ioProcessOperator) Type() model.OperatorType { return model.OperatorIOProcess }

func (ioProcessOperator) Validate(payload map[string]any) error {
	_, err := decodeIOProcess(payload)
	return err
}

func (op ioProcessOperator) Execute(_ context.Context, env Env, _ *model.WorkflowExecution, task *model.TaskExecution, req model.TaskCompletion) error {
	if err := op.Validate(req.Result); err != nil {
		return err
	}
	return completeTask(env, task, req)
}

func decodeIOProcess(payload map[string]any) (ioProcessPayload, error) {
	var p ioProcessPayload
	if err := schema.Decode(schema.IOProcess, payload, &p); err != nil {
		return p, err
	}
	if len(p.Inputs) == 0 && len(p.Outputs) == 0 {
		return p, apperr.BadRequest("at least one of process_inputs or process_outputs is required")
	}
	for i, in := range p.Inputs {
		if !in.Quantity.IsPositive() {
			return p, apperr.BadRequest("process_inputs[%d].quantity must be positive", i)
		}
	}
	for i, out := range p.Outputs {
		if !out.Quantity.IsPositive() {
			return p, apperr.BadRequest("process_outputs[%d].quantity must be positive", i)
		}
	}
	return p, nil
}

// qcOperator records a checklist of named pass/fail checks.
type qcOperator struct{}

func (qcOperator) Type() model.OperatorType { return model.OperatorQC }

func (qcOperator) Validate(payload map[string]any) error {
	return schema.Validate(schema.QC, payload)
}

func (op qcOperator) Execute(_ context.Context, env Env, _ *model.WorkflowExecution, task *model.TaskExecution, req model.TaskCompletion) error {
	if err := op.Validate(req.Result); err != nil {
		return err
	}
	return completeTask(env, task, req)
}

// inventoryDumpOperator writes off stock from a lot with a MANUAL event
// that leaves original_quantity untouched.
type inventoryDumpOperator struct{}

func (inventoryDumpOperator) Type() model.OperatorType { return model.OperatorInventoryDump }

func (inventoryDumpOperator) Validate(payload map[string]any) error {
	_, err := decodeLotQuantity(schema.InventoryDump, payload)
	return err
}

func (inventoryDumpOperator) Execute(ctx context.Context, env Env, _ *model.WorkflowExecution, task *model.TaskExecution, req model.TaskCompletion) error {
	p, err := decodeLotQuantity(schema.InventoryDump, req.Result)
	if err != nil {
		return err
	}
	if err := completeTask(env, task, req); err != nil {
		return err
	}

	_, err = env.Ledger.CreateEvent(ctx, env.Repo, model.InventoryEventCreate{
		InventoryUUID:  p.InventoryUUID,
		Quantity:       p.Quantity.Abs().Neg(),
		EventType:      model.EventManual,
		AffectOriginal: false,
		Notes:          fmt.Sprintf("Inventory dumped by operator with task execution UUID: %s", task.UUID),
		CreatedByUUID:  req.CompletedByUUID,
	})
	return err
}

// materialRefillOperator adds a refill lot as an input to every process of
// the execution's process_type that does not consume its material yet. The
// quantity is split evenly and each share is posted as a PROCESS event.
type materialRefillOperator struct{}

func (materialRefillOperator) Type() model.OperatorType { return model.OperatorMaterialRefill }

func (materialRefillOperator) Validate(payload map[string]any) error {
	p, err := decodeLotQuantity(schema.MaterialRefill, payload)
	if err != nil {
		return err
	}
	if !p.Quantity.IsPositive() {
		return apperr.BadRequest("quantity must be positive")
	}
	return nil
}

func (op materialRefillOperator) Execute(ctx context.Context, env Env, exec *model.WorkflowExecution, task *model.TaskExecution, req model.TaskCompletion) error {
	if err := op.Validate(req.Result); err != nil {
		return err
	}
	p, err := decodeLotQuantity(schema.MaterialRefill, req.Result)
	if err != nil {
		return err
	}
	lot, err := env.Repo.GetInventory(ctx, p.InventoryUUID)
	if err != nil {
		return err
	}
	if lot.IsDeleted {
		return apperr.NotFound("inventory", p.InventoryUUID)
	}
	processType, err := stringParam(exec.Parameters, ParamProcessType)
	if err != nil {
		return err
	}
	if err := completeTask(env, task, req); err != nil {
		return err
	}

	all, err := env.Repo.ListProcesses(ctx, processType)
	if err != nil {
		return err
	}
	var targets []model.Process
	for _, proc := range all {
		if !consumesMaterial(proc, lot.MaterialUUID) {
			targets = append(targets, proc)
		}
	}
	if len(targets) == 0 {
		return apperr.BadRequest("no %s processes found for material %s", processType, lot.MaterialUUID)
	}

	share := p.Quantity.Div(decimal.NewFromInt(int64(len(targets))))
	remaining := p.Quantity
	for i := range targets {
		proc := &targets[i]
		q := share
		if i == len(targets)-1 {
			q = remaining
		}
		remaining = remaining.Sub(q)

		proc.Data.Inputs = append(proc.Data.Inputs, model.ProcessInput{
			InventoryUUID: lot.UUID,
			MaterialUUID:  lot.MaterialUUID,
			Quantity:      q,
			CostPerUnit:   lot.CostPerUnit,
		})
		if err := env.Repo.SaveProcessData(ctx, proc); err != nil {
			return err
		}
		if err := postProcessEvent(ctx, env, proc.UUID, lot.UUID, q.Neg(), req.CompletedByUUID); err != nil {
			return err
		}
	}
	return nil
}

func consumesMaterial(p model.Process, material string) bool {
	for _, in := range p.Data.Inputs {
		if in.MaterialUUID == material {
			return true
		}
	}
	return false
}

func decodeLotQuantity(name string, payload map[string]any) (lotQuantity, error) {
	var p lotQuantity
	if err := schema.Decode(name, payload, &p); err != nil {
		return p, err
	}
	if p.Quantity.IsZero() {
		return p, apperr.BadRequest("quantity must be non-zero")
	}
	return p, nil
}

// tripOperator marks a generic trip step done.
type tripOperator struct{}

func (tripOperator) Type() model.OperatorType { return model.OperatorTrip }

func (tripOperator) Validate(payload map[string]any) error {
	return schema.Validate(schema.Trip, payload)
}

func (op tripOperator) Execute(_ context.Context, env Env, _ *model.WorkflowExecution, task *model.TaskExecution, req model.TaskCompletion) error {
	if err := op.Validate(req.Result); err != nil {
		return err
	}
	return completeTask(env, task, req)
}

// startTripOperator puts the execution's trip on the road, creating the
// trip when the execution has none yet.
type startTripOperator struct{}

func (startTripOperator) Type() model.OperatorType { return model.OperatorStartTrip }

func (startTripOperator) Validate(payload map[string]any) error {
	return schema.Validate(schema.StartTrip, payload)
}

func (startTripOperator) Execute(ctx context.Context, env Env, exec *model.WorkflowExecution, task *model.TaskExecution, req model.TaskCompletion) error {
	var p startTripPayload
	if err := schema.Decode(schema.StartTrip, req.Result, &p); err != nil {
		return err
	}
	if err := completeTask(env, task, req); err != nil {
		return err
	}

	now := env.Clock.Now()
	if exec.TripUUID == "" {
		trip := model.Trip{
			UUID:      env.IDs.New(),
			Status:    model.TripInProgress,
			Data:      map[string]any{},
			CreatedAt: now,
			UpdatedAt: now,
		}
		applyStartTrip(&trip, p)
		if err := env.Repo.InsertTrip(ctx, &trip); err != nil {
			return err
		}
		exec.TripUUID = trip.UUID
		return nil
	}

	trip, err := env.Repo.GetTrip(ctx, exec.TripUUID)
	if err != nil {
		return err
	}
	if trip.Status != model.TripPlanned && trip.Status != model.TripInProgress {
		return apperr.BadRequest("trip %s is %s", trip.UUID, trip.Status)
	}
	applyStartTrip(&trip, p)
	trip.Status = model.TripInProgress
	trip.UpdatedAt = now
	return env.Repo.SaveTrip(ctx, &trip)
}

func applyStartTrip(trip *model.Trip, p startTripPayload) {
	trip.VehicleUUID = p.VehicleUUID
	trip.StartWarehouseUUID = p.StartWarehouseUUID
	trip.EndWarehouseUUID = p.EndWarehouseUUID
	trip.ServiceAreaUUID = p.ServiceAreaUUID
}

// tripFinishOperator closes the execution's trip and records what came
// back: cash collected and leftover stock.
type tripFinishOperator struct{}

func (tripFinishOperator) Type() model.OperatorType { return model.OperatorTripFinish }

func (tripFinishOperator) Validate(payload map[string]any) error {
	var p tripFinishPayload
	if err := schema.Decode(schema.TripFinish, payload, &p); err != nil {
		return err
	}
	if p.CashCollected.IsNegative() {
		return apperr.BadRequest("cash_collected must not be negative")
	}
	return nil
}

func (op tripFinishOperator) Execute(ctx context.Context, env Env, exec *model.WorkflowExecution, task *model.TaskExecution, req model.TaskCompletion) error {
	if err := op.Validate(req.Result); err != nil {
		return err
	}
	var p tripFinishPayload
	if err := schema.Decode(schema.TripFinish, req.Result, &p); err != nil {
		return err
	}
	if exec.TripUUID == "" {
		return apperr.BadRequest("workflow execution %s has no trip", exec.UUID)
	}
	if err := completeTask(env, task, req); err != nil {
		return err
	}

	trip, err := env.Repo.GetTrip(ctx, exec.TripUUID)
	if err != nil {
		return err
	}

	left := make([]any, 0, len(p.InventoryLeft))
	for _, item := range p.InventoryLeft {
		left = append(left, map[string]any{
			"inventory_uuid": item.InventoryUUID,
			"quantity":       item.Quantity.String(),
		})
	}
	if trip.Data == nil {
		trip.Data = map[string]any{}
	}
	trip.Data["output"] = map[string]any{
		"cash_collected": p.CashCollected.String(),
		"currency":       env.TripCurrency,
		"inventory_left": left,
	}
	trip.Status = model.TripCompleted
	trip.UpdatedAt = env.Clock.Now()
	return env.Repo.SaveTrip(ctx, &trip)
}

// tripAddInventoryOperator records the lots loaded onto the execution's
// trip. Stock stays on its lots until trip_finish reports what is left.
type tripAddInventoryOperator struct{}

func (tripAddInventoryOperator) Type() model.OperatorType { return model.OperatorTripAddInventory }

func (tripAddInventoryOperator) Validate(payload map[string]any) error {
	_, err := decodeTripAddInventory(payload)
	return err
}

func (op tripAddInventoryOperator) Execute(ctx context.Context, env Env, exec *model.WorkflowExecution, task *model.TaskExecution, req model.TaskCompletion) error {
	p, err := decodeTripAddInventory(req.Result)
	if err != nil {
		return err
	}
	trip, err := openTrip(ctx, env, exec)
	if err != nil {
		return err
	}

	loaded := make([]any, 0, len(p.Inventory))
	for _, item := range p.Inventory {
		lot, err := env.Repo.GetInventory(ctx, item.InventoryUUID)
		if err != nil {
			return err
		}
		if lot.IsDeleted {
			return apperr.NotFound("inventory", item.InventoryUUID)
		}
		loaded = append(loaded, map[string]any{
			"inventory_uuid": lot.UUID,
			"material_uuid":  lot.MaterialUUID,
			"quantity":       item.Quantity.String(),
		})
	}
	if err := completeTask(env, task, req); err != nil {
		return err
	}

	appendTripData(&trip, "inventory_loaded", loaded...)
	trip.UpdatedAt = env.Clock.Now()
	return env.Repo.SaveTrip(ctx, &trip)
}

func decodeTripAddInventory(payload map[string]any) (tripAddInventoryPayload, error) {
	var p tripAddInventoryPayload
	if err := schema.Decode(schema.TripAddInventory, payload, &p); err != nil {
		return p, err
	}
	for i, item := range p.Inventory {
		if !item.Quantity.IsPositive() {
			return p, apperr.BadRequest("inventory[%d].quantity must be positive", i)
		}
	}
	return p, nil
}

// tripStopOperator records the outcome of one stop on the execution's
// trip: skipped with a reason, or visited with or without a sale.
type tripStopOperator struct{}

func (tripStopOperator) Type() model.OperatorType { return model.OperatorTripStop }

func (tripStopOperator) Validate(payload map[string]any) error {
	_, err := decodeTripStop(payload)
	return err
}

func (op tripStopOperator) Execute(ctx context.Context, env Env, exec *model.WorkflowExecution, task *model.TaskExecution, req model.TaskCompletion) error {
	p, err := decodeTripStop(req.Result)
	if err != nil {
		return err
	}
	trip, err := openTrip(ctx, env, exec)
	if err != nil {
		return err
	}
	if err := completeTask(env, task, req); err != nil {
		return err
	}

	stop := map[string]any{
		"task_execution_uuid": task.UUID,
		"name":                task.Name,
		"status":              "completed",
	}
	switch {
	case p.SkipReason != "":
		stop["status"] = "skipped"
		stop["skip_reason"] = p.SkipReason
	case p.NoSaleReason != "":
		stop["no_sale_reason"] = p.NoSaleReason
	}
	appendTripData(&trip, "stops", stop)
	trip.UpdatedAt = env.Clock.Now()
	return env.Repo.SaveTrip(ctx, &trip)
}

func decodeTripStop(payload map[string]any) (tripStopPayload, error) {
	var p tripStopPayload
	if err := schema.Decode(schema.TripStop, payload, &p); err != nil {
		return p, err
	}
	if p.SkipReason != "" && p.NoSaleReason != "" {
		return p, apperr.BadRequest("skip_reason and no_sale_reason are mutually exclusive")
	}
	return p, nil
}

// openTrip returns the execution's trip, which must not be finished.
func openTrip(ctx context.Context, env Env, exec *model.WorkflowExecution) (model.Trip, error) {
	if exec.TripUUID == "" {
		return model.Trip{}, apperr.BadRequest("workflow execution %s has no trip", exec.UUID)
	}
	trip, err := env.Repo.GetTrip(ctx, exec.TripUUID)
	if err != nil {
		return model.Trip{}, err
	}
	if trip.Status != model.TripPlanned && trip.Status != model.TripInProgress {
		return model.Trip{}, apperr.BadRequest("trip %s is %s", trip.UUID, trip.Status)
	}
	return trip, nil
}

func appendTripData(trip *model.Trip, key string, items ...any) {
	if trip.Data == nil {
		trip.Data = map[string]any{}
	}
	list, _ := trip.Data[key].([]any)
	trip.Data[key] = append(list, items...)
}

// noopOperator completes a task with whatever payload it was given.
type noopOperator struct{}

func (noopOperator) Type() model.OperatorType { return model.OperatorNoop }

func (noopOperator) Validate(payload map[string]any) error {
	return schema.Validate(schema.Noop, payload)
}

func (op noopOperator) Execute(_ context.Context, env Env, _ *model.WorkflowExecution, task *model.TaskExecution, req model.TaskCompletion) error {
	if err := op.Validate(req.Result); err != nil {
		return err
	}
	return completeTask(env, task, req)
}
