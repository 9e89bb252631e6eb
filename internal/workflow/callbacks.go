package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/albardn2/karma-sub001/internal/apperr"
	"github.com/albardn2/karma-sub001/internal/ledger"
	"github.com/albardn2/karma-sub001/internal/model"
	"github.com/albardn2/karma-sub001/internal/schema"
)

// Callback runs after a task's operator succeeds, inside the same
// transaction. task points into exec.TaskExecutions.
type Callback func(ctx context.Context, env Env, exec *model.WorkflowExecution, task *model.TaskExecution) error

// Registered callback names.
const (
	CallbackCreateProcess        = "create_process_from_workflow"
	CallbackQualityControlCreate = "quality_control_create"
	CallbackConsumePackaging     = "consume_packaging_from_output"
)

// Execution parameters read by callbacks.
const (
	ParamProcessType         = "process_type"
	ParamOutputWarehouseUUID = "output_warehouse_uuid"
	ParamQCType              = "qc_type"
	ParamPackageMapper       = "material_to_package_mapper"
)

var callbacks = sync.OnceValue(func() map[string]Callback {
	return map[string]Callback{
		CallbackCreateProcess:        createProcessFromWorkflow,
		CallbackQualityControlCreate: qualityControlCreate,
		CallbackConsumePackaging:     consumePackagingFromOutput,
	}
})

// CallbackFor returns the callback registered under name.
func CallbackFor(name string) (Callback, error) {
	cb, ok := callbacks()[name]
	if !ok {
		return nil, apperr.Unsupported("callback", name)
	}
	return cb, nil
}

// createProcessFromWorkflow turns the execution's IO tasks into a Process
// record and posts PROCESS events for every input and output lot.
func createProcessFromWorkflow(ctx context.Context, env Env, exec *model.WorkflowExecution, task *model.TaskExecution) error {
	ioTasks := exec.TasksByOperator(model.OperatorIOProcess)
	if err := requireCompleted(ioTasks); err != nil {
		return err
	}
	processType, err := stringParam(exec.Parameters, ParamProcessType)
	if err != nil {
		return err
	}
	warehouse, err := stringParam(exec.Parameters, ParamOutputWarehouseUUID)
	if err != nil {
		return err
	}

	var merged ioProcessPayload
	for _, t := range ioTasks {
		p, err := decodeIOProcess(t.Result)
		if err != nil {
			return err
		}
		merged.Inputs = append(merged.Inputs, p.Inputs...)
		merged.Outputs = append(merged.Outputs, p.Outputs...)
	}
	if len(merged.Inputs) == 0 && len(merged.Outputs) == 0 {
		return apperr.BadRequest("workflow execution %s has no process inputs or outputs", exec.UUID)
	}

	data := model.ProcessData{
		Inputs:  make([]model.ProcessInput, 0, len(merged.Inputs)),
		Outputs: make([]model.ProcessOutput, 0, len(merged.Outputs)),
	}
	currency := ""
	for _, in := range merged.Inputs {
		lot, err := env.Repo.GetInventory(ctx, in.InventoryUUID)
		if err != nil {
			return err
		}
		if lot.IsDeleted {
			return apperr.NotFound("inventory", in.InventoryUUID)
		}
		if currency == "" {
			currency = lot.Currency
		}
		data.Inputs = append(data.Inputs, model.ProcessInput{
			InventoryUUID: lot.UUID,
			MaterialUUID:  lot.MaterialUUID,
			Quantity:      in.Quantity,
			CostPerUnit:   lot.CostPerUnit,
		})
	}

	totalOut := decimal.Zero
	for _, out := range merged.Outputs {
		totalOut = totalOut.Add(out.Quantity)
	}
	if currency == "" {
		currency, err = outputCurrency(ctx, env, merged.Outputs)
		if err != nil {
			return err
		}
	}
	for _, out := range merged.Outputs {
		ok, err := env.Repo.ReferenceExists(ctx, model.RefMaterial, out.MaterialUUID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound(string(model.RefMaterial), out.MaterialUUID)
		}

		po := model.ProcessOutput{
			MaterialUUID:  out.MaterialUUID,
			InventoryUUID: out.InventoryUUID,
			Quantity:      out.Quantity,
			InputsUsed:    make([]model.InputUsed, 0, len(data.Inputs)),
			TotalCost:     decimal.Zero,
		}
		for _, in := range data.Inputs {
			used := decimal.Zero
			if totalOut.IsPositive() {
				used = in.Quantity.Mul(out.Quantity).Div(totalOut)
			}
			po.InputsUsed = append(po.InputsUsed, model.InputUsed{InventoryUUID: in.InventoryUUID, Quantity: used})
			po.TotalCost = po.TotalCost.Add(used.Mul(in.CostPerUnit))
		}

		if po.InventoryUUID == "" {
			lot, err := env.Ledger.CreateInventory(ctx, env.Repo, model.InventoryCreate{
				MaterialUUID:  out.MaterialUUID,
				WarehouseUUID: warehouse,
				Currency:      currency,
				CostPerUnit:   po.TotalCost.Div(out.Quantity),
				Quantity:      decimal.Zero,
				CreatedByUUID: task.CompletedByUUID,
			})
			if err != nil {
				return err
			}
			po.InventoryUUID = lot.UUID
		}
		data.Outputs = append(data.Outputs, po)
	}

	process := model.Process{
		UUID:                  env.IDs.New(),
		Type:                  processType,
		WarehouseUUID:         warehouse,
		WorkflowExecutionUUID: exec.UUID,
		Data:                  data,
		CreatedAt:             env.Clock.Now(),
	}
	if err := env.Repo.InsertProcess(ctx, &process); err != nil {
		return err
	}

	for _, in := range data.Inputs {
		if err := postProcessEvent(ctx, env, process.UUID, in.InventoryUUID, in.Quantity.Neg(), task.CompletedByUUID); err != nil {
			return err
		}
	}
	for _, out := range data.Outputs {
		if err := postProcessEvent(ctx, env, process.UUID, out.InventoryUUID, out.Quantity, task.CompletedByUUID); err != nil {
			return err
		}
	}

	exec.ProcessUUIDs = append(exec.ProcessUUIDs, process.UUID)
	return nil
}

// outputCurrency is the currency of the first output that names an
// existing lot, or "" when none does.
func outputCurrency(ctx context.Context, env Env, outputs []processOutput) (string, error) {
	for _, out := range outputs {
		if out.InventoryUUID == "" {
			continue
		}
		lot, err := env.Repo.GetInventory(ctx, out.InventoryUUID)
		if err != nil {
			return "", err
		}
		return lot.Currency, nil
	}
	return "", nil
}

func postProcessEvent(ctx context.Context, env Env, processUUID, inventoryUUID string, delta decimal.Decimal, by string) error {
	_, err := env.Ledger.CreateEvent(ctx, env.Repo, model.InventoryEventCreate{
		InventoryUUID: inventoryUUID,
		Quantity:      delta,
		EventType:     model.EventProcess,
		ProcessUUID:   processUUID,
		CreatedByUUID: by,
	})
	return err
}

// qualityControlCreate records one QualityControl per QC task against the
// execution's first process.
func qualityControlCreate(ctx context.Context, env Env, exec *model.WorkflowExecution, _ *model.TaskExecution) error {
	qcTasks := exec.TasksByOperator(model.OperatorQC)
	if err := requireCompleted(qcTasks); err != nil {
		return err
	}
	if len(exec.ProcessUUIDs) == 0 {
		return apperr.BadRequest("workflow execution %s has no process", exec.UUID)
	}
	qcType, err := stringParam(exec.Parameters, ParamQCType)
	if err != nil {
		return err
	}

	for _, t := range qcTasks {
		var p qcPayload
		if err := schema.Decode(schema.QC, t.Result, &p); err != nil {
			return err
		}
		qc := model.QualityControl{
			UUID:              env.IDs.New(),
			ProcessUUID:       exec.ProcessUUIDs[0],
			TaskExecutionUUID: t.UUID,
			Type:              qcType,
			Checklist:         p.Checklist,
			Passed:            p.passed(),
			CreatedAt:         env.Clock.Now(),
		}
		if err := env.Repo.InsertQualityControl(ctx, &qc); err != nil {
			return err
		}
	}
	return nil
}

// consumePackagingFromOutput adds packaging lots, picked FIFO, to an IO
// task's inputs in proportion to the outputs it produced.
func consumePackagingFromOutput(ctx context.Context, env Env, exec *model.WorkflowExecution, task *model.TaskExecution) error {
	mapper, err := packageMapper(exec.Parameters)
	if err != nil {
		return err
	}

	target := task
	if target.Operator != model.OperatorIOProcess {
		target = nil
		for _, t := range exec.TasksByOperator(model.OperatorIOProcess) {
			if t.Status == model.StatusCompleted {
				target = t
				break
			}
		}
	}
	if target == nil {
		return apperr.BadRequest("no completed io process task to consume packaging for")
	}

	payload, err := decodeIOProcess(target.Result)
	if err != nil {
		return err
	}

	// Cumulative allocations per packaging material, so two outputs sharing
	// a package draw from the snapshot once.
	taken := map[string]decimal.Decimal{}
	drawn := map[string]map[string]decimal.Decimal{}

	var added []lotQuantity
	for _, out := range payload.Outputs {
		pkg, ok := mapper[out.MaterialUUID]
		if !ok {
			continue
		}
		need := out.Quantity.Mul(pkg.ratio)
		if !need.IsPositive() {
			continue
		}

		total := taken[pkg.material].Add(need)
		lots, err := env.Ledger.SelectFIFO(ctx, env.Repo, pkg.material, total)
		if err != nil {
			return err
		}
		prev := drawn[pkg.material]
		if prev == nil {
			prev = map[string]decimal.Decimal{}
			drawn[pkg.material] = prev
		}
		for _, a := range ledger.Allocate(lots, total) {
			q := a.Quantity.Sub(prev[a.Lot.UUID])
			if !q.IsPositive() {
				continue
			}
			added = append(added, lotQuantity{InventoryUUID: a.Lot.UUID, Quantity: q})
			prev[a.Lot.UUID] = a.Quantity
		}
		taken[pkg.material] = total
	}
	if len(added) == 0 {
		return apperr.BadRequest("no packaging inputs could be allocated")
	}

	payload.Inputs = append(payload.Inputs, added...)
	result, err := toMap(payload)
	if err != nil {
		return err
	}
	target.Result = result
	return env.Repo.SaveTaskExecution(ctx, target)
}

type packaging struct {
	material string
	ratio    decimal.Decimal
}

// packageMapper reads {output_material: [package_material, ratio]}.
func packageMapper(params map[string]any) (map[string]packaging, error) {
	raw, ok := params[ParamPackageMapper].(map[string]any)
	if !ok || len(raw) == 0 {
		return nil, apperr.BadRequest("parameter %s is required", ParamPackageMapper)
	}
	out := make(map[string]packaging, len(raw))
	for material, v := range raw {
		pair, ok := v.([]any)
		if !ok || len(pair) != 2 {
			return nil, apperr.BadRequest("%s[%s] must be [package_material, ratio]", ParamPackageMapper, material)
		}
		pkg, ok := pair[0].(string)
		if !ok || pkg == "" {
			return nil, apperr.BadRequest("%s[%s] package material must be a string", ParamPackageMapper, material)
		}
		ratio, err := decimalValue(pair[1])
		if err != nil {
			return nil, apperr.BadRequest("%s[%s] ratio: %v", ParamPackageMapper, material, err)
		}
		out[material] = packaging{material: pkg, ratio: ratio}
	}
	return out, nil
}

func decimalValue(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		return decimal.NewFromString(n)
	case float64:
		return decimal.NewFromFloat(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	}
	return decimal.Zero, fmt.Errorf("not a number: %v", v)
}

func stringParam(params map[string]any, key string) (string, error) {
	s, _ := params[key].(string)
	if s == "" {
		return "", apperr.BadRequest("parameter %s is required", key)
	}
	return s, nil
}

func requireCompleted(tasks []*model.TaskExecution) error {
	for _, t := range tasks {
		if t.Status != model.StatusCompleted {
			return apperr.BadRequest("task %s is %s", t.Name, t.Status)
		}
	}
	return nil
}
