package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/albardn2/karma-sub001/internal/model"
)

type lotQuantity struct {
	InventoryUUID string          `json:"inventory_uuid"`
	Quantity      decimal.Decimal `json:"quantity"`
}

type processOutput struct {
	MaterialUUID  string          `json:"material_uuid"`
	Quantity      decimal.Decimal `json:"quantity"`
	InventoryUUID string          `json:"inventory_uuid,omitempty"`
}

type ioProcessPayload struct {
	Inputs  []lotQuantity   `json:"process_inputs,omitempty"`
	Outputs []processOutput `json:"process_outputs,omitempty"`
}

type qcPayload struct {
	Checklist []model.ChecklistItem `json:"checklist"`
	Notes     string                `json:"notes,omitempty"`
}

// passed reports whether every checklist item passed.
func (p qcPayload) passed() bool {
	for _, item := range p.Checklist {
		if !item.Passed {
			return false
		}
	}
	return true
}

type startTripPayload struct {
	VehicleUUID        string `json:"vehicle_uuid"`
	StartWarehouseUUID string `json:"start_warehouse_uuid"`
	EndWarehouseUUID   string `json:"end_warehouse_uuid"`
	ServiceAreaUUID    string `json:"service_area_uuid"`
}

type tripAddInventoryPayload struct {
	Inventory []loadedLot `json:"inventory"`
}

type loadedLot struct {
	InventoryUUID string          `json:"inventory_uuid"`
	Quantity      decimal.Decimal `json:"quantity"`
	MaterialName  string          `json:"material_name,omitempty"`
	LotID         string          `json:"lot_id,omitempty"`
}

type tripStopPayload struct {
	SkipReason   string `json:"skip_reason,omitempty"`
	NoSaleReason string `json:"no_sale_reason,omitempty"`
}

type tripFinishPayload struct {
	CashCollected decimal.Decimal `json:"cash_collected"`
	InventoryLeft []lotQuantity   `json:"inventory_left"`
}

// toMap converts v into a JSON-shaped map. Numbers are kept as json.Number
// so decimal values survive exactly.
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return m, nil
}
