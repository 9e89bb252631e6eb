package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Process records a transformation of input lots into output materials.
type Process struct {
	UUID                  string      `json:"uuid"`
	Type                  string      `json:"type"`
	WarehouseUUID         string      `json:"warehouse_uuid,omitempty"`
	WorkflowExecutionUUID string      `json:"workflow_execution_uuid,omitempty"`
	Data                  ProcessData `json:"data"`
	CreatedAt             time.Time   `json:"created_at"`
}

// ProcessData holds a process's inputs and outputs with their costs.
type ProcessData struct {
	Inputs  []ProcessInput  `json:"inputs"`
	Outputs []ProcessOutput `json:"outputs"`
}

// ProcessInput is one consumed lot.
type ProcessInput struct {
	InventoryUUID string          `json:"inventory_uuid"`
	MaterialUUID  string          `json:"material_uuid"`
	Quantity      decimal.Decimal `json:"quantity"`
	CostPerUnit   decimal.Decimal `json:"cost_per_unit"`
}

// ProcessOutput is one produced material and the share of inputs it used.
type ProcessOutput struct {
	MaterialUUID  string          `json:"material_uuid"`
	InventoryUUID string          `json:"inventory_uuid,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	InputsUsed    []InputUsed     `json:"inputs_used"`
	TotalCost     decimal.Decimal `json:"total_cost"`
}

// InputUsed is the quantity of one input lot attributed to an output.
type InputUsed struct {
	InventoryUUID string          `json:"inventory_uuid"`
	Quantity      decimal.Decimal `json:"quantity"`
}

// ChecklistItem is one named pass/fail check.
type ChecklistItem struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

// QualityControl records the outcome of one QC task against a process.
type QualityControl struct {
	UUID              string          `json:"uuid"`
	ProcessUUID       string          `json:"process_uuid"`
	TaskExecutionUUID string          `json:"task_execution_uuid"`
	Type              string          `json:"type"`
	Checklist         []ChecklistItem `json:"checklist"`
	Passed            bool            `json:"passed"`
	CreatedAt         time.Time       `json:"created_at"`
}

// TripStatus is the lifecycle state of a trip.
type TripStatus string

const (
	TripPlanned    TripStatus = "planned"
	TripInProgress TripStatus = "in_progress"
	TripCompleted  TripStatus = "completed"
	TripCancelled  TripStatus = "cancelled"
)

// Trip is a vehicle run between warehouses.
type Trip struct {
	UUID               string         `json:"uuid"`
	VehicleUUID        string         `json:"vehicle_uuid,omitempty"`
	StartWarehouseUUID string         `json:"start_warehouse_uuid,omitempty"`
	EndWarehouseUUID   string         `json:"end_warehouse_uuid,omitempty"`
	ServiceAreaUUID    string         `json:"service_area_uuid,omitempty"`
	Status             TripStatus     `json:"status"`
	Data               map[string]any `json:"data,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}
