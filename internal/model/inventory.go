package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType tags an inventory event and selects its handler.
type EventType string

const (
	EventSale          EventType = "sale"
	EventPurchaseOrder EventType = "purchase_order"
	EventAdjustment    EventType = "adjustment"
	EventProcess       EventType = "process"
	EventManual        EventType = "manual"
)

// EventTypes lists every known event type in a stable order.
var EventTypes = []EventType{EventSale, EventPurchaseOrder, EventAdjustment, EventProcess, EventManual}

// Inventory is one lot of a material.
type Inventory struct {
	UUID          string `json:"uuid"`
	MaterialUUID  string `json:"material_uuid"`
	WarehouseUUID string `json:"warehouse_uuid,omitempty"`
	Unit          string `json:"unit"`
	Currency      string `json:"currency"`

	CostPerUnit      decimal.Decimal `json:"cost_per_unit"`
	CurrentQuantity  decimal.Decimal `json:"current_quantity"`
	OriginalQuantity decimal.Decimal `json:"original_quantity"`

	// InitialQuantity is CurrentQuantity at creation. The ledger reconciles
	// against it.
	InitialQuantity decimal.Decimal `json:"initial_quantity"`

	IsActive      bool      `json:"is_active"`
	IsDeleted     bool      `json:"is_deleted"`
	CreatedByUUID string    `json:"created_by_uuid,omitempty"`
	CreatedAt     time.Time `json:"created_at"`

	// Version is bumped on every write and guards concurrent updates.
	Version int64 `json:"version"`
}

// Available reports whether the lot can be consumed.
func (i Inventory) Available() bool {
	return i.IsActive && !i.IsDeleted && i.CurrentQuantity.IsPositive()
}

// InventoryEvent is one immutable ledger entry against a lot.
type InventoryEvent struct {
	UUID          string          `json:"uuid"`
	InventoryUUID string          `json:"inventory_uuid"`
	MaterialUUID  string          `json:"material_uuid"`
	Quantity      decimal.Decimal `json:"quantity"`

	// OriginalDelta is the amount actually applied to the lot's
	// OriginalQuantity, so a reversal can undo exactly that.
	OriginalDelta decimal.Decimal `json:"original_delta"`

	EventType      EventType `json:"event_type"`
	AffectOriginal bool      `json:"affect_original"`

	PurchaseOrderItemUUID string `json:"purchase_order_item_uuid,omitempty"`
	CustomerOrderItemUUID string `json:"customer_order_item_uuid,omitempty"`
	ProcessUUID           string `json:"process_uuid,omitempty"`
	DebitNoteItemUUID     string `json:"debit_note_item_uuid,omitempty"`
	CreditNoteItemUUID    string `json:"credit_note_item_uuid,omitempty"`

	Notes         string    `json:"notes,omitempty"`
	CreatedByUUID string    `json:"created_by_uuid,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	IsDeleted     bool      `json:"is_deleted"`
}

// InventoryEventCreate is a request to post an event.
type InventoryEventCreate struct {
	InventoryUUID  string          `json:"inventory_uuid" yaml:"inventory_uuid"`
	Quantity       decimal.Decimal `json:"quantity" yaml:"quantity"`
	EventType      EventType       `json:"event_type" yaml:"event_type"`
	AffectOriginal bool            `json:"affect_original" yaml:"affect_original"`

	PurchaseOrderItemUUID string `json:"purchase_order_item_uuid,omitempty" yaml:"purchase_order_item_uuid,omitempty"`
	CustomerOrderItemUUID string `json:"customer_order_item_uuid,omitempty" yaml:"customer_order_item_uuid,omitempty"`
	ProcessUUID           string `json:"process_uuid,omitempty" yaml:"process_uuid,omitempty"`
	DebitNoteItemUUID     string `json:"debit_note_item_uuid,omitempty" yaml:"debit_note_item_uuid,omitempty"`
	CreditNoteItemUUID    string `json:"credit_note_item_uuid,omitempty" yaml:"credit_note_item_uuid,omitempty"`

	Notes         string `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedByUUID string `json:"created_by_uuid,omitempty" yaml:"created_by_uuid,omitempty"`
}

// InventoryCreate is a request to open a new lot.
type InventoryCreate struct {
	MaterialUUID  string          `json:"material_uuid" yaml:"material_uuid"`
	WarehouseUUID string          `json:"warehouse_uuid,omitempty" yaml:"warehouse_uuid,omitempty"`
	Unit          string          `json:"unit" yaml:"unit"`
	Currency      string          `json:"currency" yaml:"currency"`
	CostPerUnit   decimal.Decimal `json:"cost_per_unit" yaml:"cost_per_unit"`
	Quantity      decimal.Decimal `json:"quantity" yaml:"quantity"`
	CreatedByUUID string          `json:"created_by_uuid,omitempty" yaml:"created_by_uuid,omitempty"`
}

// RefKind names a reference-data collection reachable through an
// existence lookup.
type RefKind string

const (
	RefMaterial          RefKind = "material"
	RefWarehouse         RefKind = "warehouse"
	RefCustomerOrderItem RefKind = "customer_order_item"
	RefPurchaseOrderItem RefKind = "purchase_order_item"
	RefDebitNoteItem     RefKind = "debit_note_item"
	RefCreditNoteItem    RefKind = "credit_note_item"
	RefProcess           RefKind = "process"
)
