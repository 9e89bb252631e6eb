package ledger

import (
	"context"

	"github.com/albardn2/karma-sub001/internal/clock"
	"github.com/albardn2/karma-sub001/internal/ids"
	"github.com/albardn2/karma-sub001/internal/model"
)

// Repository is the transactional view of the ledger store that handlers
// read and write through.
type Repository interface {
	// GetInventory returns a lot, including soft-deleted lots.
	GetInventory(ctx context.Context, uuid string) (model.Inventory, error)
	// CreateInventory inserts a new lot.
	CreateInventory(ctx context.Context, inv *model.Inventory) error
	// UpdateInventory writes a lot if its version is unchanged.
	UpdateInventory(ctx context.Context, inv *model.Inventory) error
	// ListLots returns the non-deleted lots of a material, oldest first.
	ListLots(ctx context.Context, materialUUID string) ([]model.Inventory, error)

	// InsertEvent appends an event.
	InsertEvent(ctx context.Context, ev *model.InventoryEvent) error
	// GetEvent returns an event, including soft-deleted events.
	GetEvent(ctx context.Context, uuid string) (model.InventoryEvent, error)
	// MarkEventDeleted soft-deletes an event.
	MarkEventDeleted(ctx context.Context, uuid string) error

	// ReferenceExists is the "find active by id" lookup for reference data.
	ReferenceExists(ctx context.Context, kind model.RefKind, uuid string) (bool, error)
}

// Auditor reads the whole ledger for reconciliation and export.
type Auditor interface {
	ListInventory(ctx context.Context) ([]model.Inventory, error)
	ListEvents(ctx context.Context, inventoryUUID string) ([]model.InventoryEvent, error)
}

// Env is what a handler needs to apply an event inside one transaction.
type Env struct {
	Repo  Repository
	IDs   ids.Generator
	Clock clock.Clock
}
