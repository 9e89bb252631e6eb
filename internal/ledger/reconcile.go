package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/albardn2/karma-sub001/internal/model"
)

// Discrepancy describes a lot whose balances disagree with its events.
type Discrepancy struct {
	InventoryUUID    string          `json:"inventory_uuid"`
	MaterialUUID     string          `json:"material_uuid"`
	ExpectedCurrent  decimal.Decimal `json:"expected_current"`
	ActualCurrent    decimal.Decimal `json:"actual_current"`
	ExpectedOriginal decimal.Decimal `json:"expected_original"`
	ActualOriginal   decimal.Decimal `json:"actual_original"`
}

// Reconcile replays the non-deleted events of one lot over its initial
// quantity. It returns ok=false with the discrepancy when either balance
// disagrees.
func Reconcile(lot model.Inventory, events []model.InventoryEvent) (Discrepancy, bool) {
	current := lot.InitialQuantity
	original := lot.InitialQuantity
	for _, ev := range events {
		if ev.IsDeleted || ev.InventoryUUID != lot.UUID {
			continue
		}
		current = current.Add(ev.Quantity)
		original = original.Add(ev.OriginalDelta)
	}

	d := Discrepancy{
		InventoryUUID:    lot.UUID,
		MaterialUUID:     lot.MaterialUUID,
		ExpectedCurrent:  current,
		ActualCurrent:    lot.CurrentQuantity,
		ExpectedOriginal: original,
		ActualOriginal:   lot.OriginalQuantity,
	}
	ok := current.Equal(lot.CurrentQuantity) && original.Equal(lot.OriginalQuantity)
	return d, ok
}

// ReconcileAll checks every lot in the ledger and returns the ones that do
// not reconcile.
func ReconcileAll(ctx context.Context, a Auditor) ([]Discrepancy, error) {
	lots, err := a.ListInventory(ctx)
	if err != nil {
		return nil, err
	}

	out := []Discrepancy{}
	for _, lot := range lots {
		events, err := a.ListEvents(ctx, lot.UUID)
		if err != nil {
			return nil, err
		}
		if d, ok := Reconcile(lot, events); !ok {
			out = append(out, d)
		}
	}
	return out, nil
}
