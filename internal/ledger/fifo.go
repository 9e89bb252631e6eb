package ledger

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/albardn2/karma-sub001/internal/apperr"
	"github.com/albardn2/karma-sub001/internal/model"
)

// ShortfallPolicy decides what SelectFIFOLots does when the eligible lots
// cannot cover the required quantity.
type ShortfallPolicy int

const (
	// ShortfallAllow returns the lots that were found; the caller decides
	// whether partial fulfilment is acceptable.
	ShortfallAllow ShortfallPolicy = iota
	// ShortfallReject fails with BadRequest.
	ShortfallReject
)

// SelectFIFOLots picks lots oldest-first until their combined
// current_quantity covers required.
//
// Only active, non-deleted lots with a positive balance are eligible. Lots
// are ordered by creation time, ties broken by UUID. A non-positive
// requirement selects nothing.
func SelectFIFOLots(lots []model.Inventory, required decimal.Decimal, policy ShortfallPolicy) ([]model.Inventory, error) {
	eligible := make([]model.Inventory, 0, len(lots))
	for _, lot := range lots {
		if lot.Available() {
			eligible = append(eligible, lot)
		}
	}
	slices.SortStableFunc(eligible, func(a, b model.Inventory) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.UUID, b.UUID)
	})

	selected := []model.Inventory{}
	remaining := required
	for _, lot := range eligible {
		if !remaining.IsPositive() {
			break
		}
		selected = append(selected, lot)
		remaining = remaining.Sub(lot.CurrentQuantity)
	}

	if remaining.IsPositive() && policy == ShortfallReject {
		return nil, &apperr.Error{
			Kind:    apperr.KindBadRequest,
			Message: "insufficient stock",
			Details: map[string]string{
				"required":  required.String(),
				"shortfall": remaining.String(),
			},
		}
	}
	return selected, nil
}

// Allocation is the quantity to draw from one lot.
type Allocation struct {
	Lot      model.Inventory `json:"lot"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Allocate splits required across lots in the given order, drawing each lot
// down to zero before moving on. The sum of the allocations is less than
// required only if the lots run out.
func Allocate(lots []model.Inventory, required decimal.Decimal) []Allocation {
	var out []Allocation
	remaining := required
	for _, lot := range lots {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(lot.CurrentQuantity, remaining)
		if !take.IsPositive() {
			continue
		}
		out = append(out, Allocation{Lot: lot, Quantity: take})
		remaining = remaining.Sub(take)
	}
	return out
}
