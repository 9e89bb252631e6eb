package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/albardn2/karma-sub001/internal/apperr"
	"github.com/albardn2/karma-sub001/internal/model"
)

// Handler applies one event type to the ledger.
type Handler interface {
	Type() model.EventType
	Apply(ctx context.Context, env Env, req model.InventoryEventCreate) (model.InventoryEvent, error)
}

// Reverser is implemented by handlers whose events can be undone.
type Reverser interface {
	Reverse(ctx context.Context, env Env, ev model.InventoryEvent) (model.InventoryEvent, error)
}

var handlers = sync.OnceValue(func() map[model.EventType]Handler {
	m := make(map[model.EventType]Handler)
	for _, h := range []Handler{
		saleHandler{},
		purchaseOrderHandler{},
		adjustmentHandler{},
		processHandler{},
		manualHandler{},
	} {
		m[h.Type()] = h
	}
	return m
})

// HandlerFor returns the handler registered for t.
func HandlerFor(t model.EventType) (Handler, error) {
	h, ok := handlers()[t]
	if !ok {
		return nil, apperr.Unsupported("event type", string(t))
	}
	return h, nil
}

// originalPolicy says when an event moves a lot's original_quantity.
type originalPolicy int

const (
	// followFlag moves original_quantity only when affect_original is set.
	followFlag originalPolicy = iota
	// trackProduction also moves it for positive deltas that leave the lot
	// with a positive balance. Negative deltas leave it untouched even when
	// the balance stays positive.
	trackProduction
)

var originalPolicies = map[model.EventType]originalPolicy{
	model.EventSale:          followFlag,
	model.EventPurchaseOrder: followFlag,
	model.EventAdjustment:    followFlag,
	model.EventManual:        followFlag,
	model.EventProcess:       trackProduction,
}

// originalDelta returns the amount to add to original_quantity.
func originalDelta(t model.EventType, delta, newCurrent decimal.Decimal, affectOriginal bool) decimal.Decimal {
	if affectOriginal {
		return delta
	}
	if originalPolicies[t] == trackProduction && delta.IsPositive() && newCurrent.IsPositive() {
		return delta
	}
	return decimal.Zero
}

// refCheck validates the type-specific references of a request.
type refCheck func(ctx context.Context, env Env, req model.InventoryEventCreate) error

// post runs the shared apply pipeline for every event type.
func post(ctx context.Context, env Env, t model.EventType, req model.InventoryEventCreate, check refCheck) (model.InventoryEvent, error) {
	if err := validateShape(req); err != nil {
		return model.InventoryEvent{}, err
	}

	lot, err := env.Repo.GetInventory(ctx, req.InventoryUUID)
	if err != nil {
		return model.InventoryEvent{}, err
	}
	if lot.IsDeleted {
		return model.InventoryEvent{}, apperr.NotFound("inventory", req.InventoryUUID)
	}

	if err := requireRefIfSet(ctx, env, model.RefDebitNoteItem, req.DebitNoteItemUUID); err != nil {
		return model.InventoryEvent{}, err
	}
	if err := requireRefIfSet(ctx, env, model.RefCreditNoteItem, req.CreditNoteItemUUID); err != nil {
		return model.InventoryEvent{}, err
	}
	if check != nil {
		if err := check(ctx, env, req); err != nil {
			return model.InventoryEvent{}, err
		}
	}

	newCurrent := lot.CurrentQuantity.Add(req.Quantity)
	origDelta := originalDelta(t, req.Quantity, newCurrent, req.AffectOriginal)

	lot.CurrentQuantity = newCurrent
	lot.OriginalQuantity = lot.OriginalQuantity.Add(origDelta)
	if err := env.Repo.UpdateInventory(ctx, &lot); err != nil {
		return model.InventoryEvent{}, err
	}

	ev := model.InventoryEvent{
		UUID:                  env.IDs.New(),
		InventoryUUID:         lot.UUID,
		MaterialUUID:          lot.MaterialUUID,
		Quantity:              req.Quantity,
		OriginalDelta:         origDelta,
		EventType:             t,
		AffectOriginal:        req.AffectOriginal,
		PurchaseOrderItemUUID: req.PurchaseOrderItemUUID,
		CustomerOrderItemUUID: req.CustomerOrderItemUUID,
		ProcessUUID:           req.ProcessUUID,
		DebitNoteItemUUID:     req.DebitNoteItemUUID,
		CreditNoteItemUUID:    req.CreditNoteItemUUID,
		Notes:                 req.Notes,
		CreatedByUUID:         req.CreatedByUUID,
		CreatedAt:             env.Clock.Now(),
	}
	if err := env.Repo.InsertEvent(ctx, &ev); err != nil {
		return model.InventoryEvent{}, err
	}
	return ev, nil
}

// reverse undoes exactly what post applied and soft-deletes the event.
func reverse(ctx context.Context, env Env, ev model.InventoryEvent) (model.InventoryEvent, error) {
	if ev.IsDeleted {
		return model.InventoryEvent{}, apperr.NotFound("inventory_event", ev.UUID)
	}

	lot, err := env.Repo.GetInventory(ctx, ev.InventoryUUID)
	if err != nil {
		return model.InventoryEvent{}, err
	}
	lot.CurrentQuantity = lot.CurrentQuantity.Sub(ev.Quantity)
	lot.OriginalQuantity = lot.OriginalQuantity.Sub(ev.OriginalDelta)
	if err := env.Repo.UpdateInventory(ctx, &lot); err != nil {
		return model.InventoryEvent{}, err
	}

	if err := env.Repo.MarkEventDeleted(ctx, ev.UUID); err != nil {
		return model.InventoryEvent{}, err
	}
	ev.IsDeleted = true
	return ev, nil
}

func validateShape(req model.InventoryEventCreate) error {
	if req.InventoryUUID == "" {
		return apperr.BadRequest("inventory_uuid is required")
	}
	if req.Quantity.IsZero() {
		return apperr.BadRequest("quantity must be non-zero")
	}
	refs := 0
	for _, r := range []string{req.PurchaseOrderItemUUID, req.CustomerOrderItemUUID, req.ProcessUUID} {
		if r != "" {
			refs++
		}
	}
	if refs > 1 {
		return apperr.BadRequest("only one of purchase_order_item_uuid, customer_order_item_uuid or process_uuid may be set")
	}
	return nil
}

// requireRef fails NotFound unless an active record of kind exists.
func requireRef(ctx context.Context, env Env, kind model.RefKind, uuid string) error {
	if uuid == "" {
		return apperr.BadRequest("%s_uuid is required", kind)
	}
	ok, err := env.Repo.ReferenceExists(ctx, kind, uuid)
	if err != nil {
		return fmt.Errorf("check %s: %w", kind, err)
	}
	if !ok {
		return apperr.NotFound(string(kind), uuid)
	}
	return nil
}

func requireRefIfSet(ctx context.Context, env Env, kind model.RefKind, uuid string) error {
	if uuid == "" {
		return nil
	}
	return requireRef(ctx, env, kind, uuid)
}
