package ledger

import (
	"context"

	"github.com/albardn2/karma-sub001/internal/model"
)

// saleHandler posts stock leaving against a customer order item.
type saleHandler struct{}

func (saleHandler) Type() model.EventType { return model.EventSale }

func (h saleHandler) Apply(ctx context.Context, env Env, req model.InventoryEventCreate) (model.InventoryEvent, error) {
	return post(ctx, env, h.Type(), req, func(ctx context.Context, env Env, req model.InventoryEventCreate) error {
		return requireRef(ctx, env, model.RefCustomerOrderItem, req.CustomerOrderItemUUID)
	})
}

func (saleHandler) Reverse(ctx context.Context, env Env, ev model.InventoryEvent) (model.InventoryEvent, error) {
	return reverse(ctx, env, ev)
}

// purchaseOrderHandler posts stock arriving against a purchase order item.
type purchaseOrderHandler struct{}

func (purchaseOrderHandler) Type() model.EventType { return model.EventPurchaseOrder }

func (h purchaseOrderHandler) Apply(ctx context.Context, env Env, req model.InventoryEventCreate) (model.InventoryEvent, error) {
	return post(ctx, env, h.Type(), req, func(ctx context.Context, env Env, req model.InventoryEventCreate) error {
		return requireRef(ctx, env, model.RefPurchaseOrderItem, req.PurchaseOrderItemUUID)
	})
}

// adjustmentHandler posts a free-form correction. A customer or purchase
// order item is cross-checked when supplied.
type adjustmentHandler struct{}

func (adjustmentHandler) Type() model.EventType { return model.EventAdjustment }

func (h adjustmentHandler) Apply(ctx context.Context, env Env, req model.InventoryEventCreate) (model.InventoryEvent, error) {
	return post(ctx, env, h.Type(), req, func(ctx context.Context, env Env, req model.InventoryEventCreate) error {
		if req.CustomerOrderItemUUID != "" {
			return requireRef(ctx, env, model.RefCustomerOrderItem, req.CustomerOrderItemUUID)
		}
		return requireRefIfSet(ctx, env, model.RefPurchaseOrderItem, req.PurchaseOrderItemUUID)
	})
}

// processHandler posts production consumption or output against a process.
type processHandler struct{}

func (processHandler) Type() model.EventType { return model.EventProcess }

func (h processHandler) Apply(ctx context.Context, env Env, req model.InventoryEventCreate) (model.InventoryEvent, error) {
	return post(ctx, env, h.Type(), req, func(ctx context.Context, env Env, req model.InventoryEventCreate) error {
		return requireRef(ctx, env, model.RefProcess, req.ProcessUUID)
	})
}

// manualHandler posts an operator-entered movement with no business
// reference. Manual events are the only ones users may delete.
type manualHandler struct{}

func (manualHandler) Type() model.EventType { return model.EventManual }

func (h manualHandler) Apply(ctx context.Context, env Env, req model.InventoryEventCreate) (model.InventoryEvent, error) {
	return post(ctx, env, h.Type(), req, nil)
}

func (manualHandler) Reverse(ctx context.Context, env Env, ev model.InventoryEvent) (model.InventoryEvent, error) {
	return reverse(ctx, env, ev)
}
