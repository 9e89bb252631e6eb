package ledger

import (
	"context"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albardn2/karma-sub001/internal/apperr"
	"github.com/albardn2/karma-sub001/internal/model"
)

func TestCreateEvent_SaleThenAdjustment(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	repo.addRef(model.RefCustomerOrderItem, "co-1")
	lot := openLot(t, svc, repo, "10")

	ev, err := svc.CreateEvent(ctx, repo, model.InventoryEventCreate{
		InventoryUUID:         lot.UUID,
		Quantity:              dec("-4"),
		EventType:             model.EventSale,
		CustomerOrderItemUUID: "co-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "mat-1", ev.MaterialUUID, "material copied from lot")
	assert.True(t, ev.OriginalDelta.IsZero())

	got, _ := repo.GetInventory(ctx, lot.UUID)
	assert.Equal(t, "6", got.CurrentQuantity.String())
	assert.Equal(t, "10", got.OriginalQuantity.String())

	_, err = svc.CreateEvent(ctx, repo, model.InventoryEventCreate{
		InventoryUUID: lot.UUID,
		Quantity:      dec("2"),
		EventType:     model.EventAdjustment,
	})
	require.NoError(t, err)

	got, _ = repo.GetInventory(ctx, lot.UUID)
	assert.Equal(t, "8", got.CurrentQuantity.String())
	assert.Equal(t, "10", got.OriginalQuantity.String())
}

func TestCreateEvent_SaleAffectOriginal(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	repo.addRef(model.RefCustomerOrderItem, "co-1")
	lot := openLot(t, svc, repo, "10")

	_, err := svc.CreateEvent(ctx, repo, model.InventoryEventCreate{
		InventoryUUID:         lot.UUID,
		Quantity:              dec("-3"),
		EventType:             model.EventSale,
		AffectOriginal:        true,
		CustomerOrderItemUUID: "co-1",
	})
	require.NoError(t, err)

	got, _ := repo.GetInventory(ctx, lot.UUID)
	assert.Equal(t, "7", got.CurrentQuantity.String())
	assert.Equal(t, "7", got.OriginalQuantity.String())
}

func TestCreateEvent_Failures(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	repo.addRef(model.RefCustomerOrderItem, "co-1")
	repo.addRef(model.RefPurchaseOrderItem, "po-1")
	lot := openLot(t, svc, repo, "10")

	tests := []struct {
		name  string
		req   model.InventoryEventCreate
		check func(error) bool
	}{
		{
			name:  "unknown type",
			req:   model.InventoryEventCreate{InventoryUUID: lot.UUID, Quantity: dec("1"), EventType: "gift"},
			check: apperr.IsUnsupported,
		},
		{
			name:  "zero quantity",
			req:   model.InventoryEventCreate{InventoryUUID: lot.UUID, Quantity: dec("0"), EventType: model.EventManual},
			check: apperr.IsBadRequest,
		},
		{
			name:  "missing inventory",
			req:   model.InventoryEventCreate{InventoryUUID: "nope", Quantity: dec("-1"), EventType: model.EventSale, CustomerOrderItemUUID: "co-1"},
			check: apperr.IsNotFound,
		},
		{
			name:  "sale missing order item",
			req:   model.InventoryEventCreate{InventoryUUID: lot.UUID, Quantity: dec("-1"), EventType: model.EventSale, CustomerOrderItemUUID: "co-9"},
			check: apperr.IsNotFound,
		},
		{
			name:  "sale without order item",
			req:   model.InventoryEventCreate{InventoryUUID: lot.UUID, Quantity: dec("-1"), EventType: model.EventSale},
			check: apperr.IsBadRequest,
		},
		{
			name:  "purchase order missing item",
			req:   model.InventoryEventCreate{InventoryUUID: lot.UUID, Quantity: dec("5"), EventType: model.EventPurchaseOrder, PurchaseOrderItemUUID: "po-9"},
			check: apperr.IsNotFound,
		},
		{
			name:  "two references",
			req:   model.InventoryEventCreate{InventoryUUID: lot.UUID, Quantity: dec("1"), EventType: model.EventAdjustment, CustomerOrderItemUUID: "co-1", PurchaseOrderItemUUID: "po-1"},
			check: apperr.IsBadRequest,
		},
		{
			name:  "adjustment bad cross reference",
			req:   model.InventoryEventCreate{InventoryUUID: lot.UUID, Quantity: dec("1"), EventType: model.EventAdjustment, PurchaseOrderItemUUID: "po-9"},
			check: apperr.IsNotFound,
		},
		{
			name:  "process missing",
			req:   model.InventoryEventCreate{InventoryUUID: lot.UUID, Quantity: dec("1"), EventType: model.EventProcess, ProcessUUID: "p-9"},
			check: apperr.IsNotFound,
		},
		{
			name:  "debit note missing",
			req:   model.InventoryEventCreate{InventoryUUID: lot.UUID, Quantity: dec("1"), EventType: model.EventManual, DebitNoteItemUUID: "dn-9"},
			check: apperr.IsNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateEvent(ctx, repo, tt.req)
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}

	got, _ := repo.GetInventory(ctx, lot.UUID)
	assert.Equal(t, "10", got.CurrentQuantity.String(), "failed requests must not touch the lot")
}

func TestCreateEvent_DeletedLot(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	lot := openLot(t, svc, repo, "10")

	lot.IsDeleted = true
	require.NoError(t, repo.UpdateInventory(ctx, &lot))

	_, err := svc.CreateEvent(ctx, repo, model.InventoryEventCreate{
		InventoryUUID: lot.UUID, Quantity: dec("1"), EventType: model.EventManual,
	})
	assert.True(t, apperr.IsNotFound(err))
}

func TestCreateEvent_ProcessOriginalPolicy(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	repo.addRef(model.RefProcess, "p-1")
	lot := openLot(t, svc, repo, "0")

	_, err := svc.CreateEvent(ctx, repo, model.InventoryEventCreate{
		InventoryUUID: lot.UUID, Quantity: dec("12"), EventType: model.EventProcess, ProcessUUID: "p-1",
	})
	require.NoError(t, err)

	got, _ := repo.GetInventory(ctx, lot.UUID)
	assert.Equal(t, "12", got.CurrentQuantity.String())
	assert.Equal(t, "12", got.OriginalQuantity.String(), "production output raises original")

	_, err = svc.CreateEvent(ctx, repo, model.InventoryEventCreate{
		InventoryUUID: lot.UUID, Quantity: dec("-5"), EventType: model.EventProcess, ProcessUUID: "p-1",
	})
	require.NoError(t, err)

	got, _ = repo.GetInventory(ctx, lot.UUID)
	assert.Equal(t, "7", got.CurrentQuantity.String())
	assert.Equal(t, "12", got.OriginalQuantity.String(), "consumption leaves original alone")
}

func TestOriginalDelta_Table(t *testing.T) {
	tests := []struct {
		typ        model.EventType
		delta      string
		newCurrent string
		flag       bool
		want       string
	}{
		{model.EventSale, "-4", "6", false, "0"},
		{model.EventSale, "-4", "6", true, "-4"},
		{model.EventPurchaseOrder, "5", "15", false, "0"},
		{model.EventAdjustment, "2", "8", true, "2"},
		{model.EventManual, "-2", "8", false, "0"},
		{model.EventProcess, "3", "3", false, "3"},
		{model.EventProcess, "3", "-1", false, "0"},
		{model.EventProcess, "-3", "5", false, "0"},
		{model.EventProcess, "-3", "5", true, "-3"},
	}

	for _, tt := range tests {
		got := originalDelta(tt.typ, dec(tt.delta), dec(tt.newCurrent), tt.flag)
		assert.Equal(t, tt.want, got.String(), "%s delta=%s flag=%v", tt.typ, tt.delta, tt.flag)
	}
}

func TestDeleteEvent_ManualRoundTrip(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	lot := openLot(t, svc, repo, "10")

	for _, affect := range []bool{false, true} {
		before, _ := repo.GetInventory(ctx, lot.UUID)

		ev, err := svc.CreateEvent(ctx, repo, model.InventoryEventCreate{
			InventoryUUID: lot.UUID, Quantity: dec("-3.25"), EventType: model.EventManual, AffectOriginal: affect,
		})
		require.NoError(t, err)

		deleted, err := svc.DeleteEvent(ctx, repo, ev.UUID)
		require.NoError(t, err)
		assert.True(t, deleted.IsDeleted)

		after, _ := repo.GetInventory(ctx, lot.UUID)
		assert.True(t, before.CurrentQuantity.Equal(after.CurrentQuantity), "affect=%v", affect)
		assert.True(t, before.OriginalQuantity.Equal(after.OriginalQuantity), "affect=%v", affect)
	}
}

func TestDeleteEvent_OnlyManual(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	repo.addRef(model.RefCustomerOrderItem, "co-1")
	repo.addRef(model.RefPurchaseOrderItem, "po-1")
	lot := openLot(t, svc, repo, "10")

	sale, err := svc.CreateEvent(ctx, repo, model.InventoryEventCreate{
		InventoryUUID: lot.UUID, Quantity: dec("-1"), EventType: model.EventSale, CustomerOrderItemUUID: "co-1",
	})
	require.NoError(t, err)
	po, err := svc.CreateEvent(ctx, repo, model.InventoryEventCreate{
		InventoryUUID: lot.UUID, Quantity: dec("4"), EventType: model.EventPurchaseOrder, PurchaseOrderItemUUID: "po-1",
	})
	require.NoError(t, err)

	for _, id := range []string{sale.UUID, po.UUID} {
		_, err := svc.DeleteEvent(ctx, repo, id)
		assert.True(t, apperr.IsBadRequest(err), "delete %s: %v", id, err)
	}

	_, err = svc.DeleteEvent(ctx, repo, "missing")
	assert.True(t, apperr.IsNotFound(err))
}

func TestDeleteEvent_Twice(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	lot := openLot(t, svc, repo, "10")

	ev, err := svc.CreateEvent(ctx, repo, model.InventoryEventCreate{
		InventoryUUID: lot.UUID, Quantity: dec("1"), EventType: model.EventManual,
	})
	require.NoError(t, err)
	_, err = svc.DeleteEvent(ctx, repo, ev.UUID)
	require.NoError(t, err)

	_, err = svc.DeleteEvent(ctx, repo, ev.UUID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestSaleHandler_Reverse(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	repo.addRef(model.RefCustomerOrderItem, "co-1")
	lot := openLot(t, svc, repo, "10")

	ev, err := svc.CreateEvent(ctx, repo, model.InventoryEventCreate{
		InventoryUUID: lot.UUID, Quantity: dec("-4"), EventType: model.EventSale,
		AffectOriginal: true, CustomerOrderItemUUID: "co-1",
	})
	require.NoError(t, err)

	h, err := HandlerFor(model.EventSale)
	require.NoError(t, err)
	rev, ok := h.(Reverser)
	require.True(t, ok)

	_, err = rev.Reverse(ctx, svc.env(repo), ev)
	require.NoError(t, err)

	got, _ := repo.GetInventory(ctx, lot.UUID)
	assert.Equal(t, "10", got.CurrentQuantity.String())
	assert.Equal(t, "10", got.OriginalQuantity.String())
}

func TestHandlerRegistry(t *testing.T) {
	for _, typ := range model.EventTypes {
		h, err := HandlerFor(typ)
		require.NoError(t, err)
		assert.Equal(t, typ, h.Type())
	}

	_, reversible := mustHandler(t, model.EventPurchaseOrder).(Reverser)
	assert.False(t, reversible)
	_, reversible = mustHandler(t, model.EventManual).(Reverser)
	assert.True(t, reversible)
}

func mustHandler(t *testing.T, typ model.EventType) Handler {
	h, err := HandlerFor(typ)
	require.NoError(t, err)
	return h
}

func TestLedger_BalanceEqualsInitialPlusDeltas(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	lot := openLot(t, svc, repo, "100")
	rng := rand.New(rand.NewSource(42))

	expected := dec("100")
	var posted []model.InventoryEvent
	for i := 0; i < 50; i++ {
		q := decimal.NewFromInt(int64(rng.Intn(21) - 10))
		if q.IsZero() {
			continue
		}
		ev, err := svc.CreateEvent(ctx, repo, model.InventoryEventCreate{
			InventoryUUID: lot.UUID, Quantity: q, EventType: model.EventManual, AffectOriginal: rng.Intn(2) == 0,
		})
		require.NoError(t, err)
		posted = append(posted, ev)
		expected = expected.Add(q)
	}

	// Delete every third event.
	for i := 0; i < len(posted); i += 3 {
		_, err := svc.DeleteEvent(ctx, repo, posted[i].UUID)
		require.NoError(t, err)
		expected = expected.Sub(posted[i].Quantity)
	}

	got, _ := repo.GetInventory(ctx, lot.UUID)
	assert.True(t, expected.Equal(got.CurrentQuantity), "want %s got %s", expected, got.CurrentQuantity)

	events, _ := repo.ListEvents(ctx, lot.UUID)
	_, ok := Reconcile(got, events)
	assert.True(t, ok)
}

func TestCreateInventory_Validation(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateInventory(ctx, repo, model.InventoryCreate{MaterialUUID: "mat-9", Quantity: dec("1")})
	assert.True(t, apperr.IsNotFound(err))

	_, err = svc.CreateInventory(ctx, repo, model.InventoryCreate{MaterialUUID: "mat-1", Quantity: dec("-1")})
	assert.True(t, apperr.IsBadRequest(err))

	_, err = svc.CreateInventory(ctx, repo, model.InventoryCreate{MaterialUUID: "mat-1", WarehouseUUID: "wh-9", Quantity: dec("1")})
	assert.True(t, apperr.IsNotFound(err))
}
