package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albardn2/karma-sub001/internal/apperr"
	"github.com/albardn2/karma-sub001/internal/model"
)

func TestInventory_CreateGet(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx *Tx) error {
		lot := createTestLot("lot-1", "mat-1", 10, 0)
		lot.WarehouseUUID = "wh-1"
		require.NoError(t, tx.CreateInventory(ctx, &lot))
		assert.Equal(t, int64(1), lot.Version)

		got, err := tx.GetInventory(ctx, "lot-1")
		require.NoError(t, err)
		assert.Equal(t, "mat-1", got.MaterialUUID)
		assert.Equal(t, "wh-1", got.WarehouseUUID)
		assert.True(t, got.CurrentQuantity.Equal(decimal.NewFromInt(10)))
		assert.True(t, got.CostPerUnit.Equal(decimal.RequireFromString("1.5")))
		assert.Equal(t, testEpoch, got.CreatedAt)
		assert.True(t, got.IsActive)
		return nil
	})
}

func TestInventory_GetMissing(t *testing.T) {
	s := createTestStore(t)

	inTx(t, s, func(tx *Tx) error {
		_, err := tx.GetInventory(context.Background(), "nope")
		assert.True(t, apperr.IsNotFound(err))
		return nil
	})
}

func TestInventory_UpdateVersionCAS(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx *Tx) error {
		lot := createTestLot("lot-1", "mat-1", 10, 0)
		require.NoError(t, tx.CreateInventory(ctx, &lot))

		fresh, err := tx.GetInventory(ctx, "lot-1")
		require.NoError(t, err)
		stale := fresh

		fresh.CurrentQuantity = decimal.NewFromInt(6)
		require.NoError(t, tx.UpdateInventory(ctx, &fresh))
		assert.Equal(t, int64(2), fresh.Version)

		stale.CurrentQuantity = decimal.NewFromInt(8)
		err = tx.UpdateInventory(ctx, &stale)
		assert.ErrorIs(t, err, ErrOptimisticLock)

		got, err := tx.GetInventory(ctx, "lot-1")
		require.NoError(t, err)
		assert.True(t, got.CurrentQuantity.Equal(decimal.NewFromInt(6)), "stale write must not land")
		return nil
	})
}

func TestInventory_ListLotsFIFOOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx *Tx) error {
		lots := []model.Inventory{
			createTestLot("lot-c", "mat-1", 5, 3),
			createTestLot("lot-a", "mat-1", 5, 1),
			createTestLot("lot-b2", "mat-1", 5, 2),
			createTestLot("lot-b1", "mat-1", 5, 2),
			createTestLot("lot-x", "mat-2", 5, 0),
		}
		deleted := createTestLot("lot-del", "mat-1", 5, 0)
		deleted.IsDeleted = true
		lots = append(lots, deleted)

		for i := range lots {
			require.NoError(t, tx.CreateInventory(ctx, &lots[i]))
		}

		got, err := tx.ListLots(ctx, "mat-1")
		require.NoError(t, err)

		var order []string
		for _, l := range got {
			order = append(order, l.UUID)
		}
		assert.Equal(t, []string{"lot-a", "lot-b1", "lot-b2", "lot-c"}, order)
		return nil
	})
}

func TestEvents_InsertListDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx *Tx) error {
		lot := createTestLot("lot-1", "mat-1", 10, 0)
		require.NoError(t, tx.CreateInventory(ctx, &lot))

		ev := model.InventoryEvent{
			UUID:                  "ev-1",
			InventoryUUID:         "lot-1",
			MaterialUUID:          "mat-1",
			Quantity:              decimal.NewFromInt(-4),
			EventType:             model.EventSale,
			CustomerOrderItemUUID: "co-1",
			CreatedAt:             testEpoch,
		}
		require.NoError(t, tx.InsertEvent(ctx, &ev))

		got, err := tx.GetEvent(ctx, "ev-1")
		require.NoError(t, err)
		assert.Equal(t, model.EventSale, got.EventType)
		assert.Equal(t, "co-1", got.CustomerOrderItemUUID)
		assert.Empty(t, got.PurchaseOrderItemUUID)
		assert.True(t, got.Quantity.Equal(decimal.NewFromInt(-4)))

		require.NoError(t, tx.MarkEventDeleted(ctx, "ev-1"))
		err = tx.MarkEventDeleted(ctx, "ev-1")
		assert.True(t, apperr.IsNotFound(err), "double delete")

		events, err := tx.ListEvents(ctx, "lot-1")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.True(t, events[0].IsDeleted)
		return nil
	})
}

func TestReferenceExists(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	inTx(t, s, func(tx *Tx) error {
		require.NoError(t, tx.PutReference(ctx, model.RefCustomerOrderItem, "co-1", "order line"))

		ok, err := tx.ReferenceExists(ctx, model.RefCustomerOrderItem, "co-1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.ReferenceExists(ctx, model.RefPurchaseOrderItem, "co-1")
		require.NoError(t, err)
		assert.False(t, ok, "kind must match")

		require.NoError(t, tx.DeleteReference(ctx, model.RefCustomerOrderItem, "co-1"))
		ok, err = tx.ReferenceExists(ctx, model.RefCustomerOrderItem, "co-1")
		require.NoError(t, err)
		assert.False(t, ok, "soft-deleted reference is not active")

		require.NoError(t, tx.InsertProcess(ctx, &model.Process{UUID: "p-1", Type: "roasting", CreatedAt: testEpoch}))
		ok, err = tx.ReferenceExists(ctx, model.RefProcess, "p-1")
		require.NoError(t, err)
		assert.True(t, ok)
		return nil
	})
}
