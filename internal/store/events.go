package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/albardn2/karma-sub001/internal/apperr"
	"github.com/albardn2/karma-sub001/internal/model"
)

const eventColumns = `uuid, inventory_uuid, material_uuid, quantity, original_delta, event_type,
	affect_original, purchase_order_item_uuid, customer_order_item_uuid, process_uuid,
	debit_note_item_uuid, credit_note_item_uuid, notes, created_by_uuid, created_at, is_deleted`

// InsertEvent appends an event to the ledger.
func (t *Tx) InsertEvent(ctx context.Context, ev *model.InventoryEvent) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO inventory_event (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.UUID,
		ev.InventoryUUID,
		ev.MaterialUUID,
		ev.Quantity,
		ev.OriginalDelta,
		string(ev.EventType),
		boolInt(ev.AffectOriginal),
		nullString(ev.PurchaseOrderItemUUID),
		nullString(ev.CustomerOrderItemUUID),
		nullString(ev.ProcessUUID),
		nullString(ev.DebitNoteItemUUID),
		nullString(ev.CreditNoteItemUUID),
		ev.Notes,
		nullString(ev.CreatedByUUID),
		unixNano(ev.CreatedAt),
		boolInt(ev.IsDeleted),
	)
	if err != nil {
		return fmt.Errorf("write inventory event: %w", err)
	}
	return nil
}

// GetEvent returns the event with the given UUID, including soft-deleted
// events. Returns a NotFound error if no row exists.
func (t *Tx) GetEvent(ctx context.Context, uuid string) (model.InventoryEvent, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM inventory_event WHERE uuid = ?`, uuid)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.InventoryEvent{}, apperr.NotFound("inventory_event", uuid)
	}
	if err != nil {
		return model.InventoryEvent{}, fmt.Errorf("read inventory event: %w", err)
	}
	return ev, nil
}

// MarkEventDeleted soft-deletes an event. The ledger row itself is never
// removed.
func (t *Tx) MarkEventDeleted(ctx context.Context, uuid string) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE inventory_event SET is_deleted = 1 WHERE uuid = ? AND is_deleted = 0
	`, uuid)
	if err != nil {
		return fmt.Errorf("write inventory event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write inventory event: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("inventory_event", uuid)
	}
	return nil
}

// ListEvents returns the events posted against a lot in posting order,
// including soft-deleted ones.
func (t *Tx) ListEvents(ctx context.Context, inventoryUUID string) ([]model.InventoryEvent, error) {
	return t.queryEvents(ctx, `
		SELECT `+eventColumns+` FROM inventory_event
		WHERE inventory_uuid = ?
		ORDER BY created_at ASC, uuid COLLATE BINARY ASC
	`, inventoryUUID)
}

// ListAllEvents returns the whole ledger in posting order.
func (t *Tx) ListAllEvents(ctx context.Context) ([]model.InventoryEvent, error) {
	return t.queryEvents(ctx, `
		SELECT `+eventColumns+` FROM inventory_event
		ORDER BY created_at ASC, uuid COLLATE BINARY ASC
	`)
}

func (t *Tx) queryEvents(ctx context.Context, query string, args ...any) ([]model.InventoryEvent, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query inventory events: %w", err)
	}
	defer rows.Close()

	events := []model.InventoryEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory events: %w", err)
	}
	return events, nil
}

func scanEvent(row scanner) (model.InventoryEvent, error) {
	var (
		ev                        model.InventoryEvent
		eventType                 string
		affectOriginal, isDeleted int
		po, co, process, dn, cn   sql.NullString
		createdBy                 sql.NullString
		createdAt                 int64
	)
	err := row.Scan(
		&ev.UUID,
		&ev.InventoryUUID,
		&ev.MaterialUUID,
		&ev.Quantity,
		&ev.OriginalDelta,
		&eventType,
		&affectOriginal,
		&po,
		&co,
		&process,
		&dn,
		&cn,
		&ev.Notes,
		&createdBy,
		&createdAt,
		&isDeleted,
	)
	if err != nil {
		return model.InventoryEvent{}, err
	}
	ev.EventType = model.EventType(eventType)
	ev.AffectOriginal = affectOriginal == 1
	ev.PurchaseOrderItemUUID = po.String
	ev.CustomerOrderItemUUID = co.String
	ev.ProcessUUID = process.String
	ev.DebitNoteItemUUID = dn.String
	ev.CreditNoteItemUUID = cn.String
	ev.CreatedByUUID = createdBy.String
	ev.CreatedAt = fromUnixNano(createdAt)
	ev.IsDeleted = isDeleted == 1
	return ev, nil
}
