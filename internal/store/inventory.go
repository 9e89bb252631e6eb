package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/albardn2/karma-sub001/internal/apperr"
	"github.com/albardn2/karma-sub001/internal/model"
)

const inventoryColumns = `uuid, material_uuid, warehouse_uuid, unit, currency, cost_per_unit,
	current_quantity, original_quantity, initial_quantity, is_active, is_deleted,
	created_by_uuid, created_at, version`

// CreateInventory inserts a new lot. Version starts at 1.
func (t *Tx) CreateInventory(ctx context.Context, inv *model.Inventory) error {
	if inv.Version == 0 {
		inv.Version = 1
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO inventory (`+inventoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		inv.UUID,
		inv.MaterialUUID,
		nullString(inv.WarehouseUUID),
		inv.Unit,
		inv.Currency,
		inv.CostPerUnit,
		inv.CurrentQuantity,
		inv.OriginalQuantity,
		inv.InitialQuantity,
		boolInt(inv.IsActive),
		boolInt(inv.IsDeleted),
		nullString(inv.CreatedByUUID),
		unixNano(inv.CreatedAt),
		inv.Version,
	)
	if err != nil {
		return fmt.Errorf("write inventory: %w", err)
	}
	return nil
}

// GetInventory returns the lot with the given UUID, including soft-deleted
// lots. Returns a NotFound error if no row exists.
func (t *Tx) GetInventory(ctx context.Context, uuid string) (model.Inventory, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+inventoryColumns+` FROM inventory WHERE uuid = ?`, uuid)
	inv, err := scanInventory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Inventory{}, apperr.NotFound("inventory", uuid)
	}
	if err != nil {
		return model.Inventory{}, fmt.Errorf("read inventory: %w", err)
	}
	return inv, nil
}

// UpdateInventory writes the lot's mutable fields if its version still
// matches, then bumps inv.Version. Returns ErrOptimisticLock on mismatch.
func (t *Tx) UpdateInventory(ctx context.Context, inv *model.Inventory) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE inventory
		SET current_quantity = ?, original_quantity = ?, cost_per_unit = ?,
		    is_active = ?, is_deleted = ?, version = version + 1
		WHERE uuid = ? AND version = ?
	`,
		inv.CurrentQuantity,
		inv.OriginalQuantity,
		inv.CostPerUnit,
		boolInt(inv.IsActive),
		boolInt(inv.IsDeleted),
		inv.UUID,
		inv.Version,
	)
	if err != nil {
		return fmt.Errorf("write inventory: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write inventory: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("write inventory %s: %w", inv.UUID, ErrOptimisticLock)
	}

	inv.Version++
	return nil
}

// ListLots returns every non-deleted lot of a material, oldest first.
// Ties on created_at are broken by uuid.
func (t *Tx) ListLots(ctx context.Context, materialUUID string) ([]model.Inventory, error) {
	return t.queryInventory(ctx, `
		SELECT `+inventoryColumns+` FROM inventory
		WHERE material_uuid = ? AND is_deleted = 0
		ORDER BY created_at ASC, uuid COLLATE BINARY ASC
	`, materialUUID)
}

// ListInventory returns every lot ordered by material then FIFO order.
func (t *Tx) ListInventory(ctx context.Context) ([]model.Inventory, error) {
	return t.queryInventory(ctx, `
		SELECT `+inventoryColumns+` FROM inventory
		ORDER BY material_uuid ASC, created_at ASC, uuid COLLATE BINARY ASC
	`)
}

func (t *Tx) queryInventory(ctx context.Context, query string, args ...any) ([]model.Inventory, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()

	lots := []model.Inventory{}
	for rows.Next() {
		inv, err := scanInventory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		lots = append(lots, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory: %w", err)
	}
	return lots, nil
}

func scanInventory(row scanner) (model.Inventory, error) {
	var (
		inv                  model.Inventory
		warehouse, createdBy sql.NullString
		isActive, isDeleted  int
		createdAt            int64
	)
	err := row.Scan(
		&inv.UUID,
		&inv.MaterialUUID,
		&warehouse,
		&inv.Unit,
		&inv.Currency,
		&inv.CostPerUnit,
		&inv.CurrentQuantity,
		&inv.OriginalQuantity,
		&inv.InitialQuantity,
		&isActive,
		&isDeleted,
		&createdBy,
		&createdAt,
		&inv.Version,
	)
	if err != nil {
		return model.Inventory{}, err
	}
	inv.WarehouseUUID = warehouse.String
	inv.CreatedByUUID = createdBy.String
	inv.IsActive = isActive == 1
	inv.IsDeleted = isDeleted == 1
	inv.CreatedAt = fromUnixNano(createdAt)
	return inv, nil
}
