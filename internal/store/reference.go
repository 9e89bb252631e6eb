package store

import (
	"context"
	"fmt"

	"github.com/albardn2/karma-sub001/internal/model"
)

// ReferenceExists reports whether an active record of the given kind exists.
// Processes live in their own table; every other kind is looked up in
// reference_items.
func (t *Tx) ReferenceExists(ctx context.Context, kind model.RefKind, uuid string) (bool, error) {
	var query string
	args := []any{uuid}
	if kind == model.RefProcess {
		query = `SELECT COUNT(*) FROM process WHERE uuid = ?`
	} else {
		query = `SELECT COUNT(*) FROM reference_items WHERE uuid = ? AND kind = ? AND is_deleted = 0`
		args = append(args, string(kind))
	}

	var n int
	if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("read %s reference: %w", kind, err)
	}
	return n > 0, nil
}

// PutReference registers (or revives) a reference-data record.
func (t *Tx) PutReference(ctx context.Context, kind model.RefKind, uuid, name string) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO reference_items (kind, uuid, name, is_deleted)
		VALUES (?, ?, ?, 0)
		ON CONFLICT (kind, uuid) DO UPDATE SET name = excluded.name, is_deleted = 0
	`, string(kind), uuid, name)
	if err != nil {
		return fmt.Errorf("write reference: %w", err)
	}
	return nil
}

// DeleteReference soft-deletes a reference-data record.
func (t *Tx) DeleteReference(ctx context.Context, kind model.RefKind, uuid string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE reference_items SET is_deleted = 1 WHERE kind = ? AND uuid = ?
	`, string(kind), uuid)
	if err != nil {
		return fmt.Errorf("write reference: %w", err)
	}
	return nil
}
