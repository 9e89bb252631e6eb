package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/albardn2/karma-sub001/internal/model"
)

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// inTx runs fn in a committed transaction and fails the test on error.
func inTx(t *testing.T, s *Store, fn func(*Tx) error) {
	t.Helper()
	require.NoError(t, s.RunInTransaction(context.Background(), fn))
}

// createTestLot creates a lot with the given quantity, created at
// testEpoch plus offset seconds.
func createTestLot(id, material string, qty int64, offset int) model.Inventory {
	q := decimal.NewFromInt(qty)
	return model.Inventory{
		UUID:             id,
		MaterialUUID:     material,
		Unit:             "kg",
		Currency:         "USD",
		CostPerUnit:      decimal.RequireFromString("1.50"),
		CurrentQuantity:  q,
		OriginalQuantity: q,
		InitialQuantity:  q,
		IsActive:         true,
		CreatedAt:        testEpoch.Add(time.Duration(offset) * time.Second),
	}
}
