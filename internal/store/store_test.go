package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_AppliesPragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	ctx := context.Background()

	s1, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(ctx, path)
	require.NoError(t, err)
	defer s2.Close()

	applied, err := Migrate(ctx, s2.DB())
	require.NoError(t, err)
	assert.Empty(t, applied, "second migrate should be a no-op")
}

func TestOpen_CreatesTables(t *testing.T) {
	s := createTestStore(t)

	for _, table := range []string{
		"inventory", "inventory_event", "reference_items", "workflow",
		"workflow_execution", "task_execution", "process", "quality_control", "trip",
	} {
		var n int
		err := s.DB().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "table %s missing", table)
	}
}

func TestRunInTransaction_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTransaction(ctx, func(tx *Tx) error {
		lot := createTestLot("lot-1", "mat-1", 10, 0)
		require.NoError(t, tx.CreateInventory(ctx, &lot))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	inTx(t, s, func(tx *Tx) error {
		lots, err := tx.ListLots(ctx, "mat-1")
		require.NoError(t, err)
		assert.Empty(t, lots)
		return nil
	})
}

func TestRunInTransaction_RetriesOptimisticLock(t *testing.T) {
	s := createTestStore(t)
	attempts := 0

	err := s.RunInTransaction(context.Background(), func(tx *Tx) error {
		attempts++
		if attempts < 2 {
			return ErrOptimisticLock
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRunInTransaction_GivesUpAfterMaxRetries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retry.db")
	s, err := Open(context.Background(), path, WithMaxRetries(2))
	require.NoError(t, err)
	defer s.Close()

	attempts := 0
	err = s.RunInTransaction(context.Background(), func(tx *Tx) error {
		attempts++
		return ErrOptimisticLock
	})

	assert.ErrorIs(t, err, ErrOptimisticLock)
	assert.Equal(t, 2, attempts)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "a.db?_txlock=immediate&_foreign_keys=on&_busy_timeout=5000", dsn("a.db"))
	assert.Equal(t, "file:a.db?mode=rwc&_txlock=immediate&_foreign_keys=on&_busy_timeout=5000", dsn("file:a.db?mode=rwc"))
}
