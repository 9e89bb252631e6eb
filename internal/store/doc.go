// Package store provides SQLite-backed durable storage for the inventory
// ledger and the workflow engine.
//
// Tables:
//   - inventory / inventory_event: lots and their append-only ledger
//   - workflow / workflow_execution / task_execution: definitions and runs
//   - process / quality_control / trip: records written by operators and callbacks
//   - reference_items: existence lookups for reference data owned elsewhere
//
// # Transactions
//
// Every public operation runs inside Store.RunInTransaction. Connections are
// opened with _txlock=immediate, so a transaction takes the database write
// lock at BEGIN and writers serialise. Lot updates additionally compare and
// swap on inventory.version; a mismatch returns ErrOptimisticLock and the
// whole unit of work is retried up to the configured limit.
//
// # Encoding
//
//   - Quantities and money: decimal TEXT (exact)
//   - Timestamps: INTEGER unix nanoseconds, UTC
//   - Payloads and lists: JSON TEXT
//   - Optional references: NULL when absent
//
// All list queries carry an ORDER BY so results are deterministic.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Schema changes are goose migrations embedded from migrations/.
package store
