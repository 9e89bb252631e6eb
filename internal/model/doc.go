// Package model defines the records shared by the ledger, the workflow
// engine and the store.
//
// Quantities and money are decimal.Decimal throughout. Optional references
// are plain strings where "" means absent; the store maps "" to NULL.
package model
