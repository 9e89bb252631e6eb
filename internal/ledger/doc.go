// Package ledger implements the inventory ledger: typed event handlers that
// post signed deltas onto lots, the service that routes event requests to
// them, FIFO lot selection, and reconciliation of lots against their events.
//
// # Handlers
//
// Each event type has one Handler, looked up in an immutable registry built
// on first use. Unknown types fail closed with an Unsupported error. SALE and
// MANUAL handlers also implement Reverser; only MANUAL events may be deleted
// through the Service.
//
// Every handler runs the same pipeline inside the caller's transaction:
//
//  1. validate the request shape (non-zero quantity, at most one of the
//     purchase-order, customer-order and process references)
//  2. load the lot (NotFound if missing or deleted)
//  3. run the type's reference checks
//  4. apply the delta to current_quantity and, per the policy table, to
//     original_quantity
//  5. write the lot with a version check and append the event, copying the
//     lot's material onto it
//
// # original_quantity policy
//
//	type                                     delta > 0                 delta < 0
//	sale, purchase_order, adjustment, manual  iff affect_original       iff affect_original
//	process                                  iff result > 0 or flag    iff affect_original
//
// The amount applied to original_quantity is stored on the event as
// original_delta; reversal subtracts exactly that amount.
package ledger
