// Package apperr defines the failure taxonomy shared by the ledger and the
// workflow engine.
//
// Every business failure is an *Error carrying one of three kinds:
//
//   - NotFound: a referenced entity is missing or soft-deleted
//   - BadRequest: a business rule was violated (invalid transition, failed
//     cross-reference, payload that does not match its schema)
//   - Unsupported: no handler, operator or callback is registered for a tag
//
// Unsupported errors also match ErrBadRequest, so callers that only
// distinguish "caller mistake" from "missing" can use a single errors.Is
// check. Errors are never retried; they propagate to the transaction
// boundary, which rolls back.
package apperr
