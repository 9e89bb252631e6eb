// Package schema validates operator completion payloads against CUE
// definitions embedded from operators.cue.
//
// Payloads arrive as JSON-shaped maps. They are encoded to JSON, compiled
// as CUE data, unified with the named definition and checked for
// concreteness. Any failure is an apperr BadRequest naming the first CUE
// error. Decode additionally unmarshals the validated JSON into a typed
// struct, so decimal fields keep their exact textual value.
package schema
