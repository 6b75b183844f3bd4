// Package request implements the request model and validator.
//
// Validation is two-stage: the JSON body is first checked against a
// compiled JSON schema (structure, types, enum values, unknown fields),
// then decoded and checked for the semantic invariants the schema cannot
// express — shape/size consistency, selection bounds, axis ranges and
// missing-data representability. The result is a normalized Descriptor
// that the downstream pipeline consumes without further validation.
package request
