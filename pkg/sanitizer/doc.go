// Package sanitizer normalizes client supplied values before validation and storage.
//
// All functions are idempotent: applying them multiple times produces the same
// result. Invalid input is handled by returning empty values rather than errors,
// leaving rejection to the validator.
//
// Normalization includes:
//   - Identifiers: trimmed, inner whitespace and control characters removed
//   - Free text references: trimmed, whitespace collapsed
//   - Slices: duplicates and empty values removed, first occurrence order kept
//   - Amounts: rounded to cents
package sanitizer
