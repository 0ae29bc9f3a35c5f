// Package sanitizer normalizes guest-supplied text before validation and storage.
//
// All functions are idempotent and never fail: input that cannot be
// normalized comes back empty, and validation rejects it afterwards.
package sanitizer
