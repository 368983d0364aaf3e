// Package retry provides retry-with-backoff and deadline primitives.
//
// Do re-invokes a fallible operation with geometrically growing delays
// until it succeeds, the attempt budget is spent, or the retry predicate
// rejects the error. The default predicate consults the structured error
// taxonomy, so permanent failures abort immediately.
//
// WithTimeout races an operation against a deadline and discards the
// slower outcome.
package retry
