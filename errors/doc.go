// Package errors provides the structured error taxonomy for the taskcore
// substrate. Every failure surfaced by the locking, rate-limiting,
// execution, and healing layers carries a machine-readable code plus a
// category that drives retry decisions.
//
// # Error Categories
//
// Errors fall into four categories:
//
//   - Transient: temporary failures where retry may succeed (timeouts,
//     busy resources)
//   - Permanent: failures where retry will not help (invalid input,
//     not found, healing exhausted)
//   - Resource: capacity exhaustion (rate limits, open circuits)
//   - Internal: bugs or corrupted state
//
// # Usage
//
// Create a new error:
//
//	err := errors.New(errors.CodeLockTimeout, "lock wait exceeded 5m")
//
// Wrap an existing error with context:
//
//	wrapped := errors.Wrap(err, "acquiring repo lock")
//
// Drive retry logic:
//
//	if errors.IsRetryable(err) {
//	    // schedule another attempt
//	}
//
// Errors serialize to JSON so an orchestrator can persist them alongside
// task events.
package errors
