// Package ratelimit provides sliding-window admission control for
// outbound calls to quota-limited services.
//
// Capacity is tracked per resource class (e.g., a model tier) as a window
// of usage samples. WaitForCapacity suspends the caller until the trailing
// window sits under the configured limits scaled by a safety margin, then
// reserves one request slot; RecordUsage backfills the actual unit counts
// after the call completes. Reservation counts the request and the caller's
// input estimate but no output estimate — a deliberate trade-off favoring
// throughput over exactness.
//
// WaitForCapacity never fails on its own; it only waits. Callers that need
// a deadline wrap it with a context or retry.WithTimeout.
package ratelimit
