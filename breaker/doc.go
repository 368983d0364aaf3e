// Package breaker provides named circuit breakers for external calls.
//
// Breakers live in a Registry owned by the orchestrator and passed to the
// components that need one; there is no package-level singleton, so tests
// can instantiate isolated registries.
//
// A circuit is closed until failureThreshold consecutive failures open it.
// While open, calls fail fast with a CIRCUIT_OPEN error. After resetTimeout
// a single probe call is allowed through in half-open state: success closes
// the circuit and resets the failure count, failure reopens it.
package breaker
