// Package result provides a tagged success/failure type used across the
// resilience layer. Primitives that wrap fallible operations (circuit
// breakers, retries, timeouts, healing strategies) never panic across
// their own boundary; they return a Result carrying either the value or
// a structured error plus a human-readable message.
package result
