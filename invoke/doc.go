// Package invoke calls external agent services.
//
// An Invoker turns a prompt into text output plus usage numbers. The
// provider adapters wrap the official Anthropic, OpenAI and Google SDKs
// behind that one method. Resilient composes an Invoker with a rate
// limiter, a circuit breaker and a retry policy so callers get a single
// call that waits for capacity, fails fast when the provider is down and
// records the usage it consumed.
package invoke
