// Package shutdown drains the substrate in phases.
//
// Components register a Handler under a phase; lower phases drain first
// and handlers inside one phase drain concurrently. The intended order
// stops work intake before releasing the resources that work depends on:
// executors first, then locks and rate limiters, then stores, then
// telemetry export last so the drain itself is still traced.
package shutdown
