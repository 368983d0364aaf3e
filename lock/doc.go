// Package lock provides per-resource exclusive locks with fair queueing.
//
// A Registry hands out at most one lock per normalized resource key.
// Acquisition is reentrant for the owner already holding the lock;
// everyone else joins a FIFO queue and is woken through a per-waiter
// channel when the resource frees up, so a release never wakes more than
// the next waiter in line. Grants follow strict arrival order.
//
// Every grant arms an auto-release timer. A lock held past its timeout is
// forcibly released and logged as an anomaly — leak containment, not a
// normal path. ReleaseAll exists for crash cleanup so a dead owner cannot
// strand a resource or a queue.
//
// The Registry is an injected dependency owned by the orchestrator, not a
// package-level singleton, so tests can instantiate isolated registries.
package lock
