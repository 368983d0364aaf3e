// Package eventlog provides the append-only, versioned event store that is
// the durable source of truth for task state.
//
// Events are immutable once appended: there is no update or delete path,
// which is the auditability guarantee. Each event carries a per-task
// version that is strictly increasing starting at 1. Version assignment is
// atomic — the memory store assigns under its mutex, the SQLite store
// relies on a UNIQUE (task_id, version) constraint with retry-on-conflict —
// so concurrent appends for the same task can never collide.
//
// Readers are projections ordered by version. They return empty results on
// no match; only a missing single event (LastEvent and friends) surfaces
// ErrNoEvents.
package eventlog
