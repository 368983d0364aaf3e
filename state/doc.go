// Package state provides a revision-numbered document store used for
// persisted task state.
//
// Every write bumps a monotonic revision; CompareAndPut only succeeds when
// the caller holds the current revision, which gives phases a lost-update
// guard without holding locks across I/O. The optimistic helpers build the
// two idioms every writing phase uses on top of that primitive:
// initialize-if-absent and update-matching-element-else-append.
package state
