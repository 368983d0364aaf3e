// Package checkpoint provides crash-safe file persistence.
//
// WriteFileAtomic writes through a temp file in the destination directory,
// fsyncs, then renames, so a partial file is never observable.
//
// Store layers versioned, checksummed checkpoints on top: every save bumps
// a counter, records a SHA-256 of the payload, and preserves the previous
// copy as a backup. Load verifies the checksum and falls back to the backup
// when the primary is corrupt, surfacing CORRUPTION only when both copies
// are unusable.
package checkpoint
