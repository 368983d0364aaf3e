package state

import (
	"errors"
	"strings"
	"time"
)

// Common errors.
var (
	ErrNotFound         = errors.New("key not found")
	ErrAlreadyExists    = errors.New("key already exists")
	ErrRevisionMismatch = errors.New("revision mismatch")
	ErrClosed           = errors.New("store closed")
	ErrInvalidKey       = errors.New("invalid key")
)

// KeyValue represents a stored document with metadata.
type KeyValue struct {
	// Key is the document key.
	Key string

	// Value is the document body.
	Value []byte

	// Revision is a monotonic version number. It changes on every write
	// to the key and is the token CompareAndPut checks against.
	Revision uint64

	// Created is when the key was first created.
	Created time.Time

	// Modified is when the key was last modified.
	Modified time.Time
}

// DocStore provides revisioned key-value document storage.
type DocStore interface {
	// Get retrieves the document at key.
	// Returns ErrNotFound if the key does not exist.
	Get(key string) (*KeyValue, error)

	// Put stores value unconditionally and returns the new revision.
	Put(key string, value []byte) (uint64, error)

	// Create stores value only if the key does not exist.
	// Returns ErrAlreadyExists otherwise.
	Create(key string, value []byte) (uint64, error)

	// CompareAndPut stores value only if the key's current revision equals
	// expected. Returns ErrRevisionMismatch if another writer got there
	// first, ErrNotFound if the key does not exist.
	CompareAndPut(key string, value []byte, expected uint64) (uint64, error)

	// Delete removes a key. Deleting a missing key is a no-op.
	Delete(key string) error

	// Keys returns all keys matching a pattern.
	// Pattern supports a trailing * wildcard (e.g., "task.*").
	Keys(pattern string) ([]string, error)

	// Close shuts down the store and releases resources.
	Close() error
}

// ValidateKey checks if a key is valid.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if strings.Contains(key, " ") {
		return ErrInvalidKey
	}
	if strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") {
		return ErrInvalidKey
	}
	if len(key) > 1024 {
		return ErrInvalidKey
	}
	return nil
}

// MatchPattern checks if a key matches a pattern.
// Supports a trailing * wildcard (e.g., "task.*" matches "task.42").
func MatchPattern(pattern, key string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(key, prefix)
	}
	return pattern == key
}
