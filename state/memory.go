package state

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStore implements DocStore using in-memory storage.
// Useful for testing and single-process deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string]*entry
	revision uint64
	closed   atomic.Bool
}

type entry struct {
	value    []byte
	revision uint64
	created  time.Time
	modified time.Time
}

// NewMemoryStore creates a new in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*entry),
	}
}

// Get retrieves the document at key.
func (s *MemoryStore) Get(key string) (*KeyValue, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, ErrClosed
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}

	val := make([]byte, len(e.value))
	copy(val, e.value)

	return &KeyValue{
		Key:      key,
		Value:    val,
		Revision: e.revision,
		Created:  e.created,
		Modified: e.modified,
	}, nil
}

// Put stores value unconditionally.
func (s *MemoryStore) Put(key string, value []byte) (uint64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	if s.closed.Load() {
		return 0, ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(key, value), nil
}

// Create stores value only if the key does not exist.
func (s *MemoryStore) Create(key string, value []byte) (uint64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	if s.closed.Load() {
		return 0, ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return 0, ErrAlreadyExists
	}
	return s.write(key, value), nil
}

// CompareAndPut stores value only if the current revision matches expected.
func (s *MemoryStore) CompareAndPut(key string, value []byte, expected uint64) (uint64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	if s.closed.Load() {
		return 0, ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		return 0, ErrNotFound
	}
	if e.revision != expected {
		return 0, ErrRevisionMismatch
	}
	return s.write(key, value), nil
}

// write stores value under key and returns the new revision.
// Caller must hold s.mu.
func (s *MemoryStore) write(key string, value []byte) uint64 {
	now := time.Now()
	s.revision++

	val := make([]byte, len(value))
	copy(val, value)

	created := now
	if existing, exists := s.data[key]; exists {
		created = existing.created
	}

	s.data[key] = &entry{
		value:    val,
		revision: s.revision,
		created:  created,
		modified: now,
	}
	return s.revision
}

// Delete removes a key.
func (s *MemoryStore) Delete(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Keys returns all keys matching a pattern, sorted.
func (s *MemoryStore) Keys(pattern string) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k := range s.data {
		if MatchPattern(pattern, k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close shuts down the store.
func (s *MemoryStore) Close() error {
	if s.closed.Swap(true) {
		return ErrClosed
	}
	return nil
}

// Ensure MemoryStore implements DocStore.
var _ DocStore = (*MemoryStore)(nil)
