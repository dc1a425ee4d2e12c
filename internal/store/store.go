// Package store provides the durable key/value contract the SDK persists
// its state through, plus the in-memory and SQLite-backed implementations
// and the JSON persistence layer on top of them.
package store

import "sync"

// Store is a durable string-to-string map scoped to one preference
// namespace. Implementations must tolerate missing keys (return the default)
// and must not panic on normal absence; other failures are returned as
// errors and handled softly by the layers above.
type Store interface {
	// GetString returns the value for key, or def if the key is absent.
	GetString(key, def string) (string, error)

	// PutString stores value under key, replacing any previous value.
	PutString(key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error

	// Clear removes every key in the namespace.
	Clear() error

	// IsValid reports whether the backing storage is usable. An invalid
	// store degrades all persistence to no-ops.
	IsValid() bool
}

// MemoryStore is an in-process Store. It is the default backing when no
// durable store is configured and the workhorse for tests.
type MemoryStore struct {
	mu      sync.Mutex
	values  map[string]string
	invalid bool
}

// NewMemoryStore creates an empty, valid MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) GetString(key, def string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.values[key]; ok {
		return v, nil
	}
	return def, nil
}

func (s *MemoryStore) PutString(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string)
	return nil
}

func (s *MemoryStore) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.invalid
}

// invalidate marks the store unusable. Test hook.
func (s *MemoryStore) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalid = true
}
