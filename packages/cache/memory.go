package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore provides thread-safe in-process caching
type MemoryStore struct {
	entries map[string]*Entry
	mutex   sync.RWMutex
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
	}
}

// Get retrieves an unexpired entry, dropping it if it has expired
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	s.mutex.RLock()
	entry, ok := s.entries[key]
	s.mutex.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if entry.Expired(time.Now()) {
		s.mutex.Lock()
		// Only delete if nobody replaced it in the meantime
		if current, ok := s.entries[key]; ok && current == entry {
			delete(s.entries, key)
		}
		s.mutex.Unlock()
		return nil, false, nil
	}

	return entry, true, nil
}

// Put stores an entry
func (s *MemoryStore) Put(_ context.Context, key string, entry *Entry) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.entries[key] = entry
	return nil
}

// Delete removes an entry
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.entries, key)
	return nil
}

// Clear removes all entries
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.entries = make(map[string]*Entry)
	return nil
}

// Len returns the number of stored entries, expired ones included
func (s *MemoryStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.entries)
}

var session = NewMemoryStore()

// Session returns the process-wide memory store
func Session() *MemoryStore {
	return session
}
