package audit

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is the in-memory store used in tests and single-node dev runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *MemoryStore) List(_ context.Context, limit int, after *Cursor) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := append([]Entry{}, s.entries...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.After(sorted[j].Timestamp)
		}
		return sorted[i].ID > sorted[j].ID
	})

	start := 0
	if after != nil {
		for i, e := range sorted {
			if e.Timestamp.Before(after.Timestamp) ||
				(e.Timestamp.Equal(after.Timestamp) && e.ID < after.ID) {
				start = i
				break
			}
			start = len(sorted)
		}
	}
	end := start + limit
	if end > len(sorted) {
		end = len(sorted)
	}
	return sorted[start:end], nil
}

func (s *MemoryStore) DeleteBatch(_ context.Context, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := limit
	if n > len(s.entries) {
		n = len(s.entries)
	}
	s.entries = s.entries[n:]
	return n, nil
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
