package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Counter is the persisted state for one operation:clientIP key.
type Counter struct {
	LastSentAt   time.Time
	DailyCount   int
	DailyResetAt time.Time
}

// MemoryCounterStore keeps counters in a map. The mutex spans the whole
// read-check-write sequence, matching the atomicity the redis store gets
// from its script.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*Counter
}

// NewMemoryCounterStore creates an empty store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{counters: make(map[string]*Counter)}
}

func (s *MemoryCounterStore) Admit(_ context.Context, key string, rule Rule, now, dayStart time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok {
		s.counters[key] = &Counter{LastSentAt: now, DailyCount: 1, DailyResetAt: dayStart}
		return Decision{Allowed: true}, nil
	}

	if elapsed := now.Sub(c.LastSentAt); elapsed < rule.Cooldown {
		wait := int(math.Ceil((rule.Cooldown - elapsed).Seconds()))
		return Decision{WaitSeconds: wait}, nil
	}

	isNewDay := c.DailyResetAt.Before(dayStart)
	count := c.DailyCount
	if isNewDay {
		count = 0
	}
	if count >= rule.MaxPerDay {
		return Decision{DailyLimit: true}, nil
	}

	c.LastSentAt = now
	c.DailyCount = count + 1
	if isNewDay {
		c.DailyResetAt = dayStart
	}
	return Decision{Allowed: true}, nil
}

// Peek returns a copy of the counter for a key; tests use it to assert
// reset behavior.
func (s *MemoryCounterStore) Peek(key string) (Counter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[key]
	if !ok {
		return Counter{}, false
	}
	return *c, true
}
