package participant

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is the in-memory store used in tests. The mutex spans each
// session mutation, giving the same atomicity the Postgres store gets from
// single statements plus its partial unique index.
type MemoryStore struct {
	mu           sync.RWMutex
	participants map[string]*Participant
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{participants: make(map[string]*Participant)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.participants[id]), nil
}

func (s *MemoryStore) FindByKey(_ context.Context, key string) (*Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *Participant
	for _, p := range s.participants {
		if p.LookupKey == nil || *p.LookupKey != key {
			continue
		}
		if found == nil || p.CreatedAt.Before(found.CreatedAt) {
			found = p
		}
	}
	return clone(found), nil
}

func (s *MemoryStore) Create(_ context.Context, p *Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.participants[p.ID] = clone(p)
	return nil
}

func (s *MemoryStore) UpdateAssignment(_ context.Context, id string, group, room *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return nil
	}
	if group != nil {
		p.GroupName = group
	}
	if room != nil {
		p.Room = room
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) CloseOpenSession(_ context.Context, participantID string, at time.Time) (*CheckInSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[participantID]
	if !ok {
		return nil, nil
	}
	for i := range p.Sessions {
		if p.Sessions[i].Open() {
			out := at
			p.Sessions[i].CheckOutTime = &out
			closed := p.Sessions[i]
			return &closed, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) OpenSession(_ context.Context, participantID string, at time.Time) (*CheckInSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[participantID]
	if !ok {
		return nil, nil
	}
	for _, cs := range p.Sessions {
		if cs.Open() {
			return nil, ErrSessionOpen
		}
	}
	cs := CheckInSession{ID: uuid.NewString(), CheckInTime: at}
	p.Sessions = append(p.Sessions, cs)
	return &cs, nil
}

func clone(p *Participant) *Participant {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Sessions = append([]CheckInSession{}, p.Sessions...)
	return &cp
}
