package registration

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"regdesk/internal/participant"
)

// MemoryStore is the in-memory store used in tests. It shares the
// participant store so the dual write lands in the same place the check-in
// side reads from.
type MemoryStore struct {
	mu           sync.RWMutex
	surveys      map[string]*Survey
	responses    map[string]*Response
	participants *participant.MemoryStore
	emails       map[string]string // response id -> lowercased email
}

// NewMemoryStore creates an empty store backed by the given participant
// store.
func NewMemoryStore(participants *participant.MemoryStore) *MemoryStore {
	return &MemoryStore{
		surveys:      make(map[string]*Survey),
		responses:    make(map[string]*Response),
		participants: participants,
		emails:       make(map[string]string),
	}
}

// SeedSurvey registers a survey for tests and dev runs.
func (s *MemoryStore) SeedSurvey(sv Survey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.surveys[sv.ID] = &sv
}

func (s *MemoryStore) GetSurvey(_ context.Context, id string) (*Survey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sv, ok := s.surveys[id]
	if !ok {
		return nil, nil
	}
	cp := *sv
	return &cp, nil
}

func (s *MemoryStore) CreateRegistration(ctx context.Context, p *participant.Participant, r *Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.responses {
		if existing.PersonalCode == r.PersonalCode {
			return ErrCodeTaken
		}
	}
	if err := s.participants.Create(ctx, p); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	r.ParticipantID = p.ID
	r.CreatedAt = now
	r.UpdatedAt = now
	cp := *r
	s.responses[r.ID] = &cp
	if p.Email != nil {
		s.emails[r.ID] = strings.ToLower(*p.Email)
	}
	return nil
}

func (s *MemoryStore) GetByCode(_ context.Context, code string) (*Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.responses {
		if r.PersonalCode == code {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, surveyID, email string) (*Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *Response
	want := strings.ToLower(email)
	for id, r := range s.responses {
		if r.SurveyID != surveyID || s.emails[id] != want {
			continue
		}
		if newest == nil || r.CreatedAt.After(newest.CreatedAt) {
			newest = r
		}
	}
	if newest == nil {
		return nil, nil
	}
	cp := *newest
	return &cp, nil
}

func (s *MemoryStore) UpdateResponse(_ context.Context, id string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.responses[id]
	if !ok {
		return nil
	}
	r.SubmittedData = data
	r.UpdatedAt = time.Now().UTC()
	return nil
}
