package participant

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"regdesk/internal/apperr"
	"regdesk/internal/audit"
	"regdesk/internal/identity"
	"regdesk/internal/metrics"
)

// Transition is the outcome of one toggle.
type Transition struct {
	Status  Status          `json:"status"`
	Session *CheckInSession `json:"session"`
}

// Service runs the check-in state machine and resolves scanned codes.
type Service struct {
	store    Store
	cache    *Cache
	recorder *audit.Recorder
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCache attaches the redis read cache for the direct-lookup path.
func WithCache(cache *Cache) Option {
	return func(s *Service) { s.cache = cache }
}

// NewService builds the service.
func NewService(store Store, recorder *audit.Recorder, logger *zap.SugaredLogger, opts ...Option) *Service {
	s := &Service{store: store, recorder: recorder, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Toggle flips the participant between out and in. The close and the open
// are each a single atomic store step; when two toggles race to open, the
// loser gets a Conflict instead of a second open session.
func (s *Service) Toggle(ctx context.Context, participantID, actor string) (Transition, error) {
	if participantID == "" {
		return Transition{}, apperr.New(apperr.KindValidation, "participant id is required")
	}
	p, err := s.store.Get(ctx, participantID)
	if err != nil {
		return Transition{}, apperr.Wrap(err, apperr.KindStorage, "participant fetch failed")
	}
	if p == nil {
		return Transition{}, apperr.New(apperr.KindNotFound, "participant not found")
	}

	now := s.now().UTC()
	closed, err := s.store.CloseOpenSession(ctx, participantID, now)
	if err != nil {
		return Transition{}, apperr.Wrap(err, apperr.KindStorage, "check-out failed")
	}
	if closed != nil {
		s.cache.Invalidate(ctx, participantID)
		metrics.CheckOuts.Inc()
		s.recorder.Record(ctx, actor, audit.ActionCheckOut, audit.TargetParticipant, p.ID, p.Name, nil)
		return Transition{Status: StatusOut, Session: closed}, nil
	}

	opened, err := s.store.OpenSession(ctx, participantID, now)
	if err != nil {
		if errors.Is(err, ErrSessionOpen) {
			return Transition{}, apperr.New(apperr.KindConflict, "participant was checked in concurrently")
		}
		return Transition{}, apperr.Wrap(err, apperr.KindStorage, "check-in failed")
	}
	s.cache.Invalidate(ctx, participantID)
	metrics.CheckIns.Inc()
	s.recorder.Record(ctx, actor, audit.ActionCheckIn, audit.TargetParticipant, p.ID, p.Name, nil)
	return Transition{Status: StatusIn, Session: opened}, nil
}

// Resolve turns raw scanned or typed text into a participant. An
// unrecognized format is a validation error; a recognized format with no
// matching record is not found.
func (s *Service) Resolve(ctx context.Context, raw string) (*Participant, error) {
	scan := identity.DecodeScan(raw)
	switch scan.Kind {
	case identity.ScanParticipantID:
		if p := s.cache.Get(ctx, scan.Value); p != nil {
			return p, nil
		}
		p, err := s.store.Get(ctx, scan.Value)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindStorage, "participant fetch failed")
		}
		if p == nil {
			return nil, apperr.New(apperr.KindNotFound, "participant not found")
		}
		s.cache.Put(ctx, p)
		return p, nil
	case identity.ScanLookupKey:
		p, err := s.store.FindByKey(ctx, scan.Value)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindStorage, "key search failed")
		}
		if p == nil {
			return nil, apperr.New(apperr.KindNotFound, "no participant matches that key")
		}
		return p, nil
	default:
		return nil, apperr.New(apperr.KindValidation, "unrecognized code format")
	}
}

// Assign updates the participant's group and room and audits the change
// with per-field before/after values.
func (s *Service) Assign(ctx context.Context, participantID string, group, room *string, actor string) (*Participant, error) {
	if group == nil && room == nil {
		return nil, apperr.New(apperr.KindValidation, "nothing to assign")
	}
	p, err := s.store.Get(ctx, participantID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindStorage, "participant fetch failed")
	}
	if p == nil {
		return nil, apperr.New(apperr.KindNotFound, "participant not found")
	}

	changes := map[string]audit.Change{}
	if group != nil && !strPtrEq(p.GroupName, group) {
		changes["group"] = audit.Change{From: strPtrVal(p.GroupName), To: *group}
	}
	if room != nil && !strPtrEq(p.Room, room) {
		changes["room"] = audit.Change{From: strPtrVal(p.Room), To: *room}
	}

	if err := s.store.UpdateAssignment(ctx, participantID, group, room); err != nil {
		return nil, apperr.Wrap(err, apperr.KindStorage, "assignment update failed")
	}
	s.cache.Invalidate(ctx, participantID)
	if len(changes) > 0 {
		s.recorder.Record(ctx, actor, audit.ActionAssign, audit.TargetParticipant, p.ID, p.Name, changes)
	}

	updated, err := s.store.Get(ctx, participantID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindStorage, "participant fetch failed")
	}
	return updated, nil
}

func strPtrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func strPtrVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
