package participant

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"regdesk/internal/apperr"
	"regdesk/internal/audit"
)

type ServiceSuite struct {
	suite.Suite
	store    *MemoryStore
	auditLog *audit.MemoryStore
	service  *Service
	clock    time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.auditLog = audit.NewMemoryStore()
	s.clock = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	recorder := audit.NewRecorder(s.auditLog, zap.NewNop().Sugar())
	s.service = NewService(s.store, recorder, zap.NewNop().Sugar(),
		WithClock(func() time.Time { return s.clock }))
}

func (s *ServiceSuite) newParticipant(name string) *Participant {
	key := "AB12CD34"
	p := &Participant{Name: name, LookupKey: &key}
	s.Require().NoError(s.store.Create(context.Background(), p))
	return p
}

func (s *ServiceSuite) TestToggleOpensThenCloses() {
	ctx := context.Background()
	p := s.newParticipant("John Smith")

	tr, err := s.service.Toggle(ctx, p.ID, "desk")
	s.Require().NoError(err)
	s.Equal(StatusIn, tr.Status)
	s.Require().NotNil(tr.Session)
	s.Equal(s.clock, tr.Session.CheckInTime)
	s.True(tr.Session.Open())

	s.clock = s.clock.Add(90 * time.Minute)
	tr2, err := s.service.Toggle(ctx, p.ID, "desk")
	s.Require().NoError(err)
	s.Equal(StatusOut, tr2.Status)
	s.Equal(tr.Session.ID, tr2.Session.ID)
	s.Require().NotNil(tr2.Session.CheckOutTime)

	d, closed := tr2.Session.Duration()
	s.True(closed)
	s.Equal(90*time.Minute, d)
}

func (s *ServiceSuite) TestTripleToggle() {
	ctx := context.Background()
	p := s.newParticipant("John Smith")

	for i := 0; i < 3; i++ {
		s.clock = s.clock.Add(time.Minute)
		_, err := s.service.Toggle(ctx, p.ID, "desk")
		s.Require().NoError(err)
	}

	got, err := s.store.Get(ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Len(got.Sessions, 2)
	s.False(got.Sessions[0].Open())
	s.True(got.Sessions[1].Open())
	s.Equal(StatusIn, got.CurrentStatus())
}

func (s *ServiceSuite) TestToggleUnknownParticipant() {
	_, err := s.service.Toggle(context.Background(), "nope", "desk")
	s.True(apperr.Is(err, apperr.KindNotFound))
}

func (s *ServiceSuite) TestToggleAudits() {
	ctx := context.Background()
	p := s.newParticipant("John Smith")

	_, err := s.service.Toggle(ctx, p.ID, "maria")
	s.Require().NoError(err)
	_, err = s.service.Toggle(ctx, p.ID, "maria")
	s.Require().NoError(err)

	entries, err := s.auditLog.List(ctx, 10, nil)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)

	actions := []audit.Action{entries[0].Action, entries[1].Action}
	s.Contains(actions, audit.ActionCheckIn)
	s.Contains(actions, audit.ActionCheckOut)
	s.Equal("maria", entries[0].ActorName)
	s.Equal(p.ID, entries[0].TargetID)
}

func (s *ServiceSuite) TestConcurrentTogglesKeepInvariant() {
	// N simultaneous toggles may land as check-ins, check-outs, or
	// conflicts, but at no point may two sessions be open at once.
	ctx := context.Background()
	p := s.newParticipant("John Smith")

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.service.Toggle(ctx, p.ID, "desk"); err != nil {
				s.True(apperr.Is(err, apperr.KindConflict), "unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := s.store.Get(ctx, p.ID)
	s.Require().NoError(err)
	open := 0
	for _, cs := range got.Sessions {
		if cs.Open() {
			open++
		}
	}
	s.LessOrEqual(open, 1)
}

func (s *ServiceSuite) TestResolveByID() {
	ctx := context.Background()
	p := s.newParticipant("John Smith")

	got, err := s.service.Resolve(ctx, "ID:"+p.ID)
	s.Require().NoError(err)
	s.Equal(p.ID, got.ID)

	got, err = s.service.Resolve(ctx, `{"type":"checkin","id":"`+p.ID+`","v":1}`)
	s.Require().NoError(err)
	s.Equal(p.ID, got.ID)
}

func (s *ServiceSuite) TestResolveByKey() {
	ctx := context.Background()
	p := s.newParticipant("John Smith")

	got, err := s.service.Resolve(ctx, "KEY:AB12CD34")
	s.Require().NoError(err)
	s.Equal(p.ID, got.ID)

	got, err = s.service.Resolve(ctx, "AB12CD34")
	s.Require().NoError(err)
	s.Equal(p.ID, got.ID)
}

func (s *ServiceSuite) TestResolveDistinguishesInvalidFromMissing() {
	ctx := context.Background()

	_, err := s.service.Resolve(ctx, "hello world")
	s.True(apperr.Is(err, apperr.KindValidation))

	_, err = s.service.Resolve(ctx, "ZZ99ZZ99")
	s.True(apperr.Is(err, apperr.KindNotFound))

	_, err = s.service.Resolve(ctx, "ID:unknown")
	s.True(apperr.Is(err, apperr.KindNotFound))
}

func (s *ServiceSuite) TestAssignRecordsDiff() {
	ctx := context.Background()
	p := s.newParticipant("John Smith")

	group := "blue"
	room := "204"
	updated, err := s.service.Assign(ctx, p.ID, &group, &room, "maria")
	s.Require().NoError(err)
	s.Equal("blue", *updated.GroupName)
	s.Equal("204", *updated.Room)

	entries, err := s.auditLog.List(ctx, 10, nil)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionAssign, entries[0].Action)
	s.Equal(audit.Change{From: "", To: "blue"}, entries[0].Changes["group"])
	s.Equal(audit.Change{From: "", To: "204"}, entries[0].Changes["room"])
}
