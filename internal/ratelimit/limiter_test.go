package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"regdesk/internal/apperr"
)

type LimiterSuite struct {
	suite.Suite
	store   *MemoryCounterStore
	limiter *Limiter
	clock   time.Time
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterSuite))
}

func (s *LimiterSuite) SetupTest() {
	s.store = NewMemoryCounterStore()
	s.clock = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	rules := map[Op]Rule{
		OpRecoverEmail: {MaxPerDay: 2, Cooldown: 60 * time.Second},
		OpCodeLookup:   {MaxPerDay: 30, Cooldown: 3 * time.Second},
	}
	s.limiter = New(s.store, rules, zap.NewNop().Sugar(),
		WithClock(func() time.Time { return s.clock }))
}

func (s *LimiterSuite) advance(d time.Duration) { s.clock = s.clock.Add(d) }

func (s *LimiterSuite) TestFirstRequestAllowed() {
	s.NoError(s.limiter.Check(context.Background(), OpRecoverEmail, "10.0.0.1"))

	c, ok := s.store.Peek("recover_email:10.0.0.1")
	s.Require().True(ok)
	s.Equal(1, c.DailyCount)
}

func (s *LimiterSuite) TestCooldownRejection() {
	ctx := context.Background()
	s.Require().NoError(s.limiter.Check(ctx, OpRecoverEmail, "10.0.0.1"))

	s.advance(10 * time.Second)
	err := s.limiter.Check(ctx, OpRecoverEmail, "10.0.0.1")
	s.True(apperr.Is(err, apperr.KindRateLimited))
	s.Equal(50, apperr.RetryAfter(err))
}

func (s *LimiterSuite) TestDailyLimitAndRollover() {
	ctx := context.Background()

	// Calls 1 and 2 on day D, spaced past the cooldown.
	s.Require().NoError(s.limiter.Check(ctx, OpRecoverEmail, "10.0.0.1"))
	s.advance(2 * time.Minute)
	s.Require().NoError(s.limiter.Check(ctx, OpRecoverEmail, "10.0.0.1"))

	// Call 3 on day D hits the cap.
	s.advance(2 * time.Minute)
	err := s.limiter.Check(ctx, OpRecoverEmail, "10.0.0.1")
	s.Require().True(apperr.Is(err, apperr.KindRateLimited))
	s.Contains(err.Error(), "daily limit reached")

	// Call 4 on day D+1 succeeds and resets the count to 1.
	s.advance(24 * time.Hour)
	s.Require().NoError(s.limiter.Check(ctx, OpRecoverEmail, "10.0.0.1"))

	c, ok := s.store.Peek("recover_email:10.0.0.1")
	s.Require().True(ok)
	s.Equal(1, c.DailyCount)
}

func (s *LimiterSuite) TestOperationsAreIndependent() {
	ctx := context.Background()
	s.Require().NoError(s.limiter.Check(ctx, OpRecoverEmail, "10.0.0.1"))

	// A different op from the same client has its own counter.
	s.NoError(s.limiter.Check(ctx, OpCodeLookup, "10.0.0.1"))
	// Same op from a different client too.
	s.NoError(s.limiter.Check(ctx, OpRecoverEmail, "10.0.0.2"))
}

func (s *LimiterSuite) TestUnconfiguredOpAllowed() {
	s.NoError(s.limiter.Check(context.Background(), Op("unmetered"), "10.0.0.1"))
}

func (s *LimiterSuite) TestConcurrentRequestsCannotAllPass() {
	// With a 60s cooldown, N simultaneous requests from one client must
	// admit exactly one. The store's conditional update decides the winner.
	const n = 16
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.limiter.Check(ctx, OpRecoverEmail, "10.0.0.9") == nil {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, allowed)
}
