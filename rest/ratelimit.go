package rest

import (
	"sync"

	"golang.org/x/time/rate"
)

// stateLimiter throttles /state polling per player. A zero rate
// disables the limiter entirely.
type stateLimiter struct {
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newStateLimiter(perSecond int) *stateLimiter {
	if perSecond <= 0 {
		return &stateLimiter{}
	}
	return &stateLimiter{
		rate:     rate.Limit(perSecond),
		burst:    perSecond,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (s *stateLimiter) allow(pid string) bool {
	if s.limiters == nil {
		return true
	}
	s.mu.Lock()
	l, ok := s.limiters[pid]
	if !ok {
		l = rate.NewLimiter(s.rate, s.burst)
		s.limiters[pid] = l
	}
	s.mu.Unlock()
	return l.Allow()
}
