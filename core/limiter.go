package core

import "sync"

// MaxIterations bounds vendor round trips per orchestration call. Only one
// tool-call round is resolved.
const MaxIterations = 2

// IterationLimiter enforces a maximum number of vendor calls per call.
type IterationLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewIterationLimiter creates a limiter. Values outside 1..MaxIterations
// are clamped to MaxIterations.
func NewIterationLimiter(max int) *IterationLimiter {
	if max <= 0 || max > MaxIterations {
		max = MaxIterations
	}
	return &IterationLimiter{max: max}
}

// Increment records one vendor call and returns the 1-based iteration
// number, or an illegal state error once the limit is exceeded.
func (l *IterationLimiter) Increment() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count >= l.max {
		return l.count, Errorf(ErrIllegalState, "iteration.limit", "exceeded max vendor calls: %d", l.max)
	}
	l.count++

	return l.count, nil
}

// Count returns the number of calls made.
func (l *IterationLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}

// Remaining returns how many calls are left before hitting the limit.
func (l *IterationLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.max - l.count
}
