package throttle

import "time"

// Limiter lets an event through only when at least Interval has passed
// since the last event it let through. It is not safe for concurrent use.
type Limiter struct {
	interval time.Duration
	last     time.Time
	emitted  bool
}

func New(interval time.Duration) *Limiter {
	return &Limiter{interval: interval}
}

// Allow reports whether an event at now may be emitted and, if so, records
// it as the last emission.
func (l *Limiter) Allow(now time.Time) bool {
	if l == nil || l.interval <= 0 {
		return true
	}
	if l.emitted && now.Sub(l.last) < l.interval {
		return false
	}
	l.last = now
	l.emitted = true
	return true
}

// Reset forgets the last emission so the next event passes.
func (l *Limiter) Reset() {
	if l == nil {
		return
	}
	l.emitted = false
	l.last = time.Time{}
}

func (l *Limiter) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}
