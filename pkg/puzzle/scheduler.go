package puzzle

import "time"

// Scheduler runs delayed callbacks on the host's tick. It owns no goroutines:
// time only moves when Advance is called, so callbacks run on the same
// logical thread as input events.
//
// Each owner has at most one pending callback. Scheduling again for the same
// owner replaces the pending one.
type Scheduler struct {
	now     time.Duration
	seq     uint64
	pending map[string]*timer
}

type timer struct {
	due time.Duration
	seq uint64
	fn  func()
}

// NewScheduler creates a scheduler at time zero
func NewScheduler() *Scheduler {
	return &Scheduler{pending: make(map[string]*timer)}
}

// Seconds converts a configured delay in seconds to a duration
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Now returns the scheduler clock
func (s *Scheduler) Now() time.Duration {
	return s.now
}

// Schedule arranges for fn to run once delay has elapsed. A previous pending
// callback of the same owner is cancelled.
func (s *Scheduler) Schedule(owner string, delay time.Duration, fn func()) {
	if delay < 0 {
		delay = 0
	}
	s.seq++
	s.pending[owner] = &timer{due: s.now + delay, seq: s.seq, fn: fn}
}

// Cancel drops the pending callback of owner, reporting whether one existed
func (s *Scheduler) Cancel(owner string) bool {
	if _, ok := s.pending[owner]; !ok {
		return false
	}
	delete(s.pending, owner)
	return true
}

// Pending reports whether owner has a callback waiting
func (s *Scheduler) Pending(owner string) bool {
	_, ok := s.pending[owner]
	return ok
}

// Len returns the number of pending callbacks
func (s *Scheduler) Len() int {
	return len(s.pending)
}

// Advance moves the clock forward by dt and runs every callback that came due,
// earliest first. Callbacks may schedule or cancel; anything that becomes due
// within the same window also runs. Returns the number of callbacks run.
func (s *Scheduler) Advance(dt time.Duration) int {
	if dt > 0 {
		s.now += dt
	}
	fired := 0
	for {
		owner, t := s.nextDue()
		if t == nil {
			return fired
		}
		delete(s.pending, owner)
		t.fn()
		fired++
	}
}

func (s *Scheduler) nextDue() (string, *timer) {
	var (
		owner string
		next  *timer
	)
	for o, t := range s.pending {
		if t.due > s.now {
			continue
		}
		if next == nil || t.due < next.due || (t.due == next.due && t.seq < next.seq) {
			owner, next = o, t
		}
	}
	return owner, next
}
