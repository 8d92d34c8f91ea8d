package engine

import (
	"sync"
	"time"
)

// Scheduler throttles visible recomputation to at most one run per tick,
// the cooperative generalization of an animation-frame callback.
// Requests arriving between ticks are coalesced; only the latest state
// is recomputed. Tests drive it manually through Tick; hosts run the
// timer loop.
type Scheduler struct {
	interval time.Duration
	fn       func()

	mu        sync.Mutex
	requested bool
	running   bool
	stop      chan struct{}
	done      chan struct{}
}

// NewScheduler creates a scheduler invoking fn at most once per
// interval. A zero interval defaults to ~60 ticks per second.
func NewScheduler(interval time.Duration, fn func()) *Scheduler {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &Scheduler{
		interval: interval,
		fn:       fn,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Request marks that state changed and a recompute is wanted on the next
// tick. Multiple requests within one tick collapse into a single run.
func (s *Scheduler) Request() {
	s.mu.Lock()
	s.requested = true
	s.mu.Unlock()
}

// Tick runs the callback now if a recompute was requested. Returns true
// if the callback ran. Intended for tests and single-stepped hosts.
func (s *Scheduler) Tick() bool {
	s.mu.Lock()
	run := s.requested
	s.requested = false
	s.mu.Unlock()
	if run {
		s.fn()
	}
	return run
}

// Run loops until Stop, ticking at the configured interval.
func (s *Scheduler) Run() {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Stop terminates the Run loop and waits for it to exit. Safe to call
// when Run was never started.
func (s *Scheduler) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		<-s.done
	}
}
