// Package timing measures elapsed wall-clock time around a forward call.
package timing

import (
	"time"
)

// ElapsedReporter receives the duration measured by a Stopwatch.
type ElapsedReporter interface {
	Elapsed(d time.Duration)
}

// Stopwatch is tolerant of misuse: starting while running keeps the original
// start, stopping while idle does nothing.
type Stopwatch struct {
	now      func() time.Time
	reporter ElapsedReporter
	started  time.Time
	running  bool
}

// Option configures a Stopwatch.
type Option func(*Stopwatch)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Stopwatch) { s.now = now }
}

// New returns an idle stopwatch reporting to r. r may be nil.
func New(r ElapsedReporter, opts ...Option) *Stopwatch {
	s := &Stopwatch{now: time.Now, reporter: r}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSafe starts the stopwatch unless it is already running.
func (s *Stopwatch) StartSafe() {
	if s.running {
		return
	}
	s.started = s.now()
	s.running = true
}

// StopSafe stops a running stopwatch and reports the elapsed time.
// The bool is false when the stopwatch was not running.
func (s *Stopwatch) StopSafe() (time.Duration, bool) {
	if !s.running {
		return 0, false
	}
	s.running = false
	elapsed := s.now().Sub(s.started)
	if elapsed < 0 {
		elapsed = 0
	}
	if s.reporter != nil {
		s.reporter.Elapsed(elapsed)
	}
	return elapsed, true
}

// Running reports whether the stopwatch is measuring.
func (s *Stopwatch) Running() bool {
	return s.running
}
