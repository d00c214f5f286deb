package blinky

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Errors returned by Start.
var (
	// ErrEmptyPattern is returned when a pattern yields no phases.
	ErrEmptyPattern = errors.New("blinky: pattern has no valid durations")

	// ErrBusy is returned when a sequence is running and restart was not requested.
	ErrBusy = errors.New("blinky: sequence already running")

	// ErrStopped is returned after Stop; the sequencer has no timer to drive a pattern.
	ErrStopped = errors.New("blinky: sequencer stopped")
)

// LED is the output the sequencer drives.
type LED interface {
	Set(on bool)
}

// Sequencer runs one blink pattern at a time.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - The completion callback runs on a timer goroutine, or on the goroutine
//     calling Start or Stop when a running sequence is cancelled.
type Sequencer struct {
	led LED

	mu         sync.Mutex
	active     bool
	stopped    bool
	generation uint64
	timer      *time.Timer
	phases     []time.Duration
	index      int
	on         bool
	onComplete func()
}

// New creates a sequencer driving led.
func New(led LED) *Sequencer {
	return &Sequencer{led: led}
}

// maxPhaseMillis is the longest phase a time.Duration can hold.
const maxPhaseMillis = math.MaxInt64 / int64(time.Millisecond)

// ParsePattern converts pattern text into phase durations. Segments that
// are empty, non-numeric, negative or too long for a time.Duration are
// skipped.
func ParsePattern(pattern string) []time.Duration {
	var phases []time.Duration
	for _, segment := range strings.Split(pattern, ":") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		ms, err := strconv.ParseInt(segment, 10, 64)
		if err != nil || ms < 0 || ms > maxPhaseMillis {
			continue
		}
		phases = append(phases, time.Duration(ms)*time.Millisecond)
	}
	return phases
}

// Start begins a pattern. onComplete may be nil.
//
// Each phase toggles the LED once, starting from off, and completion leaves
// the LED where the last phase put it: on after an odd number of phases,
// off after an even number.
func (s *Sequencer) Start(pattern string, restart bool, onComplete func()) error {
	phases := ParsePattern(pattern)
	if len(phases) == 0 {
		return ErrEmptyPattern
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}

	var cancelled func()
	if s.active {
		if !restart {
			s.mu.Unlock()
			return ErrBusy
		}
		cancelled = s.cancelLocked()
	}

	s.generation++
	s.active = true
	s.phases = phases
	s.index = 0
	s.on = false
	s.onComplete = onComplete
	s.beginPhaseLocked(s.generation)
	s.mu.Unlock()

	if cancelled != nil {
		cancelled()
	}
	return nil
}

// Active reports whether a sequence is running.
func (s *Sequencer) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Stop cancels any running sequence, runs its completion callback and
// switches the LED off. Later calls to Start return ErrStopped.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true

	var cancelled func()
	if s.active {
		cancelled = s.cancelLocked()
	}
	s.mu.Unlock()

	if cancelled != nil {
		cancelled()
	}
}

// cancelLocked ends the running sequence and returns its completion callback.
func (s *Sequencer) cancelLocked() func() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
	s.active = false
	s.on = false
	s.led.Set(false)

	cb := s.onComplete
	s.onComplete = nil
	return cb
}

// beginPhaseLocked toggles the LED and arms the timer for the current phase.
func (s *Sequencer) beginPhaseLocked(generation uint64) {
	s.on = !s.on
	s.led.Set(s.on)
	s.timer = time.AfterFunc(s.phases[s.index], func() {
		s.phaseDone(generation)
	})
}

func (s *Sequencer) phaseDone(generation uint64) {
	s.mu.Lock()
	if !s.active || generation != s.generation {
		s.mu.Unlock()
		return
	}

	s.index++
	if s.index < len(s.phases) {
		s.beginPhaseLocked(generation)
		s.mu.Unlock()
		return
	}

	s.active = false
	s.timer = nil
	cb := s.onComplete
	s.onComplete = nil
	s.mu.Unlock()

	if cb != nil {
		cb()
	}
}
