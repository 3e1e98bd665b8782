// Package testutil holds helpers shared by the package tests: a
// deterministic wall clock and golden-file assertions.
package testutil

import (
	"sync"
	"time"
)

// Epoch is where NewStepClock starts and where Reset rewinds to: a Saturday
// afternoon, UTC. The first Now after either returns Epoch plus one step.
var Epoch = time.Date(2025, 9, 6, 17, 0, 0, 0, time.UTC)

// StepClock is a monotonic test clock that advances by a fixed step on
// every reading, so timestamps written in one test are distinct and
// reproducible.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	now   time.Time
}

// NewStepClock returns a clock that starts at Epoch and advances one second
// per call to Now.
func NewStepClock() *StepClock {
	return NewStepClockAt(Epoch, time.Second)
}

// NewStepClockAt returns a clock whose first Now is start+step.
func NewStepClockAt(start time.Time, step time.Duration) *StepClock {
	return &StepClock{start: start, step: step, now: start}
}

// Now advances the clock and returns the new time. Its signature matches
// the clock hooks taken by ledger.WithClock and RootOptions.Now.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// Current returns the last reading without advancing.
func (c *StepClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset rewinds the clock to its start.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}
