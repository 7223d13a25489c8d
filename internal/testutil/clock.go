// Package testutil holds deterministic fixtures shared by package tests.
package testutil

import (
	"sync"
	"time"
)

// Epoch is the first instant returned by a new Clock.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Clock is a wall clock for tests that advances by a fixed step on every
// call to Now, so recorded timestamps are reproducible.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// NewClock creates a clock starting at Epoch. A non-positive step defaults
// to one second.
func NewClock(step time.Duration) *Clock {
	if step <= 0 {
		step = time.Second
	}
	return &Clock{next: Epoch, step: step}
}

// Now returns the current instant and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.next
	c.next = c.next.Add(c.step)
	return t
}

// Peek returns the instant the next call to Now will return.
func (c *Clock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}

// Reset rewinds the clock to Epoch.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = Epoch
}
