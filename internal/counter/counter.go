// Package counter tallies commands executed in a session.
package counter

import "sync"

// Counter is a tally safe for concurrent use. It never goes below zero.
type Counter struct {
	mu sync.Mutex
	n  int
}

// Increase adds one and returns the new value.
func (c *Counter) Increase() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}

// Decrease removes one, stopping at zero, and returns the new value.
func (c *Counter) Decrease() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n > 0 {
		c.n--
	}
	return c.n
}

// Value returns the current tally.
func (c *Counter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
