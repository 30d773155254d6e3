package gesture

import "sync"

// Counts is a point-in-time copy of the counter state.
type Counts struct {
	Left    uint64 `json:"left"`
	Right   uint64 `json:"right"`
	Present uint64 `json:"present"`
}

// Counter aggregates gesture events. Present is derived: a right crossing
// increments it, a left crossing decrements it but never below zero.
// It is safe for concurrent use.
type Counter struct {
	mu     sync.Mutex
	counts Counts
}

// NewCounter returns a zeroed counter.
func NewCounter() *Counter {
	return &Counter{}
}

// Update applies one event. Codes other than Left and Right are ignored.
func (c *Counter) Update(code Code) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch code {
	case Left:
		c.counts.Left++
		if c.counts.Present > 0 {
			c.counts.Present--
		}
	case Right:
		c.counts.Right++
		c.counts.Present++
	}
}

// Snapshot returns a consistent copy of all three counts.
func (c *Counter) Snapshot() Counts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts
}

// Reset sets every count back to zero.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = Counts{}
}
