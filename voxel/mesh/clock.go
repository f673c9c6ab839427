package mesh

import (
	"sync"
	"time"
)

// Clock reports monotonic time since an arbitrary epoch.
type Clock interface {
	Now() time.Duration
}

type monotonicClock struct {
	start time.Time
}

// NewMonotonicClock returns a Clock backed by the runtime's monotonic reading.
func NewMonotonicClock() Clock {
	return &monotonicClock{start: time.Now()}
}

func (c *monotonicClock) Now() time.Duration {
	return time.Since(c.start)
}

// ManualClock only moves when told to. Useful for stepping animations
// deterministically.
type ManualClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}
