// Package clock provides the simulated time every expiry and throttle
// computation runs on. Time only moves when a test advances it.
package clock

import (
	"sync"
	"time"
)

// DefaultStart is the epoch a fresh simulator starts at (2023-11-14T22:13:20Z).
const DefaultStart int64 = 1700000000

// Clock is the time source read by the stores.
type Clock interface {
	Now() time.Time
}

// Sim is a manually advanced clock. It is safe for concurrent use.
type Sim struct {
	mu      sync.RWMutex
	start   time.Time
	current time.Time
}

// NewSim returns a clock standing at the given unix second.
func NewSim(startUnix int64) *Sim {
	t := time.Unix(startUnix, 0).UTC()
	return &Sim{start: t, current: t}
}

func (c *Sim) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Unix returns the current time in seconds, the unit of every platform timestamp.
func (c *Sim) Unix() int64 {
	return c.Now().Unix()
}

// Advance moves the clock forward. Negative durations are ignored.
func (c *Sim) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.current = c.current.Add(d)
	}
	return c.current
}

// Set jumps to t. Moving backwards is allowed so tests can model skew.
func (c *Sim) Set(t time.Time) {
	c.mu.Lock()
	c.current = t.UTC()
	c.mu.Unlock()
}

// Reset returns the clock to its start time.
func (c *Sim) Reset() {
	c.mu.Lock()
	c.current = c.start
	c.mu.Unlock()
}

// Seconds reads a timestamp in platform seconds from any Clock.
func Seconds(c Clock) int64 {
	return c.Now().Unix()
}
