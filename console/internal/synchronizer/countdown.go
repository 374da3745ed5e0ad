package synchronizer

import (
	"sync"
	"time"
)

// DefaultPeriod is the time between automatic refreshes.
const DefaultPeriod = 10 * time.Second

// Countdown counts whole seconds down to the next automatic refresh. It only
// runs while not paused by the operator, not held, and not filtered.
type Countdown struct {
	mu        sync.Mutex
	period    int
	remaining int
	paused    bool
	filtered  bool
	holds     int
}

func NewCountdown(period time.Duration) *Countdown {
	secs := int(period / time.Second)
	if secs <= 0 {
		secs = int(DefaultPeriod / time.Second)
	}
	return &Countdown{period: secs, remaining: secs}
}

// Step advances the countdown by one second and reports whether it reached
// zero. On zero it starts over from the full period.
func (c *Countdown) Step() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.runningLocked() {
		return false
	}
	c.remaining--
	if c.remaining > 0 {
		return false
	}
	c.remaining = c.period
	return true
}

// Hold stops the countdown until the returned release is called. Holds nest.
// Calling release more than once has no further effect.
func (c *Countdown) Hold() func() {
	c.mu.Lock()
	c.holds++
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.holds--
			c.mu.Unlock()
		})
	}
}

func (c *Countdown) SetPaused(paused bool) {
	c.mu.Lock()
	c.paused = paused
	c.mu.Unlock()
}

func (c *Countdown) SetFiltered(filtered bool) {
	c.mu.Lock()
	c.filtered = filtered
	c.mu.Unlock()
}

// Reset starts the period over.
func (c *Countdown) Reset() {
	c.mu.Lock()
	c.remaining = c.period
	c.mu.Unlock()
}

func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runningLocked()
}

func (c *Countdown) runningLocked() bool {
	return !c.paused && !c.filtered && c.holds == 0
}

// Remaining is the number of seconds until the next refresh.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}
