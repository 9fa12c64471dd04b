package ledger

import (
	"sync/atomic"
	"time"
)

// Clock supplies the ledger's notion of the current unix time in seconds.
type Clock interface {
	Now() int64
}

// SystemClock reads wall-clock time.
type SystemClock struct{}

func (SystemClock) Now() int64 { return time.Now().Unix() }

// ManualClock is a settable clock for tests and simulations. It is safe for
// concurrent use and may be shared by several ledgers.
type ManualClock struct {
	now atomic.Int64
}

// NewManualClock returns a clock frozen at unix time now.
func NewManualClock(now int64) *ManualClock {
	c := &ManualClock{}
	c.now.Store(now)
	return c
}

func (c *ManualClock) Now() int64 { return c.now.Load() }

// Set moves the clock to now.
func (c *ManualClock) Set(now int64) { c.now.Store(now) }

// Advance moves the clock forward by seconds and returns the new time.
func (c *ManualClock) Advance(seconds int64) int64 { return c.now.Add(seconds) }
