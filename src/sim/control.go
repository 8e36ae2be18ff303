// Package sim drives the simulation around the core: the passenger
// generator, its live-tunable settings, and the drain that lets the
// program finish cleanly.
package sim

import (
	"sync"
	"sync/atomic"
)

// Control holds the generator settings that can be changed while the
// simulation runs.
type Control struct {
	generated atomic.Int32

	mu             sync.Mutex
	passengerLimit int
	intervalMinMs  int
	intervalMaxMs  int
}

func NewControl(passengerLimit, intervalMinMs, intervalMaxMs int) *Control {
	if passengerLimit < 0 {
		passengerLimit = 0
	}
	if intervalMinMs < 0 {
		intervalMinMs = 0
	}
	if intervalMaxMs < intervalMinMs {
		intervalMaxMs = intervalMinMs
	}
	return &Control{
		passengerLimit: passengerLimit,
		intervalMinMs:  intervalMinMs,
		intervalMaxMs:  intervalMaxMs,
	}
}

func (c *Control) PassengerLimit() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.passengerLimit
}

// SetPassengerLimit raises or lowers the limit; a limit at or below the
// number already generated is ignored.
func (c *Control) SetPassengerLimit(limit int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit <= int(c.generated.Load()) {
		return
	}
	c.passengerLimit = limit
}

func (c *Control) GeneratedCount() int {
	return int(c.generated.Load())
}

func (c *Control) NextPassengerID() int {
	return int(c.generated.Add(1))
}

func (c *Control) ShouldGenerateMore() bool {
	return c.GeneratedCount() < c.PassengerLimit()
}

func (c *Control) Intervals() (minMs, maxMs int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intervalMinMs, c.intervalMaxMs
}

func (c *Control) SetIntervals(minMs, maxMs int) {
	if minMs < 0 {
		minMs = 0
	}
	if maxMs < minMs {
		maxMs = minMs
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intervalMinMs = minMs
	c.intervalMaxMs = maxMs
}
