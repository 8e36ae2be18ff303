// Package clock provides the simulated wall clock. Every sleep in the
// simulation goes through it, so the whole system can be sped up, slowed
// down or paused live without touching the control logic.
package clock

import (
	"context"
	"math"
	"sync"
	"time"
)

const (
	MinSpeed = 0.1
	MaxSpeed = 30.0

	// How often a paused sleeper re-checks the pause flag.
	pausePollInterval = 50 * time.Millisecond
)

type Clock struct {
	mu     sync.Mutex
	speed  float64
	paused bool
}

func New() *Clock {
	return &Clock{speed: 1.0}
}

func (c *Clock) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// SetSpeed clamps to [MinSpeed, MaxSpeed]; NaN and Inf are ignored.
func (c *Clock) SetSpeed(speed float64) {
	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = math.Max(MinSpeed, math.Min(MaxSpeed, speed))
}

func (c *Clock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *Clock) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = paused
}

func (c *Clock) TogglePause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = !c.paused
}

// Sleep blocks for base scaled by the current speed, blocking further
// while the clock is paused. Returns ctx.Err() when cancelled mid-sleep.
func (c *Clock) Sleep(ctx context.Context, base time.Duration) error {
	if base <= 0 {
		return nil
	}

	for c.Paused() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pausePollInterval):
		}
	}

	scaled := time.Duration(float64(base) / c.Speed())
	if scaled < time.Millisecond {
		scaled = time.Millisecond
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(scaled):
		return nil
	}
}
