package sim

import (
	"context"
	"time"

	"multilift/src/car"
	"multilift/src/config"
	"multilift/src/dispatcher"
	"multilift/src/logger"
)

const drainPollInterval = 200 * time.Millisecond

// Drain blocks until every in-flight passenger and call has been served
// (all cars truly idle, dispatcher idle), the drain timeout passes, or
// the context is cancelled. Returns true only on a clean drain.
func Drain(ctx context.Context, d *dispatcher.Dispatcher, cars []*car.Car, cfg *config.Config) bool {
	start := time.Now()

	for {
		allIdle := true
		for _, c := range cars {
			if !c.IsTrulyIdle() {
				allIdle = false
				break
			}
		}

		if allIdle && d.IsIdle() {
			return true
		}

		if time.Since(start) > cfg.DrainTimeout {
			logger.Event("System", "SYSTEM", "Drain timeout reached (%s). Forcing shutdown.", cfg.DrainTimeout)
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(drainPollInterval):
		}
	}
}
