package sim

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"multilift/src/clock"
	"multilift/src/config"
	"multilift/src/dispatcher"
	"multilift/src/logger"
	"multilift/src/types"
)

// RunGenerator emits random passengers (from != to, uniform floors) at
// random intervals on the simulated clock until the limit is reached or
// the context is cancelled.
func RunGenerator(ctx context.Context, wg *sync.WaitGroup, d *dispatcher.Dispatcher, ctl *Control, clk *clock.Clock, cfg *config.Config) {
	defer wg.Done()

	for ctx.Err() == nil && ctl.ShouldGenerateMore() {
		id := ctl.NextPassengerID()

		from := rand.Intn(cfg.Floors) + 1
		to := from
		for to == from {
			to = rand.Intn(cfg.Floors) + 1
		}

		d.SubmitRequest(types.NewPassenger(id, from, to))

		minMs, maxMs := ctl.Intervals()
		sleep := time.Duration(minMs) * time.Millisecond
		if maxMs > minMs {
			sleep += time.Duration(rand.Intn(maxMs-minMs+1)) * time.Millisecond
		}
		if err := clk.Sleep(ctx, sleep); err != nil {
			break
		}
	}

	logger.Event("Generator", "SYSTEM", "Generated %d passengers. No more new requests.", ctl.GeneratedCount())
}
