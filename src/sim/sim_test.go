package sim

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"multilift/src/clock"
	"multilift/src/config"
	"multilift/src/dispatcher"
	"multilift/src/logger"
	"multilift/src/types"
	"multilift/src/waiting"
)

func TestMain(m *testing.M) {
	logger.GetLoggerConfigured(zerolog.Disabled)
	os.Exit(m.Run())
}

func TestControlCounters(t *testing.T) {
	ctl := NewControl(3, 10, 20)

	if !ctl.ShouldGenerateMore() {
		t.Fatal("fresh control should allow generation")
	}
	for i := 1; i <= 3; i++ {
		if got := ctl.NextPassengerID(); got != i {
			t.Errorf("NextPassengerID = %d, expected %d", got, i)
		}
	}
	if ctl.ShouldGenerateMore() {
		t.Error("limit reached, generation should stop")
	}
	if ctl.GeneratedCount() != 3 {
		t.Errorf("GeneratedCount = %d, expected 3", ctl.GeneratedCount())
	}
}

func TestControlLimitCannotDropBelowGenerated(t *testing.T) {
	ctl := NewControl(10, 0, 0)
	ctl.NextPassengerID()
	ctl.NextPassengerID()

	ctl.SetPassengerLimit(1)
	if ctl.PassengerLimit() != 10 {
		t.Errorf("limit below generated count must be ignored")
	}

	ctl.SetPassengerLimit(20)
	if ctl.PassengerLimit() != 20 {
		t.Errorf("raising the limit should work")
	}
}

func TestControlIntervalOrdering(t *testing.T) {
	ctl := NewControl(1, 30, 10)
	minMs, maxMs := ctl.Intervals()
	if maxMs < minMs {
		t.Errorf("max interval %d below min %d", maxMs, minMs)
	}

	ctl.SetIntervals(-5, -10)
	minMs, maxMs = ctl.Intervals()
	if minMs != 0 || maxMs != 0 {
		t.Errorf("negative intervals should clamp to 0, got %d/%d", minMs, maxMs)
	}
}

func TestDrainReturnsOnIdleSystem(t *testing.T) {
	cfg := config.Default()
	cfg.DrainTimeout = 5 * time.Second

	d := dispatcher.New(cfg, waiting.New(cfg.Floors))
	if !Drain(context.Background(), d, nil, cfg) {
		t.Error("an empty, idle system should drain immediately")
	}
}

func TestDrainTimesOutWithStrandedPassengers(t *testing.T) {
	cfg := config.Default()
	cfg.DrainTimeout = 300 * time.Millisecond

	model := waiting.New(cfg.Floors)
	model.Submit(types.NewPassenger(1, 2, 9))
	d := dispatcher.New(cfg, model)

	if Drain(context.Background(), d, nil, cfg) {
		t.Error("drain must time out while passengers are stranded")
	}
}

func TestGeneratorProducesLimitedStream(t *testing.T) {
	cfg := config.Default()
	cfg.Floors = 8
	cfg.ElevatorsCount = 0 // no cars: passengers pile up in the model

	model := waiting.New(cfg.Floors)
	d := dispatcher.New(cfg, model)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go d.Run(ctx, wg)

	clk := clock.New()
	clk.SetSpeed(clock.MaxSpeed)
	ctl := NewControl(5, 1, 2)

	genWg := &sync.WaitGroup{}
	genWg.Add(1)
	go RunGenerator(ctx, genWg, d, ctl, clk, cfg)
	genWg.Wait()

	if ctl.GeneratedCount() != 5 {
		t.Errorf("GeneratedCount = %d, expected 5", ctl.GeneratedCount())
	}

	// All five end up waiting; nobody can serve them.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && d.TotalWaiting() != 5 {
		time.Sleep(time.Millisecond)
	}
	if d.TotalWaiting() != 5 {
		t.Errorf("TotalWaiting = %d, expected 5", d.TotalWaiting())
	}

	cancel()
	wg.Wait()
}
