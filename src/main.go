package main

import (
	"context"
	"flag"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xyproto/randomstring"

	"multilift/src/car"
	"multilift/src/clock"
	"multilift/src/config"
	"multilift/src/dispatcher"
	"multilift/src/logger"
	"multilift/src/sim"
	"multilift/src/tui"
	"multilift/src/waiting"
)

func main() {
	noGui := flag.Bool("nogui", false, "disable the terminal visualizer")
	configPath := flag.String("config", "multilift.yaml", "path to the YAML config file")
	flag.Parse()

	log := logger.GetLoggerConfigured(zerolog.InfoLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	runID := randomstring.EnglishFrequencyString(8)
	logger.Event("System", "SYSTEM", "Boot run=%s floors=%d elevators=%d capacity=%d",
		runID, cfg.Floors, cfg.ElevatorsCount, cfg.ElevatorCapacity)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.New()
	model := waiting.New(cfg.Floors)
	disp := dispatcher.New(cfg, model)

	cars := make([]*car.Car, 0, cfg.ElevatorsCount)
	for i := 1; i <= cfg.ElevatorsCount; i++ {
		c := car.New(i, 1, cfg.ElevatorCapacity, cfg, clk, disp)
		cars = append(cars, c)
		disp.RegisterCar(c)
	}

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go disp.Run(ctx, wg)
	for _, c := range cars {
		wg.Add(1)
		go c.Run(ctx, wg)
	}

	if !*noGui {
		wg.Add(1)
		go tui.New(cfg.Floors, cars, disp, clk, cancel).Run(ctx, wg)
	}

	ctl := sim.NewControl(cfg.PassengerLimit,
		int(cfg.RequestIntervalMin.Milliseconds()),
		int(cfg.RequestIntervalMax.Milliseconds()))

	genWg := &sync.WaitGroup{}
	genWg.Add(1)
	go sim.RunGenerator(ctx, genWg, disp, ctl, clk, cfg)
	genWg.Wait()

	sim.Drain(ctx, disp, cars, cfg)

	cancel()
	wg.Wait()

	logger.Event("System", "SYSTEM", "Simulation finished: %d passengers served", ctl.GeneratedCount())
}
