// Package tui renders the running simulation in the terminal and feeds
// keyboard input into the simulated clock: space pauses, +/- change
// speed, q quits.
package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/eiannone/keyboard"

	"multilift/src/car"
	"multilift/src/clock"
	"multilift/src/dispatcher"
	"multilift/src/types"
)

const frameInterval = 500 * time.Millisecond

type TUI struct {
	floors int
	cars   []*car.Car
	disp   *dispatcher.Dispatcher
	clk    *clock.Clock
	cancel context.CancelFunc
}

func New(floors int, cars []*car.Car, disp *dispatcher.Dispatcher, clk *clock.Clock, cancel context.CancelFunc) *TUI {
	return &TUI{floors: floors, cars: cars, disp: disp, clk: clk, cancel: cancel}
}

// Run renders frames until the context ends; a second goroutine watches
// the keyboard.
func (t *TUI) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	if err := keyboard.Open(); err == nil {
		defer keyboard.Close()
		go t.watchKeys(ctx)
	}

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Print(t.frame())
		}
	}
}

func (t *TUI) watchKeys(ctx context.Context) {
	for ctx.Err() == nil {
		ch, key, err := keyboard.GetKey()
		if err != nil {
			return
		}
		switch {
		case key == keyboard.KeySpace:
			t.clk.TogglePause()
		case ch == '+':
			t.clk.SetSpeed(t.clk.Speed() * 2)
		case ch == '-':
			t.clk.SetSpeed(t.clk.Speed() / 2)
		case ch == 'q' || key == keyboard.KeyCtrlC:
			t.cancel()
			return
		}
	}
}

func (t *TUI) frame() string {
	var b strings.Builder
	b.WriteString("\033[2J\033[H")

	for f := t.floors; f >= 1; f-- {
		fmt.Fprintf(&b, "%3d |", f)
		for _, c := range t.cars {
			pos := c.VisualFloorPos()
			if int(pos+0.5) == f {
				s := c.Snapshot()
				fmt.Fprintf(&b, " [%d:%s %d/%d]%s", c.ID(), shortStatus(s.Status), s.Load, s.Capacity, onboardIDs(c))
			} else {
				b.WriteString("           ")
			}
		}
		up := t.disp.WaitingCount(f, types.DirUp)
		down := t.disp.WaitingCount(f, types.DirDown)
		if up > 0 || down > 0 {
			fmt.Fprintf(&b, "  waiting: %d up, %d down %s", up, down, waitingIDs(t.disp, f))
		}
		b.WriteByte('\n')
	}

	state := "running"
	if t.clk.Paused() {
		state = "PAUSED"
	}
	fmt.Fprintf(&b, "\nspeed x%.1f (%s)  waiting total: %d\n", t.clk.Speed(), state, t.disp.TotalWaiting())
	b.WriteString("keys: space=pause  +/-=speed  q=quit\n")
	return b.String()
}

// onboardIDs shows the riders in a car and where they are headed.
func onboardIDs(c *car.Car) string {
	riders := c.PassengersInside(3)
	if len(riders) == 0 {
		return ""
	}
	parts := make([]string, 0, len(riders))
	for _, p := range riders {
		parts = append(parts, fmt.Sprintf("P%d>%d", p.ID, p.TargetFloor))
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// waitingIDs shows the first few queued passengers on a floor, using the
// model's best-effort peek.
func waitingIDs(d *dispatcher.Dispatcher, floor int) string {
	var ids []string
	for _, dir := range []types.Direction{types.DirUp, types.DirDown} {
		for _, p := range d.PeekWaiting(floor, dir, 3) {
			ids = append(ids, fmt.Sprintf("P%d", p.ID))
		}
	}
	if len(ids) == 0 {
		return ""
	}
	return "[" + strings.Join(ids, " ") + "]"
}

func shortStatus(s types.ElevatorStatus) string {
	switch s {
	case types.Moving:
		return "MV"
	case types.DoorsOpen:
		return "DO"
	case types.LoadFull:
		return "FL"
	default:
		return "ID"
	}
}
