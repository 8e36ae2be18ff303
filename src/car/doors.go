package car

import (
	"context"
	"time"

	"multilift/src/logger"
	"multilift/src/types"
)

// operateDoorsAndExchange runs one full door cycle at floor: open,
// offload, board in one chosen direction, close. Sleep failures unwind
// the open-door state and bubble up so the control loop can exit.
func (c *Car) operateDoorsAndExchange(ctx context.Context, floor int) error {
	// Double-arrival guard: already here with doors open.
	c.mu.Lock()
	if floor == c.currentFloor && c.status == types.DoorsOpen {
		c.mu.Unlock()
		return nil
	}
	c.status = types.DoorsOpen
	c.mu.Unlock()

	logger.Event(c.actor(), "ARRIVED", "Floor %d", floor)
	logger.Event(c.actor(), "DOOR", "OPEN")
	if err := c.clk.Sleep(ctx, c.cfg.TimeDoors); err != nil {
		return c.unwindDoors(err)
	}

	c.mu.Lock()
	disembarked := c.unloadPassengersLocked(floor)
	c.mu.Unlock()
	if disembarked > 0 {
		logger.Event(c.actor(), "DISEMBARK", "%d passengers", disembarked)
	}

	c.mu.Lock()
	allowed := make(map[types.Direction]bool, 2)
	for dir := range c.hallCalls[floor] {
		allowed[dir] = true
	}
	c.mu.Unlock()

	allowedForBoarding := allowed
	if len(allowedForBoarding) == 0 {
		allowedForBoarding = map[types.Direction]bool{types.DirUp: true, types.DirDown: true}
	}

	boardingDir, boardAny := c.chooseBoardingDirection(floor, allowedForBoarding)

	c.mu.Lock()
	freeSpace := c.capacity - len(c.passengers)
	if freeSpace <= 0 {
		c.status = types.LoadFull
	}
	c.mu.Unlock()

	if boardAny && freeSpace > 0 {
		boarding := c.disp.BoardPassengers(floor, boardingDir, freeSpace)
		if len(boarding) > 0 {
			c.mu.Lock()
			c.passengers = append(c.passengers, boarding...)
			c.mu.Unlock()

			for _, p := range boarding {
				c.AddInternalStop(p.TargetFloor)
			}

			logger.Event(c.actor(), "BOARD", "Boarded: %d, dir=%s, load=%d/%d",
				len(boarding), boardingDir, c.loadSafe(), c.capacity)

			if err := c.clk.Sleep(ctx, c.cfg.TimeBoarding*time.Duration(len(boarding))); err != nil {
				return c.unwindDoors(err)
			}
		}
	}

	c.mu.Lock()
	if set, ok := c.hallCalls[floor]; ok {
		for dir := range allowed {
			delete(set, dir)
		}
		if len(set) == 0 {
			delete(c.hallCalls, floor)
		}
	}
	c.mu.Unlock()

	if err := c.clk.Sleep(ctx, c.cfg.TimeDoors); err != nil {
		return c.unwindDoors(err)
	}
	logger.Event(c.actor(), "DOOR", "CLOSE")

	c.mu.Lock()
	if len(c.passengers) >= c.capacity {
		c.status = types.LoadFull
	} else {
		c.status = types.Moving
	}
	c.mu.Unlock()

	c.tryProcessPendingCalls()

	c.disp.NotifyCarUpdate(c)
	return nil
}

// unwindDoors closes out an interrupted door cycle before the loop exits.
func (c *Car) unwindDoors(err error) error {
	c.mu.Lock()
	if c.status == types.DoorsOpen {
		c.status = types.Idle
	}
	c.mu.Unlock()
	logger.Event(c.actor(), "DOOR", "CLOSE")
	return err
}

func (c *Car) unloadPassengersLocked(floor int) int {
	before := len(c.passengers)
	kept := c.passengers[:0]
	for _, p := range c.passengers {
		if p.TargetFloor != floor {
			kept = append(kept, p)
		}
	}
	for i := len(kept); i < before; i++ {
		c.passengers[i] = nil
	}
	c.passengers = kept
	return before - len(c.passengers)
}

// chooseBoardingDirection picks the one direction to board at floor, or
// none. A car with passengers aboard only tops up in its direction of
// travel; an empty car keeps sweeping before reversing; an idle car takes
// the busier side (tie goes up).
func (c *Car) chooseBoardingDirection(floor int, allowed map[types.Direction]bool) (types.Direction, bool) {
	if len(allowed) == 0 {
		return types.DirIdle, false
	}

	upWaiting := allowed[types.DirUp] && c.disp.HasWaiting(floor, types.DirUp)
	downWaiting := allowed[types.DirDown] && c.disp.HasWaiting(floor, types.DirDown)
	if !upWaiting && !downWaiting {
		return types.DirIdle, false
	}

	c.mu.Lock()
	if len(c.passengers) > 0 {
		dir := c.direction
		c.mu.Unlock()
		if dir == types.DirUp && upWaiting {
			return types.DirUp, true
		}
		if dir == types.DirDown && downWaiting {
			return types.DirDown, true
		}
		return types.DirIdle, false
	}

	dir := c.direction
	var hasStopsInCurrentDir bool
	switch dir {
	case types.DirUp:
		hasStopsInCurrentDir = !c.stopsUp.empty()
	case types.DirDown:
		hasStopsInCurrentDir = !c.stopsDown.empty()
	}
	c.mu.Unlock()

	if dir == types.DirUp {
		if upWaiting {
			return types.DirUp, true
		}
		if hasStopsInCurrentDir {
			// Still sweeping up; don't pick up riders headed down.
			return types.DirIdle, false
		}
		if downWaiting {
			return types.DirDown, true
		}
		return types.DirIdle, false
	}
	if dir == types.DirDown {
		if downWaiting {
			return types.DirDown, true
		}
		if hasStopsInCurrentDir {
			return types.DirIdle, false
		}
		if upWaiting {
			return types.DirUp, true
		}
		return types.DirIdle, false
	}

	upCnt := c.disp.WaitingCount(floor, types.DirUp)
	downCnt := c.disp.WaitingCount(floor, types.DirDown)
	if upWaiting && downWaiting {
		if upCnt >= downCnt {
			return types.DirUp, true
		}
		return types.DirDown, true
	}
	if upWaiting {
		return types.DirUp, true
	}
	return types.DirDown, true
}

// tryProcessPendingCalls re-admits deferred calls after a door cycle:
// drop the stale, push back the still-inadmissible, add the rest.
func (c *Car) tryProcessPendingCalls() {
	for i := 0; i < 8; i++ {
		call, ok := c.pollPending()
		if !ok {
			return
		}

		if !c.disp.HasWaiting(call.Floor, call.Dir) {
			continue
		}

		if !c.CanAcceptHallCall(call) {
			c.offerPending(call)
			return
		}

		c.AddHallCall(call.Floor, call.Dir)
	}
}

// flushPendingIfPossible is the lighter drain point after a move.
func (c *Car) flushPendingIfPossible() {
	if !c.hasPending() {
		return
	}
	if c.loadSafe() >= c.capacity {
		c.mu.Lock()
		c.status = types.LoadFull
		c.mu.Unlock()
		return
	}

	for i := 0; i < 3; i++ {
		call, ok := c.pollPending()
		if !ok {
			return
		}
		if c.CanAcceptHallCall(call) {
			c.AddHallCall(call.Floor, call.Dir)
		}
	}
}
