package car

import (
	"context"
	"sync"
	"time"

	"multilift/src/logger"
	"multilift/src/types"
)

// Visual sub-step tick while crossing a floor.
const moveTick = 40 * time.Millisecond

// Run is the car's control loop: wait for work, commit a direction, move,
// exchange passengers, retry deferred calls. One goroutine per car.
func (c *Car) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	logger.Event(c.actor(), "SYSTEM", "Started at floor %d", c.floorSafe())

	// Wake the condition wait when the context is cancelled.
	stopWake := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		c.cond.Broadcast()
		c.mu.Unlock()
	})
	defer stopWake()

	for ctx.Err() == nil {
		c.mu.Lock()
		for c.stopsUp.empty() && c.stopsDown.empty() && len(c.passengers) == 0 {
			if ctx.Err() != nil {
				c.mu.Unlock()
				logger.Event(c.actor(), "SYSTEM", "Stopped")
				return
			}
			if len(c.reserved) > 0 {
				c.activateReservedLocked()
				if !c.stopsUp.empty() || !c.stopsDown.empty() {
					break
				}
			}
			c.direction = types.DirIdle
			c.status = types.Idle
			c.disp.NotifyCarUpdate(c)
			c.cond.Wait()
		}

		c.updateDirectionLocked()
		target, ok := c.chooseNextTargetLocked()
		if !ok {
			c.updateDirectionLocked()
			c.mu.Unlock()
			continue
		}
		c.mu.Unlock()

		arrived, err := c.moveTo(ctx, target)
		if err != nil {
			break
		}

		c.mu.Lock()
		c.stopsUp.remove(arrived)
		c.stopsDown.remove(arrived)
		c.internalUp.remove(arrived)
		c.internalDown.remove(arrived)
		c.updateDirectionLocked()
		c.mu.Unlock()

		if err := c.operateDoorsAndExchange(ctx, arrived); err != nil {
			break
		}

		c.flushPendingIfPossible()
	}

	logger.Event(c.actor(), "SYSTEM", "Stopped")
}

// moveTo advances floor by floor toward target, re-checking after every
// floor whether an intermediate stop (planned or en-route pickup) wants
// the car.
func (c *Car) moveTo(ctx context.Context, target int) (int, error) {
	c.mu.Lock()
	if target == c.currentFloor {
		c.mu.Unlock()
		return target, nil
	}
	step := 1
	if target < c.currentFloor {
		step = -1
	}
	c.status = types.Moving
	if step > 0 {
		c.direction = types.DirUp
	} else {
		c.direction = types.DirDown
	}
	floorsToTravel := abs(target - c.currentFloor)
	dir := c.direction
	c.mu.Unlock()

	substeps := int(c.cfg.TimeMoveOneFloor / moveTick)
	if substeps < 1 {
		substeps = 1
	}
	sleep := c.cfg.TimeMoveOneFloor / time.Duration(substeps)

	for i := 0; i < floorsToTravel; i++ {
		for s := 0; s < substeps; s++ {
			if err := c.clk.Sleep(ctx, sleep); err != nil {
				return c.floorSafe(), err
			}
			c.setVisualPos(c.VisualFloorPos() + float64(step)/float64(substeps))
		}

		c.mu.Lock()
		c.currentFloor += step
		reached := c.currentFloor
		dir = c.direction
		c.mu.Unlock()
		c.setVisualPos(float64(reached))

		if c.shouldStopAtFloor(reached) {
			return reached, nil
		}

		if c.shouldStopForWaitingAt(reached, dir) {
			c.disp.ClaimHallCallAtFloor(reached, dir, c)
			return reached, nil
		}
	}

	return c.floorSafe(), nil
}

func (c *Car) floorSafe() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentFloor
}

func (c *Car) shouldStopAtFloor(floor int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internalUp.contains(floor) ||
		c.internalDown.contains(floor) ||
		c.stopsUp.contains(floor) ||
		c.stopsDown.contains(floor)
}

// shouldStopForWaitingAt decides an en-route pickup at a floor the car is
// passing: someone must be waiting in the direction of travel, the car
// must have room and stop budget, and a foreign assignee must be moving
// away or far enough that stealing the call helps.
func (c *Car) shouldStopForWaitingAt(floor int, dir types.Direction) bool {
	if !c.cfg.EnroutePickupEnabled {
		return false
	}
	if dir != types.DirUp && dir != types.DirDown {
		return false
	}
	if !c.disp.HasWaiting(floor, dir) {
		return false
	}
	if c.loadSafe() >= c.capacity {
		return false
	}

	s := c.Snapshot()
	if s.PlannedStops >= c.cfg.MaxPlannedStops {
		return false
	}

	assigned := c.disp.AssignedCar(floor, dir)
	if assigned == nil || assigned == c {
		return true
	}

	as := assigned.Snapshot()
	dist := abs(as.CurrentFloor - floor)

	var movingAway bool
	if dir == types.DirUp {
		// To serve UP at this floor the assignee must approach from below.
		movingAway = (as.Direction == types.DirDown && as.CurrentFloor < floor) ||
			(as.Direction == types.DirUp && as.CurrentFloor > floor)
	} else {
		// DOWN: the assignee must approach from above.
		movingAway = (as.Direction == types.DirUp && as.CurrentFloor > floor) ||
			(as.Direction == types.DirDown && as.CurrentFloor < floor)
	}

	if movingAway {
		return true
	}
	return dist >= c.cfg.EnrouteStealMinAssignedDistance
}
