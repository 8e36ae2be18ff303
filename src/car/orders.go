package car

import "multilift/src/types"

// updateDirectionLocked keeps the collective-control sweep: an idle car
// turns toward the nearest pending stop (tie goes up); a committed car
// flips only when its side of the stop list is exhausted.
func (c *Car) updateDirectionLocked() {
	if c.direction == types.DirIdle {
		up, upOK := c.stopsUp.ceiling(c.currentFloor)
		if !upOK {
			up, upOK = c.stopsUp.first()
		}
		down, downOK := c.stopsDown.floor(c.currentFloor)
		if !downOK {
			down, downOK = c.stopsDown.last()
		}

		switch {
		case !upOK && !downOK:
			c.direction = types.DirIdle
		case !upOK:
			c.direction = types.DirDown
		case !downOK:
			c.direction = types.DirUp
		default:
			distUp := abs(up - c.currentFloor)
			distDown := abs(c.currentFloor - down)
			if distUp <= distDown {
				c.direction = types.DirUp
			} else {
				c.direction = types.DirDown
			}
		}
		return
	}

	if c.direction == types.DirUp && c.stopsUp.empty() && !c.stopsDown.empty() {
		c.direction = types.DirDown
	} else if c.direction == types.DirDown && c.stopsDown.empty() && !c.stopsUp.empty() {
		c.direction = types.DirUp
	}
}

// chooseNextTargetLocked prefers internal stops in the direction of
// travel, wrapping to the far side when that direction is exhausted, then
// falls back to hall stops with the same rule. An idle car takes the
// closer of the nearest internal or hall target.
func (c *Car) chooseNextTargetLocked() (int, bool) {
	if c.direction == types.DirUp {
		if t, ok := c.internalUp.ceiling(c.currentFloor); ok {
			return t, true
		}
		if t, ok := c.internalUp.first(); ok {
			return t, true
		}
		if h, ok := c.stopsUp.ceiling(c.currentFloor); ok {
			return h, true
		}
		return c.stopsUp.first()
	}

	if c.direction == types.DirDown {
		if t, ok := c.internalDown.floor(c.currentFloor); ok {
			return t, true
		}
		if t, ok := c.internalDown.last(); ok {
			return t, true
		}
		if h, ok := c.stopsDown.floor(c.currentFloor); ok {
			return h, true
		}
		return c.stopsDown.last()
	}

	// IDLE: the closer of the nearest internal target and the nearest hall
	// stop (internal wins a tie).
	iu, iuOK := c.internalUp.ceiling(c.currentFloor)
	if !iuOK {
		iu, iuOK = c.internalUp.first()
	}
	id, idOK := c.internalDown.floor(c.currentFloor)
	if !idOK {
		id, idOK = c.internalDown.last()
	}
	it, itOK := closerOf(c.currentFloor, iu, iuOK, id, idOK)

	up, upOK := c.stopsUp.ceiling(c.currentFloor)
	if !upOK {
		up, upOK = c.stopsUp.first()
	}
	down, downOK := c.stopsDown.floor(c.currentFloor)
	if !downOK {
		down, downOK = c.stopsDown.last()
	}
	ht, htOK := closerOf(c.currentFloor, up, upOK, down, downOK)
	return closerOf(c.currentFloor, it, itOK, ht, htOK)
}

func closerOf(from, a int, aOK bool, b int, bOK bool) (int, bool) {
	switch {
	case !aOK && !bOK:
		return 0, false
	case !aOK:
		return b, true
	case !bOK:
		return a, true
	}
	if abs(a-from) <= abs(from-b) {
		return a, true
	}
	return b, true
}

// activateReservedLocked merges soft commitments into the stop list once
// the car has emptied out, discarding any whose passengers gave up.
func (c *Car) activateReservedLocked() {
	if len(c.reserved) == 0 || len(c.passengers) > 0 {
		return
	}

	for call := range c.reserved {
		delete(c.reserved, call)
		if !c.disp.HasWaiting(call.Floor, call.Dir) {
			continue
		}
		c.commitHallDirLocked(call.Floor, call.Dir)
		c.addStopLocked(call.Floor)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
