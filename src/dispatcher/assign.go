package dispatcher

import (
	"fmt"
	"time"

	"multilift/src/car"
	"multilift/src/logger"
	"multilift/src/types"
)

type pickMode int

const (
	pickNone pickMode = iota
	pickNormal
	pickReservedReverseSoon
	pickReserve
)

func (m pickMode) String() string {
	switch m {
	case pickNormal:
		return "NORMAL"
	case pickReservedReverseSoon:
		return "RESERVED_REVERSE_SOON"
	case pickReserve:
		return "RESERVE"
	default:
		return "NONE"
	}
}

type assignResult struct {
	car  *car.Car
	mode pickMode

	full       int
	wrongDir   int
	outOfRoute int
	stopLimit  int
	doorsBusy  int
}

func (r assignResult) reasonSummary() string {
	return fmt.Sprintf("(full=%d, wrongDir=%d, outOfRoute=%d, stopLimit=%d, doorsBusy=%d)",
		r.full, r.wrongDir, r.outOfRoute, r.stopLimit, r.doorsBusy)
}

// dispatchPendingCalls walks a snapshot of the pending calls and tries to
// give each an owner, re-checking existing assignments on the way.
func (d *Dispatcher) dispatchPendingCalls() {
	for _, call := range d.pendingSnapshot() {
		// Nobody waiting anymore (riders boarded elsewhere): retire the
		// call the way a served hall button goes dark.
		if !d.HasWaiting(call.Floor, call.Dir) {
			d.mu.Lock()
			delete(d.pending, call)
			delete(d.assigned, call)
			delete(d.lastNoElevLog, call)
			d.mu.Unlock()
			continue
		}

		d.mu.Lock()
		assigned := d.assigned[call]
		d.mu.Unlock()

		if assigned != nil {
			if assigned.CanContinueServingAssignedCall(call) {
				if d.shouldReassign(call, assigned) {
					// Release and fall through to pick a better car.
					d.mu.Lock()
					delete(d.assigned, call)
					d.lastReassign[call] = time.Now()
					d.mu.Unlock()
					assigned.CancelHallCall(call.Floor, call.Dir)
				} else {
					continue
				}
			} else {
				// The car became unsuitable (full, stop limit, ...): pull
				// the call off its route so it makes no ghost stops.
				d.mu.Lock()
				delete(d.assigned, call)
				d.mu.Unlock()
				assigned.CancelHallCall(call.Floor, call.Dir)
			}
		}

		pick := d.findBestElevator(call)
		if pick.car == nil {
			d.mu.Lock()
			last, seen := d.lastNoElevLog[call]
			throttled := seen && time.Since(last) < d.cfg.NoElevatorLogCooldown
			if !throttled {
				d.lastNoElevLog[call] = time.Now()
			}
			d.mu.Unlock()
			if !throttled {
				logger.Event(actor, "ASSIGN", "%s - NO_ELEVATOR %s", call, pick.reasonSummary())
			}
			continue
		}

		sBefore := pick.car.Snapshot()

		var acceptedNow bool
		if pick.mode == pickReservedReverseSoon {
			acceptedNow = pick.car.TryReserveHallCall(call)
		} else {
			acceptedNow = pick.car.TryAddHallCall(call.Floor, call.Dir)
		}
		if !acceptedNow {
			// Race or overflow: leave the call pending and let the car
			// retry it after its next door cycle.
			logger.Event(actor, "ASSIGN", "%s -> Elevator-%d (at %d, going %s, load=%d/%d, stops=%d) - REJECTED: %s",
				call, pick.car.ID(), sBefore.CurrentFloor, sBefore.Direction,
				sBefore.Load, sBefore.Capacity, sBefore.PlannedStops, types.FullCapacity)
			pick.car.DeferHallCall(call)
			continue
		}

		d.mu.Lock()
		d.assigned[call] = pick.car
		delete(d.lastNoElevLog, call)
		d.mu.Unlock()

		s := pick.car.Snapshot()
		logger.Event(actor, "ASSIGN", "%s -> Elevator-%d (at %d, going %s, load=%d/%d, stops=%d, pick=%s)",
			call, s.ID, s.CurrentFloor, s.Direction, s.Load, s.Capacity, s.PlannedStops, pick.mode)
	}
}

// findBestElevator scores the fleet in three passes: cars that accept
// outright, then empty cars about to reverse (reservation with a heavy
// penalty), then any empty standing car as a last-resort reserve.
func (d *Dispatcher) findBestElevator(call types.HallCall) assignResult {
	result := assignResult{mode: pickNone}

	var best *car.Car
	minCost := int(^uint(0) >> 1)

	for _, e := range d.cars {
		reason := e.CanAcceptHallCallReason(call)
		if reason == types.AcceptedReserved {
			// Considered on the second pass with its own penalty.
			continue
		}
		if reason != types.Accepted {
			switch reason {
			case types.FullCapacity:
				result.full++
			case types.WrongDirection:
				result.wrongDir++
			case types.OutOfRoute:
				result.outOfRoute++
			case types.TooManyStops:
				result.stopLimit++
			case types.DoorsBusy:
				result.doorsBusy++
			}
			continue
		}

		s := e.Snapshot()
		assignedCount := d.assignedCountFor(e)
		cost := d.strategy.Cost(s, call) + assignedCount*6
		if d.strategy.OnTheWay(s, call) {
			cost -= 3
		}

		if cost < minCost {
			minCost = cost
			best = e
		} else if cost == minCost && best != nil {
			// Tie-break: fewer assignments, then fewer planned stops,
			// then lower load.
			aBest := d.assignedCountFor(best)
			if assignedCount < aBest {
				best = e
			} else if assignedCount == aBest {
				sb := best.Snapshot()
				if s.PlannedStops < sb.PlannedStops {
					best = e
				} else if s.PlannedStops == sb.PlannedStops && s.Load < sb.Load {
					best = e
				}
			}
		}
	}

	if best != nil {
		result.car = best
		result.mode = pickNormal
		return result
	}

	var bestReserved *car.Car
	minReservedCost := int(^uint(0) >> 1)
	for _, e := range d.cars {
		if e.CanAcceptHallCallReason(call) != types.AcceptedReserved {
			continue
		}
		s := e.Snapshot()
		if s.Load >= s.Capacity {
			continue
		}
		if s.PlannedStops >= d.cfg.MaxPlannedStops {
			continue
		}
		if s.Status == types.DoorsOpen {
			result.doorsBusy++
			continue
		}

		cost := d.strategy.Cost(s, call) + 25 + d.assignedCountFor(e)*6
		if cost < minReservedCost {
			minReservedCost = cost
			bestReserved = e
		}
	}
	if bestReserved != nil {
		result.car = bestReserved
		result.mode = pickReservedReverseSoon
		return result
	}

	var bestReserve *car.Car
	minReserveCost := int(^uint(0) >> 1)
	for _, e := range d.cars {
		s := e.Snapshot()
		if s.Load != 0 || s.PlannedStops != 0 || s.Status == types.DoorsOpen {
			continue
		}

		distance := abs(s.CurrentFloor - call.Floor)
		cost := distance*6 + d.assignedCountFor(e)*6
		if cost < minReserveCost {
			minReserveCost = cost
			bestReserve = e
		}
	}
	if bestReserve != nil {
		result.car = bestReserve
		result.mode = pickReserve
	}
	return result
}

// shouldReassign applies the hysteresis rules that keep assignments from
// churning: cooled down, not yet hard-committed, not about to be served,
// and a clearly better candidate exists.
func (d *Dispatcher) shouldReassign(call types.HallCall, currentlyAssigned *car.Car) bool {
	if currentlyAssigned == nil {
		return false
	}

	d.mu.Lock()
	last, seen := d.lastReassign[call]
	d.mu.Unlock()
	if seen && time.Since(last) < d.cfg.CallReassignCooldown {
		return false
	}

	if currentlyAssigned.IsCommittedToHallCall(call) {
		return false
	}

	sa := currentlyAssigned.Snapshot()
	if abs(sa.CurrentFloor-call.Floor) <= 1 {
		return false
	}

	best := d.findBestElevator(call)
	if best.car == nil || best.car == currentlyAssigned {
		return false
	}

	// Only move the call to a car that is actually on the way or free.
	sb := best.car.Snapshot()
	if sb.Direction != types.DirIdle && !d.strategy.OnTheWay(sb, call) {
		return false
	}

	costAssigned := d.effectiveCost(sa, call, d.assignedCountFor(currentlyAssigned))
	costBest := d.effectiveCost(sb, call, d.assignedCountFor(best.car))

	return costAssigned-costBest >= d.cfg.CallReassignMinImprovement
}

// effectiveCost matches findBestElevator's scoring, including the
// assignment-count and on-the-way adjustments.
func (d *Dispatcher) effectiveCost(s types.Snapshot, call types.HallCall, assignedCount int) int {
	cost := d.strategy.Cost(s, call) + assignedCount*6
	if d.strategy.OnTheWay(s, call) {
		cost -= 3
	}
	return cost
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
