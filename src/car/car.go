// Package car implements the per-car scheduler: stop bookkeeping,
// direction commitment, the door/boarding state machine and the
// acceptance oracle the dispatcher consults.
package car

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"multilift/src/clock"
	"multilift/src/config"
	"multilift/src/types"

	"github.com/tiendc/go-deepcopy"
)

// Dispatcher is the handle a car holds back to the assignment engine.
// Declared here so the dispatcher package can depend on car without a
// cycle.
type Dispatcher interface {
	HasWaiting(floor int, dir types.Direction) bool
	WaitingCount(floor int, dir types.Direction) int
	BoardPassengers(floor int, dir types.Direction, space int) []*types.Passenger
	ClaimHallCallAtFloor(floor int, dir types.Direction, claimer *Car) bool
	AssignedCar(floor int, dir types.Direction) *Car
	NotifyCarUpdate(c *Car)
}

type Car struct {
	id       int
	capacity int
	cfg      *config.Config
	clk      *clock.Clock
	disp     Dispatcher

	mu   sync.Mutex
	cond *sync.Cond

	currentFloor int
	direction    types.Direction
	status       types.ElevatorStatus

	passengers []*types.Passenger

	// Hall stops split by side of currentFloor at insertion time, plus
	// the destinations of onboard passengers split the same way.
	stopsUp      *floorSet
	stopsDown    *floorSet
	internalUp   *floorSet
	internalDown *floorSet

	// Directions committed per floor, and soft commitments not yet merged
	// into the stop sets.
	hallCalls map[int]map[types.Direction]bool
	reserved  map[types.HallCall]bool

	pendingMu sync.Mutex
	pending   []types.HallCall

	// Fractional shaft position for the visualizer; lags currentFloor
	// while moving.
	visualPos atomic.Uint64
}

func New(id, startFloor, capacity int, cfg *config.Config, clk *clock.Clock, disp Dispatcher) *Car {
	c := &Car{
		id:           id,
		capacity:     capacity,
		cfg:          cfg,
		clk:          clk,
		disp:         disp,
		currentFloor: startFloor,
		direction:    types.DirIdle,
		status:       types.Idle,
		stopsUp:      newFloorSet(cfg.Floors),
		stopsDown:    newFloorSet(cfg.Floors),
		internalUp:   newFloorSet(cfg.Floors),
		internalDown: newFloorSet(cfg.Floors),
		hallCalls:    make(map[int]map[types.Direction]bool),
		reserved:     make(map[types.HallCall]bool),
	}
	c.cond = sync.NewCond(&c.mu)
	c.setVisualPos(float64(startFloor))
	return c
}

func (c *Car) ID() int       { return c.id }
func (c *Car) Capacity() int { return c.capacity }

func (c *Car) actor() string { return fmt.Sprintf("Elevator-%d", c.id) }

func (c *Car) VisualFloorPos() float64 {
	return math.Float64frombits(c.visualPos.Load())
}

func (c *Car) setVisualPos(pos float64) {
	c.visualPos.Store(math.Float64bits(pos))
}

// PassengersInside returns a deep-copied prefix of the onboard list, for
// visualization. limit <= 0 means all.
func (c *Car) PassengersInside(limit int) []*types.Passenger {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.passengers) == 0 {
		return nil
	}
	n := len(c.passengers)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*types.Passenger, 0, n)
	if err := deepcopy.Copy(&out, c.passengers[:n]); err != nil {
		return nil
	}
	return out
}

// AddInternalStop registers a boarded passenger's destination and wakes
// the control loop.
func (c *Car) AddInternalStop(floor int) {
	if floor < 1 || floor > c.cfg.Floors {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addInternalStopLocked(floor)
	c.cond.Broadcast()
}

func (c *Car) addInternalStopLocked(floor int) {
	if floor >= c.currentFloor {
		c.internalUp.add(floor)
	} else {
		c.internalDown.add(floor)
	}
	c.addStopLocked(floor)
}

// A floor at currentFloor lands on the up side; callers accept that
// classification.
func (c *Car) addStopLocked(floor int) {
	if floor >= c.currentFloor {
		c.stopsUp.add(floor)
	} else {
		c.stopsDown.add(floor)
	}
}

func (c *Car) AddHallCall(floor int, dir types.Direction) {
	c.TryAddHallCall(floor, dir)
}

// TryAddHallCall atomically applies the acceptance rules: full cars
// reject; a call at the current floor with open doors attaches to the
// door cycle; calls behind the direction of travel reject; opposite
// direction calls are only reserved when the car is empty and nearly
// done; anything else joins the stop list.
func (c *Car) TryAddHallCall(floor int, dir types.Direction) bool {
	if dir == types.DirIdle || floor < 1 || floor > c.cfg.Floors {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.passengers) >= c.capacity {
		c.status = types.LoadFull
		return false
	}

	if floor == c.currentFloor && c.status == types.DoorsOpen {
		c.commitHallDirLocked(floor, dir)
		c.cond.Broadcast()
		return true
	}

	if c.direction == types.DirUp && floor < c.currentFloor {
		return false
	}
	if c.direction == types.DirDown && floor > c.currentFloor {
		return false
	}

	if c.direction != types.DirIdle && dir != c.direction {
		if len(c.passengers) == 0 && c.plannedStopsAllLocked() <= 1 && c.status != types.DoorsOpen {
			c.reserved[types.HallCall{Floor: floor, Dir: dir}] = true
			c.cond.Broadcast()
			return true
		}
		return false
	}

	c.commitHallDirLocked(floor, dir)
	c.addStopLocked(floor)
	c.cond.Broadcast()
	return true
}

func (c *Car) commitHallDirLocked(floor int, dir types.Direction) {
	set, ok := c.hallCalls[floor]
	if !ok {
		set = make(map[types.Direction]bool, 2)
		c.hallCalls[floor] = set
	}
	set[dir] = true
}

func (c *Car) plannedStopsAllLocked() int {
	return c.stopsUp.len() + c.stopsDown.len() + c.internalUp.len() + c.internalDown.len()
}

func (c *Car) plannedHallStopsLocked() int {
	return c.stopsUp.len() + c.stopsDown.len()
}

// TryReserveHallCall softly commits the car to a call without putting it
// on the stop list yet.
func (c *Car) TryReserveHallCall(call types.HallCall) bool {
	if call.Dir == types.DirIdle || call.Floor < 1 || call.Floor > c.cfg.Floors {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.passengers) >= c.capacity {
		c.status = types.LoadFull
		return false
	}
	if c.plannedHallStopsLocked() >= c.cfg.MaxPlannedStops {
		return false
	}

	c.reserved[call] = true
	c.cond.Broadcast()
	return true
}

func (c *Car) CanAcceptHallCall(call types.HallCall) bool {
	return c.CanAcceptHallCallReason(call) == types.Accepted
}

// CanContinueServingAssignedCall reports whether the dispatcher should
// keep an existing assignment with this car.
func (c *Car) CanContinueServingAssignedCall(call types.HallCall) bool {
	if c.IsCommittedToHallCall(call) {
		return true
	}

	s := c.Snapshot()

	// Already at the floor with open doors: don't thrash assignments, the
	// car decides boarding itself.
	if s.Status == types.DoorsOpen && s.CurrentFloor == call.Floor {
		return true
	}

	switch c.CanAcceptHallCallReason(call) {
	case types.Accepted, types.AcceptedReserved, types.DoorsBusy:
		return true
	default:
		return false
	}
}

// CanAcceptHallCallReason is the side-effect-free acceptance oracle.
func (c *Car) CanAcceptHallCallReason(call types.HallCall) types.RejectReason {
	if call.Dir == types.DirIdle || call.Floor < 1 || call.Floor > c.cfg.Floors {
		return types.OutOfRoute
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	load := len(c.passengers)
	if load >= c.capacity {
		return types.FullCapacity
	}
	if c.plannedHallStopsLocked() >= c.cfg.MaxPlannedStops {
		return types.TooManyStops
	}

	furthestUp, furthestDown := c.routeBoundsLocked()

	// Doors open on this floor: accept only the current service direction.
	// New hall calls must not flip direction while doors are open; an idle
	// car at the floor can take any.
	if c.status == types.DoorsOpen {
		if c.currentFloor != call.Floor {
			return types.DoorsBusy
		}
		if c.direction == types.DirIdle || c.direction == call.Dir {
			return types.Accepted
		}
		return types.WrongDirection
	}

	if c.direction == types.DirIdle {
		return types.Accepted
	}

	// On the way in the same direction within the route envelope.
	if call.Dir == c.direction {
		if c.direction == types.DirUp {
			bound := c.currentFloor
			if furthestUp > 0 {
				bound = furthestUp
			}
			if call.Floor >= c.currentFloor && call.Floor <= bound {
				return types.Accepted
			}
			return types.OutOfRoute
		}
		bound := c.currentFloor
		if furthestDown > 0 {
			bound = furthestDown
		}
		if call.Floor <= c.currentFloor && call.Floor >= bound {
			return types.Accepted
		}
		return types.OutOfRoute
	}

	// Opposite direction: only reserve when empty, close to reversing, and
	// the call lies on the path toward the reversal point.
	if load != 0 {
		return types.WrongDirection
	}

	var distToReverse int
	var onReversePath bool
	if c.direction == types.DirUp {
		top := c.currentFloor
		if furthestUp > 0 {
			top = furthestUp
		}
		distToReverse = max(0, top-c.currentFloor)
		onReversePath = call.Floor >= c.currentFloor && call.Floor <= top
	} else {
		bottom := c.currentFloor
		if furthestDown > 0 {
			bottom = furthestDown
		}
		distToReverse = max(0, c.currentFloor-bottom)
		onReversePath = call.Floor <= c.currentFloor && call.Floor >= bottom
	}

	if onReversePath && distToReverse <= c.cfg.ReserveReverseSoonFloors && c.plannedHallStopsLocked() <= 1 {
		return types.AcceptedReserved
	}
	return types.WrongDirection
}

// routeBoundsLocked estimates the travel envelope: the farthest requested
// stop or onboard destination on either side of the current floor.
// Zero means no work on that side.
func (c *Car) routeBoundsLocked() (furthestUp, furthestDown int) {
	consider := func(f int) {
		if f > c.currentFloor && f > furthestUp {
			furthestUp = f
		}
		if f < c.currentFloor && (furthestDown == 0 || f < furthestDown) {
			furthestDown = f
		}
	}
	for _, f := range c.stopsUp.members() {
		consider(f)
	}
	for _, f := range c.stopsDown.members() {
		consider(f)
	}
	for _, p := range c.passengers {
		consider(p.TargetFloor)
	}
	return furthestUp, furthestDown
}

// CancelHallCall removes any commitment to (floor, dir), dropping the
// stop itself when nothing else needs that floor.
func (c *Car) CancelHallCall(floor int, dir types.Direction) {
	if dir == types.DirIdle || floor < 1 || floor > c.cfg.Floors {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.reserved, types.HallCall{Floor: floor, Dir: dir})

	if set, ok := c.hallCalls[floor]; ok {
		delete(set, dir)
		if len(set) == 0 {
			delete(c.hallCalls, floor)
		}
	}

	if _, stillCommitted := c.hallCalls[floor]; !stillCommitted && !c.hasInternalNeedLocked(floor) {
		c.stopsUp.remove(floor)
		c.stopsDown.remove(floor)
	}

	c.cond.Broadcast()
}

func (c *Car) hasInternalNeedLocked(floor int) bool {
	for _, p := range c.passengers {
		if p.TargetFloor == floor {
			return true
		}
	}
	return false
}

func (c *Car) Snapshot() types.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	furthestUp, furthestDown := c.routeBoundsLocked()
	return types.Snapshot{
		ID:               c.id,
		CurrentFloor:     c.currentFloor,
		Direction:        c.direction,
		Status:           c.status,
		Load:             len(c.passengers),
		Capacity:         c.capacity,
		PlannedStops:     c.plannedHallStopsLocked(),
		FurthestUpStop:   furthestUp,
		FurthestDownStop: furthestDown,
	}
}

func (c *Car) IsTrulyIdle() bool {
	s := c.Snapshot()
	return s.Load == 0 && s.PlannedStops == 0 && s.Direction == types.DirIdle
}

func (c *Car) IsCommittedToHallCall(call types.HallCall) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reserved[call] {
		return true
	}
	set, ok := c.hallCalls[call.Floor]
	return ok && set[call.Dir]
}

// DeferHallCall queues a call the car could not admit right away; it is
// retried after door cycles and moves.
func (c *Car) DeferHallCall(call types.HallCall) {
	if call.Dir == types.DirIdle {
		return
	}
	c.pendingMu.Lock()
	c.pending = append(c.pending, call)
	c.pendingMu.Unlock()
}

func (c *Car) pollPending() (types.HallCall, bool) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if len(c.pending) == 0 {
		return types.HallCall{}, false
	}
	call := c.pending[0]
	c.pending = c.pending[1:]
	return call, true
}

func (c *Car) offerPending(call types.HallCall) {
	c.pendingMu.Lock()
	c.pending = append(c.pending, call)
	c.pendingMu.Unlock()
}

func (c *Car) hasPending() bool {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return len(c.pending) > 0
}

func (c *Car) loadSafe() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.passengers)
}

