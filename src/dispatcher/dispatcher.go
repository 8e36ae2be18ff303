// Package dispatcher owns the assignment engine: it consumes passenger
// requests and car updates from a single event queue, keeps the pending
// hall calls and their car assignments, and hands calls to cars through
// their acceptance methods.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"multilift/src/car"
	"multilift/src/config"
	"multilift/src/logger"
	"multilift/src/strategy"
	"multilift/src/types"
	"multilift/src/waiting"
)

const actor = "Dispatcher"

type Dispatcher struct {
	cfg      *config.Config
	strategy strategy.CollectiveControl
	waiting  *waiting.Model
	cars     []*car.Car

	evMu     sync.Mutex
	evQueue  []event
	evSignal chan struct{}

	mu            sync.Mutex
	pending       map[types.HallCall]struct{}
	assigned      map[types.HallCall]*car.Car
	lastNoElevLog map[types.HallCall]time.Time
	lastReassign  map[types.HallCall]time.Time
}

func New(cfg *config.Config, model *waiting.Model) *Dispatcher {
	return &Dispatcher{
		cfg:           cfg,
		strategy:      strategy.New(cfg),
		waiting:       model,
		evSignal:      make(chan struct{}, 1),
		pending:       make(map[types.HallCall]struct{}),
		assigned:      make(map[types.HallCall]*car.Car),
		lastNoElevLog: make(map[types.HallCall]time.Time),
		lastReassign:  make(map[types.HallCall]time.Time),
	}
}

// RegisterCar adds a car to the fleet. Not safe to call once Run started.
func (d *Dispatcher) RegisterCar(c *car.Car) {
	d.cars = append(d.cars, c)
}

// SubmitRequest is the entry point for a new passenger (hall button
// press).
func (d *Dispatcher) SubmitRequest(p *types.Passenger) {
	if p == nil {
		return
	}
	logger.Event(actor, "REQUEST", "%s waiting at floor %d dir=%s", p, p.StartFloor, p.Direction())
	d.pushEvent(event{typ: passengerRequest, passenger: p})
}

// NotifyCarUpdate lets cars trigger an immediate dispatch pass after a
// state change (doors closed, became idle, load changed) instead of
// waiting for the safety tick.
func (d *Dispatcher) NotifyCarUpdate(c *car.Car) {
	if c == nil {
		return
	}
	d.pushEvent(event{typ: carUpdate, car: c})
}

// HasWaiting and WaitingCount delegate straight to the waiting model so
// cars may call them from inside their own critical sections.
func (d *Dispatcher) HasWaiting(floor int, dir types.Direction) bool {
	return d.waiting.HasWaiting(floor, dir)
}

func (d *Dispatcher) WaitingCount(floor int, dir types.Direction) int {
	return d.waiting.Count(floor, dir)
}

func (d *Dispatcher) PeekWaiting(floor int, dir types.Direction, limit int) []*types.Passenger {
	return d.waiting.Peek(floor, dir, limit)
}

func (d *Dispatcher) TotalWaiting() int {
	return d.waiting.TotalWaiting()
}

// BoardPassengers pops up to space waiting passengers for a car at the
// given floor and direction. It is the only path that consumes waiting
// passengers; when the queue empties it also clears the call's pending
// entry and assignment, cancelling the previous assignee.
func (d *Dispatcher) BoardPassengers(floor int, dir types.Direction, space int) []*types.Passenger {
	boarded := d.waiting.Board(floor, dir, space)

	if d.waiting.Count(floor, dir) == 0 {
		call := types.HallCall{Floor: floor, Dir: dir}
		d.mu.Lock()
		delete(d.pending, call)
		assigned := d.assigned[call]
		delete(d.assigned, call)
		delete(d.lastNoElevLog, call)
		d.mu.Unlock()
		if assigned != nil {
			assigned.CancelHallCall(floor, dir)
		}
	}

	return boarded
}

// ClaimHallCallAtFloor transfers a call's assignment to a car that is
// physically at the floor and about to open its doors, so the previously
// chosen car does not ride there for nothing. Returns false when nobody
// is waiting anymore.
func (d *Dispatcher) ClaimHallCallAtFloor(floor int, dir types.Direction, claimer *car.Car) bool {
	if claimer == nil || floor < 1 || floor > d.cfg.Floors {
		return false
	}
	if !d.HasWaiting(floor, dir) {
		return false
	}

	call := types.HallCall{Floor: floor, Dir: dir}

	d.mu.Lock()
	d.pending[call] = struct{}{}
	prev := d.assigned[call]
	d.assigned[call] = claimer
	if prev != nil && prev != claimer {
		d.lastReassign[call] = time.Now()
	}
	delete(d.lastNoElevLog, call)
	d.mu.Unlock()

	if prev != nil && prev != claimer {
		prev.CancelHallCall(floor, dir)
	}
	return true
}

// AssignedCar returns the current owner of (floor, dir), if any.
func (d *Dispatcher) AssignedCar(floor int, dir types.Direction) *car.Car {
	if floor < 1 || floor > d.cfg.Floors {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.assigned[types.HallCall{Floor: floor, Dir: dir}]
}

// IsIdle reports a fully drained system: nobody waiting, no pending
// calls, no assignments, no queued events.
func (d *Dispatcher) IsIdle() bool {
	d.mu.Lock()
	quiet := len(d.pending) == 0 && len(d.assigned) == 0
	d.mu.Unlock()
	return quiet && d.TotalWaiting() == 0 && d.eventsEmpty()
}

// Run is the dispatcher worker: block for one event (or the 1-second
// safety tick), drain a batch, then run a single dispatch pass.
func (d *Dispatcher) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	logger.Event(actor, "SYSTEM", "Dispatcher started")

	for ctx.Err() == nil {
		ev, ok := d.pollEvent(ctx, time.Second)
		if ctx.Err() != nil {
			break
		}

		if ok {
			d.handleEvent(ev)
			for i := 0; i < d.cfg.DispatcherEventBatch; i++ {
				next, more := d.tryPollEvent()
				if !more {
					break
				}
				d.handleEvent(next)
			}
		}

		d.dispatchPendingCalls()
	}

	logger.Event(actor, "SYSTEM", "Dispatcher stopped")
}

func (d *Dispatcher) handleEvent(ev event) {
	if ev.typ != passengerRequest || ev.passenger == nil {
		// carUpdate carries no work of its own; it only triggers the
		// dispatch pass that follows the batch.
		return
	}

	p := ev.passenger
	d.waiting.Submit(p)

	d.mu.Lock()
	d.pending[types.HallCall{Floor: p.StartFloor, Dir: p.Direction()}] = struct{}{}
	d.mu.Unlock()
}

func (d *Dispatcher) pendingSnapshot() []types.HallCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]types.HallCall, 0, len(d.pending))
	for call := range d.pending {
		out = append(out, call)
	}
	return out
}

func (d *Dispatcher) assignedCountFor(c *car.Car) int {
	if c == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	cnt := 0
	for _, v := range d.assigned {
		if v == c {
			cnt++
		}
	}
	return cnt
}
