package dispatcher

import (
	"context"
	"time"

	"multilift/src/car"
	"multilift/src/types"
)

type eventType int

const (
	passengerRequest eventType = iota
	carUpdate
)

type event struct {
	typ       eventType
	passenger *types.Passenger
	car       *car.Car
}

// The event queue is an unbounded MPSC list with a level-triggered wakeup
// channel; producers never block.
func (d *Dispatcher) pushEvent(ev event) {
	d.evMu.Lock()
	d.evQueue = append(d.evQueue, ev)
	d.evMu.Unlock()

	select {
	case d.evSignal <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) tryPollEvent() (event, bool) {
	d.evMu.Lock()
	defer d.evMu.Unlock()
	if len(d.evQueue) == 0 {
		return event{}, false
	}
	ev := d.evQueue[0]
	d.evQueue = d.evQueue[1:]
	return ev, true
}

// pollEvent blocks until an event arrives, the timeout passes, or ctx is
// cancelled.
func (d *Dispatcher) pollEvent(ctx context.Context, timeout time.Duration) (event, bool) {
	if ev, ok := d.tryPollEvent(); ok {
		return ev, true
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return event{}, false
		case <-deadline.C:
			return event{}, false
		case <-d.evSignal:
			if ev, ok := d.tryPollEvent(); ok {
				return ev, true
			}
		}
	}
}

func (d *Dispatcher) eventsEmpty() bool {
	d.evMu.Lock()
	defer d.evMu.Unlock()
	return len(d.evQueue) == 0
}
