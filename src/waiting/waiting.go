// Package waiting holds the shared model of passengers waiting at hall
// buttons: one FIFO queue per (floor, direction) plus atomic counters, so
// size checks never touch the queues themselves.
package waiting

import (
	"sync"
	"sync/atomic"

	"multilift/src/types"

	"github.com/tiendc/go-deepcopy"
)

type queue struct {
	mu    sync.Mutex
	items []*types.Passenger
}

type Model struct {
	floors int

	// Indexed 1..floors; slot 0 unused.
	up   []queue
	down []queue

	// Authoritative sizes. The queues are best-effort ordered.
	upCount   []atomic.Int32
	downCount []atomic.Int32
}

func New(floors int) *Model {
	return &Model{
		floors:    floors,
		up:        make([]queue, floors+1),
		down:      make([]queue, floors+1),
		upCount:   make([]atomic.Int32, floors+1),
		downCount: make([]atomic.Int32, floors+1),
	}
}

// Submit appends p to the queue for its start floor and direction.
// Out-of-range floors are dropped.
func (m *Model) Submit(p *types.Passenger) {
	if p == nil {
		return
	}
	floor := p.StartFloor
	if floor < 1 || floor > m.floors {
		return
	}

	// A passenger never has IDLE direction; treat anything but DOWN as UP.
	q, c := m.queueFor(floor, p.Direction())
	q.mu.Lock()
	q.items = append(q.items, p)
	q.mu.Unlock()
	c.Add(1)
}

// Board dequeues up to space passengers from (floor, dir) in FIFO order.
func (m *Model) Board(floor int, dir types.Direction, space int) []*types.Passenger {
	if space <= 0 || floor < 1 || floor > m.floors {
		return nil
	}

	q, c := m.queueFor(floor, dir)
	q.mu.Lock()
	n := len(q.items)
	if n > space {
		n = space
	}
	boarded := make([]*types.Passenger, n)
	copy(boarded, q.items[:n])
	q.items = q.items[n:]
	q.mu.Unlock()

	c.Add(int32(-n))
	return boarded
}

func (m *Model) Count(floor int, dir types.Direction) int {
	if floor < 1 || floor > m.floors {
		return 0
	}
	_, c := m.queueFor(floor, dir)
	return int(c.Load())
}

func (m *Model) HasWaiting(floor int, dir types.Direction) bool {
	return m.Count(floor, dir) > 0
}

func (m *Model) TotalWaiting() int {
	sum := 0
	for f := 1; f <= m.floors; f++ {
		sum += int(m.upCount[f].Load())
		sum += int(m.downCount[f].Load())
	}
	return sum
}

// Peek returns a deep-copied prefix of the queue at (floor, dir), for
// visualization only. Logic must use Count/Board.
func (m *Model) Peek(floor int, dir types.Direction, limit int) []*types.Passenger {
	if limit <= 0 || floor < 1 || floor > m.floors {
		return nil
	}

	q, _ := m.queueFor(floor, dir)
	q.mu.Lock()
	n := len(q.items)
	if n > limit {
		n = limit
	}
	prefix := q.items[:n]
	out := make([]*types.Passenger, 0, n)
	if err := deepcopy.Copy(&out, prefix); err != nil {
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()
	return out
}

func (m *Model) queueFor(floor int, dir types.Direction) (*queue, *atomic.Int32) {
	if dir == types.DirDown {
		return &m.down[floor], &m.downCount[floor]
	}
	return &m.up[floor], &m.upCount[floor]
}
