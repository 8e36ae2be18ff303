// Package strategy implements collective control scoring: pick the car
// with the lowest cost of taking a hall call, weighing distance,
// direction, load and route length.
package strategy

import (
	"math"

	"multilift/src/config"
	"multilift/src/types"
)

type CollectiveControl struct {
	cfg *config.Config
}

func New(cfg *config.Config) CollectiveControl {
	return CollectiveControl{cfg: cfg}
}

// Cost is a pure function of a car snapshot and a hall call.
func (s CollectiveControl) Cost(snap types.Snapshot, call types.HallCall) int {
	zonePenalty := s.cfg.ZonePenalty(snap.ID, call.Floor)

	var etaDistance int
	var directionPenalty float64

	switch {
	case snap.Direction == types.DirIdle:
		etaDistance = abs(snap.CurrentFloor - call.Floor)
		directionPenalty = 1.5
	case snap.Direction == call.Dir:
		if s.OnTheWay(snap, call) {
			etaDistance = abs(snap.CurrentFloor - call.Floor)
			directionPenalty = 1.0
		} else {
			// The car rides to the far end of its route and comes back.
			end := routeEnd(snap)
			etaDistance = abs(snap.CurrentFloor-end) + abs(end-call.Floor)
			directionPenalty = 6.0
		}
	default:
		end := routeEnd(snap)
		etaDistance = abs(snap.CurrentFloor-end) + abs(end-call.Floor)
		directionPenalty = 8.0
	}

	loadFactor := 1.0
	if snap.Capacity > 0 {
		switch ratio := float64(snap.Load) / float64(snap.Capacity); {
		case ratio < 0.5:
			loadFactor = 1.0
		case ratio < 0.8:
			loadFactor = 1.5
		default:
			loadFactor = 3.0
		}
	}

	stopPenalty := snap.PlannedStops * 2

	cost := float64(etaDistance)*directionPenalty*loadFactor + float64(stopPenalty) + float64(zonePenalty)
	return int(math.Round(cost))
}

// OnTheWay reports whether the call floor is reachable without reversing.
func (s CollectiveControl) OnTheWay(snap types.Snapshot, call types.HallCall) bool {
	if snap.Direction == types.DirUp && call.Dir == types.DirUp {
		return snap.CurrentFloor <= call.Floor
	}
	if snap.Direction == types.DirDown && call.Dir == types.DirDown {
		return snap.CurrentFloor >= call.Floor
	}
	return false
}

func routeEnd(snap types.Snapshot) int {
	if snap.Direction == types.DirUp {
		if snap.FurthestUpStop > 0 {
			return snap.FurthestUpStop
		}
		return snap.CurrentFloor
	}
	if snap.FurthestDownStop > 0 {
		return snap.FurthestDownStop
	}
	return snap.CurrentFloor
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
