package auto

import (
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	. "nyiyui.ca/hato/routeman"
	"nyiyui.ca/hato/routeman/world"
)

// SetDestination sets the stop loco is currently heading to or standing at.
func (c *Context) SetDestination(loco CarID, stop StopID) {
	ls := c.register(loco)
	ls.lock.Lock()
	defer ls.lock.Unlock()
	ls.destination = stop
	ls.hasDestination = true
}

// SetDirection sets whether loco travels forward (towards the end of the catalog).
func (c *Context) SetDirection(loco CarID, forward bool) {
	ls := c.register(loco)
	ls.lock.Lock()
	defer ls.lock.Unlock()
	ls.forward = forward
}

// Propagation is the result of one PropagateDestinations call.
type Propagation struct {
	// Stops pushed to every coach, nearest first.
	Stops []StopID `json:"stops"`
	// Coaches that were pushed to.
	Coaches []CarID `json:"coaches"`
}

// RelevantStops returns the selected stops from the destination of loco onwards
// in its travel direction, nearest first.
// It is empty if the destination is unset or not cataloged, or if loco has no selection.
func (c *Context) RelevantStops(loco CarID) []StopID {
	res := []StopID{}
	ls := c.lookup(loco)
	if ls == nil {
		zap.S().Debugw("relevant stops of unknown locomotive", "loco", loco)
		return res
	}
	ls.lock.Lock()
	defer ls.lock.Unlock()
	if ls.selections == nil || !ls.hasDestination {
		return res
	}
	i, ok := c.conf.Catalog.IndexOf(ls.destination)
	if !ok {
		zap.S().Debugw("destination not in catalog", "loco", loco, "destination", ls.destination)
		return res
	}
	stops := c.conf.Catalog.AllStops()
	if i >= len(stops) {
		return res
	}
	if ls.forward {
		for _, stop := range stops[i:] {
			if ls.selections[stop] {
				res = append(res, stop)
			}
		}
	} else {
		for j := i; j >= 0; j-- {
			if ls.selections[stops[j]] {
				res = append(res, stops[j])
			}
		}
	}
	return res
}

// PropagateDestinations pushes the relevant stops of loco to every coach coupled to it.
// Each coach gets exactly one push, an empty one if there are no relevant stops.
func (c *Context) PropagateDestinations(loco CarID) (Propagation, error) {
	stops := c.RelevantStops(loco)
	cars, err := c.conf.World.CoupledCars(loco)
	if err != nil {
		zap.S().Errorw("enumerating consist failed", "loco", loco, "err", err)
		return Propagation{}, fmt.Errorf("consist of %s: %w", loco, err)
	}
	p := Propagation{Stops: stops, Coaches: []CarID{}}
	for _, car := range cars {
		if car.Archetype != world.ArchetypeCoach {
			continue
		}
		c.conf.World.Apply(world.SetPassengerDestinations{
			Car:   car.ID,
			Stops: slices.Clone(stops),
		})
		p.Coaches = append(p.Coaches, car.ID)
	}
	zap.S().Debugw("propagated destinations", "loco", loco, "stops", stops, "coaches", len(p.Coaches))
	return p, nil
}
