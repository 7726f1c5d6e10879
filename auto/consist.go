package auto

import (
	"math"

	"go.uber.org/zap"
	. "nyiyui.ca/hato/routeman"
	"nyiyui.ca/hato/routeman/world"
)

const DieselFuel = "diesel-fuel"

func (c *Context) coaches(loco CarID) []world.Car {
	cars, err := c.conf.World.CoupledCars(loco)
	if err != nil {
		zap.S().Errorw("enumerating consist failed", "loco", loco, "err", err)
		return nil
	}
	res := make([]world.Car, 0, len(cars))
	for _, car := range cars {
		if car.Archetype == world.ArchetypeCoach {
			res = append(res, car)
		}
	}
	return res
}

// PassengerTotal counts the passengers in every coach coupled to loco.
// Coaches whose count cannot be read are skipped.
func (c *Context) PassengerTotal(loco CarID) int {
	if c.conf.Inspector == nil {
		return 0
	}
	total := 0
	for _, coach := range c.coaches(loco) {
		n, err := c.conf.Inspector.Passengers(coach.ID)
		if err != nil {
			zap.S().Debugw("passenger count unavailable", "coach", coach, "err", err)
			continue
		}
		total += n
	}
	return total
}

// CenterCoach returns the coach closest to the middle of all coaches coupled to loco.
func (c *Context) CenterCoach(loco CarID) (CarID, bool) {
	if c.conf.Inspector == nil {
		return CarID{}, false
	}
	type placed struct {
		id  CarID
		pos world.Vec3
	}
	ps := make([]placed, 0)
	var center world.Vec3
	for _, coach := range c.coaches(loco) {
		pos, err := c.conf.Inspector.Position(coach.ID)
		if err != nil {
			zap.S().Debugw("coach position unavailable", "coach", coach, "err", err)
			continue
		}
		ps = append(ps, placed{coach.ID, pos})
		center = center.Add(pos)
	}
	if len(ps) == 0 {
		return CarID{}, false
	}
	center = center.Scale(1 / float64(len(ps)))
	bestDist := math.Inf(1)
	var best CarID
	for _, p := range ps {
		dist := p.pos.Sub(center).SqrMagnitude()
		if dist < bestDist {
			bestDist = dist
			best = p.id
		}
	}
	return best, true
}

// FuelLoad returns how much of load the consist of loco has left.
// Diesel is carried by the locomotive itself; anything else by a tender.
func (c *Context) FuelLoad(loco CarID, load string) float64 {
	if c.conf.Inspector == nil {
		return 0
	}
	if load == DieselFuel {
		q, ok := c.conf.Inspector.Load(loco, load)
		if !ok {
			zap.S().Debugw("no diesel load information", "loco", loco)
			return 0
		}
		return q
	}
	cars, err := c.conf.World.CoupledCars(loco)
	if err != nil {
		zap.S().Errorw("enumerating consist failed", "loco", loco, "err", err)
		return 0
	}
	for _, car := range cars {
		if car.Archetype != world.ArchetypeTender {
			continue
		}
		if q, ok := c.conf.Inspector.Load(car.ID, load); ok {
			return q
		}
		zap.S().Debugw("no tender load information", "tender", car, "load", load)
	}
	return 0
}
