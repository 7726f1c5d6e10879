package auto

import (
	"context"

	"go.uber.org/zap"
	. "nyiyui.ca/hato/routeman"
	"nyiyui.ca/hato/routeman/world"
)

// Actor returns an actor following arrivals and departures from inputs.
// On arrival the destination and direction are updated and, in route mode,
// destinations are propagated. On departure in route mode the departure
// pattern is played. The actor stops once ctx is done; pass the ctx the runtime
// diffuses with.
func (c *Context) Actor(ctx context.Context, inputs ...ActorRef) Actor {
	a := Actor{
		Comment: "auto",
		InputCh: make(chan Diffuse1),
		Inputs:  inputs,
		Type:    ActorType{Input: true},
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case diffuse := <-a.InputCh:
				c.handle(diffuse.Value)
			}
		}
	}()
	return a
}

func (c *Context) handle(v Value) {
	switch v := v.(type) {
	case world.ValArrival:
		c.SetDestination(v.Loco, v.Stop)
		c.SetDirection(v.Loco, v.Forward)
		if !c.IsRouteModeEnabled(v.Loco) {
			return
		}
		_, err := c.PropagateDestinations(v.Loco)
		if err != nil {
			zap.S().Errorw("propagation on arrival failed", "arrival", v, "err", err)
		}
	case world.ValDeparture:
		if c.conf.DeparturePattern == "" || !c.IsRouteModeEnabled(v.Loco) {
			return
		}
		_, err := c.TriggerSignalPattern(v.Loco, c.conf.DeparturePattern)
		if err != nil {
			zap.S().Errorw("departure signal failed", "departure", v, "err", err)
		}
	default:
		zap.S().Debugw("auto: unhandled value", "value", v)
	}
}
