package world

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	. "nyiyui.ca/hato/routeman"
)

// ValArrival is sent when a locomotive arrives at a stop.
// Forward is the direction the locomotive travels in when leaving it.
type ValArrival struct {
	Loco    CarID
	Stop    StopID
	Forward bool
}

func (v ValArrival) String() string {
	return fmt.Sprintf("arrival(%s at %s forward=%t)", v.Loco, v.Stop, v.Forward)
}

// ValDeparture is sent when a locomotive leaves a stop.
type ValDeparture struct {
	Loco CarID
	Stop StopID
}

func (v ValDeparture) String() string {
	return fmt.Sprintf("departure(%s from %s)", v.Loco, v.Stop)
}

type SimulatorConf struct {
	Comment string
	Loco    CarID
	// Stops is the line, in order.
	Stops []StopID
	// Dwell is how long the locomotive stays at a stop; Travel is how long it takes to the next one.
	Dwell, Travel time.Duration
}

// Simulator shuttles one locomotive back and forth along a line, announcing
// arrivals and departures. It does not simulate any physics.
type Simulator struct {
	conf  SimulatorConf
	actor Actor
}

func NewSimulator(conf SimulatorConf) *Simulator {
	return &Simulator{
		conf: conf,
		actor: Actor{
			Comment:  fmt.Sprintf("sim %s", conf.Comment),
			OutputCh: make(chan Diffuse1),
			Type:     ActorType{Output: true},
		},
	}
}

func (s *Simulator) Actor() Actor { return s.actor }

// next returns the index after i, turning around at either end of the line.
func next(i int, forward bool, n int) (int, bool) {
	if n < 2 {
		return i, forward
	}
	if forward && i == n-1 {
		forward = false
	} else if !forward && i == 0 {
		forward = true
	}
	if forward {
		return i + 1, forward
	}
	return i - 1, forward
}

// Run runs until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	stops := s.conf.Stops
	if len(stops) == 0 {
		return fmt.Errorf("sim %s: no stops", s.conf.Comment)
	}
	i, forward := 0, true
	send := func(v Value) error {
		zap.S().Debugw("sim", "comment", s.conf.Comment, "value", v)
		select {
		case s.actor.OutputCh <- Diffuse1{Value: v}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	wait := func(d time.Duration) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for {
		_, forwardNext := next(i, forward, len(stops))
		if err := send(ValArrival{Loco: s.conf.Loco, Stop: stops[i], Forward: forwardNext}); err != nil {
			return err
		}
		if err := wait(s.conf.Dwell); err != nil {
			return err
		}
		if err := send(ValDeparture{Loco: s.conf.Loco, Stop: stops[i]}); err != nil {
			return err
		}
		if err := wait(s.conf.Travel); err != nil {
			return err
		}
		i, forward = next(i, forward, len(stops))
	}
}
