package runtime

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sync"

	. "nyiyui.ca/hato/routeman"
)

type Instance struct {
	g *Graph

	traceOutput io.Writer
	traceLock   sync.Mutex
}

func NewInstance(g *Graph) *Instance {
	return &Instance{g: g}
}

func (i *Instance) dependsOn() [][]int {
	dependsOn := make([][]int, len(i.g.Actors))
	for j, actor := range i.g.Actors {
		for _, k := range actor.Inputs {
			dependsOn[k.Index] = append(dependsOn[k.Index], j)
		}
	}
	return dependsOn
}

func (i *Instance) Check() error {
	for j, actor := range i.g.Actors {
		ref := ActorRef{Index: j}
		if actor.Type.Output != (actor.OutputCh != nil) {
			return fmt.Errorf("actor %s %s: type mismatch: output", ref, actor.Comment)
		}
		if actor.Type.Input != (actor.InputCh != nil) {
			return fmt.Errorf("actor %s %s: type mismatch: input", ref, actor.Comment)
		}
		if !actor.Type.Input && !actor.Type.Output {
			return fmt.Errorf("actor %s %s: type: no i/o", ref, actor.Comment)
		}
		for _, in := range actor.Inputs {
			if in.Index < 0 || in.Index >= len(i.g.Actors) {
				return fmt.Errorf("actor %s %s: input %s out of range", ref, actor.Comment, in)
			}
			if !i.g.Actors[in.Index].Type.Output {
				return fmt.Errorf("actor %s %s: input %s has no output", ref, actor.Comment, in)
			}
		}
		if len(actor.Inputs) != 0 && !actor.Type.Input {
			return fmt.Errorf("actor %s %s: has inputs but no InputCh", ref, actor.Comment)
		}
	}
	return nil
}

// Diffuse forwards every output to the actors depending on it until ctx is done.
func (i *Instance) Diffuse(ctx context.Context) error {
	// setup cases; the first case is always ctx.Done()
	cases := []reflect.SelectCase{{
		Dir:  reflect.SelectRecv,
		Chan: reflect.ValueOf(ctx.Done()),
	}}
	caseIs := []int{-1}
	for j, actor := range i.g.Actors {
		if !actor.Type.Output {
			continue
		}
		cases = append(cases, reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(actor.OutputCh),
		})
		caseIs = append(caseIs, j)
	}

	dependsOn := i.dependsOn()
	for {
		chosen, recv, recvOK := reflect.Select(cases)
		if chosen == 0 {
			return ctx.Err()
		}
		caseI := caseIs[chosen]
		if !recvOK {
			return fmt.Errorf("actor %s %s: output closed", ActorRef{Index: caseI}, i.g.Actors[caseI].Comment)
		}
		d := recv.Interface().(Diffuse1)
		var dests []int
		if d.Origin == (ActorRef{}) {
			// self if blank
			d.Origin = ActorRef{Index: caseI}
		} else if d.Origin == Loopback {
			d.Origin = ActorRef{Index: caseI}
			dests = append(dests, caseI)
		} else {
			// if not self, this Diffuse1 is a set to another actor
			origin := i.g.Actors[d.Origin.Index]
			if !origin.Type.Input {
				return fmt.Errorf("input to non-input actor %s %s", d.Origin, origin.Comment)
			}
			dests = append(dests, d.Origin.Index)
		}
		dests = append(dests, dependsOn[d.Origin.Index]...)
		i.record(&d, dests)
		for _, j := range dests {
			select {
			case i.g.Actors[j].InputCh <- d:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
