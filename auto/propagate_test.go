package auto

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	. "nyiyui.ca/hato/routeman"
	"nyiyui.ca/hato/routeman/world"
)

func selectStops(c *Context, stops ...StopID) {
	c.InitializeSelection(loco)
	for _, stop := range stops {
		c.SetStopSelected(stop, loco, true)
	}
}

func TestPropagateDirection(t *testing.T) {
	cases := []struct {
		forward bool
		want    []StopID
	}{
		{true, []StopID{"C", "E"}},
		{false, []StopID{"C", "A"}},
	}
	for _, tc := range cases {
		c, w := testContext(t)
		selectStops(c, "A", "C", "E")
		c.SetDestination(loco, "C")
		c.SetDirection(loco, tc.forward)
		p, err := c.PropagateDestinations(loco)
		if err != nil {
			t.Fatal(err)
		}
		want := Propagation{Stops: tc.want, Coaches: []CarID{coach1, coach2}}
		if !cmp.Equal(p, want) {
			t.Fatalf("forward=%t: %s", tc.forward, cmp.Diff(want, p))
		}
		for _, coach := range []CarID{coach1, coach2} {
			if got := w.pushes[coach]; !cmp.Equal(got, [][]StopID{tc.want}) {
				t.Fatalf("forward=%t coach %s: pushes %v", tc.forward, coach, got)
			}
		}
		for _, other := range []CarID{loco, tender, boxcar} {
			if got := w.pushes[other]; len(got) != 0 {
				t.Fatalf("non-coach %s got %v", other, got)
			}
		}
	}
}

func TestPropagateEnds(t *testing.T) {
	c, _ := testContext(t)
	selectStops(c, "A", "E")
	c.SetDestination(loco, "E")
	c.SetDirection(loco, true)
	if got := c.RelevantStops(loco); !cmp.Equal(got, []StopID{"E"}) {
		t.Fatalf("forward from E: %v", got)
	}
	c.SetDirection(loco, false)
	if got := c.RelevantStops(loco); !cmp.Equal(got, []StopID{"E", "A"}) {
		t.Fatalf("reverse from E: %v", got)
	}
	c.SetDestination(loco, "A")
	if got := c.RelevantStops(loco); !cmp.Equal(got, []StopID{"A"}) {
		t.Fatalf("reverse from A: %v", got)
	}
}

func TestPropagateEmpty(t *testing.T) {
	cases := []struct {
		name  string
		setup func(c *Context)
	}{
		{"unknown destination", func(c *Context) {
			selectStops(c, "A", "C")
			c.SetDestination(loco, "Z")
		}},
		{"no destination", func(c *Context) {
			selectStops(c, "A", "C")
		}},
		{"no selection", func(c *Context) {
			c.SetDestination(loco, "A")
		}},
		{"nothing ahead", func(c *Context) {
			selectStops(c, "A")
			c.SetDestination(loco, "B")
			c.SetDirection(loco, true)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, w := testContext(t)
			tc.setup(c)
			p, err := c.PropagateDestinations(loco)
			if err != nil {
				t.Fatal(err)
			}
			if len(p.Stops) != 0 {
				t.Fatalf("stops %v", p.Stops)
			}
			for _, coach := range []CarID{coach1, coach2} {
				got := w.pushes[coach]
				if len(got) != 1 || len(got[0]) != 0 {
					t.Fatalf("coach %s pushes %v", coach, got)
				}
			}
		})
	}
}

func TestPropagateRecomputesConsist(t *testing.T) {
	c, w := testContext(t)
	selectStops(c, "B")
	c.SetDestination(loco, "A")
	c.SetDirection(loco, true)
	if _, err := c.PropagateDestinations(loco); err != nil {
		t.Fatal(err)
	}
	w.Uncouple(boxcar, coach2)
	p, err := c.PropagateDestinations(loco)
	if err != nil {
		t.Fatal(err)
	}
	if !cmp.Equal(p.Coaches, []CarID{coach1}) {
		t.Fatalf("coaches %v", p.Coaches)
	}
	if got := len(w.pushes[coach2]); got != 1 {
		t.Fatalf("uncoupled coach pushed %d times", got)
	}
}

func TestPropagateConsistError(t *testing.T) {
	c, _ := testContext(t)
	c.SetStopSelected("A", unknown, true)
	if _, err := c.PropagateDestinations(unknown); err == nil {
		t.Fatal("expected error")
	}
}

func TestActor(t *testing.T) {
	c, w := testContext(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := c.Actor(ctx)
	selectStops(c, "B", "D")

	// not in route mode: only destination and direction change
	a.InputCh <- Diffuse1{Value: world.ValArrival{Loco: loco, Stop: "B", Forward: true}}
	a.InputCh <- Diffuse1{Value: world.ValDeparture{Loco: loco, Stop: "B"}}
	if err := c.SetRouteMode(loco, true); err != nil {
		t.Fatal(err)
	}
	a.InputCh <- Diffuse1{Value: world.ValArrival{Loco: loco, Stop: "C", Forward: false}}

	deadline := time.Now().Add(time.Second)
	for {
		s, _ := w.State(coach1)
		if cmp.Equal(s.Destinations, []StopID{"B"}) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("coach1 destinations %v", s.Destinations)
		}
		time.Sleep(5 * time.Millisecond)
	}
	dest := StopID("C")
	if got := c.Status(loco); !cmp.Equal(got.Destination, &dest) || got.Forward {
		t.Fatalf("status %#v", got)
	}
}

func TestActorStops(t *testing.T) {
	c, _ := testContext(t)
	ctx, cancel := context.WithCancel(context.Background())
	a := c.Actor(ctx)
	a.InputCh <- Diffuse1{Value: world.ValArrival{Loco: loco, Stop: "A", Forward: true}}
	cancel()
	// a send racing the cancellation may still be taken, but not for long
	deadline := time.Now().Add(time.Second)
	for {
		select {
		case a.InputCh <- Diffuse1{Value: world.ValArrival{Loco: loco, Stop: "B", Forward: true}}:
			if time.Now().After(deadline) {
				t.Fatal("actor still receiving after cancel")
			}
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}
