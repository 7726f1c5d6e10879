package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	. "nyiyui.ca/hato/routeman"
)

type testValue int

func (v testValue) String() string { return "test" }

func source() Actor {
	return Actor{
		Comment:  "source",
		OutputCh: make(chan Diffuse1),
		Type:     ActorType{Output: true},
	}
}

func sink(inputs ...ActorRef) Actor {
	return Actor{
		Comment: "sink",
		InputCh: make(chan Diffuse1, 4),
		Inputs:  inputs,
		Type:    ActorType{Input: true},
	}
}

func TestCheck(t *testing.T) {
	g := Graph{}
	src := g.Add(source())
	g.Add(sink(src))
	if err := NewInstance(&g).Check(); err != nil {
		t.Fatal(err)
	}

	bad := Graph{}
	bad.Add(Actor{Comment: "nothing"})
	if err := NewInstance(&bad).Check(); err == nil {
		t.Fatal("expected error for actor without i/o")
	}

	dangling := Graph{}
	dangling.Add(sink(ActorRef{Index: 5}))
	if err := NewInstance(&dangling).Check(); err == nil {
		t.Fatal("expected error for dangling input")
	}
}

func TestDiffuse(t *testing.T) {
	g := Graph{}
	src := g.Add(source())
	snk := g.Add(sink(src))
	i := NewInstance(&g)
	trace := new(bytes.Buffer)
	if err := i.Trace(trace); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- i.Diffuse(ctx) }()

	g.Actors[src.Index].OutputCh <- Diffuse1{Value: testValue(1)}
	select {
	case d := <-g.Actors[snk.Index].InputCh:
		want := Diffuse1{Origin: src, Value: testValue(1)}
		if !cmp.Equal(d, want) {
			t.Fatalf("diff: %s", cmp.Diff(want, d))
		}
	case <-time.After(time.Second):
		t.Fatal("sink did not receive")
	}
	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("Diffuse returned %v", err)
	}

	var sv serializedValue
	if err := json.NewDecoder(strings.NewReader(trace.String())).Decode(&sv); err != nil {
		t.Fatalf("trace: %s", err)
	}
	if !cmp.Equal(sv.Destinations, []int{snk.Index}) {
		t.Fatalf("trace destinations %v", sv.Destinations)
	}
}
