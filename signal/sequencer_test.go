package signal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	. "nyiyui.ca/hato/routeman"
	"nyiyui.ca/hato/routeman/world"
)

var loco = MustParseCarID("a7453d82-d52f-43ec-84d2-54dcea72f8c1")

// event is either a sample (horn intensity) or a wait.
type event struct {
	Sample float64
	Wait   time.Duration
}

type recorder struct {
	lock   sync.Mutex
	events []event
}

func (r *recorder) Apply(c world.Change) {
	r.lock.Lock()
	defer r.lock.Unlock()
	pc := c.(world.PropertyChange)
	if pc.Control != world.ControlHorn {
		return
	}
	r.events = append(r.events, event{Sample: pc.Value.(float64)})
}

func (r *recorder) wait(ctx context.Context, d time.Duration) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = append(r.events, event{Wait: d})
	return ctx.Err()
}

func (r *recorder) Events() []event {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]event(nil), r.events...)
}

func newRecorded() (*Sequencer, *recorder) {
	r := new(recorder)
	return New(Conf{Sink: r, Wait: r.wait}), r
}

func TestRampThenStop(t *testing.T) {
	s, r := newRecorded()
	err := s.Run(context.Background(), loco, Pattern{Ramp(0.25, 1.5, time.Second), Stop()})
	if err != nil {
		t.Fatal(err)
	}
	want := []event{}
	for i := 0; i <= 20; i++ {
		want = append(want, event{Sample: 0.25 + 0.0625*float64(i)}, event{Wait: DefaultSampleInterval})
	}
	want = append(want, event{Sample: 0})
	if got := r.Events(); !cmp.Equal(got, want) {
		t.Fatalf("diff: %s", cmp.Diff(want, got))
	}
}

func TestShortDurationIsClamped(t *testing.T) {
	s, r := newRecorded()
	err := s.Run(context.Background(), loco, Pattern{Ramp(0, 1, 10*time.Millisecond)})
	if err != nil {
		t.Fatal(err)
	}
	want := []event{
		{Sample: 0}, {Wait: DefaultSampleInterval},
		{Sample: 0.5}, {Wait: DefaultSampleInterval},
		{Sample: 1}, {Wait: DefaultSampleInterval},
	}
	if got := r.Events(); !cmp.Equal(got, want) {
		t.Fatalf("diff: %s", cmp.Diff(want, got))
	}

	s, r = newRecorded()
	err = s.Run(context.Background(), loco, Pattern{Hold(0.5, 10*time.Millisecond)})
	if err != nil {
		t.Fatal(err)
	}
	want = []event{{Sample: 0.5}, {Wait: MinStepDuration}}
	if got := r.Events(); !cmp.Equal(got, want) {
		t.Fatalf("diff: %s", cmp.Diff(want, got))
	}
}

func TestIntervalLongerThanStep(t *testing.T) {
	r := new(recorder)
	s := New(Conf{Sink: r, Wait: r.wait, SampleInterval: time.Second})
	err := s.Run(context.Background(), loco, Pattern{Ramp(0, 1, 200*time.Millisecond)})
	if err != nil {
		t.Fatal(err)
	}
	want := []event{{Sample: 0}, {Wait: time.Second}, {Sample: 1}, {Wait: time.Second}}
	if got := r.Events(); !cmp.Equal(got, want) {
		t.Fatalf("diff: %s", cmp.Diff(want, got))
	}
}

func TestStandard(t *testing.T) {
	s, r := newRecorded()
	h, err := s.Trigger(loco, StandardName)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Wait(); err != nil {
		t.Fatal(err)
	}
	samples := 0
	var waited time.Duration
	events := r.Events()
	for _, e := range events {
		if e.Wait == 0 {
			samples++
		}
		waited += e.Wait
	}
	if samples != 1+1+36+1+1 {
		t.Fatalf("samples = %d", samples)
	}
	if want := 1500*time.Millisecond + 2500*time.Millisecond + 36*DefaultSampleInterval + 250*time.Millisecond; waited != want {
		t.Fatalf("waited %s, want %s", waited, want)
	}
	if last := events[len(events)-1]; last != (event{Sample: 0}) {
		t.Fatalf("last event %#v", last)
	}
}

func TestUnknownPattern(t *testing.T) {
	s, _ := newRecorded()
	_, err := s.Trigger(loco, "toot")
	if !errors.Is(err, ErrUnknownPattern) {
		t.Fatalf("err = %v", err)
	}
	s.Register("toot", Pattern{Hold(1, time.Second), Stop()})
	if _, err := s.Trigger(loco, "toot"); err != nil {
		t.Fatal(err)
	}
	if got := s.Names(); !cmp.Equal(got, []string{StandardName, "toot"}) {
		t.Fatalf("names %v", got)
	}
}

// blockingSink records samples and blocks waits until cancelled.
type blockingSink struct {
	recorder
	entered chan struct{}
}

func (b *blockingSink) wait(ctx context.Context, d time.Duration) error {
	b.entered <- struct{}{}
	<-ctx.Done()
	return ctx.Err()
}

func TestRetriggerSupersedes(t *testing.T) {
	b := &blockingSink{entered: make(chan struct{}, 1)}
	s := New(Conf{Sink: b, Wait: b.wait})
	h1 := s.TriggerPattern(loco, Pattern{Hold(0.8, time.Minute)})
	select {
	case <-b.entered:
	case <-time.After(time.Second):
		t.Fatal("first pattern did not start")
	}
	h2 := s.TriggerPattern(loco, Pattern{Stop()})
	if err := h2.Wait(); err != nil {
		t.Fatal(err)
	}
	if err := h1.Wait(); !errors.Is(err, context.Canceled) {
		t.Fatalf("h1 err = %v", err)
	}
	want := []event{{Sample: 0.8}, {Sample: 0}, {Sample: 0}}
	if got := b.Events(); !cmp.Equal(got, want) {
		t.Fatalf("diff: %s", cmp.Diff(want, got))
	}
}

func TestCancel(t *testing.T) {
	b := &blockingSink{entered: make(chan struct{}, 1)}
	s := New(Conf{Sink: b, Wait: b.wait})
	h := s.TriggerPattern(loco, Pattern{Hold(1, time.Minute)})
	<-b.entered
	s.Cancel(loco)
	if err := h.Wait(); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	want := []event{{Sample: 1}, {Sample: 0}}
	if got := b.Events(); !cmp.Equal(got, want) {
		t.Fatalf("diff: %s", cmp.Diff(want, got))
	}
	// nothing is playing any more
	s.Cancel(loco)
}

func TestBell(t *testing.T) {
	m := world.NewMemory()
	err := m.AddCar(world.Car{ID: loco, Archetype: world.ArchetypeLocomotive}, world.CarState{})
	if err != nil {
		t.Fatal(err)
	}
	s := New(Conf{Sink: m})
	s.SetBell(loco, true)
	if st, _ := m.State(loco); !st.Bell {
		t.Fatal("bell not set")
	}
	s.SetBell(loco, false)
	if st, _ := m.State(loco); st.Bell {
		t.Fatal("bell not cleared")
	}
}
