package world

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	. "nyiyui.ca/hato/routeman"
)

var (
	loco   = MustParseCarID("a7453d82-d52f-43ec-84d2-54dcea72f8c1")
	tender = MustParseCarID("7b920d78-0c1b-49ef-ab2e-c1209f49bbc6")
	coach1 = MustParseCarID("2fe1cbb0-b584-45f5-96ec-a9bfd55b1e91")
	coach2 = MustParseCarID("0c8d4b55-7d3c-4d1e-9c70-1d8a0e5d54b2")
)

func testMemory(t *testing.T) *Memory {
	m := NewMemory()
	err := m.AddFormation(Formation{
		Comment: "test",
		Cars: []CarSpec{
			{ID: loco.String(), Name: "loco", Archetype: "locomotive", Loads: map[string]float64{"diesel-fuel": 500}},
			{ID: tender.String(), Name: "tender", Archetype: "tender", Loads: map[string]float64{"coal": 8}},
			{ID: coach1.String(), Name: "coach1", Archetype: "coach", Passengers: 12},
			{ID: coach2.String(), Name: "coach2", Archetype: "Coach", Passengers: 3},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func ids(cars []Car) []CarID {
	res := make([]CarID, len(cars))
	for i, c := range cars {
		res[i] = c.ID
	}
	return res
}

func TestCoupledCars(t *testing.T) {
	m := testMemory(t)
	cars, err := m.CoupledCars(loco)
	if err != nil {
		t.Fatal(err)
	}
	want := []CarID{loco, tender, coach1, coach2}
	if !cmp.Equal(ids(cars), want) {
		t.Fatalf("diff: %s", cmp.Diff(want, ids(cars)))
	}

	m.Uncouple(tender, coach1)
	cars, err = m.CoupledCars(loco)
	if err != nil {
		t.Fatal(err)
	}
	want = []CarID{loco, tender}
	if !cmp.Equal(ids(cars), want) {
		t.Fatalf("after uncouple: %s", cmp.Diff(want, ids(cars)))
	}

	if _, err := m.CoupledCars(MustParseCarID("00000000-0000-0000-0000-000000000001")); err == nil {
		t.Fatal("expected error for unknown car")
	}
}

func TestApply(t *testing.T) {
	m := testMemory(t)
	ch := make(chan Change, 4)
	m.Changes.Subscribe("test", ch)
	defer m.Changes.Unsubscribe(ch)

	m.Apply(SetPassengerDestinations{Car: coach1, Stops: []StopID{"a", "b"}})
	m.Apply(PropertyChange{Car: loco, Control: ControlHorn, Value: 0.5})
	m.Apply(PropertyChange{Car: loco, Control: ControlBell, Value: true})

	s, ok := m.State(coach1)
	if !ok {
		t.Fatal("coach1 missing")
	}
	if !cmp.Equal(s.Destinations, []StopID{"a", "b"}) {
		t.Fatalf("destinations %v", s.Destinations)
	}
	s, _ = m.State(loco)
	if s.Horn != 0.5 || !s.Bell {
		t.Fatalf("loco state %#v", s)
	}
	for i := 0; i < 3; i++ {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("change %d not published", i)
		}
	}
}

func TestApplyOrder(t *testing.T) {
	m := testMemory(t)
	const n = 200
	ch := make(chan Change, n+1)
	m.Changes.Subscribe("test", ch)
	defer m.Changes.Unsubscribe(ch)

	for i := 0; i < n; i++ {
		m.Apply(PropertyChange{Car: loco, Control: ControlHorn, Value: float64(i)})
	}
	m.Apply(PropertyChange{Car: loco, Control: ControlHorn, Value: float64(0)})
	for i := 0; i <= n; i++ {
		want := float64(i)
		if i == n {
			want = 0
		}
		select {
		case c := <-ch:
			if got := c.(PropertyChange).Value; got != want {
				t.Fatalf("change %d: horn %v, want %v", i, got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("change %d not published", i)
		}
	}
	if s, _ := m.State(loco); s.Horn != 0 {
		t.Fatalf("horn %g", s.Horn)
	}
}

func TestInspector(t *testing.T) {
	m := testMemory(t)
	if n, err := m.Passengers(coach1); err != nil || n != 12 {
		t.Fatalf("Passengers = %d, %v", n, err)
	}
	if q, ok := m.Load(loco, "diesel-fuel"); !ok || q != 500 {
		t.Fatalf("Load = %g, %t", q, ok)
	}
	if _, ok := m.Load(coach1, "diesel-fuel"); ok {
		t.Fatal("coach should carry no fuel")
	}
	if _, err := m.Position(MustParseCarID("00000000-0000-0000-0000-000000000001")); err == nil {
		t.Fatal("expected error for unknown car")
	}
}

func TestAddFormationRejectsBadArchetype(t *testing.T) {
	m := NewMemory()
	err := m.AddFormation(Formation{Cars: []CarSpec{{ID: loco.String(), Archetype: "hovercraft"}}})
	if err == nil {
		t.Fatal("expected error")
	}
}
