package world

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
	. "nyiyui.ca/hato/routeman"
	"nyiyui.ca/hato/routeman/notify"
)

// CarState is the mutable part of a car in Memory.
type CarState struct {
	Passengers int
	// PassengersUnknown makes Passengers fail, like a coach without a passenger marker.
	PassengersUnknown bool
	Loads             map[string]float64
	Position          Vec3

	Horn         float64
	Bell         bool
	Destinations []StopID
}

type memoryCar struct {
	car   Car
	state CarState
	links []CarID
}

// Memory is an in-memory World and Inspector.
type Memory struct {
	carsLock sync.RWMutex
	cars     map[CarID]*memoryCar

	changesS *notify.MultiplexerSender[Change]
	// Changes publishes every applied change, in the order Apply was called.
	Changes *notify.Multiplexer[Change]
}

var (
	_ World     = (*Memory)(nil)
	_ Inspector = (*Memory)(nil)
)

func NewMemory() *Memory {
	m := &Memory{
		cars: map[CarID]*memoryCar{},
	}
	m.changesS, m.Changes = notify.NewMultiplexerSender[Change]("world changes")
	return m
}

func (m *Memory) AddCar(c Car, s CarState) error {
	m.carsLock.Lock()
	defer m.carsLock.Unlock()
	if _, ok := m.cars[c.ID]; ok {
		return fmt.Errorf("car %s already exists", c.ID)
	}
	m.cars[c.ID] = &memoryCar{car: c, state: s}
	return nil
}

// Couple couples a and b. Unknown cars are ignored.
func (m *Memory) Couple(a, b CarID) {
	m.carsLock.Lock()
	defer m.carsLock.Unlock()
	ca, okA := m.cars[a]
	cb, okB := m.cars[b]
	if !okA || !okB || a == b {
		return
	}
	if !slices.Contains(ca.links, b) {
		ca.links = append(ca.links, b)
	}
	if !slices.Contains(cb.links, a) {
		cb.links = append(cb.links, a)
	}
}

func (m *Memory) Uncouple(a, b CarID) {
	m.carsLock.Lock()
	defer m.carsLock.Unlock()
	if ca, ok := m.cars[a]; ok {
		if i := slices.Index(ca.links, b); i != -1 {
			ca.links = slices.Delete(ca.links, i, i+1)
		}
	}
	if cb, ok := m.cars[b]; ok {
		if i := slices.Index(cb.links, a); i != -1 {
			cb.links = slices.Delete(cb.links, i, i+1)
		}
	}
}

// CoupledCars walks the coupling graph breadth-first from car.
func (m *Memory) CoupledCars(car CarID) ([]Car, error) {
	m.carsLock.RLock()
	defer m.carsLock.RUnlock()
	start, ok := m.cars[car]
	if !ok {
		return nil, fmt.Errorf("car %s not found", car)
	}
	seen := map[CarID]bool{car: true}
	queue := []*memoryCar{start}
	res := make([]Car, 0, 1)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		res = append(res, c.car)
		for _, id := range c.links {
			if seen[id] {
				continue
			}
			seen[id] = true
			queue = append(queue, m.cars[id])
		}
	}
	return res, nil
}

// Apply applies c and publishes it once every subscriber has it or timed out.
// carsLock is released before publishing, so subscribers may read the world.
func (m *Memory) Apply(c Change) {
	func() {
		m.carsLock.Lock()
		defer m.carsLock.Unlock()
		mc, ok := m.cars[c.Target()]
		if !ok {
			zap.S().Debugw("change to unknown car", "change", c)
			return
		}
		switch c := c.(type) {
		case PropertyChange:
			switch c.Control {
			case ControlHorn:
				if v, ok := c.Value.(float64); ok {
					mc.state.Horn = v
				}
			case ControlBell:
				if v, ok := c.Value.(bool); ok {
					mc.state.Bell = v
				}
			}
		case SetPassengerDestinations:
			mc.state.Destinations = slices.Clone(c.Stops)
		}
	}()
	m.changesS.Send(c)
}

// State returns a copy of the state of car.
func (m *Memory) State(car CarID) (CarState, bool) {
	m.carsLock.RLock()
	defer m.carsLock.RUnlock()
	mc, ok := m.cars[car]
	if !ok {
		return CarState{}, false
	}
	s := mc.state
	s.Destinations = slices.Clone(s.Destinations)
	return s, true
}

func (m *Memory) SetPosition(car CarID, pos Vec3) {
	m.carsLock.Lock()
	defer m.carsLock.Unlock()
	if mc, ok := m.cars[car]; ok {
		mc.state.Position = pos
	}
}

func (m *Memory) SetPassengers(car CarID, n int) {
	m.carsLock.Lock()
	defer m.carsLock.Unlock()
	if mc, ok := m.cars[car]; ok {
		mc.state.Passengers = n
		mc.state.PassengersUnknown = false
	}
}

func (m *Memory) Passengers(car CarID) (int, error) {
	m.carsLock.RLock()
	defer m.carsLock.RUnlock()
	mc, ok := m.cars[car]
	if !ok {
		return 0, fmt.Errorf("car %s not found", car)
	}
	if mc.state.PassengersUnknown {
		return 0, fmt.Errorf("car %s has no passenger marker", mc.car.DisplayName)
	}
	return mc.state.Passengers, nil
}

func (m *Memory) Load(car CarID, load string) (float64, bool) {
	m.carsLock.RLock()
	defer m.carsLock.RUnlock()
	mc, ok := m.cars[car]
	if !ok {
		return 0, false
	}
	q, ok := mc.state.Loads[load]
	return q, ok
}

func (m *Memory) Position(car CarID) (Vec3, error) {
	m.carsLock.RLock()
	defer m.carsLock.RUnlock()
	mc, ok := m.cars[car]
	if !ok {
		return Vec3{}, fmt.Errorf("car %s not found", car)
	}
	return mc.state.Position, nil
}
