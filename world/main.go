// Package world is the vehicle model the automation reads from and writes to.
//
// World and Inspector are what the automation consumes; Memory is an in-memory
// implementation of both used by the command and by tests.
package world

import (
	"fmt"
	"strings"

	. "nyiyui.ca/hato/routeman"
)

type Archetype int

const (
	ArchetypeOther Archetype = iota
	ArchetypeLocomotive
	ArchetypeTender
	ArchetypeCoach
	ArchetypeFreight
)

var archetypeNames = map[Archetype]string{
	ArchetypeOther:      "other",
	ArchetypeLocomotive: "locomotive",
	ArchetypeTender:     "tender",
	ArchetypeCoach:      "coach",
	ArchetypeFreight:    "freight",
}

func (a Archetype) String() string {
	name, ok := archetypeNames[a]
	if !ok {
		return fmt.Sprintf("archetype(%d)", int(a))
	}
	return name
}

func ParseArchetype(s string) (Archetype, error) {
	for a, name := range archetypeNames {
		if strings.EqualFold(name, s) {
			return a, nil
		}
	}
	return ArchetypeOther, fmt.Errorf("unknown archetype %q", s)
}

type Car struct {
	ID          CarID
	DisplayName string
	Archetype   Archetype
}

func (c Car) String() string {
	return fmt.Sprintf("%s(%s)", c.DisplayName, c.Archetype)
}

// World is the part of the vehicle model needed to run the automation.
type World interface {
	// CoupledCars returns the car and all cars transitively coupled to it, including itself.
	// It is enumerated fresh on every call.
	CoupledCars(car CarID) ([]Car, error)
	// Apply applies a change. It does not wait for the change to take effect.
	Apply(c Change)
}

// Inspector answers read-only queries about single cars.
type Inspector interface {
	Passengers(car CarID) (int, error)
	// Load returns the quantity of the named load, if the car carries it.
	Load(car CarID, load string) (float64, bool)
	Position(car CarID) (Vec3, error)
}

type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(w Vec3) Vec3       { return Vec3{v.X + w.X, v.Y + w.Y, v.Z + w.Z} }
func (v Vec3) Sub(w Vec3) Vec3       { return Vec3{v.X - w.X, v.Y - w.Y, v.Z - w.Z} }
func (v Vec3) Scale(f float64) Vec3  { return Vec3{v.X * f, v.Y * f, v.Z * f} }
func (v Vec3) SqrMagnitude() float64 { return v.X*v.X + v.Y*v.Y + v.Z*v.Z }
func (v Vec3) String() string        { return fmt.Sprintf("(%g %g %g)", v.X, v.Y, v.Z) }

type Control int

const (
	ControlHorn Control = iota + 1
	ControlBell
)

func (c Control) String() string {
	switch c {
	case ControlHorn:
		return "horn"
	case ControlBell:
		return "bell"
	default:
		return fmt.Sprintf("control(%d)", int(c))
	}
}

func (c Control) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Change is a single change applied to the world.
type Change interface {
	fmt.Stringer
	Target() CarID
}

// PropertyChange sets a control of a car.
// Value is a float64 for ControlHorn and a bool for ControlBell.
type PropertyChange struct {
	Car     CarID
	Control Control
	Value   any
}

func (pc PropertyChange) Target() CarID { return pc.Car }

func (pc PropertyChange) String() string {
	return fmt.Sprintf("property(%s %s=%v)", pc.Car, pc.Control, pc.Value)
}

// SetPassengerDestinations replaces the set of stops passengers in a coach may travel to.
type SetPassengerDestinations struct {
	Car   CarID
	Stops []StopID
}

func (spd SetPassengerDestinations) Target() CarID { return spd.Car }

func (spd SetPassengerDestinations) String() string {
	return fmt.Sprintf("destinations(%s %v)", spd.Car, spd.Stops)
}
