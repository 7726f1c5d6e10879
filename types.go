package routeman

import (
	"fmt"

	"github.com/google/uuid"
)

// CarID identifies a single car. Locomotives are cars too.
type CarID uuid.UUID

func ParseCarID(s string) (CarID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return CarID{}, err
	}
	return CarID(u), nil
}

func MustParseCarID(s string) CarID {
	return CarID(uuid.MustParse(s))
}

func (c CarID) String() string {
	return uuid.UUID(c).String()
}

func (c CarID) MarshalText() ([]byte, error) {
	return uuid.UUID(c).MarshalText()
}

func (c *CarID) UnmarshalText(data []byte) error {
	return (*uuid.UUID)(c).UnmarshalText(data)
}

// StopID identifies a stop. Its position on the line is its index in the catalog.
type StopID string

// ActorRef refernces a single Actor.
// Only positive numbers are valid, and negative numbers are reserved.
type ActorRef struct {
	Index int
}

// Loopback, when set as the Origin in Diffuse1, makes the diffuse send to itself.
var Loopback = ActorRef{Index: -2}

func (r ActorRef) String() string {
	return fmt.Sprintf("<a:%x>", r.Index)
}

// Diffuse1 is a change of an actor's output value.
type Diffuse1 struct {
	// Origin of this diffusion. Blank means the sending actor itself.
	Origin ActorRef

	// Value is the new value.
	Value Value
}

func (d Diffuse1) String() string {
	return fmt.Sprintf("diffuse(%s %s)", d.Origin, d.Value)
}

// Value is any value used by actors.
// It is fmt.Stringer for debugging purposes.
type Value interface {
	fmt.Stringer
}

// Actor is a single asynchronous actor.
type Actor struct {
	// Comment is a human-friendly description about this actor.
	Comment string

	// InputCh is all diffuses relevant; it must be received within a reasonable time, as the runtime blocks on it.
	InputCh chan Diffuse1

	// OutputCh is all diffuses from the Actor; this is asynchronous, meaning it can be sent at any time.
	OutputCh chan Diffuse1

	// Inputs has ActorRef to all actors it depends on.
	Inputs []ActorRef

	Type ActorType
}

type ActorType struct {
	Input  bool
	Output bool
}

type Graph struct {
	Actors []Actor
}

// Add appends a to the graph and returns its reference.
func (g *Graph) Add(a Actor) ActorRef {
	g.Actors = append(g.Actors, a)
	return ActorRef{Index: len(g.Actors) - 1}
}
