package world

import (
	"fmt"

	. "nyiyui.ca/hato/routeman"
)

// Formation is a set of cars coupled in order.
type Formation struct {
	Comment string `json:"comment" mapstructure:"comment"`
	// Cars must be ordered so that each car is coupled to the next one.
	Cars []CarSpec `json:"cars" mapstructure:"cars"`
}

type CarSpec struct {
	ID         string             `json:"id" mapstructure:"id"`
	Name       string             `json:"name" mapstructure:"name"`
	Archetype  string             `json:"archetype" mapstructure:"archetype"`
	Passengers int                `json:"passengers" mapstructure:"passengers"`
	Loads      map[string]float64 `json:"loads" mapstructure:"loads"`
	Position   Vec3               `json:"position" mapstructure:"position"`
}

func (cs CarSpec) car() (Car, error) {
	id, err := ParseCarID(cs.ID)
	if err != nil {
		return Car{}, fmt.Errorf("id %q: %w", cs.ID, err)
	}
	a, err := ParseArchetype(cs.Archetype)
	if err != nil {
		return Car{}, err
	}
	name := cs.Name
	if name == "" {
		name = id.String()
	}
	return Car{ID: id, DisplayName: name, Archetype: a}, nil
}

// AddFormation adds all cars of f to m and couples them in order.
func (m *Memory) AddFormation(f Formation) error {
	var prev CarID
	for i, cs := range f.Cars {
		c, err := cs.car()
		if err != nil {
			return fmt.Errorf("formation %s: car %d: %w", f.Comment, i, err)
		}
		err = m.AddCar(c, CarState{
			Passengers: cs.Passengers,
			Loads:      cs.Loads,
			Position:   cs.Position,
		})
		if err != nil {
			return fmt.Errorf("formation %s: car %d: %w", f.Comment, i, err)
		}
		if i != 0 {
			m.Couple(prev, c.ID)
		}
		prev = c.ID
	}
	return nil
}
