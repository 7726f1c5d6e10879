// Package auto runs route automation for locomotives: which stops each
// locomotive serves, whether route mode is on, and pushing the stops ahead to
// its coaches.
//
// All state lives in a Context. Each locomotive has its own record and lock, so
// operations on different locomotives never wait for each other.
package auto

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	. "nyiyui.ca/hato/routeman"
	"nyiyui.ca/hato/routeman/notify"
	"nyiyui.ca/hato/routeman/signal"
	"nyiyui.ca/hato/routeman/world"
)

// Catalog is the ordered list of stops on the line.
type Catalog interface {
	AllStops() []StopID
	IndexOf(stop StopID) (int, bool)
}

type Conf struct {
	Catalog Catalog
	World   world.World
	// Inspector is optional; without it consist queries return zero values.
	Inspector world.Inspector
	// Signals is optional; without it signal operations are no-ops.
	Signals *signal.Sequencer
	// DeparturePattern is triggered when a locomotive in route mode departs. Empty disables it.
	DeparturePattern string
}

type Context struct {
	conf Conf

	locosLock sync.RWMutex
	locos     map[CarID]*locoState

	routeModeS *notify.MultiplexerSender[RouteModeChanged]
	routeMode  *notify.Multiplexer[RouteModeChanged]
	advisoryS  *notify.MultiplexerSender[Advisory]
	advisory   *notify.Multiplexer[Advisory]
}

// locoState is everything known about one locomotive.
type locoState struct {
	lock sync.Mutex

	// selections is nil until initialized.
	selections map[StopID]bool
	// selected is derived from selections.
	selected []StopID

	routeMode bool

	destination    StopID
	hasDestination bool
	forward        bool
}

func New(conf Conf) *Context {
	c := &Context{
		conf:  conf,
		locos: map[CarID]*locoState{},
	}
	c.routeModeS, c.routeMode = notify.NewMultiplexerSender[RouteModeChanged]("route mode")
	c.advisoryS, c.advisory = notify.NewMultiplexerSender[Advisory]("advisory")
	return c
}

// lookup returns the record of loco, or nil. It never creates one.
func (c *Context) lookup(loco CarID) *locoState {
	c.locosLock.RLock()
	defer c.locosLock.RUnlock()
	return c.locos[loco]
}

// register returns the record of loco, creating it if needed.
func (c *Context) register(loco CarID) *locoState {
	if ls := c.lookup(loco); ls != nil {
		return ls
	}
	c.locosLock.Lock()
	defer c.locosLock.Unlock()
	ls, ok := c.locos[loco]
	if !ok {
		zap.S().Debugw("registering locomotive", "loco", loco)
		ls = new(locoState)
		c.locos[loco] = ls
	}
	return ls
}

// Locos returns every registered locomotive.
func (c *Context) Locos() []CarID {
	c.locosLock.RLock()
	defer c.locosLock.RUnlock()
	res := make([]CarID, 0, len(c.locos))
	for loco := range c.locos {
		res = append(res, loco)
	}
	return res
}

// Status is a snapshot of one locomotive.
type Status struct {
	Loco        CarID    `json:"loco"`
	Known       bool     `json:"known"`
	RouteMode   bool     `json:"routeMode"`
	Selected    []StopID `json:"selected"`
	Destination *StopID  `json:"destination"`
	Forward     bool     `json:"forward"`
}

func (s Status) String() string {
	return fmt.Sprintf("status(%s mode=%t selected=%v)", s.Loco, s.RouteMode, s.Selected)
}

func (c *Context) Status(loco CarID) Status {
	st := Status{Loco: loco, Selected: []StopID{}}
	ls := c.lookup(loco)
	if ls == nil {
		return st
	}
	ls.lock.Lock()
	defer ls.lock.Unlock()
	st.Known = true
	st.RouteMode = ls.routeMode
	st.Selected = append(st.Selected, ls.selected...)
	if ls.hasDestination {
		dest := ls.destination
		st.Destination = &dest
	}
	st.Forward = ls.forward
	return st
}
