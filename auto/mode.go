package auto

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	. "nyiyui.ca/hato/routeman"
)

var ErrNoStopsSelected = errors.New("no stops selected")

// RouteModeChanged is published once for every accepted route mode change.
// Enabled is the mode the change set, not the current one.
type RouteModeChanged struct {
	Loco    CarID `json:"loco"`
	Enabled bool  `json:"enabled"`
}

func (r RouteModeChanged) String() string {
	return fmt.Sprintf("route-mode-changed(%s enabled=%t)", r.Loco, r.Enabled)
}

// Advisory is a message meant for the person operating Loco.
type Advisory struct {
	Loco    CarID  `json:"loco"`
	Message string `json:"message"`
}

func (a Advisory) String() string {
	return fmt.Sprintf("advisory(%s %q)", a.Loco, a.Message)
}

// OnRouteModeChanged subscribes ch to route mode changes. Values are sent
// synchronously from SetRouteMode, so ch should be buffered or drained promptly.
func (c *Context) OnRouteModeChanged(comment string, ch chan RouteModeChanged) {
	c.routeMode.Subscribe(comment, ch)
}

func (c *Context) OffRouteModeChanged(ch chan RouteModeChanged) {
	c.routeMode.Unsubscribe(ch)
}

func (c *Context) OnAdvisory(comment string, ch chan Advisory) {
	c.advisory.Subscribe(comment, ch)
}

func (c *Context) OffAdvisory(ch chan Advisory) {
	c.advisory.Unsubscribe(ch)
}

// IsRouteModeEnabled reports whether route mode is on for loco.
// Unknown locomotives are reported as disabled and stay unknown.
func (c *Context) IsRouteModeEnabled(loco CarID) bool {
	ls := c.lookup(loco)
	if ls == nil {
		zap.S().Debugw("route mode of unknown locomotive", "loco", loco)
		return false
	}
	ls.lock.Lock()
	defer ls.lock.Unlock()
	return ls.routeMode
}

// SetRouteMode turns route mode on or off for loco.
// Turning it on requires at least one selected stop; otherwise nothing changes,
// an Advisory is published and ErrNoStopsSelected is returned.
// Once on, route mode stays on even if every stop is later deselected.
func (c *Context) SetRouteMode(loco CarID, on bool) error {
	if on {
		accepted := false
		if ls := c.lookup(loco); ls != nil {
			ls.lock.Lock()
			if len(ls.selected) > 0 {
				zap.S().Debugw("route mode", "loco", loco, "from", ls.routeMode, "to", true)
				ls.routeMode = true
				accepted = true
			}
			ls.lock.Unlock()
		}
		if !accepted {
			msg := fmt.Sprintf("There are no stops selected for %s. Please select at least 1 stop before enabling route mode.", loco)
			zap.S().Infow("route mode rejected", "loco", loco, "reason", msg)
			c.advisoryS.Send(Advisory{Loco: loco, Message: msg})
			return fmt.Errorf("enable route mode for %s: %w", loco, ErrNoStopsSelected)
		}
	} else {
		ls := c.register(loco)
		ls.lock.Lock()
		zap.S().Debugw("route mode", "loco", loco, "from", ls.routeMode, "to", false)
		ls.routeMode = false
		ls.lock.Unlock()
	}
	c.routeModeS.Send(RouteModeChanged{Loco: loco, Enabled: on})
	return nil
}
