package auto

import (
	"errors"

	. "nyiyui.ca/hato/routeman"
	"nyiyui.ca/hato/routeman/signal"
)

var ErrNoSequencer = errors.New("no signal sequencer configured")

// TriggerSignalPattern plays the named horn pattern on loco, replacing whatever it was playing.
func (c *Context) TriggerSignalPattern(loco CarID, name string) (*signal.Handle, error) {
	if c.conf.Signals == nil {
		return nil, ErrNoSequencer
	}
	return c.conf.Signals.Trigger(loco, name)
}

func (c *Context) SetBell(loco CarID, on bool) error {
	if c.conf.Signals == nil {
		return ErrNoSequencer
	}
	c.conf.Signals.SetBell(loco, on)
	return nil
}
