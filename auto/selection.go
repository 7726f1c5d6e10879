package auto

import (
	"sort"

	"go.uber.org/zap"
	. "nyiyui.ca/hato/routeman"
)

// IsStopSelected reports whether stop is selected for loco.
// Unknown locomotives and stops are never selected.
func (c *Context) IsStopSelected(stop StopID, loco CarID) bool {
	ls := c.lookup(loco)
	if ls == nil {
		return false
	}
	ls.lock.Lock()
	defer ls.lock.Unlock()
	return ls.selections[stop]
}

// SetStopSelected selects or deselects stop for loco, whether or not route mode is on.
func (c *Context) SetStopSelected(stop StopID, loco CarID, selected bool) {
	ls := c.register(loco)
	ls.lock.Lock()
	defer ls.lock.Unlock()
	c.initSelections(ls)
	ls.selections[stop] = selected
	ls.selected = c.deriveSelected(ls.selections)
	zap.S().Debugw("set stop selection", "loco", loco, "stop", stop, "selected", selected)
}

// HasAnySelected reports whether loco has at least one stop selected.
func (c *Context) HasAnySelected(loco CarID) bool {
	ls := c.lookup(loco)
	if ls == nil {
		return false
	}
	ls.lock.Lock()
	defer ls.lock.Unlock()
	return len(ls.selected) > 0
}

// SelectedStops returns the stops selected for loco in line order.
func (c *Context) SelectedStops(loco CarID) []StopID {
	ls := c.lookup(loco)
	if ls == nil {
		return nil
	}
	ls.lock.Lock()
	defer ls.lock.Unlock()
	return append([]StopID(nil), ls.selected...)
}

// InitializeSelection gives loco an entry, not selected, for every cataloged stop.
// It does nothing if loco already has one.
func (c *Context) InitializeSelection(loco CarID) {
	ls := c.register(loco)
	ls.lock.Lock()
	defer ls.lock.Unlock()
	c.initSelections(ls)
}

// ls.lock must be taken!
func (c *Context) initSelections(ls *locoState) {
	if ls.selections != nil {
		return
	}
	stops := c.conf.Catalog.AllStops()
	ls.selections = make(map[StopID]bool, len(stops))
	for _, stop := range stops {
		ls.selections[stop] = false
	}
}

// deriveSelected lists the selected stops in line order. Stops missing from the
// catalog come last, sorted by name.
func (c *Context) deriveSelected(selections map[StopID]bool) []StopID {
	type indexed struct {
		stop  StopID
		index int
	}
	res := make([]indexed, 0)
	for stop, ok := range selections {
		if !ok {
			continue
		}
		i, found := c.conf.Catalog.IndexOf(stop)
		if !found {
			i = -1
		}
		res = append(res, indexed{stop, i})
	}
	sort.Slice(res, func(a, b int) bool {
		ia, ib := res[a].index, res[b].index
		switch {
		case ia == -1 && ib == -1:
			return res[a].stop < res[b].stop
		case ia == -1:
			return false
		case ib == -1:
			return true
		default:
			return ia < ib
		}
	})
	stops := make([]StopID, len(res))
	for i, r := range res {
		stops[i] = r.stop
	}
	return stops
}
