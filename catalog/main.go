// Package catalog keeps the stops of a line in line order.
package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/tidwall/buntdb"
	. "nyiyui.ca/hato/routeman"
)

const (
	keyPrefix  = "stop:"
	orderIndex = "order"
)

var ErrDuplicateStop = errors.New("duplicate stop")

// Catalog is an ordered list of stops backed by buntdb.
// Use ":memory:" as the path to keep it in memory only.
type Catalog struct {
	db *buntdb.DB
}

func Open(path string) (*Catalog, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	err = db.CreateIndex(orderIndex, keyPrefix+"*", buntdb.IndexInt)
	if err != nil && !errors.Is(err, buntdb.ErrIndexExists) {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Catalog{db: db}, nil
}

// New returns an in-memory catalog holding stops.
func New(stops []StopID) (*Catalog, error) {
	c, err := Open(":memory:")
	if err != nil {
		return nil, err
	}
	err = c.Load(stops)
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

// Load replaces the contents of the catalog with stops, in line order.
// On error the catalog is left unchanged.
func (c *Catalog) Load(stops []StopID) error {
	// tx.Set never reports a replacement after DeleteAll, so check up front.
	seen := make(map[StopID]bool, len(stops))
	for _, stop := range stops {
		if seen[stop] {
			return fmt.Errorf("stop %s: %w", stop, ErrDuplicateStop)
		}
		seen[stop] = true
	}
	return c.db.Update(func(tx *buntdb.Tx) error {
		err := tx.DeleteAll()
		if err != nil {
			return err
		}
		for i, stop := range stops {
			_, _, err := tx.Set(keyPrefix+string(stop), strconv.Itoa(i), nil)
			if err != nil {
				return fmt.Errorf("stop %s: %w", stop, err)
			}
		}
		return nil
	})
}

// AllStops returns every stop in line order.
func (c *Catalog) AllStops() []StopID {
	res := []StopID{}
	err := c.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(orderIndex, func(key, value string) bool {
			res = append(res, StopID(strings.TrimPrefix(key, keyPrefix)))
			return true
		})
	})
	if err != nil {
		panic(fmt.Sprintf("catalog: ascend: %s", err))
	}
	return res
}

// IndexOf returns the position of stop in line order.
func (c *Catalog) IndexOf(stop StopID) (i int, ok bool) {
	err := c.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(keyPrefix + string(stop))
		if err != nil {
			return err
		}
		i, err = strconv.Atoi(value)
		return err
	})
	if err != nil {
		return -1, false
	}
	return i, true
}

// Suggest returns the cataloged stop with the closest name to stop.
func (c *Catalog) Suggest(stop StopID) (StopID, bool) {
	best := -1
	var bestStop StopID
	for _, s := range c.AllStops() {
		dist := levenshtein.ComputeDistance(strings.ToLower(string(stop)), strings.ToLower(string(s)))
		if best == -1 || dist < best {
			best = dist
			bestStop = s
		}
	}
	if best == -1 || best > len(stop)/2+1 {
		return "", false
	}
	return bestStop, true
}
