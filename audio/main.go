// Package audio renders horn and bell state of one locomotive as tones.
package audio

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"go.uber.org/zap"
	. "nyiyui.ca/hato/routeman"
	"nyiyui.ca/hato/routeman/notify"
	"nyiyui.ca/hato/routeman/world"
)

const (
	HornFrequency = 311.13
	BellFrequency = 880
	bellGain      = 0.3
	bellRate      = 2 // strikes per second
)

// Horn is a beep.Streamer that never ends; silence is a zero intensity.
type Horn struct {
	rate beep.SampleRate
	// step is how much level may move towards target per sample.
	step float64

	lock      sync.Mutex
	target    float64
	level     float64
	bell      bool
	hornPhase float64
	bellPhase float64
	bellTick  int
}

var _ beep.Streamer = (*Horn)(nil)

// NewHorn returns a Horn at rate that reaches a new intensity within attack.
func NewHorn(rate beep.SampleRate, attack time.Duration) *Horn {
	n := rate.N(attack)
	if n < 1 {
		n = 1
	}
	return &Horn{rate: rate, step: 1 / float64(n)}
}

// SetIntensity sets the horn intensity, clamped to [0, 1].
func (h *Horn) SetIntensity(v float64) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.target = math.Max(0, math.Min(1, v))
}

func (h *Horn) Intensity() float64 {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.target
}

func (h *Horn) SetBell(on bool) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.bell = on
}

func (h *Horn) Stream(samples [][2]float64) (n int, ok bool) {
	h.lock.Lock()
	defer h.lock.Unlock()
	sr := float64(h.rate)
	strike := h.rate.N(time.Second / bellRate)
	for i := range samples {
		switch {
		case h.level < h.target:
			h.level = math.Min(h.target, h.level+h.step)
		case h.level > h.target:
			h.level = math.Max(h.target, h.level-h.step)
		}
		v := h.level * math.Sin(2*math.Pi*h.hornPhase)
		h.hornPhase = math.Mod(h.hornPhase+HornFrequency/sr, 1)
		if h.bell {
			decay := math.Exp(-6 * float64(h.bellTick) / float64(strike))
			v += bellGain * decay * math.Sin(2*math.Pi*h.bellPhase)
			h.bellPhase = math.Mod(h.bellPhase+BellFrequency/sr, 1)
			h.bellTick = (h.bellTick + 1) % strike
		} else {
			h.bellTick = 0
		}
		samples[i][0] = v
		samples[i][1] = v
	}
	return len(samples), true
}

func (h *Horn) Err() error { return nil }

// Follow applies horn and bell changes of loco from changes until ctx is done.
func (h *Horn) Follow(ctx context.Context, changes *notify.Multiplexer[world.Change], loco CarID) {
	ch := make(chan world.Change, 16)
	changes.Subscribe("audio", ch)
	defer changes.Unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-ch:
			pc, ok := c.(world.PropertyChange)
			if !ok || pc.Car != loco {
				continue
			}
			switch pc.Control {
			case world.ControlHorn:
				v, ok := pc.Value.(float64)
				if !ok {
					zap.S().Warnw("audio: horn value not a float", "change", pc)
					continue
				}
				h.SetIntensity(v)
			case world.ControlBell:
				v, ok := pc.Value.(bool)
				if !ok {
					zap.S().Warnw("audio: bell value not a bool", "change", pc)
					continue
				}
				h.SetBell(v)
			}
		}
	}
}
