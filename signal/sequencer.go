package signal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	. "nyiyui.ca/hato/routeman"
	"nyiyui.ca/hato/routeman/world"
)

var ErrUnknownPattern = errors.New("unknown pattern")

// Applier receives horn and bell changes.
type Applier interface {
	Apply(c world.Change)
}

type Conf struct {
	Sink Applier
	// SampleInterval is the time between two samples of a ramp. Defaults to DefaultSampleInterval.
	SampleInterval time.Duration
	// Wait defaults to a timer.
	Wait WaitFunc
}

// Sequencer plays patterns, at most one per locomotive at a time.
type Sequencer struct {
	sink     Applier
	interval time.Duration
	wait     WaitFunc

	patternsLock sync.RWMutex
	patterns     map[string]Pattern

	runningLock sync.Mutex
	running     map[CarID]*Handle
}

func New(conf Conf) *Sequencer {
	s := &Sequencer{
		sink:     conf.Sink,
		interval: conf.SampleInterval,
		wait:     conf.Wait,
		patterns: presets(),
		running:  map[CarID]*Handle{},
	}
	if s.interval <= 0 {
		s.interval = DefaultSampleInterval
	}
	if s.wait == nil {
		s.wait = sleep
	}
	return s
}

// Register adds or replaces a named pattern.
func (s *Sequencer) Register(name string, p Pattern) {
	s.patternsLock.Lock()
	defer s.patternsLock.Unlock()
	s.patterns[name] = p
}

func (s *Sequencer) Pattern(name string) (Pattern, bool) {
	s.patternsLock.RLock()
	defer s.patternsLock.RUnlock()
	p, ok := s.patterns[name]
	return p, ok
}

// Names returns the names of all patterns, sorted.
func (s *Sequencer) Names() []string {
	s.patternsLock.RLock()
	defer s.patternsLock.RUnlock()
	names := make([]string, 0, len(s.patterns))
	for name := range s.patterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Sequencer) horn(loco CarID, intensity float64) {
	s.sink.Apply(world.PropertyChange{Car: loco, Control: world.ControlHorn, Value: intensity})
}

// SetBell rings or silences the bell of loco.
func (s *Sequencer) SetBell(loco CarID, on bool) {
	s.sink.Apply(world.PropertyChange{Car: loco, Control: world.ControlBell, Value: on})
}

// Run plays p on loco and returns when it is done.
// If ctx is done midway, the horn is silenced and ctx.Err() is returned.
func (s *Sequencer) Run(ctx context.Context, loco CarID, p Pattern) error {
	emit := func(intensity float64) { s.horn(loco, intensity) }
	for i, step := range p {
		err := step.run(ctx, s.interval, emit, s.wait)
		if err != nil {
			s.horn(loco, 0)
			return fmt.Errorf("step %d %s: %w", i, step, err)
		}
	}
	return nil
}

// Handle refers to a pattern playing in the background.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Cancel stops the pattern. It does not wait for it to stop.
func (h *Handle) Cancel() { h.cancel() }

func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait waits for the pattern to end and returns why it ended.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Trigger plays the named pattern on loco in the background.
// A pattern already playing on loco is cancelled first, and the new one only
// starts once the old one has stopped.
func (s *Sequencer) Trigger(loco CarID, name string) (*Handle, error) {
	p, ok := s.Pattern(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownPattern)
	}
	return s.TriggerPattern(loco, p), nil
}

func (s *Sequencer) TriggerPattern(loco CarID, p Pattern) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	s.runningLock.Lock()
	prev := s.running[loco]
	s.running[loco] = h
	s.runningLock.Unlock()
	go func() {
		defer close(h.done)
		defer cancel()
		if prev != nil {
			zap.S().Debugw("superseding pattern", "loco", loco)
			prev.Cancel()
			<-prev.done
		}
		if err := ctx.Err(); err != nil {
			// superseded before it started
			h.err = err
		} else {
			h.err = s.Run(ctx, loco, p)
		}
		s.runningLock.Lock()
		if s.running[loco] == h {
			delete(s.running, loco)
		}
		s.runningLock.Unlock()
	}()
	return h
}

// Cancel stops the pattern playing on loco, if any, and waits for it to stop.
func (s *Sequencer) Cancel(loco CarID) {
	s.runningLock.Lock()
	h := s.running[loco]
	s.runningLock.Unlock()
	if h == nil {
		return
	}
	h.Cancel()
	<-h.done
}

// Close stops all patterns.
func (s *Sequencer) Close() {
	s.runningLock.Lock()
	hs := make([]*Handle, 0, len(s.running))
	for _, h := range s.running {
		hs = append(hs, h)
	}
	s.runningLock.Unlock()
	for _, h := range hs {
		h.Cancel()
		<-h.done
	}
}
