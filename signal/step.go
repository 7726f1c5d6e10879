// Package signal plays timed horn patterns and sets bells on locomotives.
package signal

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultSampleInterval = 50 * time.Millisecond
	MinStepDuration       = 100 * time.Millisecond
)

// Step is a single horn step. With Final unset the horn is held at Intensity for
// Duration; with Final set it ramps linearly from Intensity to *Final.
// A zero Intensity without Final stops the horn immediately.
type Step struct {
	Intensity float64
	Final     *float64
	Duration  time.Duration
}

func (s Step) String() string {
	switch {
	case s.isStop():
		return "stop"
	case s.Final == nil:
		return fmt.Sprintf("hold(%g %s)", s.Intensity, s.Duration)
	default:
		return fmt.Sprintf("ramp(%g→%g %s)", s.Intensity, *s.Final, s.Duration)
	}
}

func (s Step) isStop() bool {
	return s.Intensity == 0 && s.Final == nil
}

// Hold returns a step holding intensity for d.
func Hold(intensity float64, d time.Duration) Step {
	return Step{Intensity: intensity, Duration: d}
}

// Ramp returns a step ramping from start to final over d.
func Ramp(start, final float64, d time.Duration) Step {
	return Step{Intensity: start, Final: &final, Duration: d}
}

// Stop returns a step silencing the horn without waiting.
func Stop() Step {
	return Step{}
}

// Pattern is a list of steps played one after another.
type Pattern []Step

// WaitFunc suspends for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run emits the samples of s through emit, suspending through wait between them.
func (s Step) run(ctx context.Context, interval time.Duration, emit func(float64), wait WaitFunc) error {
	if s.isStop() {
		emit(0)
		return nil
	}
	duration := s.Duration
	if duration < MinStepDuration {
		duration = MinStepDuration
	}
	if s.Final == nil {
		emit(s.Intensity)
		return wait(ctx, duration)
	}
	intervals := int(duration / interval)
	if intervals < 1 {
		intervals = 1
	}
	delta := (*s.Final - s.Intensity) / float64(intervals)
	for i := 0; i <= intervals; i++ {
		emit(s.Intensity + delta*float64(i))
		if err := wait(ctx, interval); err != nil {
			return err
		}
	}
	return nil
}
