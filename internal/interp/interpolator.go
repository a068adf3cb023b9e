// Package interp turns discrete telemetry reports into continuous motion.
//
// An Interpolator blends from the value it is currently showing toward the most
// recently reported target over a fixed window. Retargeting mid-flight restarts
// the blend from the current value, so frequent or late reports never produce a
// visible jump.
package interp

import (
	"fmt"
	"math"
	"time"
)

// Lerp blends two values; t=0 yields from, t=1 yields to.
type Lerp[T any] func(from, to T, t float64) T

// Easing maps linear progress in [0,1] onto eased progress in [0,1].
type Easing func(t float64) float64

// Linear is the identity easing.
func Linear(t float64) float64 { return t }

// QuadInOut accelerates over the first half of the window and decelerates over the second.
func QuadInOut(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - math.Pow(-2*t+2, 2)/2
}

// EasingByName resolves a configured easing name.
func EasingByName(name string) (Easing, error) {
	switch name {
	case "", "linear":
		return Linear, nil
	case "quadInOut":
		return QuadInOut, nil
	default:
		return nil, fmt.Errorf("unknown easing %q", name)
	}
}

// Interpolator advances a value from its last known state toward a target.
// It is not safe for concurrent use; the owner serializes access.
type Interpolator[T any] struct {
	from    T
	to      T
	elapsed time.Duration
	window  time.Duration
	lerp    Lerp[T]
	ease    Easing
}

// New creates an interpolator at rest on initial.
func New[T any](initial T, window time.Duration, lerp Lerp[T], ease Easing) *Interpolator[T] {
	if ease == nil {
		ease = Linear
	}
	if window < 0 {
		window = 0
	}
	return &Interpolator[T]{
		from:    initial,
		to:      initial,
		elapsed: window,
		window:  window,
		lerp:    lerp,
		ease:    ease,
	}
}

// Value samples the current blend without advancing time.
func (i *Interpolator[T]) Value() T {
	p := i.progress()
	if p >= 1 {
		return i.to
	}
	return i.lerp(i.from, i.to, p)
}

// Target returns the value the interpolator is heading to.
func (i *Interpolator[T]) Target() T {
	return i.to
}

// Done reports whether the current transition has completed.
func (i *Interpolator[T]) Done() bool {
	return i.elapsed >= i.window
}

// Window returns the transition duration.
func (i *Interpolator[T]) Window() time.Duration {
	return i.window
}

// Retarget redirects the transition toward target, starting from the value
// currently shown.
func (i *Interpolator[T]) Retarget(target T) {
	i.from = i.Value()
	i.to = target
	i.elapsed = 0
}

// Tick advances the transition by dt and returns the new value.
func (i *Interpolator[T]) Tick(dt time.Duration) T {
	if dt > 0 {
		i.elapsed += dt
		if i.elapsed > i.window {
			i.elapsed = i.window
		}
	}
	return i.Value()
}

// SetWindow changes the transition duration. The in-flight transition restarts
// from the current value so the change is seamless.
func (i *Interpolator[T]) SetWindow(window time.Duration) {
	if window < 0 {
		window = 0
	}
	if window == i.window {
		return
	}
	if i.Done() {
		i.from = i.to
		i.window = window
		i.elapsed = window
		return
	}
	i.from = i.Value()
	i.window = window
	i.elapsed = 0
}

func (i *Interpolator[T]) progress() float64 {
	if i.window <= 0 {
		return 1
	}
	p := float64(i.elapsed) / float64(i.window)
	if p >= 1 {
		return 1
	}
	return i.ease(p)
}
