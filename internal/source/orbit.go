package source

import (
	"math"
	"sync"

	"github.com/orbital-demo/satlink/internal/telemetry"
)

// orbitStep is the simulated time added per position step.
const orbitStep = 0.075

// Orbit is the simulated motion of one object. It is safe for concurrent use.
type Orbit struct {
	mu       sync.RWMutex
	altitude float64
	elapsed  float64
	position telemetry.Vector3
	color    telemetry.RGB
}

// NewOrbit starts an orbit at the top of its circle, colored green.
func NewOrbit(altitude float64) *Orbit {
	return &Orbit{
		altitude: altitude,
		position: telemetry.Vector3{X: 0, Y: altitude, Z: 0},
		color:    telemetry.RGB{R: 0, G: 255, B: 0},
	}
}

// Step advances simulated time and returns the new position.
func (o *Orbit) Step() telemetry.Vector3 {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.elapsed += orbitStep
	o.position = telemetry.Vector3{
		X: math.Cos(0.01 * o.elapsed),
		Y: o.altitude * math.Cos(0.3*o.elapsed),
		Z: o.altitude * math.Sin(0.3*o.elapsed),
	}
	return o.position
}

// Recolor derives the color from the current simulated time.
func (o *Orbit) Recolor() telemetry.RGB {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.color = telemetry.RGB{
		R: math.Floor(127.5 * (math.Cos(o.elapsed) + 1)),
		G: 127,
		B: 0,
	}
	return o.color
}

// Position returns the last computed position.
func (o *Orbit) Position() telemetry.Vector3 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.position
}

// Color returns the last computed color.
func (o *Orbit) Color() telemetry.RGB {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.color
}

// Elapsed returns the simulated time.
func (o *Orbit) Elapsed() float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.elapsed
}
