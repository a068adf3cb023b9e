//
//
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMalformed is returned for any payload that does not match the wire format.
var ErrMalformed = errors.New("MALFORMED")

// Kind identifies which part of a source's state an update carries.
type Kind int

const (
	KindPosition Kind = iota
	KindColor
	KindHealth
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindPosition:
		return "position"
	case KindColor:
		return "color"
	case KindHealth:
		return "health"
	default:
		return "unknown"
	}
}

// Vector3 is a position in scene units.
type Vector3 struct {
	X float64
	Y float64
	Z float64
}

// RGB is a color with components in [0, 255]. Components are floats so that
// interpolated colors keep their precision.
type RGB struct {
	R float64
	G float64
	B float64
}

// State is the last reported telemetry of one source.
type State struct {
	Position Vector3 `json:"position"`
	Color    RGB     `json:"color"`
}

// DefaultState is the state an entity starts from before its first update.
func DefaultState() State {
	return State{
		Position: Vector3{X: 1.1, Y: 0, Z: 0},
		Color:    RGB{R: 0, G: 255, B: 0},
	}
}

// Health carries the reporting intervals a source prefers.
// A zero field means the source did not state a preference.
type Health struct {
	Position time.Duration
	Color    time.Duration
}

// Update is one change emitted by a transport adapter.
type Update struct {
	Kind     Kind
	Position Vector3
	Color    RGB
	Health   Health
}

// PositionUpdate builds a position update.
func PositionUpdate(v Vector3) Update {
	return Update{Kind: KindPosition, Position: v}
}

// ColorUpdate builds a color update.
func ColorUpdate(c RGB) Update {
	return Update{Kind: KindColor, Color: c}
}

// HealthUpdate builds a health update.
func HealthUpdate(h Health) Update {
	return Update{Kind: KindHealth, Health: h}
}

// MarshalJSON encodes the vector as [x,y,z].
func (v Vector3) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{v.X, v.Y, v.Z})
}

// UnmarshalJSON decodes [x,y,z]. Exactly three finite numbers are accepted.
func (v *Vector3) UnmarshalJSON(data []byte) error {
	triple, err := decodeTriple(data)
	if err != nil {
		return err
	}
	v.X, v.Y, v.Z = triple[0], triple[1], triple[2]
	return nil
}

// MarshalJSON encodes the color as [r,g,b].
func (c RGB) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{c.R, c.G, c.B})
}

// UnmarshalJSON decodes [r,g,b] with every component in [0, 255].
func (c *RGB) UnmarshalJSON(data []byte) error {
	triple, err := decodeTriple(data)
	if err != nil {
		return err
	}
	for _, component := range triple {
		if component < 0 || component > 255 {
			return fmt.Errorf("%w: color component %v outside [0, 255]", ErrMalformed, component)
		}
	}
	c.R, c.G, c.B = triple[0], triple[1], triple[2]
	return nil
}

// Hex returns the color as #rrggbb, rounding each component.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", channel(c.R), channel(c.G), channel(c.B))
}

func channel(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(255, v))))
}

func decodeTriple(data []byte) ([3]float64, error) {
	var raw []json.Number
	var out [3]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return out, fmt.Errorf("%w: expected array of 3 numbers: %v", ErrMalformed, err)
	}
	if len(raw) != 3 {
		return out, fmt.Errorf("%w: expected 3 numbers, got %d", ErrMalformed, len(raw))
	}
	for i, n := range raw {
		f, err := n.Float64()
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return out, fmt.Errorf("%w: element %d is not a finite number", ErrMalformed, i)
		}
		out[i] = f
	}
	return out, nil
}

// LerpVector3 blends two positions; t=0 yields a, t=1 yields b.
func LerpVector3(a, b Vector3, t float64) Vector3 {
	return Vector3{
		X: a.X + (b.X-a.X)*t,
		Y: a.Y + (b.Y-a.Y)*t,
		Z: a.Z + (b.Z-a.Z)*t,
	}
}

// LerpRGB blends two colors component-wise.
func LerpRGB(a, b RGB, t float64) RGB {
	return RGB{
		R: a.R + (b.R-a.R)*t,
		G: a.G + (b.G-a.G)*t,
		B: a.B + (b.B-a.B)*t,
	}
}

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Dot returns the dot product.
func (v Vector3) Dot(o Vector3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Len returns the euclidean length.
func (v Vector3) Len() float64 {
	return math.Sqrt(v.Dot(v))
}

// Scale returns v * s.
func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}
