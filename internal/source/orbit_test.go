package source

import (
	"math"
	"testing"
)

func TestOrbitStartsAtRest(t *testing.T) {
	o := NewOrbit(1.3)

	if p := o.Position(); p.X != 0 || p.Y != 1.3 || p.Z != 0 {
		t.Errorf("Expected initial position (0, 1.3, 0), got %+v", p)
	}
	if c := o.Color(); c.R != 0 || c.G != 255 || c.B != 0 {
		t.Errorf("Expected initial color green, got %+v", c)
	}
}

func TestOrbitStep(t *testing.T) {
	o := NewOrbit(2)

	var p = o.Position()
	for i := 0; i < 10; i++ {
		p = o.Step()
	}

	elapsed := 10 * orbitStep
	if math.Abs(o.Elapsed()-elapsed) > 1e-9 {
		t.Errorf("Expected elapsed %v, got %v", elapsed, o.Elapsed())
	}
	want := [3]float64{math.Cos(0.01 * elapsed), 2 * math.Cos(0.3*elapsed), 2 * math.Sin(0.3*elapsed)}
	got := [3]float64{p.X, p.Y, p.Z}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("Component %d: expected %v, got %v", i, want[i], got[i])
		}
	}

	// The orbit stays on its cylinder of radius altitude.
	if r := math.Hypot(p.Y, p.Z); math.Abs(r-2) > 1e-9 {
		t.Errorf("Expected radius 2, got %v", r)
	}
}

func TestOrbitRecolor(t *testing.T) {
	o := NewOrbit(1.3)

	if c := o.Recolor(); c.R != 255 || c.G != 127 || c.B != 0 {
		t.Errorf("Expected (255,127,0) at t=0, got %+v", c)
	}

	for o.Elapsed() < math.Pi {
		o.Step()
	}
	c := o.Recolor()
	want := math.Floor(127.5 * (math.Cos(o.Elapsed()) + 1))
	if c.R != want {
		t.Errorf("Expected red %v, got %v", want, c.R)
	}
	if c.R > 10 {
		t.Errorf("Expected red near 0 around t=pi, got %v", c.R)
	}
}
