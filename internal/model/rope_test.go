package model

import (
	"math"
	"testing"
)

func TestNewRotaryTableRejectsOddDim(t *testing.T) {
	if _, err := NewRotaryTable(5, 16, 10000); err == nil {
		t.Fatalf("expected error for odd head dimension")
	}
	if _, err := NewRotaryTable(0, 16, 10000); err == nil {
		t.Fatalf("expected error for zero head dimension")
	}
	if _, err := NewRotaryTable(4, 0, 10000); err == nil {
		t.Fatalf("expected error for zero table length")
	}
}

func TestRotaryPositionZeroIsIdentity(t *testing.T) {
	rt, err := NewRotaryTable(4, 8, 10000)
	if err != nil {
		t.Fatalf("NewRotaryTable: %v", err)
	}
	x := []float32{1, 2, 3, 4}
	want := append([]float32(nil), x...)
	rt.Apply(x, 1, 0)
	for i := range x {
		if math.Abs(float64(x[i]-want[i])) > 1e-6 {
			t.Fatalf("x[%d]=%g want %g, position 0 must not rotate", i, x[i], want[i])
		}
	}
}

func TestRotaryPreservesMagnitude(t *testing.T) {
	rt, err := NewRotaryTable(8, 64, 10000)
	if err != nil {
		t.Fatalf("NewRotaryTable: %v", err)
	}
	x := []float32{0.3, -1.2, 2.5, 0.1, -0.7, 1.9, 0.4, -2.2}
	var before float64
	for _, v := range x {
		before += float64(v) * float64(v)
	}
	rt.Apply(x, 1, 37)
	var after float64
	for _, v := range x {
		after += float64(v) * float64(v)
	}
	if math.Abs(before-after) > 1e-4 {
		t.Fatalf("norm changed: before %g after %g", before, after)
	}
}

func TestRotaryKnownAngle(t *testing.T) {
	// At position m, pair 0 rotates by exactly m radians (inv freq 1).
	rt, err := NewRotaryTable(2, 4, 10000)
	if err != nil {
		t.Fatalf("NewRotaryTable: %v", err)
	}
	x := []float32{1, 0}
	rt.Apply(x, 1, 1)
	if math.Abs(float64(x[0])-math.Cos(1)) > 1e-6 || math.Abs(float64(x[1])-math.Sin(1)) > 1e-6 {
		t.Fatalf("rotation at position 1 = %v want [cos(1) sin(1)]", x)
	}
}

func TestRotaryAppliesPerHead(t *testing.T) {
	rt, err := NewRotaryTable(2, 8, 10000)
	if err != nil {
		t.Fatalf("NewRotaryTable: %v", err)
	}
	// Two heads with identical content must rotate identically.
	x := []float32{1, 2, 1, 2}
	rt.Apply(x, 2, 3)
	if x[0] != x[2] || x[1] != x[3] {
		t.Fatalf("heads diverged: %v", x)
	}
}

func TestRotaryTableLen(t *testing.T) {
	rt, err := NewRotaryTable(4, 128, 10000)
	if err != nil {
		t.Fatalf("NewRotaryTable: %v", err)
	}
	if rt.Len() != 128 {
		t.Fatalf("Len=%d want 128", rt.Len())
	}
}
