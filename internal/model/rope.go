package model

import (
	"fmt"
	"math"
)

// RotaryTable caches the per-position rotation factors used by the rotary
// position encoding. Row m, pair i holds cos/sin of m * base^(-2i/headDim).
// The table is computed once at model construction and read-only after.
type RotaryTable struct {
	cos     []float32
	sin     []float32
	halfDim int
	maxLen  int
}

// NewRotaryTable precomputes rotation factors for positions [0, maxLen).
// headDim must be even. Callers size maxLen at twice the context length so
// that generation can run past the initial prompt window.
func NewRotaryTable(headDim, maxLen int, base float64) (*RotaryTable, error) {
	if headDim <= 0 || headDim%2 != 0 {
		return nil, fmt.Errorf("head dimension must be positive and even, got %d", headDim)
	}
	if maxLen <= 0 {
		return nil, fmt.Errorf("table length must be positive, got %d", maxLen)
	}
	if base <= 0 {
		base = 10_000
	}
	half := headDim / 2
	invFreq := make([]float64, half)
	for i := range invFreq {
		invFreq[i] = 1.0 / math.Pow(base, float64(2*i)/float64(headDim))
	}
	t := &RotaryTable{
		cos:     make([]float32, maxLen*half),
		sin:     make([]float32, maxLen*half),
		halfDim: half,
		maxLen:  maxLen,
	}
	for m := 0; m < maxLen; m++ {
		row := m * half
		for i := 0; i < half; i++ {
			angle := float64(m) * invFreq[i]
			t.cos[row+i] = float32(math.Cos(angle))
			t.sin[row+i] = float32(math.Sin(angle))
		}
	}
	return t, nil
}

// Len returns the number of precomputed positions.
func (t *RotaryTable) Len() int { return t.maxLen }

// Apply rotates consecutive component pairs of x in place for the given
// position. x holds nHead heads of 2*halfDim components each. The rotation
// is magnitude preserving; it is applied to queries and keys only, never
// to values.
func (t *RotaryTable) Apply(x []float32, nHead, pos int) {
	if pos < 0 || pos >= t.maxLen {
		panic("rotary position out of table range")
	}
	headDim := 2 * t.halfDim
	if len(x) < nHead*headDim {
		panic("rotary input too short")
	}
	row := pos * t.halfDim
	for h := 0; h < nHead; h++ {
		base := h * headDim
		for i := 0; i < t.halfDim; i++ {
			c := t.cos[row+i]
			s := t.sin[row+i]
			i0 := base + 2*i
			i1 := i0 + 1
			x0 := x[i0]
			x1 := x[i1]
			x[i0] = x0*c - x1*s
			x[i1] = x0*s + x1*c
		}
	}
}
