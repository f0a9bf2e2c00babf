package tensor

import (
	"math"
	"testing"
)

func TestAdd(t *testing.T) {
	dst := []float32{1, 2, 3}
	Add(dst, []float32{10, 20, 30})
	want := []float32{11, 22, 33}
	for i := range dst {
		if dst[i] != want[i] {
			t.Fatalf("dst[%d]=%g want %g", i, dst[i], want[i])
		}
	}
}

func TestDot(t *testing.T) {
	got := Dot([]float32{1, 2, 3}, []float32{4, 5, 6})
	if got != 32 {
		t.Fatalf("dot=%g want 32", got)
	}
}

func TestRMSNormMatchesReference(t *testing.T) {
	src := []float32{1, -2, 3, -4}
	weight := []float32{0.5, 1, 1.5, 2}
	eps := float32(1e-5)

	dst := make([]float32, len(src))
	RMSNorm(dst, src, weight, eps)

	var ss float64
	for _, v := range src {
		ss += float64(v) * float64(v)
	}
	scale := 1.0 / math.Sqrt(ss/float64(len(src))+float64(eps))
	for i := range src {
		want := float32(float64(src[i]) * scale * float64(weight[i]))
		if math.Abs(float64(dst[i]-want)) > 1e-6 {
			t.Fatalf("dst[%d]=%g want %g", i, dst[i], want)
		}
	}
}

func TestRMSNormZeroInput(t *testing.T) {
	src := make([]float32, 8)
	weight := make([]float32, 8)
	for i := range weight {
		weight[i] = 1
	}
	dst := make([]float32, 8)
	RMSNorm(dst, src, weight, 1e-5)
	for i, v := range dst {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Fatalf("dst[%d]=%g, epsilon should keep the norm finite", i, v)
		}
	}
}

func TestSoftmaxSumsToOne(t *testing.T) {
	x := []float32{1, 2, 3, 4}
	Softmax(x)
	var sum float64
	for _, v := range x {
		sum += float64(v)
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Fatalf("softmax sum=%g want 1", sum)
	}
	for i := 1; i < len(x); i++ {
		if x[i] <= x[i-1] {
			t.Fatalf("softmax not monotone over increasing logits: %v", x)
		}
	}
}

func TestSoftmaxLargeLogits(t *testing.T) {
	// Max subtraction keeps exp() in range even for huge inputs.
	x := []float32{1e4, 1e4 - 1}
	Softmax(x)
	if math.IsNaN(float64(x[0])) || math.IsInf(float64(x[0]), 0) {
		t.Fatalf("softmax overflowed: %v", x)
	}
	if x[0] <= x[1] {
		t.Fatalf("larger logit got smaller probability: %v", x)
	}
}

func TestSilu(t *testing.T) {
	if got := Silu(0); got != 0 {
		t.Fatalf("silu(0)=%g want 0", got)
	}
	// silu(x) = x * sigmoid(x)
	x := float32(1.5)
	want := x * Sigmoid(x)
	if math.Abs(float64(Silu(x)-want)) > 1e-6 {
		t.Fatalf("silu(%g)=%g want %g", x, Silu(x), want)
	}
}
