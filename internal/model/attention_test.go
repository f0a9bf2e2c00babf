package model

import (
	"math"
	"testing"
)

func TestKVHeadFor(t *testing.T) {
	// 8 query heads over 2 kv heads: first four share head 0.
	nRep := 4
	want := []int{0, 0, 0, 0, 1, 1, 1, 1}
	for h, w := range want {
		if got := kvHeadFor(h, nRep); got != w {
			t.Fatalf("kvHeadFor(%d,%d)=%d want %d", h, nRep, got, w)
		}
	}
}

func TestKVHeadForNoRepetition(t *testing.T) {
	for h := 0; h < 4; h++ {
		if got := kvHeadFor(h, 1); got != h {
			t.Fatalf("kvHeadFor(%d,1)=%d want %d", h, got, h)
		}
	}
}

func TestRunAttnHeadsUniformScores(t *testing.T) {
	// Zero keys give equal scores for every position, so the output is the
	// plain average of the cached values.
	headDim := 2
	pos := 2
	ctx := attnContext{
		q:        []float32{1, 1},
		cacheK:   make([]float32, (pos+1)*headDim),
		cacheV:   []float32{1, 2, 3, 4, 5, 6},
		attnOut:  make([]float32, headDim),
		pos:      pos,
		kvStride: headDim,
		headDim:  headDim,
		nHead:    1,
		kvHeads:  1,
		nRep:     1,
		scale:    float32(1.0 / math.Sqrt(float64(headDim))),
	}
	scores := make([]float32, pos+1)
	runAttnHeads(&ctx, scores, 0, 1)

	want := []float32{3, 4} // mean of (1,2),(3,4),(5,6)
	for d := range want {
		if math.Abs(float64(ctx.attnOut[d]-want[d])) > 1e-5 {
			t.Fatalf("attnOut[%d]=%g want %g", d, ctx.attnOut[d], want[d])
		}
	}
}

func TestRunAttnHeadsAttendsToMatchingKey(t *testing.T) {
	// One key aligned with the query dominates after softmax.
	headDim := 2
	pos := 1
	ctx := attnContext{
		q:        []float32{10, 0},
		cacheK:   []float32{10, 0, -10, 0},
		cacheV:   []float32{1, 0, 0, 1},
		attnOut:  make([]float32, headDim),
		pos:      pos,
		kvStride: headDim,
		headDim:  headDim,
		nHead:    1,
		kvHeads:  1,
		nRep:     1,
		scale:    1,
	}
	scores := make([]float32, pos+1)
	runAttnHeads(&ctx, scores, 0, 1)

	if ctx.attnOut[0] < 0.99 || ctx.attnOut[1] > 0.01 {
		t.Fatalf("attention did not concentrate on matching key: %v", ctx.attnOut)
	}
}

func TestRunAttnHeadsSharedKVHead(t *testing.T) {
	// Two query heads sharing one kv head and carrying the same query must
	// produce identical outputs.
	headDim := 2
	pos := 1
	ctx := attnContext{
		q:        []float32{0.5, -0.5, 0.5, -0.5},
		cacheK:   []float32{0.3, 0.7, -0.2, 0.1},
		cacheV:   []float32{1, 2, 3, 4},
		attnOut:  make([]float32, 2*headDim),
		pos:      pos,
		kvStride: headDim,
		headDim:  headDim,
		nHead:    2,
		kvHeads:  1,
		nRep:     2,
		scale:    float32(1.0 / math.Sqrt(float64(headDim))),
	}
	scores := make([]float32, pos+1)
	runAttnHeads(&ctx, scores, 0, 2)

	for d := 0; d < headDim; d++ {
		if ctx.attnOut[d] != ctx.attnOut[headDim+d] {
			t.Fatalf("shared kv head produced different outputs: %v", ctx.attnOut)
		}
	}
}
