package model

import (
	"math"

	"github.com/samcharles93/strand/internal/tensor"
)

// attnContext bundles the per-call inputs of the attention head loop.
// cacheK/cacheV are the batch row's full history; entries beyond pos are
// never read, which makes the attention causal by construction.
type attnContext struct {
	q       []float32
	cacheK  []float32
	cacheV  []float32
	attnOut []float32

	pos      int
	kvStride int
	headDim  int
	nHead    int
	kvHeads  int
	nRep     int
	scale    float32
}

// kvHeadFor maps an expanded query head to the key/value head it shares.
// Head h of the expanded view corresponds to source head h / nRep, so the
// repetition is index-contiguous.
func kvHeadFor(h, nRep int) int {
	return h / nRep
}

// runAttnHeads computes scaled dot-product attention for query heads
// [h0, h1) over the cached history [0, pos]. scores must hold pos+1
// elements.
func runAttnHeads(ctx *attnContext, scores []float32, h0, h1 int) {
	for h := h0; h < h1; h++ {
		kvHead := kvHeadFor(h, ctx.nRep)
		qh := ctx.q[h*ctx.headDim : (h+1)*ctx.headDim]
		for t := 0; t <= ctx.pos; t++ {
			koff := t*ctx.kvStride + kvHead*ctx.headDim
			kv := ctx.cacheK[koff : koff+ctx.headDim]
			scores[t] = tensor.Dot(qh, kv) * ctx.scale
		}
		tensor.Softmax(scores[:ctx.pos+1])
		out := ctx.attnOut[h*ctx.headDim : (h+1)*ctx.headDim]
		for d := 0; d < ctx.headDim; d++ {
			var sum float32
			for t := 0; t <= ctx.pos; t++ {
				voff := t*ctx.kvStride + kvHead*ctx.headDim + d
				sum += scores[t] * ctx.cacheV[voff]
			}
			out[d] = sum
		}
	}
}

// attention runs grouped-query attention for batch row b at absolute
// position pos. x is the normalized hidden state for the new position; the
// layer's cache is updated at pos before the history is read back.
func (m *Transformer) attention(layer *Layer, b int, x []float32, pos int) []float32 {
	nHead := m.cfg.HeadCount
	headDim := m.cfg.HeadDim()
	kvHeads := m.cfg.HeadCountKV
	kvStride := layer.cache.kvStride

	q := m.scratch.q[:nHead*headDim]
	k := m.scratch.k[:kvStride]
	v := m.scratch.v[:kvStride]

	m.ops.MatVec(q, &layer.Wq, x)
	m.ops.MatVec(k, &layer.Wk, x)
	m.ops.MatVec(v, &layer.Wv, x)

	m.rope.Apply(q, nHead, pos)
	m.rope.Apply(k, kvHeads, pos)

	layer.cache.write(b, pos, k, v)
	cacheK, cacheV := layer.cache.row(b)

	ctx := attnContext{
		q:        q,
		cacheK:   cacheK,
		cacheV:   cacheV,
		attnOut:  m.scratch.attnOut,
		pos:      pos,
		kvStride: kvStride,
		headDim:  headDim,
		nHead:    nHead,
		kvHeads:  kvHeads,
		nRep:     m.cfg.NRep(),
		scale:    float32(1.0 / math.Sqrt(float64(headDim))),
	}
	runAttnHeads(&ctx, m.scratch.scores[:pos+1], 0, nHead)

	m.ops.MatVec(m.scratch.attnProj, &layer.Wo, m.scratch.attnOut[:nHead*headDim])
	return m.scratch.attnProj
}
