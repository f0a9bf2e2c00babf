package model

import (
	"github.com/samcharles93/strand/internal/tensor"
)

// ffn is the gated feed-forward block: two parallel projections, a SiLU
// gate multiplied elementwise with the value branch, projected back down.
// Pure function of its input, no state.
func (m *Transformer) ffn(layer *Layer, x []float32) []float32 {
	m.ops.MatVec(m.scratch.ffnGate, &layer.FfnGate, x)
	m.ops.MatVec(m.scratch.ffnUp, &layer.FfnUp, x)
	for i := range m.scratch.ffnAct {
		m.scratch.ffnAct[i] = tensor.Silu(m.scratch.ffnGate[i]) * m.scratch.ffnUp[i]
	}
	m.ops.MatVec(m.scratch.tmp2, &layer.FfnDown, m.scratch.ffnAct)
	return m.scratch.tmp2
}
