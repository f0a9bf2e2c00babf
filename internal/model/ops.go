package model

import "github.com/samcharles93/strand/internal/tensor"

// Ops is the injected compute backend. The forward pass funnels every
// dense projection through it, so backend selection is a construction-time
// dependency rather than ambient state.
type Ops interface {
	MatVec(dst []float32, w *tensor.Mat, x []float32)
}

type defaultOps struct{}

func (defaultOps) MatVec(dst []float32, w *tensor.Mat, x []float32) {
	tensor.MatVec(dst, w, x)
}

func ensureOps(current Ops) Ops {
	if current == nil {
		return defaultOps{}
	}
	return current
}
