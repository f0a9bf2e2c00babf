package backend

import (
	"github.com/samcharles93/strand/internal/tensor"
)

// cpuOps runs projections on the host CPU through the shared worker pool.
type cpuOps struct{}

func (cpuOps) MatVec(dst []float32, w *tensor.Mat, x []float32) {
	tensor.MatVec(dst, w, x)
}
