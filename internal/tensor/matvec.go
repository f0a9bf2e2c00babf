package tensor

import (
	"runtime"
	"sync"
)

type matVecTask struct {
	dst    []float32
	w      *Mat
	x      []float32
	rs, re int
	done   chan struct{}
}

type matVecPool struct {
	size      int
	tasks     chan matVecTask
	doneSlots chan chan struct{}
}

var (
	matVecWorkPool *matVecPool
	matVecPoolOnce sync.Once
)

func getMatVecPool() *matVecPool {
	matVecPoolOnce.Do(func() {
		matVecWorkPool = newMatVecPool()
	})
	return matVecWorkPool
}

func newMatVecPool() *matVecPool {
	size := runtime.GOMAXPROCS(0)
	if size < 1 {
		size = 1
	}
	p := &matVecPool{
		size:      size,
		tasks:     make(chan matVecTask, size*2),
		doneSlots: make(chan chan struct{}, size),
	}
	for i := 0; i < size; i++ {
		p.doneSlots <- make(chan struct{}, 1)
	}
	for i := 0; i < size; i++ {
		go func() {
			for task := range p.tasks {
				matVecRange(task.dst, task.w, task.x, task.rs, task.re)
				task.done <- struct{}{}
			}
		}()
	}
	return p
}

// MatVec computes dst = w * x where w is a matrix and x is a vector.
// It runs in parallel using a worker pool.
func MatVec(dst []float32, w *Mat, x []float32) {
	if w.R == 0 || w.C == 0 {
		return
	}
	if len(dst) < w.R || len(x) < w.C {
		panic("matvec shape mismatch")
	}

	pool := getMatVecPool()
	workers := pool.size
	if workers > w.R {
		workers = w.R
	}

	if workers <= 1 {
		matVecRange(dst, w, x, 0, w.R)
		return
	}

	chunk := (w.R + workers - 1) / workers
	done := <-pool.doneSlots

	activeWorkers := 0
	for i := 0; i < workers; i++ {
		rs := i * chunk
		re := rs + chunk
		if re > w.R {
			re = w.R
		}
		if rs >= re {
			break
		}
		activeWorkers++
		pool.tasks <- matVecTask{
			dst:  dst,
			w:    w,
			x:    x,
			rs:   rs,
			re:   re,
			done: done,
		}
	}

	for i := 0; i < activeWorkers; i++ {
		<-done
	}
	pool.doneSlots <- done
}

func matVecRange(dst []float32, w *Mat, x []float32, rs, re int) {
	if w.Raw != nil && w.DType != DTypeF32 {
		switch w.DType {
		case DTypeBF16:
			matVecRangeBF16(dst, w, x, rs, re)
			return
		case DTypeF16:
			matVecRangeF16(dst, w, x, rs, re)
			return
		default:
			panic("unsupported dtype for matvec")
		}
	}
	for r := rs; r < re; r++ {
		row := w.Data[r*w.Stride : r*w.Stride+w.C]
		var sum float32
		for c := 0; c < w.C; c++ {
			sum += row[c] * x[c]
		}
		dst[r] = sum
	}
}

func matVecRangeBF16(dst []float32, w *Mat, x []float32, rs, re int) {
	rowBytes := w.Stride * 2
	for r := rs; r < re; r++ {
		off := r * rowBytes
		var sum float32
		for c := 0; c < w.C; c++ {
			sum += bf16ToF32(u16le(w.Raw, off+c*2)) * x[c]
		}
		dst[r] = sum
	}
}

func matVecRangeF16(dst []float32, w *Mat, x []float32, rs, re int) {
	rowBytes := w.Stride * 2
	for r := rs; r < re; r++ {
		off := r * rowBytes
		var sum float32
		for c := 0; c < w.C; c++ {
			sum += fp16ToF32(u16le(w.Raw, off+c*2)) * x[c]
		}
		dst[r] = sum
	}
}
