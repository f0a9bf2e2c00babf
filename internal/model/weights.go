package model

import (
	"fmt"

	"github.com/samcharles93/strand/internal/tensor"
)

// LayerWeights holds the learned parameters of one decoder layer.
// Immutable after load.
type LayerWeights struct {
	Wq tensor.Mat // (head_count*head_dim, dim)
	Wk tensor.Mat // (head_count_kv*head_dim, dim)
	Wv tensor.Mat // (head_count_kv*head_dim, dim)
	Wo tensor.Mat // (dim, head_count*head_dim)

	FfnGate tensor.Mat // (ffn_length, dim)
	FfnUp   tensor.Mat // (ffn_length, dim)
	FfnDown tensor.Mat // (dim, ffn_length)

	AttnNorm []float32 // (dim)
	FfnNorm  []float32 // (dim)
}

// Weights holds every learned parameter of the model.
type Weights struct {
	TokenEmbedding tensor.Mat // (vocab_size, dim)
	Layers         []LayerWeights
	OutputNorm     []float32  // (dim)
	Output         tensor.Mat // (vocab_size, dim)
}

func checkMatShape(name string, m *tensor.Mat, r, c int) error {
	if m.R != r || m.C != c {
		return fmt.Errorf("%s: shape (%d,%d), want (%d,%d)", name, m.R, m.C, r, c)
	}
	return nil
}

func checkVecShape(name string, v []float32, n int) error {
	if len(v) != n {
		return fmt.Errorf("%s: length %d, want %d", name, len(v), n)
	}
	return nil
}

// validate checks every parameter against the shape contract implied by cfg.
// cfg must already be normalized.
func (w *Weights) validate(cfg Config) error {
	if w == nil {
		return fmt.Errorf("nil weights")
	}
	dim := cfg.EmbeddingLength
	headDim := cfg.HeadDim()
	qDim := cfg.HeadCount * headDim
	kvDim := cfg.HeadCountKV * headDim
	ffn := cfg.FFNLength()

	if err := checkMatShape("token_embedding", &w.TokenEmbedding, cfg.VocabSize, dim); err != nil {
		return err
	}
	if err := checkVecShape("output_norm", w.OutputNorm, dim); err != nil {
		return err
	}
	if err := checkMatShape("output", &w.Output, cfg.VocabSize, dim); err != nil {
		return err
	}
	if len(w.Layers) != cfg.BlockCount {
		return fmt.Errorf("layer count %d, want %d", len(w.Layers), cfg.BlockCount)
	}
	for i := range w.Layers {
		l := &w.Layers[i]
		prefix := fmt.Sprintf("layer %d: ", i)
		checks := []error{
			checkMatShape(prefix+"wq", &l.Wq, qDim, dim),
			checkMatShape(prefix+"wk", &l.Wk, kvDim, dim),
			checkMatShape(prefix+"wv", &l.Wv, kvDim, dim),
			checkMatShape(prefix+"wo", &l.Wo, dim, qDim),
			checkMatShape(prefix+"ffn_gate", &l.FfnGate, ffn, dim),
			checkMatShape(prefix+"ffn_up", &l.FfnUp, ffn, dim),
			checkMatShape(prefix+"ffn_down", &l.FfnDown, dim, ffn),
			checkVecShape(prefix+"attn_norm", l.AttnNorm, dim),
			checkVecShape(prefix+"ffn_norm", l.FfnNorm, dim),
		}
		for _, err := range checks {
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// NewRandomWeights allocates f32 weights sized for cfg and fills them with
// reproducible pseudo-random values. Intended for tests and benchmarks.
func NewRandomWeights(cfg Config, seed int64) *Weights {
	cfg = cfg.normalized()
	dim := cfg.EmbeddingLength
	headDim := cfg.HeadDim()
	qDim := cfg.HeadCount * headDim
	kvDim := cfg.HeadCountKV * headDim
	ffn := cfg.FFNLength()

	w := &Weights{
		TokenEmbedding: tensor.NewMat(cfg.VocabSize, dim),
		Layers:         make([]LayerWeights, cfg.BlockCount),
		OutputNorm:     make([]float32, dim),
		Output:         tensor.NewMat(cfg.VocabSize, dim),
	}
	tensor.FillRand(&w.TokenEmbedding, seed)
	tensor.FillRand(&w.Output, seed+1)
	for i := range w.OutputNorm {
		w.OutputNorm[i] = 1
	}
	for i := range w.Layers {
		l := &w.Layers[i]
		base := seed + int64(i+1)*100
		l.Wq = tensor.NewMat(qDim, dim)
		l.Wk = tensor.NewMat(kvDim, dim)
		l.Wv = tensor.NewMat(kvDim, dim)
		l.Wo = tensor.NewMat(dim, qDim)
		l.FfnGate = tensor.NewMat(ffn, dim)
		l.FfnUp = tensor.NewMat(ffn, dim)
		l.FfnDown = tensor.NewMat(dim, ffn)
		tensor.FillRand(&l.Wq, base)
		tensor.FillRand(&l.Wk, base+1)
		tensor.FillRand(&l.Wv, base+2)
		tensor.FillRand(&l.Wo, base+3)
		tensor.FillRand(&l.FfnGate, base+4)
		tensor.FillRand(&l.FfnUp, base+5)
		tensor.FillRand(&l.FfnDown, base+6)
		l.AttnNorm = make([]float32, dim)
		l.FfnNorm = make([]float32, dim)
		for j := 0; j < dim; j++ {
			l.AttnNorm[j] = 1
			l.FfnNorm[j] = 1
		}
	}
	return w
}
