package logits

import (
	"math"
	"math/rand"
	"sort"
)

// SamplerConfig configures the behaviour of a Sampler.
//
// Temperature <= 0 selects greedy decoding: the arg-max of the raw logits,
// with the lowest index winning ties so repeated runs are reproducible.
// Otherwise logits are scaled by the inverse temperature, softmaxed, and
// truncated with nucleus (top-p) sampling before one token is drawn.
type SamplerConfig struct {
	Seed        int64
	Temperature float32
	TopP        float32
}

type Sampler struct {
	rng    *rand.Rand
	cfg    SamplerConfig
	greedy bool
	idx    []int
	prob   []float64
}

// NewSampler returns a new sampler with the provided configuration.
func NewSampler(cfg SamplerConfig) *Sampler {
	greedy := cfg.Temperature <= 0
	if cfg.Temperature <= 0 {
		cfg.Temperature = 1
	}
	if cfg.TopP <= 0 || cfg.TopP > 1 {
		cfg.TopP = 1
	}
	return &Sampler{
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		cfg:    cfg,
		greedy: greedy,
	}
}

// Sample draws a single token index from the provided logits vector.
//
//  1. Greedy mode returns the arg-max of the raw logits.
//  2. Otherwise the logits are scaled by the inverse temperature and
//     softmaxed with max-subtraction for numerical stability.
//  3. Probabilities are sorted descending and the smallest prefix whose
//     cumulative mass reaches TopP is kept; everything outside is zeroed.
//     The prefix always contains the highest-probability token, so the
//     candidate set is never empty even for arbitrarily small TopP.
//  4. The prefix is renormalized and one index is drawn from it.
func (s *Sampler) Sample(logits []float32) int {
	if s.greedy {
		return argmax(logits)
	}

	n := len(logits)
	if n == 0 {
		panic("sample: empty logits")
	}

	invTemp := float64(1.0) / float64(s.cfg.Temperature)

	maxv := float64(logits[0])
	for i := 1; i < n; i++ {
		if float64(logits[i]) > maxv {
			maxv = float64(logits[i])
		}
	}
	maxv *= invTemp

	if cap(s.prob) < n {
		s.prob = make([]float64, n)
		s.idx = make([]int, n)
	}
	prob := s.prob[:n]
	idx := s.idx[:n]

	var sum float64
	for i := 0; i < n; i++ {
		e := math.Exp(float64(logits[i])*invTemp - maxv)
		prob[i] = e
		sum += e
		idx[i] = i
	}
	if sum > 0 {
		inv := 1.0 / sum
		for i := range prob {
			prob[i] *= inv
		}
	}

	// Descending by probability; equal probabilities keep index order so
	// the truncation point is deterministic.
	sort.SliceStable(idx, func(a, b int) bool {
		return prob[idx[a]] > prob[idx[b]]
	})

	cut := n
	if s.cfg.TopP < 1 {
		var c float64
		for i := 0; i < n; i++ {
			c += prob[idx[i]]
			if c >= float64(s.cfg.TopP) {
				cut = i + 1
				break
			}
		}
	}

	var mass float64
	for i := 0; i < cut; i++ {
		mass += prob[idx[i]]
	}
	if mass == 0 {
		return idx[0]
	}

	r := s.rng.Float64() * mass
	var c float64
	for i := 0; i < cut; i++ {
		c += prob[idx[i]]
		if r <= c {
			return idx[i]
		}
	}
	return idx[cut-1]
}

// argmax returns the index of the maximum value in the slice, lowest index
// first on ties. It panics if the slice is empty.
func argmax(x []float32) int {
	if len(x) == 0 {
		panic("argmax: empty slice")
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}
