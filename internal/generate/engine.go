package generate

import (
	"context"
	"fmt"
	"time"

	"github.com/samcharles93/strand/internal/logits"
)

// Model is the narrow view of the decoder stack the loop depends on.
// *model.Transformer implements it; tests substitute scripted models.
type Model interface {
	Forward(tokens [][]int, startPos int) ([][]float32, error)
	Reset()
	MaxSeqLen() int
	MaxBatch() int
}

// Options are the per-call generation parameters.
type Options struct {
	Temperature  float64
	TopP         float64
	MaxNewTokens int
	Seed         int64

	// OnToken, when set, is invoked for every committed non-prompt token.
	OnToken func(seq, token int)
}

// Stats summarizes one generation call.
type Stats struct {
	TokensGenerated int
	Duration        time.Duration
	TPS             float64
}

// Engine drives batched one-token-at-a-time decoding over a Model.
//
// PadID fills the token grid beyond each prompt; EOSID marks completion
// when emitted at a generated position. Both are opaque integers supplied
// by the external tokenizer.
type Engine struct {
	Model Model
	PadID int
	EOSID int
}

// state is the per-call bookkeeping: the token grid, the mask marking
// original prompt positions (never overwritten), and per-sequence
// end-of-sequence flags.
type state struct {
	tokens     [][]int
	promptMask [][]bool
	finished   []bool
	processed  int
}

func newState(prompts [][]int, padID, total int) *state {
	bsz := len(prompts)
	st := &state{
		tokens:     make([][]int, bsz),
		promptMask: make([][]bool, bsz),
		finished:   make([]bool, bsz),
	}
	for b, prompt := range prompts {
		row := make([]int, total)
		mask := make([]bool, total)
		for t := range row {
			row[t] = padID
		}
		copy(row, prompt)
		for t := range prompt {
			mask[t] = true
		}
		st.tokens[b] = row
		st.promptMask[b] = mask
	}
	return st
}

func (st *state) allFinished() bool {
	for _, f := range st.finished {
		if !f {
			return false
		}
	}
	return true
}

// Generate primes the cache with the shortest common prompt prefix, then
// decodes position by position. Sampled tokens are committed only at
// pad/generated slots; original prompt tokens are always preserved
// verbatim. A sequence finishes when EOSID appears at a non-prompt
// position; the loop stops early once every sequence has finished.
//
// Each returned sequence is truncated at its first generated end-of-
// sequence token (exclusive). The second result flags which sequences
// finished by emitting one.
func (e *Engine) Generate(ctx context.Context, prompts [][]int, opts Options) ([][]int, []bool, Stats, error) {
	var stats Stats
	if e.Model == nil {
		return nil, nil, stats, fmt.Errorf("nil model")
	}
	bsz := len(prompts)
	if bsz == 0 {
		return nil, nil, stats, fmt.Errorf("no prompts")
	}
	if bsz > e.Model.MaxBatch() {
		return nil, nil, stats, fmt.Errorf("batch size %d exceeds maximum %d", bsz, e.Model.MaxBatch())
	}
	if opts.MaxNewTokens <= 0 {
		return nil, nil, stats, fmt.Errorf("max new tokens must be positive, got %d", opts.MaxNewTokens)
	}

	maxSeq := e.Model.MaxSeqLen()
	minLen, maxLen := len(prompts[0]), len(prompts[0])
	for b, p := range prompts {
		if len(p) == 0 {
			return nil, nil, stats, fmt.Errorf("sequence %d: empty prompt", b)
		}
		if len(p) > maxSeq {
			return nil, nil, stats, fmt.Errorf("sequence %d: prompt length %d exceeds maximum %d", b, len(p), maxSeq)
		}
		if len(p) < minLen {
			minLen = len(p)
		}
		if len(p) > maxLen {
			maxLen = len(p)
		}
	}

	total := maxLen + opts.MaxNewTokens
	if total > maxSeq {
		total = maxSeq
	}

	st := newState(prompts, e.PadID, total)
	sampler := logits.NewSampler(logits.SamplerConfig{
		Seed:        opts.Seed,
		Temperature: float32(opts.Temperature),
		TopP:        float32(opts.TopP),
	})

	e.Model.Reset()

	start := time.Now()
	prev := 0
	st.processed = minLen
	for cur := minLen; cur < total; cur++ {
		// Step boundaries are consistency points: the caches are fully
		// written between steps, so cancellation here is safe.
		if err := ctx.Err(); err != nil {
			return nil, nil, stats, err
		}

		slice := make([][]int, bsz)
		for b := range st.tokens {
			slice[b] = st.tokens[b][prev:cur]
		}
		out, err := e.Model.Forward(slice, prev)
		if err != nil {
			return nil, nil, stats, fmt.Errorf("forward at position %d: %w", prev, err)
		}

		for b := 0; b < bsz; b++ {
			next := sampler.Sample(out[b])
			if st.promptMask[b][cur] {
				next = st.tokens[b][cur]
			} else {
				if !st.finished[b] {
					stats.TokensGenerated++
					if next == e.EOSID {
						st.finished[b] = true
					} else if opts.OnToken != nil {
						opts.OnToken(b, next)
					}
				}
			}
			st.tokens[b][cur] = next
		}

		prev = cur
		st.processed = cur + 1
		if st.allFinished() {
			break
		}
	}

	stats.Duration = time.Since(start)
	if stats.Duration.Seconds() > 0 {
		stats.TPS = float64(stats.TokensGenerated) / stats.Duration.Seconds()
	}

	outTokens := make([][]int, bsz)
	finished := make([]bool, bsz)
	copy(finished, st.finished)
	for b := 0; b < bsz; b++ {
		promptLen := len(prompts[b])
		end := st.processed
		if end < promptLen {
			end = promptLen
		}
		if end > total {
			end = total
		}
		seq := st.tokens[b][:end]
		cut := len(seq)
		for t := promptLen; t < len(seq); t++ {
			if seq[t] == e.EOSID {
				cut = t
				break
			}
		}
		outTokens[b] = append([]int(nil), seq[:cut]...)
	}
	return outTokens, finished, stats, nil
}
