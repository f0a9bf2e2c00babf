package model

import (
	"fmt"

	"github.com/samcharles93/strand/internal/tensor"
)

// Layer pairs one decoder layer's weights with its cache slot. Layers are
// stateless apart from the cache; every layer runs the identical algorithm
// so the stack is a plain slice iterated in order.
type Layer struct {
	LayerWeights
	cache kvCache
}

type scratchBuffers struct {
	x    []float32 // batch * dim hidden state
	tmp  []float32 // dim
	tmp2 []float32 // dim

	q []float32 // head_count * head_dim
	k []float32 // head_count_kv * head_dim
	v []float32 // head_count_kv * head_dim

	attnOut  []float32 // dim
	attnProj []float32 // dim
	scores   []float32 // context_length

	ffnGate []float32 // ffn_length
	ffnUp   []float32 // ffn_length
	ffnAct  []float32 // ffn_length

	logits []float32 // batch * vocab
}

// Transformer is the decoder stack: token embedding, BlockCount pre-norm
// residual layers sharing one rotary table, a final norm and the output
// projection to vocabulary logits.
//
// The only state evolving across Forward calls is the per-layer caches and
// the position cursor. A Transformer is not safe for concurrent use; run
// independent requests on independent instances.
type Transformer struct {
	cfg Config

	embeddings tensor.Mat
	layers     []Layer
	outputNorm []float32
	output     tensor.Mat
	rope       *RotaryTable
	ops        Ops

	scratch scratchBuffers
	pos     int
}

// Option configures a Transformer at construction.
type Option func(*Transformer)

// WithOps injects the compute backend used for dense projections.
func WithOps(ops Ops) Option {
	return func(m *Transformer) { m.ops = ops }
}

// New validates cfg and the weight shapes and builds a decoder stack. The
// rotary table covers twice the context length so decoding can continue
// past the initial prompt window.
func New(cfg Config, w *Weights, opts ...Option) (*Transformer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg = cfg.normalized()
	if err := w.validate(cfg); err != nil {
		return nil, fmt.Errorf("weights: %w", err)
	}

	rope, err := NewRotaryTable(cfg.HeadDim(), 2*cfg.ContextLength, cfg.RopeFreqBase)
	if err != nil {
		return nil, err
	}

	layers := make([]Layer, cfg.BlockCount)
	for i := range layers {
		layers[i] = Layer{
			LayerWeights: w.Layers[i],
			cache:        newKVCache(cfg.MaxBatch, cfg.ContextLength, cfg.HeadCountKV, cfg.HeadDim()),
		}
	}

	m := &Transformer{
		cfg:        cfg,
		embeddings: w.TokenEmbedding,
		layers:     layers,
		outputNorm: w.OutputNorm,
		output:     w.Output,
		rope:       rope,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.ops = ensureOps(m.ops)
	m.initScratch()
	return m, nil
}

func (m *Transformer) initScratch() {
	dim := m.cfg.EmbeddingLength
	ffn := m.cfg.FFNLength()
	kv := m.cfg.HeadCountKV * m.cfg.HeadDim()
	m.scratch = scratchBuffers{
		x:        make([]float32, m.cfg.MaxBatch*dim),
		tmp:      make([]float32, dim),
		tmp2:     make([]float32, dim),
		q:        make([]float32, m.cfg.HeadCount*m.cfg.HeadDim()),
		k:        make([]float32, kv),
		v:        make([]float32, kv),
		attnOut:  make([]float32, m.cfg.HeadCount*m.cfg.HeadDim()),
		attnProj: make([]float32, dim),
		scores:   make([]float32, m.cfg.ContextLength),
		ffnGate:  make([]float32, ffn),
		ffnUp:    make([]float32, ffn),
		ffnAct:   make([]float32, ffn),
		logits:   make([]float32, m.cfg.MaxBatch*m.cfg.VocabSize),
	}
}

// Config returns the normalized model configuration.
func (m *Transformer) Config() Config { return m.cfg }

// MaxSeqLen returns the configured maximum sequence length.
func (m *Transformer) MaxSeqLen() int { return m.cfg.ContextLength }

// MaxBatch returns the configured maximum batch size.
func (m *Transformer) MaxBatch() int { return m.cfg.MaxBatch }

// VocabSize returns the output vocabulary size.
func (m *Transformer) VocabSize() int { return m.cfg.VocabSize }

// Pos returns the position cursor, the start position the next Forward
// call must use.
func (m *Transformer) Pos() int { return m.pos }

// Forward runs the decoder stack over one slice of new positions for every
// batch row and returns the logits of the slice's final position, one
// vocabulary-sized row per sequence. The returned rows are owned by the
// model and overwritten on the next call.
//
// The first call primes the cache with the full prompt at startPos 0;
// every later call must process exactly one position. All preconditions
// are checked before any cache mutation, so a failed call leaves no
// partial state behind.
func (m *Transformer) Forward(tokens [][]int, startPos int) ([][]float32, error) {
	batch := len(tokens)
	if batch == 0 {
		return nil, fmt.Errorf("empty batch")
	}
	if batch > m.cfg.MaxBatch {
		return nil, fmt.Errorf("batch size %d exceeds maximum %d", batch, m.cfg.MaxBatch)
	}
	seqLen := len(tokens[0])
	for b, row := range tokens {
		if len(row) != seqLen {
			return nil, fmt.Errorf("ragged batch: row %d has %d tokens, row 0 has %d", b, len(row), seqLen)
		}
	}
	if seqLen == 0 {
		return nil, fmt.Errorf("empty token slice")
	}
	if startPos != m.pos {
		return nil, fmt.Errorf("start position %d does not match cursor %d", startPos, m.pos)
	}
	if startPos > 0 && seqLen != 1 {
		return nil, fmt.Errorf("steady-state forward must process one position, got %d", seqLen)
	}
	if startPos+seqLen > m.cfg.ContextLength {
		return nil, fmt.Errorf("sequence length exceeded: %d > %d", startPos+seqLen, m.cfg.ContextLength)
	}
	for b, row := range tokens {
		for p, tok := range row {
			if tok < 0 || tok >= m.cfg.VocabSize {
				return nil, fmt.Errorf("token id out of range at row %d position %d: %d", b, startPos+p, tok)
			}
		}
	}

	dim := m.cfg.EmbeddingLength
	for p := 0; p < seqLen; p++ {
		pos := startPos + p
		for b := 0; b < batch; b++ {
			x := m.scratch.x[b*dim : (b+1)*dim]
			m.embeddings.RowTo(x, tokens[b][p])

			for i := range m.layers {
				layer := &m.layers[i]

				tensor.RMSNorm(m.scratch.tmp, x, layer.AttnNorm, float32(m.cfg.RMSEpsilon))
				tensor.Add(x, m.attention(layer, b, m.scratch.tmp, pos))

				tensor.RMSNorm(m.scratch.tmp, x, layer.FfnNorm, float32(m.cfg.RMSEpsilon))
				tensor.Add(x, m.ffn(layer, m.scratch.tmp))
			}
		}
	}

	out := make([][]float32, batch)
	for b := 0; b < batch; b++ {
		x := m.scratch.x[b*dim : (b+1)*dim]
		tensor.RMSNorm(m.scratch.tmp, x, m.outputNorm, float32(m.cfg.RMSEpsilon))
		logits := m.scratch.logits[b*m.cfg.VocabSize : (b+1)*m.cfg.VocabSize]
		m.ops.MatVec(logits, &m.output, m.scratch.tmp)
		out[b] = logits
	}

	m.pos = startPos + seqLen
	return out, nil
}

// Reset clears the caches and rewinds the position cursor so the instance
// can start a new independent generation session.
func (m *Transformer) Reset() {
	m.pos = 0
	for i := range m.layers {
		m.layers[i].cache.reset()
	}
}
