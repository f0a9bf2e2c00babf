package model

// kvCache stores past key/value projections for one layer. The buffers are
// flat with logical shape (maxBatch, maxSeq, kvHeads, headDim): all
// positions of batch row b are contiguous, and within one position the
// kvHeads*headDim slice is contiguous (kvStride elements).
//
// Each decoding step writes the slice for the current position range of
// the active batch prefix; earlier slices are read but never rewritten.
// The cache is exclusively owned by one Transformer for the lifetime of a
// generation session.
type kvCache struct {
	k, v     []float32
	maxBatch int
	maxSeq   int
	kvStride int
}

func newKVCache(maxBatch, maxSeq, kvHeads, headDim int) kvCache {
	stride := kvHeads * headDim
	return kvCache{
		k:        make([]float32, maxBatch*maxSeq*stride),
		v:        make([]float32, maxBatch*maxSeq*stride),
		maxBatch: maxBatch,
		maxSeq:   maxSeq,
		kvStride: stride,
	}
}

func (c *kvCache) offset(b, pos int) int {
	return (b*c.maxSeq + pos) * c.kvStride
}

// write stores the key/value slice for (batch row b, position pos).
// k and v must each hold kvStride elements.
func (c *kvCache) write(b, pos int, k, v []float32) {
	off := c.offset(b, pos)
	copy(c.k[off:off+c.kvStride], k)
	copy(c.v[off:off+c.kvStride], v)
}

// row returns the key and value history of batch row b, covering positions
// [0, maxSeq). The caller indexes by pos*kvStride.
func (c *kvCache) row(b int) (k, v []float32) {
	start := c.offset(b, 0)
	end := c.offset(b, c.maxSeq)
	return c.k[start:end], c.v[start:end]
}

func (c *kvCache) reset() {
	for i := range c.k {
		c.k[i] = 0
	}
	for i := range c.v {
		c.v[i] = 0
	}
}
