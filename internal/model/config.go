package model

import (
	"fmt"

	"github.com/samcharles93/strand/internal/tensor"
)

// Config is the immutable, process-lifetime model configuration.
//
// HeadCountKV may be left at zero, in which case it defaults to HeadCount
// (plain multi-head attention). FFNMultipleOf and RopeFreqBase default to
// 256 and 10000 respectively when unset.
type Config struct {
	BlockCount      int
	EmbeddingLength int
	HeadCount       int
	HeadCountKV     int
	VocabSize       int

	// Feed-forward sizing: the hidden width is derived, not configured
	// directly. See FFNLength.
	FFNMultiplier float64
	FFNMultipleOf int

	RMSEpsilon   float64
	RopeFreqBase float64

	MaxBatch      int
	ContextLength int

	// Precision selects the weight storage encoding. The forward pass
	// always computes in f32 regardless.
	Precision tensor.DType
}

// normalized returns a copy with defaults filled in.
func (c Config) normalized() Config {
	if c.HeadCountKV <= 0 {
		c.HeadCountKV = c.HeadCount
	}
	if c.FFNMultipleOf <= 0 {
		c.FFNMultipleOf = 256
	}
	if c.RMSEpsilon <= 0 {
		c.RMSEpsilon = 1e-5
	}
	if c.RopeFreqBase <= 0 {
		c.RopeFreqBase = 10_000
	}
	if c.MaxBatch <= 0 {
		c.MaxBatch = 1
	}
	return c
}

// Validate reports the first violated construction invariant.
func (c Config) Validate() error {
	if c.BlockCount <= 0 {
		return fmt.Errorf("block_count must be positive, got %d", c.BlockCount)
	}
	if c.EmbeddingLength <= 0 {
		return fmt.Errorf("embedding_length must be positive, got %d", c.EmbeddingLength)
	}
	if c.HeadCount <= 0 {
		return fmt.Errorf("head_count must be positive, got %d", c.HeadCount)
	}
	if c.VocabSize <= 0 {
		return fmt.Errorf("vocab_size must be set, got %d", c.VocabSize)
	}
	if c.ContextLength <= 0 {
		return fmt.Errorf("context_length must be positive, got %d", c.ContextLength)
	}
	if c.EmbeddingLength%c.HeadCount != 0 {
		return fmt.Errorf("embedding_length %d not divisible by head_count %d",
			c.EmbeddingLength, c.HeadCount)
	}
	kv := c.HeadCountKV
	if kv <= 0 {
		kv = c.HeadCount
	}
	if c.HeadCount%kv != 0 {
		return fmt.Errorf("head_count %d not divisible by head_count_kv %d", c.HeadCount, kv)
	}
	if c.HeadDim()%2 != 0 {
		return fmt.Errorf("head dimension %d must be even for rotary encoding", c.HeadDim())
	}
	switch c.Precision {
	case tensor.DTypeF32, tensor.DTypeF16, tensor.DTypeBF16:
	default:
		return fmt.Errorf("unsupported precision %v", c.Precision)
	}
	return nil
}

// HeadDim is the per-head dimension, EmbeddingLength / HeadCount.
func (c Config) HeadDim() int {
	return c.EmbeddingLength / c.HeadCount
}

// NRep is how many times each key/value head is shared across query heads.
func (c Config) NRep() int {
	kv := c.HeadCountKV
	if kv <= 0 {
		kv = c.HeadCount
	}
	return c.HeadCount / kv
}

// FFNLength derives the feed-forward hidden width: start from 4*dim,
// reduce by 2/3, apply the optional multiplier, then round up to the
// nearest multiple of FFNMultipleOf.
func (c Config) FFNLength() int {
	hidden := 4 * c.EmbeddingLength
	hidden = 2 * hidden / 3
	if c.FFNMultiplier > 0 {
		hidden = int(c.FFNMultiplier * float64(hidden))
	}
	multiple := c.FFNMultipleOf
	if multiple <= 0 {
		multiple = 256
	}
	return multiple * ((hidden + multiple - 1) / multiple)
}
