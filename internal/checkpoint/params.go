package checkpoint

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/samcharles93/strand/internal/model"
)

// params mirrors the params.json record shipped next to the weights.
type params struct {
	Dim              int     `json:"dim"`
	NumLayers        int     `json:"n_layers"`
	NumHeads         int     `json:"n_heads"`
	NumKVHeads       int     `json:"n_kv_heads"`
	VocabSize        int     `json:"vocab_size"`
	MultipleOf       int     `json:"multiple_of"`
	FFNDimMultiplier float64 `json:"ffn_dim_multiplier"`
	NormEps          float64 `json:"norm_eps"`
	RopeTheta        float64 `json:"rope_theta"`
}

// ConfigFromParams parses a params.json payload into a model.Config.
// maxBatch and maxSeq are runtime bounds, not checkpoint properties, so
// the caller supplies them.
func ConfigFromParams(raw []byte, maxBatch, maxSeq int) (model.Config, error) {
	var p params
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.Config{}, fmt.Errorf("parse params: %w", err)
	}
	cfg := model.Config{
		BlockCount:      p.NumLayers,
		EmbeddingLength: p.Dim,
		HeadCount:       p.NumHeads,
		HeadCountKV:     p.NumKVHeads,
		VocabSize:       p.VocabSize,
		FFNMultiplier:   p.FFNDimMultiplier,
		FFNMultipleOf:   p.MultipleOf,
		RMSEpsilon:      p.NormEps,
		RopeFreqBase:    p.RopeTheta,
		MaxBatch:        maxBatch,
		ContextLength:   maxSeq,
	}
	if err := cfg.Validate(); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

// ConfigFromParamsFile reads and parses a params.json file.
func ConfigFromParamsFile(path string, maxBatch, maxSeq int) (model.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Config{}, err
	}
	return ConfigFromParams(raw, maxBatch, maxSeq)
}
