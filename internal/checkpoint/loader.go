package checkpoint

import (
	"fmt"

	"github.com/samcharles93/strand/internal/model"
	"github.com/samcharles93/strand/internal/tensor"
)

// tensorNames maps the model's parameters to checkpoint tensor names.
type tensorNames struct {
	embedding  string
	outputNorm string
	output     []string // candidates, first match wins

	attnNorm func(layer int) string
	ffnNorm  func(layer int) string

	wq func(layer int) string
	wk func(layer int) string
	wv func(layer int) string
	wo func(layer int) string

	ffnGate func(layer int) string
	ffnUp   func(layer int) string
	ffnDown func(layer int) string
}

func defaultNames() tensorNames {
	layer := func(format string) func(int) string {
		return func(i int) string { return fmt.Sprintf(format, i) }
	}
	return tensorNames{
		embedding:  "model.embed_tokens.weight",
		outputNorm: "model.norm.weight",
		output: []string{
			"lm_head.weight",
			"output.weight",
			"model.embed_tokens.weight",
		},
		attnNorm: layer("model.layers.%d.input_layernorm.weight"),
		ffnNorm:  layer("model.layers.%d.post_attention_layernorm.weight"),
		wq:       layer("model.layers.%d.self_attn.q_proj.weight"),
		wk:       layer("model.layers.%d.self_attn.k_proj.weight"),
		wv:       layer("model.layers.%d.self_attn.v_proj.weight"),
		wo:       layer("model.layers.%d.self_attn.o_proj.weight"),
		ffnGate:  layer("model.layers.%d.mlp.gate_proj.weight"),
		ffnUp:    layer("model.layers.%d.mlp.up_proj.weight"),
		ffnDown:  layer("model.layers.%d.mlp.down_proj.weight"),
	}
}

// LoadWeights builds the full weight set from an opened safetensors file.
// Shape validation against cfg happens in model.New; this only assembles
// the tensors. Loading errors carry the failing tensor name.
func LoadWeights(f *File, cfg model.Config) (*model.Weights, error) {
	names := defaultNames()

	emb, err := f.ReadMat(names.embedding)
	if err != nil {
		return nil, err
	}
	outNorm, err := f.ReadVec(names.outputNorm)
	if err != nil {
		return nil, err
	}
	output, err := readMatCandidates(f, names.output)
	if err != nil {
		return nil, err
	}

	layers := make([]model.LayerWeights, cfg.BlockCount)
	for i := 0; i < cfg.BlockCount; i++ {
		l := &layers[i]
		mats := []struct {
			dst  *tensor.Mat
			name string
		}{
			{&l.Wq, names.wq(i)},
			{&l.Wk, names.wk(i)},
			{&l.Wv, names.wv(i)},
			{&l.Wo, names.wo(i)},
			{&l.FfnGate, names.ffnGate(i)},
			{&l.FfnUp, names.ffnUp(i)},
			{&l.FfnDown, names.ffnDown(i)},
		}
		for _, m := range mats {
			*m.dst, err = f.ReadMat(m.name)
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", i, err)
			}
		}
		if l.AttnNorm, err = f.ReadVec(names.attnNorm(i)); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if l.FfnNorm, err = f.ReadVec(names.ffnNorm(i)); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
	}

	return &model.Weights{
		TokenEmbedding: emb,
		Layers:         layers,
		OutputNorm:     outNorm,
		Output:         output,
	}, nil
}

func readMatCandidates(f *File, candidates []string) (tensor.Mat, error) {
	for _, name := range candidates {
		if _, ok := f.Tensor(name); ok {
			return f.ReadMat(name)
		}
	}
	return tensor.Mat{}, fmt.Errorf("missing output projection (tried %v)", candidates)
}

// Load opens a safetensors file plus its params.json and constructs the
// decoder stack in one call. The returned File backs any f16/bf16 weight
// tensors, so it must stay open for the model's lifetime and be closed by
// the caller afterwards.
func Load(modelPath, paramsPath string, maxBatch, maxSeq int, opts ...model.Option) (*model.Transformer, *File, error) {
	cfg, err := ConfigFromParamsFile(paramsPath, maxBatch, maxSeq)
	if err != nil {
		return nil, nil, err
	}
	f, err := Open(modelPath)
	if err != nil {
		return nil, nil, err
	}
	w, err := LoadWeights(f, cfg)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	// Storage precision follows the checkpoint rather than ambient state.
	cfg.Precision = w.TokenEmbedding.DType
	m, err := model.New(cfg, w, opts...)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return m, f, nil
}
