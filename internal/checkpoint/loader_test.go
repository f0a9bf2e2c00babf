package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
)

const testParamsJSON = `{
  "dim": 8,
  "n_layers": 1,
  "n_heads": 2,
  "n_kv_heads": 2,
  "vocab_size": 16,
  "multiple_of": 8,
  "norm_eps": 1e-5,
  "rope_theta": 10000
}`

func seqData(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i%13)*0.01 - 0.06
	}
	return out
}

func ones(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

// writeTestCheckpoint lays out a complete single-layer llama-style
// checkpoint for the config in testParamsJSON (dim 8, ffn 24, vocab 16).
func writeTestCheckpoint(t *testing.T, dir string) (modelPath, paramsPath string) {
	t.Helper()
	modelPath = filepath.Join(dir, "model.safetensors")
	paramsPath = filepath.Join(dir, "params.json")

	dim, ffn, vocab := 8, 24, 16
	tensors := []testTensor{
		{"model.embed_tokens.weight", "F32", []int{vocab, dim}, seqData(vocab * dim)},
		{"model.norm.weight", "F32", []int{dim}, ones(dim)},
		{"lm_head.weight", "F32", []int{vocab, dim}, seqData(vocab * dim)},
		{"model.layers.0.input_layernorm.weight", "F32", []int{dim}, ones(dim)},
		{"model.layers.0.post_attention_layernorm.weight", "F32", []int{dim}, ones(dim)},
		{"model.layers.0.self_attn.q_proj.weight", "F32", []int{dim, dim}, seqData(dim * dim)},
		{"model.layers.0.self_attn.k_proj.weight", "F32", []int{dim, dim}, seqData(dim * dim)},
		{"model.layers.0.self_attn.v_proj.weight", "F32", []int{dim, dim}, seqData(dim * dim)},
		{"model.layers.0.self_attn.o_proj.weight", "F32", []int{dim, dim}, seqData(dim * dim)},
		{"model.layers.0.mlp.gate_proj.weight", "F32", []int{ffn, dim}, seqData(ffn * dim)},
		{"model.layers.0.mlp.up_proj.weight", "F32", []int{ffn, dim}, seqData(ffn * dim)},
		{"model.layers.0.mlp.down_proj.weight", "F32", []int{dim, ffn}, seqData(dim * ffn)},
	}
	writeSafetensors(t, modelPath, tensors)

	if err := os.WriteFile(paramsPath, []byte(testParamsJSON), 0o644); err != nil {
		t.Fatalf("write params: %v", err)
	}
	return modelPath, paramsPath
}

func TestConfigFromParams(t *testing.T) {
	cfg, err := ConfigFromParams([]byte(testParamsJSON), 2, 64)
	if err != nil {
		t.Fatalf("ConfigFromParams: %v", err)
	}
	if cfg.BlockCount != 1 || cfg.EmbeddingLength != 8 || cfg.HeadCount != 2 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.MaxBatch != 2 || cfg.ContextLength != 64 {
		t.Fatalf("runtime bounds not applied: %+v", cfg)
	}
	if got := cfg.FFNLength(); got != 24 {
		t.Fatalf("FFNLength=%d want 24", got)
	}
}

func TestConfigFromParamsRejectsInvalid(t *testing.T) {
	if _, err := ConfigFromParams([]byte(`{`), 1, 8); err == nil {
		t.Fatalf("expected parse error")
	}
	// dim not divisible by heads
	if _, err := ConfigFromParams([]byte(`{"dim":10,"n_layers":1,"n_heads":3,"vocab_size":4}`), 1, 8); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadBuildsWorkingModel(t *testing.T) {
	modelPath, paramsPath := writeTestCheckpoint(t, t.TempDir())

	m, f, err := Load(modelPath, paramsPath, 1, 32)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer func() { _ = f.Close() }()

	cfg := m.Config()
	if cfg.VocabSize != 16 || cfg.ContextLength != 32 {
		t.Fatalf("config %+v", cfg)
	}

	out, err := m.Forward([][]int{{1, 2, 3}}, 0)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if len(out) != 1 || len(out[0]) != 16 {
		t.Fatalf("logits shape %dx%d want 1x16", len(out), len(out[0]))
	}
}

func TestLoadWeightsMissingTensor(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.safetensors")
	writeSafetensors(t, modelPath, []testTensor{
		{"model.embed_tokens.weight", "F32", []int{16, 8}, seqData(16 * 8)},
	})

	f, err := Open(modelPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = f.Close() }()

	cfg, err := ConfigFromParams([]byte(testParamsJSON), 1, 32)
	if err != nil {
		t.Fatalf("ConfigFromParams: %v", err)
	}
	if _, err := LoadWeights(f, cfg); err == nil {
		t.Fatalf("expected missing tensor error")
	}
}

func TestLoadFallsBackToTiedOutput(t *testing.T) {
	// Without lm_head the embedding matrix doubles as the output
	// projection.
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.safetensors")

	dim, ffn, vocab := 8, 24, 16
	tensors := []testTensor{
		{"model.embed_tokens.weight", "F32", []int{vocab, dim}, seqData(vocab * dim)},
		{"model.norm.weight", "F32", []int{dim}, ones(dim)},
		{"model.layers.0.input_layernorm.weight", "F32", []int{dim}, ones(dim)},
		{"model.layers.0.post_attention_layernorm.weight", "F32", []int{dim}, ones(dim)},
		{"model.layers.0.self_attn.q_proj.weight", "F32", []int{dim, dim}, seqData(dim * dim)},
		{"model.layers.0.self_attn.k_proj.weight", "F32", []int{dim, dim}, seqData(dim * dim)},
		{"model.layers.0.self_attn.v_proj.weight", "F32", []int{dim, dim}, seqData(dim * dim)},
		{"model.layers.0.self_attn.o_proj.weight", "F32", []int{dim, dim}, seqData(dim * dim)},
		{"model.layers.0.mlp.gate_proj.weight", "F32", []int{ffn, dim}, seqData(ffn * dim)},
		{"model.layers.0.mlp.up_proj.weight", "F32", []int{ffn, dim}, seqData(ffn * dim)},
		{"model.layers.0.mlp.down_proj.weight", "F32", []int{dim, ffn}, seqData(dim * ffn)},
	}
	writeSafetensors(t, modelPath, tensors)
	paramsPath := filepath.Join(dir, "params.json")
	if err := os.WriteFile(paramsPath, []byte(testParamsJSON), 0o644); err != nil {
		t.Fatalf("write params: %v", err)
	}

	m, f, err := Load(modelPath, paramsPath, 1, 32)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer func() { _ = f.Close() }()
	if m.VocabSize() != vocab {
		t.Fatalf("VocabSize=%d want %d", m.VocabSize(), vocab)
	}
}
