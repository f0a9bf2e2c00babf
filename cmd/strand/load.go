package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samcharles93/strand/internal/backend"
	"github.com/samcharles93/strand/internal/checkpoint"
	"github.com/samcharles93/strand/internal/logger"
	"github.com/samcharles93/strand/internal/model"
	"github.com/samcharles93/strand/internal/tokenizer"
)

func newLog() logger.Logger {
	level := logger.ParseLevel(logLevel)
	if debug {
		level = slog.LevelDebug
	}
	if logFormat == "json" {
		return logger.JSON(os.Stderr, level)
	}
	return logger.Text(os.Stderr, level)
}

// siblingPath returns override when set, otherwise name next to the model
// file.
func siblingPath(override, name string) string {
	if override != "" {
		return override
	}
	if modelPath == "" {
		return name
	}
	return filepath.Join(filepath.Dir(modelPath), name)
}

type runtime struct {
	model *model.Transformer
	ckpt  *checkpoint.File
	tok   tokenizer.Tokenizer
}

func (r *runtime) Close() error {
	return r.ckpt.Close()
}

// loadRuntime opens the checkpoint, builds the decoder stack on the
// selected backend, and loads the tokenizer that ships with the model.
func loadRuntime(log logger.Logger) (*runtime, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("no model path given (use --model)")
	}

	ops, err := backend.New(backendName)
	if err != nil {
		return nil, err
	}

	params := siblingPath(paramsPath, "params.json")
	tokPath := siblingPath(tokenizerPath, "tokenizer.json")

	log.Info("loading checkpoint", "model", modelPath, "params", params)
	m, ckpt, err := checkpoint.Load(modelPath, params, int(maxBatch), int(maxContext), model.WithOps(ops))
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	tok, err := tokenizer.LoadFile(tokPath)
	if err != nil {
		_ = ckpt.Close()
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	cfg := m.Config()
	if tok.VocabSize() > cfg.VocabSize {
		_ = ckpt.Close()
		return nil, fmt.Errorf("tokenizer vocabulary %d exceeds model vocabulary %d", tok.VocabSize(), cfg.VocabSize)
	}

	log.Info("model ready",
		"layers", cfg.BlockCount,
		"dim", cfg.EmbeddingLength,
		"heads", cfg.HeadCount,
		"kv_heads", cfg.HeadCountKV,
		"vocab", cfg.VocabSize,
		"context", cfg.ContextLength,
	)

	return &runtime{model: m, ckpt: ckpt, tok: tok}, nil
}
