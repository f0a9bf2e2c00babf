package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/samcharles93/strand/internal/generate"
	"github.com/samcharles93/strand/internal/tokenizer"
)

// CompletionResult is the text-level outcome of one generation call.
type CompletionResult struct {
	Texts        []string
	Finished     []bool
	PromptTokens int
	Stats        generate.Stats
}

// Completer produces completions for text prompts. The HTTP layer depends
// on this instead of the concrete engine so tests can substitute fakes.
type Completer interface {
	Complete(ctx context.Context, prompts []string, opts generate.Options) (*CompletionResult, error)
}

// InferenceService binds a tokenizer to a generation engine. The decoder
// caches are stateful across Forward calls, so calls are serialized.
type InferenceService struct {
	mu  sync.Mutex
	tok tokenizer.Tokenizer
	eng *generate.Engine
}

func NewInferenceService(tok tokenizer.Tokenizer, eng *generate.Engine) *InferenceService {
	return &InferenceService{tok: tok, eng: eng}
}

func (s *InferenceService) Complete(ctx context.Context, prompts []string, opts generate.Options) (*CompletionResult, error) {
	if len(prompts) == 0 {
		return nil, fmt.Errorf("no prompts")
	}

	encoded := make([][]int, len(prompts))
	promptTokens := 0
	for i, p := range prompts {
		toks, err := s.tok.Encode(p, true, false)
		if err != nil {
			return nil, fmt.Errorf("encode prompt %d: %w", i, err)
		}
		if len(toks) == 0 {
			return nil, fmt.Errorf("prompt %d encodes to zero tokens", i)
		}
		encoded[i] = toks
		promptTokens += len(toks)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out, finished, stats, err := s.eng.Generate(ctx, encoded, opts)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(out))
	for i, toks := range out {
		text, err := s.tok.Decode(toks[len(encoded[i]):])
		if err != nil {
			return nil, fmt.Errorf("decode sequence %d: %w", i, err)
		}
		texts[i] = text
	}
	return &CompletionResult{
		Texts:        texts,
		Finished:     finished,
		PromptTokens: promptTokens,
		Stats:        stats,
	}, nil
}
