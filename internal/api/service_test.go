package api

import (
	"context"
	"testing"

	"github.com/samcharles93/strand/internal/generate"
)

// byteTokenizer maps each byte to id+2 so ids never collide with the
// special markers (BOS 0, EOS 1).
type byteTokenizer struct{}

func (byteTokenizer) Encode(text string, addBOS, addEOS bool) ([]int, error) {
	var ids []int
	if addBOS {
		ids = append(ids, 0)
	}
	for _, b := range []byte(text) {
		ids = append(ids, int(b)+2)
	}
	if addEOS {
		ids = append(ids, 1)
	}
	return ids, nil
}

func (byteTokenizer) Decode(ids []int) (string, error) {
	var out []byte
	for _, id := range ids {
		if id >= 2 {
			out = append(out, byte(id-2))
		}
	}
	return string(out), nil
}

func (byteTokenizer) BOSID() int     { return 0 }
func (byteTokenizer) EOSID() int     { return 1 }
func (byteTokenizer) PadID() int     { return -1 }
func (byteTokenizer) VocabSize() int { return 258 }

// echoModel always puts all probability mass on the token 'x'+2.
type echoModel struct {
	pos int
}

func (m *echoModel) Forward(tokens [][]int, startPos int) ([][]float32, error) {
	m.pos = startPos + len(tokens[0])
	out := make([][]float32, len(tokens))
	for b := range tokens {
		logits := make([]float32, 258)
		logits[int('x')+2] = 10
		out[b] = logits
	}
	return out, nil
}

func (m *echoModel) Reset()         { m.pos = 0 }
func (m *echoModel) MaxSeqLen() int { return 64 }
func (m *echoModel) MaxBatch() int  { return 2 }

func TestServiceComplete(t *testing.T) {
	eng := &generate.Engine{Model: &echoModel{}, PadID: 1, EOSID: 1}
	svc := NewInferenceService(byteTokenizer{}, eng)

	res, err := svc.Complete(context.Background(), []string{"hi"}, generate.Options{
		Temperature:  0,
		MaxNewTokens: 3,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(res.Texts) != 1 || res.Texts[0] != "xxx" {
		t.Fatalf("texts=%v want [xxx]", res.Texts)
	}
	if res.PromptTokens != 3 { // BOS + two bytes
		t.Fatalf("PromptTokens=%d want 3", res.PromptTokens)
	}
	if res.Stats.TokensGenerated != 3 {
		t.Fatalf("TokensGenerated=%d want 3", res.Stats.TokensGenerated)
	}
}

func TestServiceCompleteEmptyPrompts(t *testing.T) {
	eng := &generate.Engine{Model: &echoModel{}, PadID: 1, EOSID: 1}
	svc := NewInferenceService(byteTokenizer{}, eng)
	if _, err := svc.Complete(context.Background(), nil, generate.Options{MaxNewTokens: 1}); err == nil {
		t.Fatalf("expected error for empty prompt list")
	}
}
