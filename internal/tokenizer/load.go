package tokenizer

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
)

type tokenizerJSON struct {
	Model struct {
		Type     string         `json:"type"`
		Vocab    map[string]int `json:"vocab"`
		Merges   []any          `json:"merges"`
		UnkToken string         `json:"unk_token"`
	} `json:"model"`
	AddedTokens []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens"`
}

// LoadFile reads a tokenizer.json file (huggingface layout) and builds a
// byte-level BPE tokenizer. Merges appear either as "left right" strings
// or as two-element arrays depending on the exporter version.
func LoadFile(path string) (*BPE, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer: %w", err)
	}
	return LoadBytes(data)
}

func LoadBytes(data []byte) (*BPE, error) {
	var tj tokenizerJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return nil, fmt.Errorf("parse tokenizer: %w", err)
	}
	if tj.Model.Type != "" && !strings.EqualFold(tj.Model.Type, "BPE") {
		return nil, fmt.Errorf("unsupported tokenizer model: %s", tj.Model.Type)
	}

	maxID := -1
	for tok, id := range tj.Model.Vocab {
		if id < 0 {
			return nil, fmt.Errorf("token %q: negative id %d", tok, id)
		}
		if id > maxID {
			maxID = id
		}
	}
	for _, at := range tj.AddedTokens {
		if at.ID < 0 {
			return nil, fmt.Errorf("added token %q: negative id %d", at.Content, at.ID)
		}
		if at.ID > maxID {
			maxID = at.ID
		}
	}
	if maxID < 0 {
		return nil, fmt.Errorf("empty vocabulary")
	}

	tokens := make([]string, maxID+1)
	for tok, id := range tj.Model.Vocab {
		tokens[id] = tok
	}
	for _, at := range tj.AddedTokens {
		tokens[at.ID] = at.Content
	}

	merges := make([]string, 0, len(tj.Model.Merges))
	for _, raw := range tj.Model.Merges {
		switch v := raw.(type) {
		case string:
			merges = append(merges, v)
		case []any:
			if len(v) == 2 {
				a, aok := v[0].(string)
				b, bok := v[1].(string)
				if aok && bok {
					merges = append(merges, a+" "+b)
				}
			}
		}
	}

	bosID := findToken(tokens, "<s>", "<|begin_of_text|>", "<|bos|>")
	eosID := findToken(tokens, "</s>", "<|end_of_text|>", "<|eos|>", "<|endoftext|>")
	padID := findToken(tokens, "<pad>", "<|pad|>")
	unkID := -1
	if tj.Model.UnkToken != "" {
		unkID = findToken(tokens, tj.Model.UnkToken)
	}
	if bosID < 0 || eosID < 0 {
		return nil, fmt.Errorf("vocabulary defines no begin/end of sequence tokens")
	}

	return NewBPE(tokens, merges, bosID, eosID, padID, unkID)
}

func findToken(tokens []string, candidates ...string) int {
	for _, c := range candidates {
		for id, t := range tokens {
			if t == c {
				return id
			}
		}
	}
	return -1
}
