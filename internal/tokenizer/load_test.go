package tokenizer

import "testing"

const testTokenizerJSON = `{
  "model": {
    "type": "BPE",
    "vocab": {"h": 3, "e": 4, "l": 5, "o": 6, "he": 7, "llo": 8},
    "merges": ["h e", ["l", "l"], ["ll", "o"]]
  },
  "added_tokens": [
    {"id": 0, "content": "<s>", "special": true},
    {"id": 1, "content": "</s>", "special": true},
    {"id": 2, "content": "<pad>", "special": true}
  ]
}`

func TestLoadBytes(t *testing.T) {
	tok, err := LoadBytes([]byte(testTokenizerJSON))
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if tok.BOSID() != 0 || tok.EOSID() != 1 || tok.PadID() != 2 {
		t.Fatalf("special ids = %d %d %d", tok.BOSID(), tok.EOSID(), tok.PadID())
	}
	if tok.VocabSize() != 9 {
		t.Fatalf("VocabSize=%d want 9", tok.VocabSize())
	}

	// Mixed string and array merge forms both apply.
	ids, err := tok.Encode("hello", false, false)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(ids) != 2 || ids[0] != 7 || ids[1] != 8 {
		t.Fatalf("ids=%v want [7 8]", ids)
	}
}

func TestLoadBytesRejectsUnknownModel(t *testing.T) {
	if _, err := LoadBytes([]byte(`{"model":{"type":"Unigram","vocab":{"a":0}}}`)); err == nil {
		t.Fatalf("expected unsupported model error")
	}
}

func TestLoadBytesRejectsMissingSpecials(t *testing.T) {
	if _, err := LoadBytes([]byte(`{"model":{"type":"BPE","vocab":{"a":0}}}`)); err == nil {
		t.Fatalf("expected missing special tokens error")
	}
}

func TestLoadBytesRejectsNegativeIDs(t *testing.T) {
	vocab := `{"model":{"type":"BPE","vocab":{"<s>":0,"</s>":1,"a":-3}}}`
	if _, err := LoadBytes([]byte(vocab)); err == nil {
		t.Fatalf("expected negative vocab id error")
	}
	added := `{"model":{"type":"BPE","vocab":{"<s>":0,"</s>":1}},` +
		`"added_tokens":[{"id":-1,"content":"<x>"}]}`
	if _, err := LoadBytes([]byte(added)); err == nil {
		t.Fatalf("expected negative added token id error")
	}
}

func TestLoadBytesRejectsEmptyVocab(t *testing.T) {
	if _, err := LoadBytes([]byte(`{"model":{"type":"BPE"}}`)); err == nil {
		t.Fatalf("expected empty vocabulary error")
	}
}
