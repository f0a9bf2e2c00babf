// Package tokenizer provides the subword tokenizer collaborator. The
// inference core treats every id it produces as an opaque integer; only
// equality against the special ids matters.
package tokenizer

// Tokenizer converts between text and token ids.
type Tokenizer interface {
	Encode(text string, addBOS, addEOS bool) ([]int, error)
	Decode(ids []int) (string, error)
	BOSID() int
	EOSID() int
	PadID() int
	VocabSize() int
}
