package chunker

import "github.com/pkoukk/tiktoken-go"

// Tokenizer estimates chunk size the way the embedding model actually
// counts it, using the tiktoken-go Estimate/EncodeTokens/DecodeTokens
// shape. The chunker itself calls only Estimate; its overlap prefix is
// built from whole sentences.
type Tokenizer interface {
	Estimate(text string) int
	EncodeTokens(text string) []int
	DecodeTokens(tokens []int) string
}

type tiktokenTokenizer struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktoken builds a Tokenizer over the given encoding name (e.g.
// "cl100k_base"), falling back to a character-counting tokenizer if the
// encoding can't be loaded so the chunker never hard-fails on tokenizer
// setup.
func NewTiktoken(encodingName string) Tokenizer {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return charTokenizer{}
	}
	return &tiktokenTokenizer{encoding: enc}
}

func (t *tiktokenTokenizer) Estimate(text string) int {
	return len(t.EncodeTokens(text))
}

func (t *tiktokenTokenizer) EncodeTokens(text string) []int {
	return t.encoding.Encode(text, nil, nil)
}

func (t *tiktokenTokenizer) DecodeTokens(tokens []int) string {
	return t.encoding.Decode(tokens)
}

// charTokenizer is the zero-dependency fallback, used only if the tiktoken
// encoding table fails to load: Estimate counts one "token" per 4
// characters (a common rough heuristic), while EncodeTokens/DecodeTokens
// map each byte to one token.
type charTokenizer struct{}

func (charTokenizer) Estimate(text string) int { return (len(text) + 3) / 4 }
func (charTokenizer) EncodeTokens(text string) []int {
	tokens := make([]int, len(text))
	for i, b := range []byte(text) {
		tokens[i] = int(b)
	}
	return tokens
}
func (charTokenizer) DecodeTokens(tokens []int) string {
	b := make([]byte, len(tokens))
	for i, t := range tokens {
		b[i] = byte(t)
	}
	return string(b)
}
