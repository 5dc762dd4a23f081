package chunker

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer converts between text and integer token sequences
type Tokenizer interface {
	// Encode converts text to a token sequence
	Encode(text string) []int

	// Decode converts a token sequence back to text
	Decode(tokens []int) string

	// Count returns the number of tokens in the text
	Count(text string) int
}

// tiktokenTokenizer wraps a tiktoken encoding
type tiktokenTokenizer struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenTokenizer creates a tokenizer backed by the named tiktoken
// encoding, e.g. "cl100k_base"
func NewTiktokenTokenizer(encodingName string) (Tokenizer, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encodingName, err)
	}

	return &tiktokenTokenizer{encoding: encoding}, nil
}

func (t *tiktokenTokenizer) Encode(text string) []int {
	return t.encoding.Encode(text, nil, nil)
}

func (t *tiktokenTokenizer) Decode(tokens []int) string {
	return t.encoding.Decode(tokens)
}

func (t *tiktokenTokenizer) Count(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}
