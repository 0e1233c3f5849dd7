package analyzer

import (
	"strings"
	"unicode"
)

// Tokenizer splits text for lexical indexing and querying. The scheme is
// deliberately simple and symmetric: input is case-folded, CJK ideographs
// become one token per character, and every other contiguous run of
// letters, digits and underscores becomes one token. Mixed-script text
// ("RAG是检索增强") tokenizes to ["rag", "是", "检", "索", "增", "强"].
type Tokenizer struct{}

// NewTokenizer creates a new Tokenizer.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{}
}

// Tokenize splits text into tokens. Must be identical at index time and
// query time.
func (t *Tokenizer) Tokenize(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r):
			// One token per ideograph, independent of surrounding runs.
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			current.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	return tokens
}
