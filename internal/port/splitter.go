package port

// Splitter produces an ordered, non-empty sequence of non-empty text
// chunks for one input document. Chunks are opaque strings; the retrieval
// core performs no validation beyond non-emptiness.
type Splitter interface {
	Split(text string) []string
}

// Tokenizer splits text into lexical tokens. Index-time and query-time
// tokenization must be identical.
type Tokenizer interface {
	Tokenize(text string) []string
}
