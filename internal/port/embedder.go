package port

// Embedder generates vector embeddings for text.
//
// Implementations return finite values with one row per input text and a
// fixed row width matching Dimension. Normalizing rows to unit length is
// the vector store's responsibility, not the embedder's.
type Embedder interface {
	// Embed generates embeddings for the given texts, one vector per input.
	Embed(texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
