package port

import "raglite/internal/domain"

// VectorStore stores normalized embeddings under stable integer ids and
// searches them by inner-product similarity. Implementations include an
// in-memory store, a persisted local store, and a remote service client;
// callers depend only on this interface.
type VectorStore interface {
	// Add appends one batch of chunks and their embeddings, normalizing
	// each row to unit length and assigning contiguous new ids. Returns
	// the assigned ids in input order.
	Add(docID string, chunks []string, embeddings [][]float32, meta domain.ChunkMeta) ([]int64, error)

	// Search returns up to topK hits ordered by descending similarity,
	// ties broken by ascending id. Filtering never reduces the result set
	// below topK while enough matching candidates exist in the corpus.
	Search(query []float32, topK int, filter *domain.Filter) ([]domain.Hit, error)

	// Reset clears the store and removes any persisted artifacts.
	Reset() error

	// Count returns the number of stored vectors.
	Count() int
}
