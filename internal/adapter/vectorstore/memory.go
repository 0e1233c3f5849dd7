package vectorstore

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"raglite/internal/domain"
	"raglite/internal/port"
)

// Memory is the in-memory-only vector store variant. Vectors are kept
// normalized so similarity is a plain inner product, and search is an
// exhaustive scan, which makes post-filtering trivially equivalent to
// oversampled filtering.
type Memory struct {
	mu      sync.RWMutex
	dim     int
	nextID  int64
	vectors [][]float32
	chunks  []domain.Chunk
}

var _ port.VectorStore = (*Memory)(nil)

// NewMemory creates an empty store for vectors of the given dimension.
func NewMemory(dim int) *Memory {
	return &Memory{dim: dim}
}

// Add validates, normalizes and appends one batch of embeddings, assigning
// contiguous new ids.
func (s *Memory) Add(docID string, chunks []string, embeddings [][]float32, meta domain.ChunkMeta) ([]int64, error) {
	if len(chunks) != len(embeddings) {
		return nil, fmt.Errorf("add: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	for _, emb := range embeddings {
		if len(emb) != s.dim {
			return nil, &domain.DimensionMismatchError{Expected: s.dim, Actual: len(emb)}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, len(chunks))
	for i, emb := range embeddings {
		id := s.nextID
		s.nextID++
		ids[i] = id

		vec := make([]float32, s.dim)
		copy(vec, emb)
		normalize(vec)

		s.vectors = append(s.vectors, vec)
		s.chunks = append(s.chunks, domain.Chunk{
			ID:    id,
			DocID: docID,
			Text:  chunks[i],
			Meta:  meta,
		})
	}

	return ids, nil
}

// truncate discards everything appended after the first n chunks and
// restores the id counter, undoing a batch that could not be persisted.
func (s *Memory) truncate(n int, nextID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = s.vectors[:n]
	s.chunks = s.chunks[:n]
	s.nextID = nextID
}

// Search scans all stored vectors and returns up to topK hits by
// descending inner-product similarity, ties broken by ascending id.
func (s *Memory) Search(query []float32, topK int, filter *domain.Filter) ([]domain.Hit, error) {
	if len(query) != s.dim {
		return nil, &domain.DimensionMismatchError{Expected: s.dim, Actual: len(query)}
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if topK <= 0 || len(s.vectors) == 0 {
		return nil, nil
	}

	q := make([]float32, s.dim)
	copy(q, query)
	normalize(q)

	hits := make([]domain.Hit, 0, len(s.vectors))
	for i, vec := range s.vectors {
		c := s.chunks[i]
		if !filter.Matches(c.DocID, c.Meta.Source, c.Meta.Timestamp) {
			continue
		}
		hits = append(hits, domain.Hit{
			ID:        c.ID,
			DocID:     c.DocID,
			Text:      c.Text,
			Score:     dot(q, vec),
			Source:    c.Meta.Source,
			Timestamp: c.Meta.Timestamp,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Reset clears all vectors and metadata.
func (s *Memory) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	return nil
}

func (s *Memory) resetLocked() {
	s.vectors = nil
	s.chunks = nil
	s.nextID = 0
}

// Count returns the number of stored vectors.
func (s *Memory) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// normalize scales vec to unit L2 norm in place. A zero vector stays zero,
// so its similarity with any query is 0 rather than an error.
func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) * inv)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
