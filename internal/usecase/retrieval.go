package usecase

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"raglite/internal/adapter/lexical"
	"raglite/internal/adapter/retriever"
	"raglite/internal/adapter/store"
	"raglite/internal/domain"
	"raglite/internal/port"
)

// Retrieval is the facade coordinating the vector store, the lexical index
// and the durable chunk store. It is constructed once at process start and
// passed into every handler; there is no package-level state.
//
// Mutations (Add, Reset) take the writer lock for their full duration so
// the two indexes never diverge; searches share the read lock and always
// observe a consistent point-in-time view.
type Retrieval struct {
	mu      sync.RWMutex
	vectors port.VectorStore
	lexical *lexical.Index
	chunks  *store.BoltStore
	log     zerolog.Logger
}

// NewRetrieval wires the facade and rebuilds the lexical index from the
// durable chunk corpus, so lexical statistics after a restart equal a
// fresh build over all stored chunks. The lexical index and chunk store
// are both optional; without a lexical index, lexical search degrades to
// empty results.
func NewRetrieval(vectors port.VectorStore, lex *lexical.Index, chunks *store.BoltStore, log zerolog.Logger) *Retrieval {
	r := &Retrieval{
		vectors: vectors,
		lexical: lex,
		chunks:  chunks,
		log:     log,
	}
	r.rebuildLexical()
	return r
}

func (r *Retrieval) rebuildLexical() {
	if r.lexical == nil || r.chunks == nil {
		return
	}

	all, err := r.chunks.All()
	if err != nil {
		// Recovered, not fatal: start with an empty lexical index.
		r.log.Warn().Err(err).Msg("could not rebuild lexical index from chunk store, starting empty")
		return
	}
	for _, c := range all {
		if err := r.lexical.Add(c.DocID, []string{c.Text}, []int64{c.ID}, c.Meta); err != nil {
			r.log.Warn().Err(err).Int64("chunk_id", c.ID).Msg("skipping chunk during lexical rebuild")
		}
	}
	if len(all) > 0 {
		r.log.Info().Int("chunks", len(all)).Msg("rebuilt lexical index from chunk store")
	}
}

// Add indexes one batch of chunks for a document in both indexes. The
// vector store validates dimensions before any mutation and assigns the
// ids shared by both retrieval paths.
func (r *Retrieval) Add(docID string, textChunks []string, embeddings [][]float32, meta domain.ChunkMeta) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.vectors.Add(docID, textChunks, embeddings, meta)
	if err != nil {
		return 0, err
	}

	if r.chunks != nil {
		batch := make([]domain.Chunk, len(ids))
		for i, id := range ids {
			batch[i] = domain.Chunk{ID: id, DocID: docID, Text: textChunks[i], Meta: meta}
		}
		if err := r.chunks.PutChunks(batch); err != nil {
			return 0, fmt.Errorf("store chunks: %w", err)
		}
	}

	if r.lexical != nil {
		if err := r.lexical.Add(docID, textChunks, ids, meta); err != nil {
			return 0, fmt.Errorf("lexical add: %w", err)
		}
	}

	return len(ids), nil
}

// SearchVector runs a similarity search, optionally filtered.
func (r *Retrieval) SearchVector(query []float32, topK int, filter *domain.Filter) ([]domain.Hit, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.vectors.Search(query, topK, filter)
}

// SearchLexical runs a BM25 search, optionally filtered. With no lexical
// index configured it returns an empty list instead of failing the
// request.
func (r *Retrieval) SearchLexical(query string, topK int, filter *domain.Filter) ([]domain.Hit, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.searchLexicalLocked(query, topK, filter)
}

func (r *Retrieval) searchLexicalLocked(query string, topK int, filter *domain.Filter) ([]domain.Hit, error) {
	if r.lexical == nil {
		r.log.Debug().Err(domain.ErrBackendUnavailable).Msg("lexical search degraded to empty result")
		return nil, nil
	}

	if filter.IsZero() {
		return r.lexical.Search(query, topK)
	}

	// The lexical index has no filter push-down, so scan the full match
	// set before filtering; truncating last guarantees filtering never
	// starves topK while enough matching candidates exist.
	hits, err := r.lexical.Search(query, r.lexical.Count())
	if err != nil {
		return nil, err
	}
	filtered := hits[:0:0]
	for _, h := range hits {
		if filter.Matches(h.DocID, h.Source, h.Timestamp) {
			filtered = append(filtered, h)
		}
	}
	if len(filtered) > topK {
		filtered = filtered[:topK]
	}
	return filtered, nil
}

// SearchHybrid fuses both retrieval paths with min-max normalization and
// an alpha blend.
func (r *Retrieval) SearchHybrid(query string, queryEmbedding []float32, topK int, alpha float64, filter *domain.Filter) ([]domain.Hit, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	vecHits, err := r.vectors.Search(queryEmbedding, topK, filter)
	if err != nil {
		return nil, err
	}
	lexHits, err := r.searchLexicalLocked(query, topK, filter)
	if err != nil {
		return nil, err
	}

	return retriever.Merge(vecHits, lexHits, topK, alpha), nil
}

// Reset clears both indexes and all persisted files. The writer lock is
// held throughout so no search observes a half-cleared state.
func (r *Retrieval) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.vectors.Reset(); err != nil {
		return fmt.Errorf("reset vector store: %w", err)
	}
	if r.chunks != nil {
		if err := r.chunks.Clear(); err != nil {
			return fmt.Errorf("clear chunk store: %w", err)
		}
	}
	if r.lexical != nil {
		r.lexical.Reset()
	}
	return nil
}

// Count returns the number of indexed chunks.
func (r *Retrieval) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.vectors.Count()
}
