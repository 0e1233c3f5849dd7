package lexical

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"raglite/internal/domain"
	"raglite/internal/port"
)

const (
	// DefaultK1 is the BM25 term-frequency saturation constant.
	DefaultK1 = 1.5
	// DefaultB is the BM25 length-normalization constant.
	DefaultB = 0.75
)

type posting struct {
	ord int
	tf  int
}

type entry struct {
	id     int64
	docID  string
	text   string
	length int
	meta   domain.ChunkMeta
}

// Index is an incremental inverted index scored with BM25. Postings and
// corpus statistics (document frequency per term, total token length) are
// updated on every Add, so at any point they equal what a from-scratch
// build over all stored chunks would produce.
type Index struct {
	mu        sync.RWMutex
	tokenizer port.Tokenizer
	k1        float64
	b         float64

	postings map[string][]posting
	docs     []entry
	totalLen int64
}

// New creates an empty Index. Non-positive k1/b fall back to the defaults.
func New(tokenizer port.Tokenizer, k1, b float64) *Index {
	if k1 <= 0 {
		k1 = DefaultK1
	}
	if b <= 0 {
		b = DefaultB
	}
	return &Index{
		tokenizer: tokenizer,
		k1:        k1,
		b:         b,
		postings:  make(map[string][]posting),
	}
}

// Add appends one batch of chunks under docID. The ids are the stable
// identifiers already assigned by the vector store, so hits from both
// retrieval paths share one id space.
func (idx *Index) Add(docID string, chunks []string, ids []int64, meta domain.ChunkMeta) error {
	if len(chunks) != len(ids) {
		return fmt.Errorf("lexical add: %d chunks but %d ids", len(chunks), len(ids))
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i, text := range chunks {
		tokens := idx.tokenizer.Tokenize(text)
		ord := len(idx.docs)

		idx.docs = append(idx.docs, entry{
			id:     ids[i],
			docID:  docID,
			text:   text,
			length: len(tokens),
			meta:   meta,
		})
		idx.totalLen += int64(len(tokens))

		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		for term, count := range tf {
			idx.postings[term] = append(idx.postings[term], posting{ord: ord, tf: count})
		}
	}

	return nil
}

// Search scores every chunk containing at least one query token and
// returns up to topK hits by descending BM25 score, ties broken by
// insertion order. An empty index or a query with no tokens yields an
// empty result, never an error.
func (idx *Index) Search(query string, topK int) ([]domain.Hit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if topK <= 0 || len(idx.docs) == 0 {
		return nil, nil
	}

	tokens := idx.tokenizer.Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	n := float64(len(idx.docs))
	avgdl := float64(idx.totalLen) / n

	scores := make(map[int]float64)
	for _, term := range tokens {
		plist, ok := idx.postings[term]
		if !ok {
			continue
		}

		df := float64(len(plist))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))

		for _, p := range plist {
			tf := float64(p.tf)
			dl := float64(idx.docs[p.ord].length)
			scores[p.ord] += idf * (tf * (idx.k1 + 1)) / (tf + idx.k1*(1-idx.b+idx.b*dl/avgdl))
		}
	}

	ords := make([]int, 0, len(scores))
	for ord := range scores {
		ords = append(ords, ord)
	}
	// Ascending ord first so the stable sort preserves insertion order on
	// equal scores.
	sort.Ints(ords)
	sort.SliceStable(ords, func(i, j int) bool {
		return scores[ords[i]] > scores[ords[j]]
	})

	if len(ords) > topK {
		ords = ords[:topK]
	}

	hits := make([]domain.Hit, 0, len(ords))
	for _, ord := range ords {
		e := idx.docs[ord]
		hits = append(hits, domain.Hit{
			ID:        e.id,
			DocID:     e.docID,
			Text:      e.text,
			Score:     scores[ord],
			Source:    e.meta.Source,
			Timestamp: e.meta.Timestamp,
		})
	}

	return hits, nil
}

// Reset clears all postings, statistics and stored chunk text.
func (idx *Index) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.postings = make(map[string][]posting)
	idx.docs = nil
	idx.totalLen = 0
}

// Count returns the number of indexed chunks.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}
