package retriever

import (
	"sort"

	"raglite/internal/domain"
)

// fusionKey identifies one candidate across both retrieval paths. The same
// text under the same document is the same candidate no matter which index
// produced it.
type fusionKey struct {
	docID string
	text  string
}

func (k fusionKey) less(o fusionKey) bool {
	if k.docID != o.docID {
		return k.docID < o.docID
	}
	return k.text < o.text
}

// Merge fuses vector and lexical hits into one ranked list of at most k
// results. Each side's raw scores are min-max normalized independently,
// then combined as alpha*vector + (1-alpha)*lexical, substituting 0 for a
// side that did not produce the candidate. Ties are broken by the lexical
// ordering of the (doc_id, text) key, so output is reproducible across
// runs. Fused scores always lie in [0, 1].
func Merge(vecHits, lexHits []domain.Hit, k int, alpha float64) []domain.Hit {
	if k <= 0 {
		return nil
	}
	if alpha < 0 {
		alpha = 0
	} else if alpha > 1 {
		alpha = 1
	}

	vecNorm := minMax(vecHits)
	lexNorm := minMax(lexHits)

	// Vector-side metadata wins when both paths produced the candidate.
	byKey := make(map[fusionKey]domain.Hit, len(vecHits)+len(lexHits))
	for _, h := range lexHits {
		byKey[fusionKey{h.DocID, h.Text}] = h
	}
	for _, h := range vecHits {
		byKey[fusionKey{h.DocID, h.Text}] = h
	}

	type fused struct {
		key   fusionKey
		score float64
	}
	merged := make([]fused, 0, len(byKey))
	for key := range byKey {
		merged = append(merged, fused{
			key:   key,
			score: alpha*vecNorm[key] + (1-alpha)*lexNorm[key],
		})
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].score != merged[j].score {
			return merged[i].score > merged[j].score
		}
		return merged[i].key.less(merged[j].key)
	})

	if len(merged) > k {
		merged = merged[:k]
	}

	out := make([]domain.Hit, len(merged))
	for i, m := range merged {
		hit := byKey[m.key]
		hit.Score = m.score
		out[i] = hit
	}
	return out
}

// minMax rescales one side's scores into [0,1]. When max equals min
// (including a single hit), every normalized score is 0; an empty side
// yields an empty map, and map lookups then default to 0.
func minMax(hits []domain.Hit) map[fusionKey]float64 {
	norm := make(map[fusionKey]float64, len(hits))
	if len(hits) == 0 {
		return norm
	}

	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < lo {
			lo = h.Score
		}
		if h.Score > hi {
			hi = h.Score
		}
	}

	for _, h := range hits {
		key := fusionKey{h.DocID, h.Text}
		if hi > lo {
			norm[key] = (h.Score - lo) / (hi - lo)
		} else {
			norm[key] = 0
		}
	}
	return norm
}
