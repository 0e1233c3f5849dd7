package embedding

import (
	"hash/fnv"
	"math"

	"raglite/internal/adapter/analyzer"
	"raglite/internal/port"
)

// MockEmbedder produces deterministic embeddings by hashing a bag of
// words into a fixed-width vector and L2-normalizing it. It needs no
// network or model weights, which makes it the offline default and the
// test embedder: similar texts still land near each other because they
// share hashed token buckets.
type MockEmbedder struct {
	dim       int
	tokenizer *analyzer.Tokenizer
}

var _ port.Embedder = (*MockEmbedder)(nil)

// NewMockEmbedder creates a mock embedder with the given dimension.
func NewMockEmbedder(dim int) *MockEmbedder {
	if dim <= 0 {
		dim = 384
	}
	return &MockEmbedder{
		dim:       dim,
		tokenizer: analyzer.NewTokenizer(),
	}
}

func (e *MockEmbedder) Embed(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, e.dim)
		for _, token := range e.tokenizer.Tokenize(text) {
			h := fnv.New32a()
			h.Write([]byte(token))
			vec[h.Sum32()%uint32(e.dim)]++
		}

		var sum float64
		for _, v := range vec {
			sum += float64(v) * float64(v)
		}
		if sum > 0 {
			inv := 1 / math.Sqrt(sum)
			for j := range vec {
				vec[j] = float32(float64(vec[j]) * inv)
			}
		}
		out[i] = vec
	}
	return out, nil
}

func (e *MockEmbedder) Dimension() int {
	return e.dim
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
