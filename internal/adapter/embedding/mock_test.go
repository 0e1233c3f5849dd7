package embedding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedderDeterministic(t *testing.T) {
	e := NewMockEmbedder(64)

	a, err := e.Embed([]string{"the dog ran", "the cat sat"})
	require.NoError(t, err)
	b, err := e.Embed([]string{"the dog ran", "the cat sat"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestMockEmbedderShapeAndNorm(t *testing.T) {
	e := NewMockEmbedder(64)

	vecs, err := e.Embed([]string{"some text", "другой текст", "更多文字"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	for _, vec := range vecs {
		require.Len(t, vec, 64)
		var sum float64
		for _, v := range vec {
			sum += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
	}
}

func TestMockEmbedderEmptyTextIsZeroVector(t *testing.T) {
	e := NewMockEmbedder(16)

	vecs, err := e.Embed([]string{""})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	for _, v := range vecs[0] {
		assert.Equal(t, float32(0), v)
	}
}

func TestMockEmbedderSimilarTextsCloser(t *testing.T) {
	e := NewMockEmbedder(128)

	vecs, err := e.Embed([]string{"the dog ran fast", "the dog ran quickly", "quantum flux capacitor"})
	require.NoError(t, err)

	dotp := func(a, b []float32) float64 {
		var s float64
		for i := range a {
			s += float64(a[i]) * float64(b[i])
		}
		return s
	}

	assert.Greater(t, dotp(vecs[0], vecs[1]), dotp(vecs[0], vecs[2]))
}
