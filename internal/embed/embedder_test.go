package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"Hello World", []string{"hello", "world"}},
		{"My dog's name is Milo!", []string{"my", "dog", "s", "name", "is", "milo"}},
		{"snake_case stays", []string{"snake_case", "stays"}},
		{"  tabs\tand\nnewlines ", []string{"tabs", "and", "newlines"}},
		{"café", []string{"caf"}},
		{"!!!", nil},
		{"", nil},
	}

	for _, tt := range tests {
		got := tokenize(tt.input)
		if len(tt.want) == 0 {
			assert.Empty(t, got, "tokenize(%q)", tt.input)
			continue
		}
		assert.Equal(t, tt.want, got, "tokenize(%q)", tt.input)
	}
}

func TestRollingHash(t *testing.T) {
	assert.Equal(t, int64(0), rollingHash(""))
	assert.Equal(t, int64(97), rollingHash("a"))
	assert.Equal(t, int64(3105), rollingHash("ab"))
	// surrogate pair: 0xD83D*31 + 0xDE00
	assert.Equal(t, int64(1772899), rollingHash("😀"))

	// Long inputs wrap around 32 bits but the result is never negative.
	long := ""
	for i := 0; i < 200; i++ {
		long += "overflow"
	}
	h := rollingHash(long)
	assert.GreaterOrEqual(t, h, int64(0))
	assert.LessOrEqual(t, h, int64(math.MaxInt32)+1)
}

func TestWordVectorHashed(t *testing.T) {
	v := wordVector("ab")
	assert.InDelta(t, 105.0/500-1, v[0], 1e-12)
	assert.InDelta(t, 136.0/500-1, v[1], 1e-12)
	for _, x := range v {
		assert.GreaterOrEqual(t, x, -1.0)
		assert.Less(t, x, 1.0)
	}
}

func TestWordVectorConcept(t *testing.T) {
	v := wordVector("dog")
	assert.Equal(t, [conceptWidth]float64{0.2, 0.8, 0.1, 0.3, 0.2, 0.9, 0.1, 0.6}, v)
}

func TestVectorExactValues(t *testing.T) {
	h := NewHashEmbedder(10)
	vec := h.Vector("ab")
	require.Len(t, vec, 10)

	assert.InDelta(t, -0.79, vec[0], 1e-12)
	assert.InDelta(t, -0.0387, vec[8], 1e-12)
	assert.InDelta(t, -0.0386, vec[9], 1e-12)
}

func TestVectorAveragesTokens(t *testing.T) {
	h := NewHashEmbedder(DefaultDimensions)
	vec := h.Vector("Dog, Milo.")

	dog := conceptVectors["dog"]
	milo := conceptVectors["milo"]
	for i := 0; i < conceptWidth; i++ {
		assert.InDelta(t, (dog[i]+milo[i])/2, vec[i], 1e-12, "component %d", i)
	}
	for i := conceptWidth; i < len(vec); i++ {
		assert.LessOrEqual(t, math.Abs(vec[i]), 0.05, "tail component %d", i)
	}
}

func TestVectorEmptyText(t *testing.T) {
	h := NewHashEmbedder(DefaultDimensions)
	for _, text := range []string{"", "   ", "?!.,"} {
		vec := h.Vector(text)
		require.Len(t, vec, DefaultDimensions)
		for i, v := range vec {
			if v != 0 {
				t.Fatalf("Vector(%q)[%d] = %f, want 0", text, i, v)
			}
		}
	}
}

func TestVectorDeterministic(t *testing.T) {
	h := NewHashEmbedder(DefaultDimensions)
	a := h.Vector("I live in Shanghai")
	b := NewHashEmbedder(DefaultDimensions).Vector("I live in Shanghai")
	assert.Equal(t, a, b)

	c := h.Vector("I live in shanghai")
	assert.Equal(t, a[:conceptWidth], c[:conceptWidth], "case only affects the tail")
	assert.NotEqual(t, a[conceptWidth:], c[conceptWidth:])
}

func TestVectorSmallDimensions(t *testing.T) {
	vec := NewHashEmbedder(4).Vector("dog")
	assert.Equal(t, []float64{0.2, 0.8, 0.1, 0.3}, vec)
}

func TestEmbedderInterface(t *testing.T) {
	var e Embedder = NewHashEmbedder(0)
	assert.Equal(t, DefaultDimensions, e.Dimensions())
	assert.Equal(t, "hash-v1", e.Model())

	vec, err := e.Embed(context.Background(), "pet")
	require.NoError(t, err)
	assert.Len(t, vec, DefaultDimensions)
}

func TestSameTextMaximallySimilar(t *testing.T) {
	h := NewHashEmbedder(DefaultDimensions)
	sim, err := CosineSimilarity(h.Vector("dog named milo"), h.Vector("dog named milo"))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-12)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 0, 0}, []float64{1, 0, 0}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 2}, []float64{-1, -2}, -1},
		{"scaled", []float64{1, 2, 3}, []float64{2, 4, 6}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)

			d, err := CosineDistance(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, 1-tt.want, d, 1e-12)
		})
	}
}

func TestCosineSimilarityErrors(t *testing.T) {
	_, err := CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = CosineSimilarity([]float64{0, 0}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrZeroVector)

	_, err = CosineDistance([]float64{1}, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
