package engine

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/mnemo/internal/embed"
	"github.com/lazypower/mnemo/internal/store"
)

func TestSearchRanksBySimilarity(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	texts := []string{"I live in Shanghai, China", "My dog is named Milo", "Tristan is the user name"}
	for _, text := range texts {
		mustCreate(t, e, text, store.DefaultProject)
	}

	query := "which city do I live in"
	threshold := -1.0
	hits, err := e.Search(ctx, query, SearchParams{Limit: 10, Threshold: &threshold})
	require.NoError(t, err)
	require.Len(t, hits, 3)

	h := embed.NewHashEmbedder(embed.DefaultDimensions)
	q := h.Vector(query)
	want := make(map[string]float64, len(texts))
	for _, text := range texts {
		sim, err := embed.CosineSimilarity(q, h.Vector(text))
		require.NoError(t, err)
		want[text] = sim
	}

	order := append([]string(nil), texts...)
	sort.SliceStable(order, func(i, j int) bool { return want[order[i]] > want[order[j]] })
	for i, hit := range hits {
		assert.Equal(t, order[i], hit.Content, "rank %d", i)
		assert.InDelta(t, want[hit.Content], hit.Similarity, 1e-9)
	}
	assert.True(t, sort.SliceIsSorted(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity }))
}

func TestSearchExactMatchFirst(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	mustCreate(t, e, "My dog is named Milo", store.DefaultProject)
	target := mustCreate(t, e, "I live in Shanghai", store.DefaultProject)

	hits, err := e.Search(ctx, "I live in Shanghai", SearchParams{})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, target.ID, hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
	for _, hit := range hits {
		assert.Greater(t, hit.Similarity, 0.7)
	}
}

func TestSearchLimit(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		mustCreate(t, e, "dog", store.DefaultProject)
	}

	hits, err := e.Search(ctx, "dog", SearchParams{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	first := mustCreate(t, e, "milo", store.DefaultProject)
	second := mustCreate(t, e, "milo", store.DefaultProject)

	hits, err := e.Search(ctx, "milo", SearchParams{})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, first.ID, hits[0].ID)
	assert.Equal(t, second.ID, hits[1].ID)
}

func TestSearchProjectScoped(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	mustCreate(t, e, "I live in Shanghai", "work")

	hits, err := e.Search(ctx, "I live in Shanghai", SearchParams{})
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.NotNil(t, hits)

	hits, err = e.Search(ctx, "I live in Shanghai", SearchParams{Project: "work"})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestSearchValidation(t *testing.T) {
	e := testEngine(t)
	_, err := e.Search(context.Background(), "", SearchParams{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	bad := 2.0
	_, err = e.Search(context.Background(), "x", SearchParams{Threshold: &bad})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
