package vectorindex

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/giygas/leaflet-api/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingEmbedder struct{ calls int }

func (f *failingEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	f.calls++
	return nil, errors.New("quota exceeded")
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float64{1, 2}, []float64{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float64{0, 0}, []float64{1, 1}))
	assert.Equal(t, 0.0, Cosine([]float64{1}, []float64{1, 1}))
}

func TestSelectMMRPrefersDiverseCandidate(t *testing.T) {
	query := []float64{1, 0, 0.3}
	candidates := [][]float64{
		{1, 0, 0},
		{1, 0.05, 0}, // near duplicate of the first
		{0, 0, 1},
	}

	assert.Equal(t, []int{0, 2}, SelectMMR(query, candidates, 2, 0.5))
	// lambda 1 is plain similarity ranking
	assert.Equal(t, []int{0, 1}, SelectMMR(query, candidates, 2, 1))
	assert.Len(t, SelectMMR(query, candidates, 10, 0.5), 3)
	assert.Nil(t, SelectMMR(query, nil, 2, 0.5))
}

func leafletChunks() []entities.LeafletChunk {
	return []entities.LeafletChunk{
		{Text: "posologia dose adultos comprimidos", PageNumber: 1},
		{Text: "posologia dose adultos comprimidos", PageNumber: 2},
		{Text: "gravidez amamentação dose", PageNumber: 3},
		{Text: "conservar abaixo de 25 graus", PageNumber: 4},
	}
}

func TestSearchRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	ix, err := Build(ctx, leafletChunks(), NewHashingEmbedder(0))
	require.NoError(t, err)
	assert.Equal(t, 4, ix.Len())

	results, err := ix.Search(ctx, "como conservar o medicamento abaixo de 25 graus", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 4, results[0].Chunk.PageNumber)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestMaxMarginalRelevanceSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	ix, err := Build(ctx, leafletChunks(), NewHashingEmbedder(0))
	require.NoError(t, err)

	query := "dose adultos comprimidos gravidez"

	top, err := ix.Search(ctx, query, 2)
	require.NoError(t, err)
	assert.Equal(t, top[0].Chunk.Text, top[1].Chunk.Text, "plain top-k returns both duplicates")

	picked, err := ix.MaxMarginalRelevance(ctx, query, MMROptions{K: 2, FetchK: 4, Lambda: 0.5})
	require.NoError(t, err)
	require.Len(t, picked, 2)
	assert.Contains(t, []int{1, 2}, picked[0].PageNumber)
	assert.Equal(t, 3, picked[1].PageNumber)
}

func TestEmptyIndexNeverEmbeds(t *testing.T) {
	ctx := context.Background()
	embedder := &failingEmbedder{}

	ix, err := Build(ctx, nil, embedder)
	require.NoError(t, err)
	assert.Equal(t, 0, ix.Len())

	picked, err := ix.MaxMarginalRelevance(ctx, "anything", MMROptions{})
	require.NoError(t, err)
	assert.Empty(t, picked)
	assert.Equal(t, 0, embedder.calls)
}

func TestBuildPropagatesEmbedderError(t *testing.T) {
	_, err := Build(context.Background(), leafletChunks(), &failingEmbedder{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestHashingEmbedderIsDeterministicAndNormalized(t *testing.T) {
	e := NewHashingEmbedder(64)
	vecs, err := e.EmbedStrings(context.Background(), []string{"Paracetamol 500 mg", "PARACETAMOL 500 mg", ""})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Len(t, vecs[0], 64)
	assert.InDelta(t, 1.0, Cosine(vecs[0], vecs[1]), 1e-9, "case folding makes these identical")
	assert.Equal(t, 0.0, Cosine(vecs[0], vecs[2]))
}

func TestMMROptionsDefaults(t *testing.T) {
	o := MMROptions{}.withDefaults()
	assert.Equal(t, DefaultK, o.K)
	assert.Equal(t, DefaultFetchK, o.FetchK)
	assert.Equal(t, 0.0, o.Lambda, "zero lambda is a valid setting")

	o = MMROptions{K: 10, FetchK: 3, Lambda: 2}.withDefaults()
	assert.Equal(t, 10, o.FetchK)
	assert.Equal(t, DefaultLambda, o.Lambda)
}
