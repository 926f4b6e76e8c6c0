// Package vectorindex holds leaflet chunks with their embeddings and answers
// similarity and maximal marginal relevance queries in memory.
package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/giygas/leaflet-api/entities"
)

const (
	DefaultK      = 6
	DefaultFetchK = 20
	DefaultLambda = 0.5
)

// Index is an immutable embedding-searchable collection of chunks built from one PDF
type Index struct {
	chunks   []entities.LeafletChunk
	vectors  [][]float64
	embedder embedding.Embedder
}

// Scored is a chunk with its cosine similarity to a query
type Scored struct {
	Chunk entities.LeafletChunk
	Score float64
}

// MMROptions tunes MaxMarginalRelevance. Zero K and FetchK fall back to the defaults,
// a Lambda outside [0,1] falls back to DefaultLambda.
type MMROptions struct {
	K      int
	FetchK int
	Lambda float64
}

func (o MMROptions) withDefaults() MMROptions {
	if o.K <= 0 {
		o.K = DefaultK
	}
	if o.FetchK <= 0 {
		o.FetchK = DefaultFetchK
	}
	if o.FetchK < o.K {
		o.FetchK = o.K
	}
	if o.Lambda < 0 || o.Lambda > 1 {
		o.Lambda = DefaultLambda
	}
	return o
}

// Build embeds every chunk. Zero chunks yield an empty index without calling the embedder.
func Build(ctx context.Context, chunks []entities.LeafletChunk, embedder embedding.Embedder) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("vectorindex: nil embedder")
	}

	ix := &Index{
		chunks:   append([]entities.LeafletChunk(nil), chunks...),
		embedder: embedder,
	}
	if len(chunks) == 0 {
		return ix, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %d chunks: %w", len(texts), err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	ix.vectors = vectors
	return ix, nil
}

// Len returns the number of chunks
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.chunks)
}

// Chunks returns a copy of the indexed chunks in document order
func (ix *Index) Chunks() []entities.LeafletChunk {
	if ix == nil {
		return nil
	}
	return append([]entities.LeafletChunk(nil), ix.chunks...)
}

func (ix *Index) embedQuery(ctx context.Context, query string) ([]float64, error) {
	vectors, err := ix.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}
	return vectors[0], nil
}

// Search returns the k chunks most similar to query, best first
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Scored, error) {
	if ix.Len() == 0 || k <= 0 {
		return nil, nil
	}

	q, err := ix.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	ranked := ix.rank(q)
	if k < len(ranked) {
		ranked = ranked[:k]
	}

	out := make([]Scored, len(ranked))
	for i, r := range ranked {
		out[i] = Scored{Chunk: ix.chunks[r.idx], Score: r.score}
	}
	return out, nil
}

// MaxMarginalRelevance takes the FetchK most similar chunks and greedily picks K of them,
// trading similarity to the query against similarity to chunks already picked.
// Chunks come back in selection order.
func (ix *Index) MaxMarginalRelevance(ctx context.Context, query string, opts MMROptions) ([]entities.LeafletChunk, error) {
	if ix.Len() == 0 {
		return nil, nil
	}
	opts = opts.withDefaults()

	q, err := ix.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	ranked := ix.rank(q)
	if opts.FetchK < len(ranked) {
		ranked = ranked[:opts.FetchK]
	}

	pool := make([][]float64, len(ranked))
	for i, r := range ranked {
		pool[i] = ix.vectors[r.idx]
	}

	picked := SelectMMR(q, pool, opts.K, opts.Lambda)
	out := make([]entities.LeafletChunk, len(picked))
	for i, p := range picked {
		out[i] = ix.chunks[ranked[p].idx]
	}
	return out, nil
}

type rankedChunk struct {
	idx   int
	score float64
}

// rank orders all chunks by similarity to q; ties keep document order
func (ix *Index) rank(q []float64) []rankedChunk {
	ranked := make([]rankedChunk, len(ix.vectors))
	for i, v := range ix.vectors {
		ranked[i] = rankedChunk{idx: i, score: Cosine(q, v)}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})
	return ranked
}

// SelectMMR returns indexes into candidates picked by maximal marginal relevance.
// The first pick is the most similar candidate; each next pick maximizes
// lambda*sim(query, c) - (1-lambda)*max sim(c, picked).
func SelectMMR(query []float64, candidates [][]float64, k int, lambda float64) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = Cosine(query, c)
	}

	// redundancy[i] is the max similarity of candidate i to any picked candidate
	redundancy := make([]float64, len(candidates))
	used := make([]bool, len(candidates))
	picked := make([]int, 0, k)

	for len(picked) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i := range candidates {
			if used[i] {
				continue
			}
			score := relevance[i]
			if len(picked) > 0 {
				score = lambda*relevance[i] - (1-lambda)*redundancy[i]
			}
			if score > bestScore {
				best, bestScore = i, score
			}
		}

		used[best] = true
		picked = append(picked, best)

		for i := range candidates {
			if used[i] {
				continue
			}
			if s := Cosine(candidates[i], candidates[best]); len(picked) == 1 || s > redundancy[i] {
				redundancy[i] = s
			}
		}
	}

	return picked
}

// Cosine returns the cosine similarity of a and b, 0 when either is a zero vector or lengths differ
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
