package vectorindex

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"
	"unicode"

	openaiembed "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/giygas/leaflet-api/similarity"
)

const DefaultHashingDimensions = 512

// HashingEmbedder maps text to a fixed-size vector of hashed word and word-bigram
// counts. It needs no network and is deterministic, which makes it the offline
// provider and the embedder used in tests.
type HashingEmbedder struct {
	Dimensions int
}

var _ embedding.Embedder = (*HashingEmbedder)(nil)

// NewHashingEmbedder returns an embedder with dims buckets (DefaultHashingDimensions when <= 0)
func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = DefaultHashingDimensions
	}
	return &HashingEmbedder{Dimensions: dims}
}

func (h *HashingEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embed(text)
	}
	return out, nil
}

func (h *HashingEmbedder) embed(text string) []float64 {
	dims := h.Dimensions
	if dims <= 0 {
		dims = DefaultHashingDimensions
	}
	vec := make([]float64, dims)

	tokens := strings.FieldsFunc(similarity.Normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	add := func(feature string, weight float64) {
		hasher := fnv.New64a()
		_, _ = hasher.Write([]byte(feature))
		sum := hasher.Sum64()
		sign := 1.0
		if sum&1 == 1 {
			sign = -1.0
		}
		vec[(sum>>1)%uint64(dims)] += sign * weight
	}

	for i, tok := range tokens {
		add(tok, 1)
		if i > 0 {
			add(tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// OpenAIConfig selects a hosted embedding model
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewOpenAIEmbedder creates an OpenAI-compatible embedder
func NewOpenAIEmbedder(ctx context.Context, cfg OpenAIConfig) (embedding.Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embedder requires an API key")
	}
	embedder, err := openaiembed.NewEmbedder(ctx, &openaiembed.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create openai embedder: %w", err)
	}
	return embedder, nil
}
