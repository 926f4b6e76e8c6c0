package leafletparser

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/giygas/leaflet-api/interfaces"
	"github.com/giygas/leaflet-api/logging"
	"github.com/giygas/leaflet-api/metrics"
	"github.com/giygas/leaflet-api/vectorindex"
)

var _ interfaces.IndexBuilder = (*Indexer)(nil)

// Indexer extracts, chunks and embeds a leaflet PDF
type Indexer struct {
	splitter  Splitter
	embedder  embedding.Embedder
	sourceTag string
}

// NewIndexer creates an indexer splitting with splitter and embedding with embedder
func NewIndexer(splitter Splitter, embedder embedding.Embedder, sourceTag string) *Indexer {
	return &Indexer{splitter: splitter, embedder: embedder, sourceTag: sourceTag}
}

// BuildIndex returns a DocumentParseError for unreadable PDFs. A PDF without
// text yields an empty index.
func (ix *Indexer) BuildIndex(ctx context.Context, pdf []byte) (*vectorindex.Index, error) {
	start := time.Now()

	pages, err := ExtractPages(pdf)
	if err != nil {
		return nil, err
	}

	chunks := ChunkPages(pages, ix.splitter, ix.sourceTag)
	index, err := vectorindex.Build(ctx, chunks, ix.embedder)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	metrics.IndexBuildDuration.Observe(elapsed.Seconds())
	logging.Debug("Leaflet indexed",
		"pages", len(pages),
		"chunks", len(chunks),
		"bytes", len(pdf),
		"duration_ms", elapsed.Milliseconds())

	return index, nil
}
