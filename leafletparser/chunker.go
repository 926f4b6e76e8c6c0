package leafletparser

import (
	"sort"
	"strings"

	"github.com/giygas/leaflet-api/entities"
)

const (
	// PageSeparator joins page texts before splitting
	PageSeparator = "\n\n"

	DefaultSourceTag = "leaflet"
)

// JoinPages concatenates page texts with PageSeparator and returns the byte offset
// where each page starts in the joined text
func JoinPages(pages []entities.LeafletPage) (string, []int) {
	var b strings.Builder
	starts := make([]int, len(pages))

	for i, p := range pages {
		if i > 0 {
			b.WriteString(PageSeparator)
		}
		starts[i] = b.Len()
		b.WriteString(p.Text)
	}
	return b.String(), starts
}

// ChunkPages splits the joined pages and attributes each chunk to the page
// holding its first character
func ChunkPages(pages []entities.LeafletPage, splitter Splitter, sourceTag string) []entities.LeafletChunk {
	if sourceTag == "" {
		sourceTag = DefaultSourceTag
	}

	text, starts := JoinPages(pages)
	spans := splitter.Split(text)
	chunks := make([]entities.LeafletChunk, 0, len(spans))

	for _, span := range spans {
		chunks = append(chunks, entities.LeafletChunk{
			Text:       text[span.Start:span.End],
			PageNumber: pageAt(pages, starts, span.Start),
			SourceTag:  sourceTag,
			Start:      span.Start,
			End:        span.End,
		})
	}
	return chunks
}

func pageAt(pages []entities.LeafletPage, starts []int, offset int) int {
	// last page whose start is <= offset
	i := sort.Search(len(starts), func(i int) bool { return starts[i] > offset }) - 1
	if i < 0 {
		i = 0
	}
	return pages[i].Number
}
