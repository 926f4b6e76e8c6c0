package leafletparser

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 150
)

// DefaultSeparators lists split boundaries from most to least preferred:
// paragraph, line, sentence end, word. A hard cut is used when none fits.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " "}

// Span is a half-open byte range [Start, End) of the split text
type Span struct {
	Start int
	End   int
}

// Splitter cuts text into windows of at most Size bytes that overlap by about Overlap bytes
type Splitter struct {
	Size       int
	Overlap    int
	Separators []string
}

// NewSplitter returns a splitter with sane bounds: Overlap is kept below Size
func NewSplitter(size, overlap int) Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return Splitter{Size: size, Overlap: overlap, Separators: DefaultSeparators}
}

// Split returns the chunk spans of text, trimmed of surrounding whitespace.
// Consecutive spans touch or overlap, so every non-space byte is covered.
func (s Splitter) Split(text string) []Span {
	if s.Size <= 0 {
		s = NewSplitter(s.Size, s.Overlap)
	}
	if s.Separators == nil {
		s.Separators = DefaultSeparators
	}

	var spans []Span
	pos := skipSpace(text, 0)
	prevEnd := pos

	for pos < len(text) {
		end := len(text)
		if len(text)-pos > s.Size {
			end = s.cut(text, pos, prevEnd)
		}
		prevEnd = end

		if span, ok := trimSpan(text, pos, end); ok {
			spans = append(spans, span)
		}
		if end >= len(text) {
			break
		}

		pos = s.nextStart(text, pos, end)
	}

	return spans
}

// cut picks the end of the window starting at pos using the most preferred
// separator present. Only boundaries past floor, the end of the previous chunk,
// count, so chunk ends strictly increase.
func (s Splitter) cut(text string, pos, floor int) int {
	if floor < pos {
		floor = pos
	}
	limit := alignBack(text, pos+s.Size)
	if limit <= floor {
		_, width := utf8.DecodeRuneInString(text[floor:])
		return floor + width
	}

	window := text[pos:limit]
	for _, sep := range s.Separators {
		if sep == "" {
			continue
		}
		if idx := strings.LastIndex(window, sep); idx > 0 && pos+idx+len(sep) > floor {
			return pos + idx + len(sep)
		}
	}
	return limit
}

// nextStart steps back Overlap bytes from end, then forward to the next word start.
// The result is always greater than pos.
func (s Splitter) nextStart(text string, pos, end int) int {
	if s.Overlap <= 0 {
		return skipSpace(text, end)
	}

	start := alignBack(text, end-s.Overlap)
	if start <= pos {
		start = pos + 1
	}

	// avoid starting a chunk in the middle of a word
	if start > 0 && !isSpaceBefore(text, start) {
		if idx := strings.IndexFunc(text[start:end], unicode.IsSpace); idx >= 0 {
			start += idx
		} else {
			start = end
		}
	}

	start = skipSpace(text, alignBack(text, start))
	if start <= pos {
		start = skipSpace(text, end)
	}
	return start
}

func isSpaceBefore(text string, i int) bool {
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return unicode.IsSpace(r)
}

func alignBack(text string, i int) int {
	if i >= len(text) {
		return len(text)
	}
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

func skipSpace(text string, i int) int {
	for i < len(text) {
		r, width := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += width
	}
	return i
}

func trimSpan(text string, start, end int) (Span, bool) {
	chunk := text[start:end]
	lead := len(chunk) - len(strings.TrimLeftFunc(chunk, unicode.IsSpace))
	trimmed := strings.TrimSpace(chunk)
	if trimmed == "" {
		return Span{}, false
	}
	return Span{Start: start + lead, End: start + lead + len(trimmed)}, true
}
