// Package leafletparser turns leaflet PDFs into page-attributed text chunks
// and builds the vector index used for question answering.
package leafletparser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/giygas/leaflet-api/apperrors"
	"github.com/giygas/leaflet-api/entities"
	"github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"
)

var (
	trailingSpaceRe = regexp.MustCompile(`[ \t]+\n`)
	blankLinesRe    = regexp.MustCompile(`\n{3,}`)
)

// ExtractPages reads the plain text of every page. Pages without text are kept
// with empty Text so numbering stays aligned with the PDF.
func ExtractPages(data []byte) (pages []entities.LeafletPage, err error) {
	if len(data) == 0 {
		return nil, &apperrors.DocumentParseError{Err: fmt.Errorf("empty document")}
	}

	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = &apperrors.DocumentParseError{Err: fmt.Errorf("pdf reader panic: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &apperrors.DocumentParseError{Err: err}
	}

	total := reader.NumPage()
	fonts := make(map[string]*pdf.Font)
	pages = make([]entities.LeafletPage, 0, total)

	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, entities.LeafletPage{Number: i})
			continue
		}

		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}

		text, err := page.GetPlainText(fonts)
		if err != nil {
			return nil, &apperrors.DocumentParseError{Err: fmt.Errorf("page %d: %w", i, err)}
		}

		pages = append(pages, entities.LeafletPage{Number: i, Text: CleanText(text)})
	}

	return pages, nil
}

// CleanText normalizes to NFC, unifies line endings and squeezes runs of blank lines
func CleanText(text string) string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = trailingSpaceRe.ReplaceAllString(text, "\n")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
