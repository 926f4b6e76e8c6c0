package qa

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/giygas/leaflet-api/entities"
)

// maxRangeSpan bounds "pages 3-300" style ranges so a typo cannot explode the result
const maxRangeSpan = 50

var (
	pageRefRe  = regexp.MustCompile(`(?i)\b(?:p[áa]ginas?|p[áa]gs?\.?|pages?|pp?\.)\s*(\d{1,4})\b`)
	pageListRe = regexp.MustCompile(`(?i)^\s*(-|–|,|a|to|e|and)\s*(\d{1,4})\b`)
)

// CitedPages returns the sorted unique page numbers of chunks. Never nil.
func CitedPages(chunks []entities.LeafletChunk) []int {
	pages := make([]int, 0, len(chunks))
	for _, c := range chunks {
		if c.PageNumber > 0 {
			pages = append(pages, c.PageNumber)
		}
	}
	return sortedUnique(pages)
}

// ParsePageReferences extracts page numbers mentioned in prose such as
// "página 3", "pág. 4", "page 2", "p. 7", "páginas 3-5" or "páginas 3, 4 e 6". Never nil.
func ParsePageReferences(text string) []int {
	var pages []int

	for _, loc := range pageRefRe.FindAllStringSubmatchIndex(text, -1) {
		prev, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err != nil || prev <= 0 {
			continue
		}
		pages = append(pages, prev)

		rest := text[loc[1]:]
		for {
			m := pageListRe.FindStringSubmatchIndex(rest)
			if m == nil {
				break
			}
			sep := strings.ToLower(rest[m[2]:m[3]])
			next, err := strconv.Atoi(rest[m[4]:m[5]])
			if err != nil || next <= 0 {
				break
			}
			rest = rest[m[1]:]

			// "página 3, 2 comprimidos": a comma only continues a list of pages
			if sep == "," && !closesPageItem(rest) {
				break
			}

			if (sep == "-" || sep == "–" || sep == "a" || sep == "to") && next > prev && next-prev <= maxRangeSpan {
				for p := prev + 1; p <= next; p++ {
					pages = append(pages, p)
				}
			} else {
				pages = append(pages, next)
			}
			prev = next
		}
	}

	return sortedUnique(pages)
}

// closesPageItem reports whether rest, the text after a listed number, ends
// the item: punctuation, the end of text or a list conjunction
func closesPageItem(rest string) bool {
	rest = strings.TrimLeft(rest, " \t")
	if rest == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(rest)
	if unicode.IsDigit(r) {
		return false
	}
	if !unicode.IsLetter(r) {
		return true
	}
	end := strings.IndexFunc(rest, func(r rune) bool { return !unicode.IsLetter(r) })
	if end < 0 {
		end = len(rest)
	}
	switch strings.ToLower(rest[:end]) {
	case "e", "and", "a", "to":
		return true
	}
	return false
}

func sortedUnique(pages []int) []int {
	sort.Ints(pages)
	out := make([]int, 0, len(pages))
	for i, p := range pages {
		if i == 0 || p != pages[i-1] {
			out = append(out, p)
		}
	}
	return out
}
