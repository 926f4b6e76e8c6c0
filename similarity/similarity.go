// Package similarity provides the fuzzy string comparator used to rank portal search results.
package similarity

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ContainsScore is returned when one normalized string contains the other.
// It is coarser than the edit-distance branch and can outrank a near-exact
// match of a long string against a short one. Known bias, kept on purpose.
const ContainsScore = 0.8

var folder = cases.Fold()

// Normalize applies Unicode NFC, case folding and whitespace collapsing
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = folder.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Score compares two strings and returns a value in [0,1]:
// 1 for a normalized exact match, ContainsScore when one contains the other,
// otherwise 1 - levenshtein(longer, shorter)/len(longer).
func Score(a, b string) float64 {
	s1 := Normalize(a)
	s2 := Normalize(b)

	if s1 == s2 {
		return 1.0
	}
	if strings.Contains(s1, s2) || strings.Contains(s2, s1) {
		return ContainsScore
	}

	longer, shorter := s1, s2
	if utf8.RuneCountInString(s2) > utf8.RuneCountInString(s1) {
		longer, shorter = s2, s1
	}

	longerLen := utf8.RuneCountInString(longer)
	if longerLen == 0 {
		return 1.0
	}

	distance := Levenshtein(longer, shorter)
	return float64(longerLen-distance) / float64(longerLen)
}

// Levenshtein returns the classic edit distance between a and b counted in runes,
// with unit cost for insertion, deletion and substitution.
func Levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// two rows are enough
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}
