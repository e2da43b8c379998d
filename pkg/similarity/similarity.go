// Package similarity scores how alike two strings are.
package similarity

import (
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// Scorer returns a similarity in [0,1] between a query and a text field.
type Scorer func(query, field string) float64

// DamerauLevenshtein is the normalized Damerau-Levenshtein similarity:
// 1 - distance / max(runes(a), runes(b)). Two empty strings are identical.
func DamerauLevenshtein(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1.0
	}
	distance := edlib.DamerauLevenshteinDistance(a, b)
	return 1.0 - float64(distance)/float64(longest)
}

// WithCutoff returns a DamerauLevenshtein scorer that skips the distance
// computation when the rune lengths alone rule out a score of cutoff or
// more, returning 0 instead. The distance is at least the length
// difference, so scores at or above cutoff are unchanged.
func WithCutoff(cutoff float64) Scorer {
	return func(a, b string) float64 {
		la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
		longest := max(la, lb)
		if longest > 0 && float64(min(la, lb))/float64(longest) < cutoff {
			return 0
		}
		return DamerauLevenshtein(a, b)
	}
}
