package reconcile

import (
	"strings"
	"unicode"
)

// Tokens splits s into lowercase alphanumeric words of at least minLen
// runes. Punctuation separates words.
func Tokens(s string, minLen int) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len([]rune(w)) >= minLen {
			out[w] = struct{}{}
		}
	}
	return out
}

// Similarity is the overlap coefficient of the token sets of a and b:
// shared tokens divided by the size of the smaller set. It is 0 when either
// side has no tokens.
func Similarity(a, b string, minLen int) float64 {
	ta, tb := Tokens(a, minLen), Tokens(b, minLen)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	if len(tb) < len(ta) {
		ta, tb = tb, ta
	}
	shared := 0
	for w := range ta {
		if _, ok := tb[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(ta))
}
