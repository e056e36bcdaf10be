// internal/service/dedup/similarity.go

package dedup

import (
	"strings"
	"unicode"
)

// Normalize lower-cases a title, turns punctuation into spaces and collapses whitespace
func Normalize(title string) string {
	mapped := strings.Map(func(r rune) rune {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, title)
	return strings.Join(strings.Fields(mapped), " ")
}

// Bigrams returns the set of contiguous two-rune substrings of s
func Bigrams(s string) map[string]struct{} {
	runes := []rune(s)
	set := make(map[string]struct{}, len(runes))
	for i := 0; i+1 < len(runes); i++ {
		set[string(runes[i:i+2])] = struct{}{}
	}
	return set
}

// Similarity is Dice's coefficient over the bigram sets of a and b
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return dice(Bigrams(a), Bigrams(b))
}

func dice(a, b map[string]struct{}) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 0
	}

	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}

	shared := 0
	for g := range small {
		if _, ok := large[g]; ok {
			shared++
		}
	}
	return 2 * float64(shared) / float64(total)
}
