package similarity

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

// Score calculates the similarity between two titles using Levenshtein
// distance over normalized forms. Returns a value between 0.0 (completely
// different) and 1.0 (identical).
//
// Handles suffix containment for titles with possessive prefixes like
// "Will Vinton's Claymation Christmas" vs "Claymation Christmas": if one
// title is a suffix of the other and covers a substantial portion (>60%),
// a high score is returned directly.
func Score(s1, s2 string) float64 {
	s1 = Normalize(s1)
	s2 = Normalize(s2)

	if s1 == s2 {
		return 1.0
	}
	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}

	if score := suffixContainmentScore(s1, s2); score > 0 {
		return score
	}

	distance := levenshteinDistance(s1, s2)
	maxLen := len(s1)
	if len(s2) > maxLen {
		maxLen = len(s2)
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

// Matches reports whether two titles clear the given similarity threshold.
func Matches(s1, s2 string, threshold float64) bool {
	return Score(s1, s2) >= threshold
}

// suffixContainmentScore returns a high score if one normalized string is a
// word-boundary suffix of the other and covers >60% of the longer one.
func suffixContainmentScore(s1, s2 string) float64 {
	longer, shorter := s1, s2
	if len(s1) < len(s2) {
		longer, shorter = s2, s1
	}

	if strings.HasSuffix(longer, shorter) {
		prefixLen := len(longer) - len(shorter)
		if prefixLen == 0 || longer[prefixLen-1] == ' ' {
			ratio := float64(len(shorter)) / float64(len(longer))
			if ratio >= 0.6 {
				// 60% containment -> 0.96, 100% -> 1.0
				return 0.90 + (ratio * 0.10)
			}
		}
	}

	return 0
}

// Normalize lowercases, transliterates to ASCII, converts "&" to "and",
// and replaces separator punctuation with spaces so release names and
// display titles compare cleanly.
func Normalize(s string) string {
	s = unidecode.Unidecode(s)
	s = strings.ReplaceAll(s, "&", " and ")

	var result strings.Builder
	result.Grow(len(s))

	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		} else if unicode.IsSpace(r) || r == '.' || r == '-' || r == '_' {
			result.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(result.String()), " ")
}

func levenshteinDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
