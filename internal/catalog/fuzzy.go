package catalog

import "strings"

// similarity blends normalized edit distance with token overlap so that both
// near-misspellings ("молако") and word-order variants ("масло сливочное" vs
// "сливочное масло") score high.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}

	lev := levenshteinSimilarity(a, b)
	overlap := tokenOverlap(a, b)
	if overlap > lev {
		return overlap
	}

	return lev
}

func levenshteinSimilarity(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}

	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			curr[j] = minInt(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func tokenOverlap(a, b string) float64 {
	ta := strings.Fields(a)
	tb := strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	set := make(map[string]bool, len(ta))
	for _, tok := range ta {
		set[tok] = true
	}

	// Jaccard over distinct tokens; repeated words must not inflate the score.
	seen := make(map[string]bool, len(tb))
	common := 0
	for _, tok := range tb {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		if set[tok] {
			common++
		}
	}

	union := len(set) + len(seen) - common
	if union == 0 {
		return 0
	}

	return float64(common) / float64(union)
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
