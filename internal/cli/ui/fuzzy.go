package ui

import (
	"sort"
	"strings"
)

// MaxSuggestionDistance is the largest edit distance offered as a suggestion
const MaxSuggestionDistance = 3

// FindSimilar returns up to limit candidates within MaxSuggestionDistance edits of target,
// closest first. Matching ignores case.
//
//	FindSimilar("chilren", []string{"children", "parents"}, 3) // ["children"]
func FindSimilar(target string, candidates []string, limit int) []string {
	type match struct {
		value    string
		distance int
	}

	var matches []match
	for _, candidate := range candidates {
		d := levenshtein(strings.ToLower(target), strings.ToLower(candidate))
		if d <= MaxSuggestionDistance {
			matches = append(matches, match{candidate, d})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	result := make([]string, 0, limit)
	for i := 0; i < len(matches) && i < limit; i++ {
		result = append(result, matches[i].value)
	}
	return result
}

// levenshtein counts the single-character edits that turn a into b, keeping one row of
// the matrix at a time
func levenshtein(a, b string) int {
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
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
