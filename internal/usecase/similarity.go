package usecase

import (
	"sort"
	"strings"
)

// TokenSetSimilarity scores two strings 0-100 by comparing their whitespace token sets.
// Word order and duplicates are ignored; when one token set contains the other the score is 100.
// Otherwise the sorted intersection is compared against each side's remainder with IndelRatio
// and the best of the three comparisons is returned.
func TokenSetSimilarity(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	var intersection, onlyA, onlyB []string
	for t := range tokensA {
		if tokensB[t] {
			intersection = append(intersection, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range tokensB {
		if !tokensA[t] {
			onlyB = append(onlyB, t)
		}
	}

	if len(intersection) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	sort.Strings(intersection)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	sect := strings.Join(intersection, " ")
	diffA := strings.Join(onlyA, " ")
	diffB := strings.Join(onlyB, " ")

	combinedA := joinNonEmpty(sect, diffA)
	combinedB := joinNonEmpty(sect, diffB)

	best := IndelRatio(combinedA, combinedB)
	if sect != "" {
		best = max(best, IndelRatio(sect, combinedA), IndelRatio(sect, combinedB))
	}
	return best
}

// IndelRatio is the normalized insertion/deletion similarity of two strings, 0-100.
// It equals 2*LCS/(len(a)+len(b)) scaled to percent.
func IndelRatio(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 100
	}
	return 200 * float64(lcsLength(ra, rb)) / float64(total)
}

// lcsLength returns the length of the longest common subsequence
func lcsLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	// Two rows instead of the full matrix
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// tokenSet splits on whitespace into a set
func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(s) {
		set[t] = true
	}
	return set
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}
