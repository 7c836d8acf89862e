// Package fuzzy canonicalizes pattern contexts and scores how alike two of
// them are using exact matches with a Levenshtein fallback for strings.
package fuzzy

// LevenshteinDistance calculates the edit distance between two strings.
// Insertions, deletions and substitutions all cost 1. Comparison is by rune
// and case-sensitive; callers normalize first.
func LevenshteinDistance(a, b string) int {
	aRunes := []rune(a)
	bRunes := []rune(b)

	lenA := len(aRunes)
	lenB := len(bRunes)
	if lenA == 0 {
		return lenB
	}
	if lenB == 0 {
		return lenA
	}

	// Two rolling rows of the distance matrix
	prev := make([]int, lenB+1)
	curr := make([]int, lenB+1)
	for j := 0; j <= lenB; j++ {
		prev[j] = j
	}

	for i := 1; i <= lenA; i++ {
		curr[0] = i
		for j := 1; j <= lenB; j++ {
			cost := 0
			if aRunes[i-1] != bRunes[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[lenB]
}

// Ratio returns 1 - distance/len(longer), in [0,1]. Two empty strings are
// identical and score 1.
func Ratio(a, b string) float64 {
	longer, shorter := a, b
	if len([]rune(shorter)) > len([]rune(longer)) {
		longer, shorter = shorter, longer
	}
	maxLen := len([]rune(longer))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(LevenshteinDistance(longer, shorter))/float64(maxLen)
}
