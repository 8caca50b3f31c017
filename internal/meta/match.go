package meta

// DefaultMinSimilarity is the cutoff below which two titles are not considered the same
const DefaultMinSimilarity = 0.7

// titleMatchThreshold is stricter than search matching: the flag feeds a data-quality audit
const titleMatchThreshold = 0.9

// Similarity returns a score in [0, 1] for two titles after normalization,
// derived from the edit distance relative to the longer title.
func Similarity(a, b string) float64 {
	ra := []rune(NormalizeTitle(a))
	rb := []rune(NormalizeTitle(b))
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// TitlesMatch reports whether a remote title names the same thing as the catalog title
func TitlesMatch(catalog, remote string) bool {
	return Similarity(catalog, remote) >= titleMatchThreshold
}

// BestMatch returns the index of the candidate most similar to target and its
// score, or -1 when no candidate reaches cutoff. Earlier candidates win ties.
func BestMatch(target string, candidates []string, cutoff float64) (int, float64) {
	best, bestScore := -1, 0.0
	for i, c := range candidates {
		score := Similarity(target, c)
		if score >= cutoff && score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, bestScore
}

func levenshtein(a, b []rune) int {
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
