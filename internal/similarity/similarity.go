package similarity

import (
	"regexp"
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/hbollon/go-edlib"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// CleanText lowercases text and strips everything except letters, digits,
// and single spaces. Transcripts and subtitle lines are both run through
// this before scoring so punctuation and casing differences never count
// against a match.
func CleanText(text string) string {
	lowered := strings.ToLower(text)
	cleaned := nonAlnum.ReplaceAllString(lowered, " ")
	return strings.Join(strings.Fields(cleaned), " ")
}

// Tokens splits cleaned text into words.
func Tokens(text string) []string {
	return strings.Fields(CleanText(text))
}

// TokenSortRatio compares two strings after sorting their tokens, using a
// normalized Levenshtein distance. Word order differences between a
// transcript and reference text do not reduce the score.
func TokenSortRatio(a, b string) float64 {
	sortedA := sortedTokenString(a)
	sortedB := sortedTokenString(b)
	if sortedA == "" && sortedB == "" {
		return 0
	}
	return clamp01(strutil.Similarity(sortedA, sortedB, metrics.NewLevenshtein()))
}

// PartialRatio scores the best local alignment of the shorter string inside
// the longer one, so a transcript window that covers only part of a longer
// reference passage can still score highly.
func PartialRatio(a, b string) float64 {
	cleanA := CleanText(a)
	cleanB := CleanText(b)
	if cleanA == "" || cleanB == "" {
		return 0
	}
	return clamp01(strutil.Similarity(cleanA, cleanB, metrics.NewSmithWatermanGotoh()))
}

// Blended combines token-sort and partial ratios into one scalar using the
// supplied weights. Callers pass normalized weights from config.
func Blended(a, b string, tokenSortWeight, partialWeight float64) float64 {
	return clamp01(tokenSortWeight*TokenSortRatio(a, b) + partialWeight*PartialRatio(a, b))
}

// TokenJaccard computes word-level Jaccard overlap between two strings.
// Single-character tokens are dropped first since they carry no signal in
// disc labels or show names.
func TokenJaccard(a, b string) float64 {
	tokensA := significantTokens(a)
	tokensB := significantTokens(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}
	joinedA := strings.Join(tokensA, " ")
	joinedB := strings.Join(tokensB, " ")
	return clamp01(float64(edlib.JaccardSimilarity(joinedA, joinedB, 0)))
}

// NameSimilarity scores two media titles with Jaro-Winkler, which favors
// shared prefixes.
func NameSimilarity(a, b string) float64 {
	cleanA := CleanText(a)
	cleanB := CleanText(b)
	if cleanA == "" || cleanB == "" {
		return 0
	}
	return clamp01(float64(edlib.JaroWinklerSimilarity(cleanA, cleanB)))
}

func sortedTokenString(text string) string {
	tokens := Tokens(text)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func significantTokens(text string) []string {
	tokens := Tokens(text)
	kept := tokens[:0]
	for _, token := range tokens {
		if len(token) > 1 {
			kept = append(kept, token)
		}
	}
	return kept
}

func clamp01(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
