// Package wer computes Word Error Rate between a reference and a
// hypothesis transcript using word-level edit distance.
package wer

import (
	"math"
	"strings"
)

// Result holds the outcome of a WER computation.
// Available is false when the reference contains no words; in that case
// the rate is undefined and Percent must be ignored.
type Result struct {
	ReferenceWordCount int     `json:"referenceWordCount"`
	HypothesisWords    int     `json:"hypothesisWordCount"`
	EditDistance       int     `json:"editDistance"`
	Percent            float64 `json:"werPercent"`
	Available          bool    `json:"-"`
}

// Tokenize lowercases the input and splits on whitespace, discarding
// empty tokens.
func Tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// Compute returns the Word Error Rate of hypothesis against reference.
// Both inputs are tokenized by lowercasing and whitespace splitting.
// Deletion, insertion and substitution each cost 1.
func Compute(reference, hypothesis string) Result {
	ref := Tokenize(reference)
	hyp := Tokenize(hypothesis)

	if len(ref) == 0 {
		return Result{HypothesisWords: len(hyp)}
	}

	dist := editDistance(ref, hyp)
	percent := 100 * float64(dist) / float64(len(ref))

	return Result{
		ReferenceWordCount: len(ref),
		HypothesisWords:    len(hyp),
		EditDistance:       dist,
		Percent:            round2(percent),
		Available:          true,
	}
}

// editDistance computes the Levenshtein distance over word sequences.
func editDistance(ref, hyp []string) int {
	dp := make([][]int, len(ref)+1)
	for i := range dp {
		dp[i] = make([]int, len(hyp)+1)
		dp[i][0] = i
	}
	for j := 0; j <= len(hyp); j++ {
		dp[0][j] = j
	}

	for i := 1; i <= len(ref); i++ {
		for j := 1; j <= len(hyp); j++ {
			if ref[i-1] == hyp[j-1] {
				dp[i][j] = dp[i-1][j-1]
				continue
			}
			dp[i][j] = 1 + min(dp[i-1][j], min(dp[i][j-1], dp[i-1][j-1]))
		}
	}
	return dp[len(ref)][len(hyp)]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
