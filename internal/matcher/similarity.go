package matcher

import (
	"fmt"
	"strings"

	"github.com/hbollon/go-edlib"
	"github.com/pmezard/go-difflib/difflib"
)

// Scorer computes a similarity ratio in [0,1] between a candidate string and a
// record string. Implementations must be pure.
type Scorer interface {
	Score(candidate, record string) float64
}

// Algorithm names accepted by NewScorer
const (
	AlgorithmRatcliff    = "ratcliff"
	AlgorithmJaroWinkler = "jaro-winkler"
	AlgorithmLevenshtein = "levenshtein"
)

// NewScorer returns the scorer registered under name. Empty selects Ratcliff.
func NewScorer(name string) (Scorer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", AlgorithmRatcliff:
		return Ratcliff{}, nil
	case AlgorithmJaroWinkler:
		return JaroWinkler{}, nil
	case AlgorithmLevenshtein:
		return Levenshtein{}, nil
	default:
		return nil, fmt.Errorf("unknown similarity algorithm %q (want %s, %s or %s)",
			name, AlgorithmRatcliff, AlgorithmJaroWinkler, AlgorithmLevenshtein)
	}
}

// Ratcliff is the Ratcliff/Obershelp "gestalt" ratio: 2*M/T where M is the
// total size of the recursively found longest common blocks and T the combined
// length, measured in runes.
type Ratcliff struct{}

// Score implements Scorer.
func (Ratcliff) Score(candidate, record string) float64 {
	if candidate == record {
		return 1.0
	}
	if candidate == "" || record == "" {
		return 0.0
	}

	m := difflib.NewMatcher(splitRunes(candidate), splitRunes(record))
	return m.Ratio()
}

// splitRunes turns a string into one element per rune so the line-oriented
// matcher compares characters.
func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// JaroWinkler favours shared prefixes.
type JaroWinkler struct{}

// Score implements Scorer.
func (JaroWinkler) Score(candidate, record string) float64 {
	if candidate == record {
		return 1.0
	}
	return float64(edlib.JaroWinklerSimilarity(candidate, record))
}

// Levenshtein is 1 - distance/maxLen.
type Levenshtein struct{}

// Score implements Scorer.
func (Levenshtein) Score(candidate, record string) float64 {
	if candidate == record {
		return 1.0
	}
	sim, err := edlib.StringsSimilarity(candidate, record, edlib.Levenshtein)
	if err != nil {
		return 0.0
	}
	return float64(sim)
}
