package index

import (
	"math"
	"strconv"
)

// Score is a cosine similarity in [-1, 1], or MinScore. It is never NaN, so
// scores are totally ordered.
type Score float64

// MinScore is the score of a row whose similarity is undefined (zero norm).
// It ranks strictly below every real cosine.
var MinScore = Score(math.Inf(-1))

// newScore converts a similarity, mapping undefined values to MinScore.
func newScore(sim float64, ok bool) Score {
	if !ok || math.IsNaN(sim) {
		return MinScore
	}
	return Score(sim)
}

// Float64 returns the score as a float64.
func (s Score) Float64() float64 { return float64(s) }

// IsMin reports whether s is MinScore.
func (s Score) IsMin() bool { return math.IsInf(float64(s), -1) }

// Compare returns -1, 0 or +1 depending on whether s is below, equal to or
// above o.
func (s Score) Compare(o Score) int {
	switch {
	case s < o:
		return -1
	case s > o:
		return 1
	default:
		return 0
	}
}

func (s Score) String() string {
	if s.IsMin() {
		return "-inf"
	}
	return strconv.FormatFloat(float64(s), 'f', 4, 64)
}
