package distance

import (
	"math"

	"github.com/viant/vec/search"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float64 {
	b = b[:len(a)]
	var s0, s1, s2, s3 float64
	i := 0
	for ; i+4 <= len(a); i += 4 {
		s0 += float64(a[i]) * float64(b[i])
		s1 += float64(a[i+1]) * float64(b[i+1])
		s2 += float64(a[i+2]) * float64(b[i+2])
		s3 += float64(a[i+3]) * float64(b[i+3])
	}
	for ; i < len(a); i++ {
		s0 += float64(a[i]) * float64(b[i])
	}
	return (s0 + s1) + (s2 + s3)
}

// SquaredNorm returns the squared L2 norm of v.
func SquaredNorm(v []float32) float64 {
	return Dot(v, v)
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	return math.Sqrt(SquaredNorm(v))
}

// CosineWithNorms computes the cosine similarity given precomputed norms.
// ok is false when either norm is zero; the similarity is undefined then.
// The result is clamped to [-1, 1] to absorb rounding error.
func CosineWithNorms(a, b []float32, normA, normB float64) (sim float64, ok bool) {
	if normA == 0 || normB == 0 {
		return 0, false
	}
	sim = Dot(a, b) / (normA * normB)
	switch {
	case sim > 1:
		sim = 1
	case sim < -1:
		sim = -1
	case math.IsNaN(sim):
		return 0, false
	}
	return sim, true
}

// Cosine computes the cosine similarity of a and b.
func Cosine(a, b []float32) (float64, bool) {
	return CosineWithNorms(a, b, Norm(a), Norm(b))
}

// IsFinite reports whether every component of v is neither NaN nor ±Inf.
// It returns the index of the first offending component otherwise.
func IsFinite(v []float32) (int, bool) {
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return i, false
		}
	}
	return -1, true
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
//
// The magnitude is computed in float32, which is exact enough for a result
// that is stored as float32 anyway. Scoring uses the float64 Norm instead.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	n := float64(search.Float32s(v).Magnitude())
	if math.IsInf(n, 0) {
		// Squares overflowed float32.
		n = Norm(v)
	}
	if n == 0 {
		return false
	}
	inv := 1 / n
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return true
}

// Project multiplies the row vector v (length in) by the row-major matrix m
// (in x out) and writes the result into dst (length out).
func Project(dst, v, m []float32, in, out int) {
	for j := 0; j < out; j++ {
		var s float64
		for i := 0; i < in; i++ {
			s += float64(v[i]) * float64(m[i*out+j])
		}
		dst[j] = float32(s)
	}
}
