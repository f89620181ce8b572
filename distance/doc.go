// Package distance provides the vector kernels used by the index.
//
// Scoring kernels take float32 inputs but accumulate in float64, so that
// finite inputs never overflow into Inf and never produce NaN similarities.
// NormalizeL2InPlace takes its magnitude from github.com/viant/vec/search,
// since the normalized vector is float32 either way.
//
// # Usage
//
//	sim, ok := distance.Cosine(a, b)     // ok=false if either norm is zero
//	n := distance.Norm(v)
//	distance.NormalizeL2InPlace(v)
package distance
