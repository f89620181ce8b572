// Package testutil builds synthetic corpora and blobs for docdb tests and
// computes exact cosine rankings to check search results against.
//
//	rng := testutil.NewRNG(42)
//	c := testutil.Corpus(rng, 1000, 64)
//	blob := testutil.MustEncode(t, c)
//	want := testutil.ExactTopK(rng.UnitVector(64), c, 10)
package testutil
