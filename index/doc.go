// Package index provides the in-memory embedding index.
//
// An Index holds a row-major embedding matrix, the record table aligned with
// it, per-row norms computed once at construction, an identifier lookup table
// and one roaring bitmap per tag. It is immutable after construction and safe
// for concurrent use.
//
// # Search
//
// Search is an exact brute-force cosine scan. Scores are accumulated in
// float64 and clamped to [-1, 1]; rows (or queries) with a zero norm score
// MinScore, which ranks below every real cosine. The k best rows are kept in
// a bounded heap ordered by score descending, then row ascending, so results
// are deterministic.
//
//	hits, err := idx.Search(ctx, query, 5,
//	    index.WithMinScore(0.2),
//	    index.WithTags("symptoms"),
//	)
//
// # Projection
//
// An index may carry a projection matrix (for example a PCA basis). Queries
// are then expected in the projection's input dimension and are mapped into
// the embedding space before scoring.
package index
