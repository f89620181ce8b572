package index

import "github.com/RoaringBitmap/roaring/v2"

type searchOptions struct {
	minScore *float64
	tags     []string
	rows     *roaring.Bitmap
	ids      []string
}

func (o *searchOptions) filtered() bool {
	return o.tags != nil || o.rows != nil || o.ids != nil
}

// SearchOption configures a single Search call.
type SearchOption func(*searchOptions)

// WithMinScore drops hits scoring below s before the result is truncated to k.
func WithMinScore(s float64) SearchOption {
	return func(o *searchOptions) {
		o.minScore = &s
	}
}

// WithTags restricts the search to rows carrying at least one of tags.
// Repeated options accumulate.
func WithTags(tags ...string) SearchOption {
	return func(o *searchOptions) {
		o.tags = append(make([]string, 0, len(o.tags)+len(tags)), o.tags...)
		o.tags = append(o.tags, tags...)
	}
}

// WithRows restricts the search to the rows in bm. bm is not modified.
func WithRows(bm *roaring.Bitmap) SearchOption {
	if bm == nil {
		bm = roaring.New()
	}
	return func(o *searchOptions) {
		o.rows = bm
	}
}

// WithIDs restricts the search to the records with the given identifiers.
// Unknown identifiers are ignored.
func WithIDs(ids ...string) SearchOption {
	return func(o *searchOptions) {
		o.ids = append(make([]string, 0, len(o.ids)+len(ids)), o.ids...)
		o.ids = append(o.ids, ids...)
	}
}
