package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/docdb/codec"
	"github.com/hupe1980/docdb/distance"
	"github.com/hupe1980/docdb/internal/queue"
	"github.com/hupe1980/docdb/model"
)

// ErrInvalidQuery is returned when a query contains NaN or Inf.
var ErrInvalidQuery = errors.New("query contains NaN or Inf")

// ErrDimensionMismatch is a named error type for dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch.
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// cancelCheckInterval is the number of rows scored between context checks.
const cancelCheckInterval = 1024

// Hit is a search result.
type Hit struct {
	Row    int           // Row is the position of the record in the index.
	Record *model.Record // Record points into the index's record table.
	Score  Score
	Rank   int // Rank is 1-based among the returned hits.
}

// Index is an immutable in-memory embedding index.
type Index struct {
	dim        int
	matrix     []float32
	norms      []float64
	records    []model.Record
	byID       map[string]int
	tags       map[string]*roaring.Bitmap
	projDim    int
	projection []float32
}

// New builds an index from decoded blob contents. The contents are validated
// again, so New also accepts contents assembled in memory. The index takes
// ownership of the slices in c.
func New(c *codec.Contents) (*Index, error) {
	if err := codec.Validate(c); err != nil {
		return nil, err
	}
	if uint64(len(c.Records)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d rows exceed the row limit", codec.ErrMalformedBlob, len(c.Records))
	}

	idx := &Index{
		dim:        c.Dimension,
		matrix:     c.Matrix,
		norms:      make([]float64, len(c.Records)),
		records:    c.Records,
		byID:       make(map[string]int, len(c.Records)),
		tags:       make(map[string]*roaring.Bitmap),
		projDim:    c.ProjectionDim,
		projection: c.Projection,
	}

	for i := range idx.records {
		idx.norms[i] = distance.Norm(idx.row(i))

		rec := &idx.records[i]
		idx.byID[rec.ID] = i
		for _, tag := range rec.Tags {
			bm, ok := idx.tags[tag]
			if !ok {
				bm = roaring.New()
				idx.tags[tag] = bm
			}
			bm.Add(uint32(i))
		}
	}
	for _, bm := range idx.tags {
		bm.RunOptimize()
	}

	return idx, nil
}

// Len returns the number of rows.
func (idx *Index) Len() int { return len(idx.records) }

// Dimension returns the embedding dimension D.
func (idx *Index) Dimension() int { return idx.dim }

// QueryDimension returns the dimension Search expects: the projection's input
// dimension when the index carries a projection, D otherwise.
func (idx *Index) QueryDimension() int {
	if idx.projDim > 0 {
		return idx.projDim
	}
	return idx.dim
}

// HasProjection reports whether queries are projected before scoring.
func (idx *Index) HasProjection() bool { return idx.projDim > 0 }

// Record returns the record at row.
func (idx *Index) Record(row int) (*model.Record, bool) {
	if row < 0 || row >= len(idx.records) {
		return nil, false
	}
	return &idx.records[row], true
}

// Lookup returns the record with the given identifier and its row.
func (idx *Index) Lookup(id string) (*model.Record, int, bool) {
	row, ok := idx.byID[id]
	if !ok {
		return nil, -1, false
	}
	return &idx.records[row], row, true
}

// Vector returns the embedding at row.
// WARNING: The returned slice aliases the index matrix and must not be modified.
func (idx *Index) Vector(row int) ([]float32, bool) {
	if row < 0 || row >= len(idx.records) {
		return nil, false
	}
	return idx.row(row), true
}

// Breadcrumb returns the titles from the outermost ancestor down to the
// record with the given identifier, following Parent links. Unknown parents
// end the chain; cycles are cut at the first repeated record.
func (idx *Index) Breadcrumb(id string) []string {
	row, ok := idx.byID[id]
	if !ok {
		return nil
	}

	var titles []string
	seen := make(map[int]struct{})
	for {
		if _, dup := seen[row]; dup {
			break
		}
		seen[row] = struct{}{}

		rec := &idx.records[row]
		titles = append(titles, rec.Title)
		if rec.Parent == "" {
			break
		}
		parent, ok := idx.byID[rec.Parent]
		if !ok {
			break
		}
		row = parent
	}
	slices.Reverse(titles)
	return titles
}

// Tags returns all tags carried by at least one record, sorted.
func (idx *Index) Tags() []string {
	tags := make([]string, 0, len(idx.tags))
	for tag := range idx.tags {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}

// TagCount returns the number of records carrying tag.
func (idx *Index) TagCount(tag string) int {
	if bm, ok := idx.tags[tag]; ok {
		return int(bm.GetCardinality())
	}
	return 0
}

// MemoryBytes estimates the heap footprint of the index.
func (idx *Index) MemoryBytes() int64 {
	n := int64(len(idx.matrix))*4 + int64(len(idx.norms))*8 + int64(len(idx.projection))*4
	for i := range idx.records {
		rec := &idx.records[i]
		n += int64(len(rec.ID)*2 + len(rec.Parent) + len(rec.Title) + len(rec.Reference) + len(rec.Anchor.Heading))
		for _, tag := range rec.Tags {
			n += int64(len(tag)) + 16
		}
		n += 128 // struct, map entry
	}
	for tag, bm := range idx.tags {
		n += int64(len(tag)) + int64(bm.GetSizeInBytes())
	}
	return n
}

// Search returns up to k rows most similar to query by cosine similarity,
// best first. k <= 0 yields no hits.
func (idx *Index) Search(ctx context.Context, query []float32, k int, optFns ...SearchOption) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if want := idx.QueryDimension(); len(query) != want {
		return nil, &ErrDimensionMismatch{Expected: want, Actual: len(query)}
	}
	if i, ok := distance.IsFinite(query); !ok {
		return nil, fmt.Errorf("%w: component %d", ErrInvalidQuery, i)
	}

	opts := searchOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	k = min(k, len(idx.records))
	if k <= 0 {
		return []Hit{}, nil
	}

	q := query
	if idx.projDim > 0 {
		q = make([]float32, idx.dim)
		distance.Project(q, query, idx.projection, idx.projDim, idx.dim)
	}
	qNorm := distance.Norm(q)

	var allowed *roaring.Bitmap
	if opts.filtered() {
		allowed = idx.filter(&opts)
		if allowed.IsEmpty() {
			return []Hit{}, nil
		}
	}

	top := queue.NewTopK(k)
	scan := func(row int) {
		score := newScore(distance.CosineWithNorms(q, idx.row(row), qNorm, idx.norms[row]))
		if opts.minScore != nil && score.Float64() < *opts.minScore {
			return
		}
		top.Offer(queue.Item{Row: uint32(row), Score: float64(score)})
	}

	if allowed != nil {
		it := allowed.Iterator()
		for n := 0; it.HasNext(); n++ {
			if n%cancelCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			scan(int(it.Next()))
		}
	} else {
		for row := range idx.records {
			if row%cancelCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			scan(row)
		}
	}

	items := top.Drain()
	hits := make([]Hit, len(items))
	for i, item := range items {
		row := int(item.Row)
		hits[i] = Hit{
			Row:    row,
			Record: &idx.records[row],
			Score:  Score(item.Score),
			Rank:   i + 1,
		}
	}
	return hits, nil
}

// filter combines the requested restrictions: rows carrying any of the tags,
// intersected with the explicit row set and the rows of the listed IDs.
func (idx *Index) filter(opts *searchOptions) *roaring.Bitmap {
	var sets []*roaring.Bitmap

	if opts.tags != nil {
		var tagged []*roaring.Bitmap
		for _, tag := range opts.tags {
			if bm, ok := idx.tags[tag]; ok {
				tagged = append(tagged, bm)
			}
		}
		sets = append(sets, roaring.FastOr(tagged...))
	}
	if opts.rows != nil {
		sets = append(sets, opts.rows)
	}
	if opts.ids != nil {
		bm := roaring.New()
		for _, id := range opts.ids {
			if row, ok := idx.byID[id]; ok {
				bm.Add(uint32(row))
			}
		}
		sets = append(sets, bm)
	}

	allowed := roaring.FastAnd(sets...)
	allowed.RemoveRange(uint64(len(idx.records)), math.MaxUint32+1)
	return allowed
}

func (idx *Index) row(i int) []float32 {
	off := i * idx.dim
	return idx.matrix[off : off+idx.dim : off+idx.dim]
}
