package index

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docdb/codec"
	"github.com/hupe1980/docdb/model"
	"github.com/hupe1980/docdb/testutil"
)

func newTestIndex(t *testing.T, vectors [][]float32) *Index {
	t.Helper()
	idx, err := New(testutil.FromVectors(vectors))
	require.NoError(t, err)
	return idx
}

func rows(hits []Hit) []int {
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.Row
	}
	return out
}

func TestSearch(t *testing.T) {
	idx := newTestIndex(t, [][]float32{{1, 0}, {0, 1}, {0.7, 0.7}})

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, 0, hits[0].Row)
	assert.Equal(t, 1, hits[0].Rank)
	assert.InDelta(t, 1.0, hits[0].Score.Float64(), 1e-9)

	assert.Equal(t, 2, hits[1].Row)
	assert.Equal(t, 2, hits[1].Rank)
	assert.InDelta(t, 0.7071, hits[1].Score.Float64(), 1e-3)

	assert.Equal(t, "doc-2", hits[1].Record.ID)
	rec, _ := idx.Record(2)
	assert.Same(t, rec, hits[1].Record)
}

func TestSearchK(t *testing.T) {
	idx := newTestIndex(t, [][]float32{{1, 0}, {0, 1}, {0.7, 0.7}})
	ctx := context.Background()

	t.Run("Zero", func(t *testing.T) {
		hits, err := idx.Search(ctx, []float32{1, 0}, 0)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("Negative", func(t *testing.T) {
		hits, err := idx.Search(ctx, []float32{1, 0}, -3)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("ClampedToCorpus", func(t *testing.T) {
		hits, err := idx.Search(ctx, []float32{1, 0}, 100)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 2, 1}, rows(hits))
	})
}

func TestSearchDimensionMismatch(t *testing.T) {
	idx := newTestIndex(t, [][]float32{{1, 0}, {0, 1}})

	_, err := idx.Search(context.Background(), []float32{1, 0, 0}, 1)

	var dm *ErrDimensionMismatch
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, 2, dm.Expected)
	assert.Equal(t, 3, dm.Actual)

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, rows(hits))
}

func TestSearchInvalidQuery(t *testing.T) {
	idx := newTestIndex(t, [][]float32{{1, 0}})

	for _, q := range [][]float32{
		{float32(math.NaN()), 0},
		{0, float32(math.Inf(1))},
	} {
		_, err := idx.Search(context.Background(), q, 1)
		assert.ErrorIs(t, err, ErrInvalidQuery)
	}
}

func TestSearchZeroNorm(t *testing.T) {
	idx := newTestIndex(t, [][]float32{{0, 0}, {-1, 0}, {1, 0}})

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 0}, rows(hits))
	assert.True(t, hits[2].Score.IsMin())
	assert.Less(t, hits[2].Score.Float64(), hits[1].Score.Float64())

	hits, err = idx.Search(context.Background(), []float32{0, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, rows(hits))
	for _, h := range hits {
		assert.Equal(t, MinScore, h.Score)
	}
}

func TestSearchTieBreak(t *testing.T) {
	idx := newTestIndex(t, [][]float32{{0, 1}, {1, 0}, {2, 0}, {3, 0}})

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, rows(hits))
}

func TestSearchMinScore(t *testing.T) {
	idx := newTestIndex(t, [][]float32{{1, 0}, {0, 1}, {0.7, 0.7}})

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 3, WithMinScore(0.5))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, rows(hits))

	hits, err = idx.Search(context.Background(), []float32{1, 0}, 1, WithMinScore(1.5))
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchFilters(t *testing.T) {
	c := testutil.Corpus(testutil.NewRNG(7), 40, 8)
	idx, err := New(c)
	require.NoError(t, err)
	ctx := context.Background()
	q := testutil.NewRNG(8).UnitVector(8)

	t.Run("Tags", func(t *testing.T) {
		hits, err := idx.Search(ctx, q, 40, WithTags("symptoms", "treatment"))
		require.NoError(t, err)
		assert.Len(t, hits, 20)
		for _, h := range hits {
			assert.True(t, h.Record.HasTag("symptoms") || h.Record.HasTag("treatment"))
		}
	})

	t.Run("UnknownTag", func(t *testing.T) {
		hits, err := idx.Search(ctx, q, 5, WithTags("nope"))
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("IDs", func(t *testing.T) {
		hits, err := idx.Search(ctx, q, 5, WithIDs("doc-3", "doc-9", "missing"))
		require.NoError(t, err)
		assert.ElementsMatch(t, []int{3, 9}, rows(hits))
	})

	t.Run("RowsAndTags", func(t *testing.T) {
		bm := roaring.BitmapOf(0, 1, 2, 3, 4, 5, 1000)
		hits, err := idx.Search(ctx, q, 10, WithRows(bm), WithTags("introduction"))
		require.NoError(t, err)
		assert.ElementsMatch(t, []int{0, 4}, rows(hits))
		assert.True(t, bm.Contains(1000))
	})

	t.Run("MatchesExactScan", func(t *testing.T) {
		hits, err := idx.Search(ctx, q, 7)
		require.NoError(t, err)
		assert.Equal(t, testutil.ExactTopK(q, c, 7), rows(hits))
	})
}

func TestSearchOrdering(t *testing.T) {
	rng := testutil.NewRNG(4711)
	c := testutil.Corpus(rng, 500, 16)
	idx, err := New(c)
	require.NoError(t, err)

	for range 10 {
		q := rng.UnitVector(16)
		hits, err := idx.Search(context.Background(), q, 25)
		require.NoError(t, err)
		require.Len(t, hits, 25)

		seen := make(map[string]struct{})
		for i, h := range hits {
			assert.Equal(t, i+1, h.Rank)
			assert.False(t, math.IsNaN(h.Score.Float64()))
			assert.LessOrEqual(t, h.Score.Float64(), 1.0)
			assert.GreaterOrEqual(t, h.Score.Float64(), -1.0)
			if i > 0 {
				prev := hits[i-1]
				assert.True(t, prev.Score > h.Score || (prev.Score == h.Score && prev.Row < h.Row))
			}
			_, dup := seen[h.Record.ID]
			assert.False(t, dup)
			seen[h.Record.ID] = struct{}{}
		}
		assert.Equal(t, testutil.ExactTopK(q, c, 25), rows(hits))
	}
}

func TestSearchCancelled(t *testing.T) {
	idx := newTestIndex(t, [][]float32{{1, 0}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.Search(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProjection(t *testing.T) {
	c := testutil.FromVectors([][]float32{{1, 0}, {0, 1}})
	// Maps a 3-dim query (x, y, z) to (x, y+z).
	c.ProjectionDim = 3
	c.Projection = []float32{
		1, 0,
		0, 1,
		0, 1,
	}
	idx, err := New(c)
	require.NoError(t, err)
	assert.Equal(t, 3, idx.QueryDimension())
	assert.Equal(t, 2, idx.Dimension())
	assert.True(t, idx.HasProjection())

	hits, err := idx.Search(context.Background(), []float32{0.1, 0.5, 0.5}, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, rows(hits))

	_, err = idx.Search(context.Background(), []float32{1, 0}, 1)
	var dm *ErrDimensionMismatch
	assert.ErrorAs(t, err, &dm)
}

func TestNewRejectsInvalidContents(t *testing.T) {
	c := testutil.FromVectors([][]float32{{1, 0}, {0, 1}})
	c.Records[1].ID = c.Records[0].ID

	_, err := New(c)
	assert.ErrorIs(t, err, codec.ErrDuplicateIdentifier)
}

func TestLookups(t *testing.T) {
	c := &codec.Contents{
		Dimension: 2,
		Matrix:    []float32{1, 0, 0, 1, 1, 1, 0, 0},
		Records: []model.Record{
			{ID: "root", Title: "Diabetes", Tags: []string{"condition"}},
			{ID: "sym", Parent: "root", Title: "Symptoms", Tags: []string{"symptoms"}},
			{ID: "thirst", Parent: "sym", Title: "Thirst", Tags: []string{"symptoms"}},
			{ID: "orphan", Parent: "gone", Title: "Orphan"},
		},
	}
	idx, err := New(c)
	require.NoError(t, err)

	assert.Equal(t, 4, idx.Len())

	rec, row, ok := idx.Lookup("sym")
	require.True(t, ok)
	assert.Equal(t, 1, row)
	assert.Equal(t, "Symptoms", rec.Title)

	_, _, ok = idx.Lookup("missing")
	assert.False(t, ok)

	_, ok = idx.Record(4)
	assert.False(t, ok)

	v, ok := idx.Vector(2)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 1}, v)
	assert.Equal(t, 2, cap(v))

	assert.Equal(t, []string{"Diabetes", "Symptoms", "Thirst"}, idx.Breadcrumb("thirst"))
	assert.Equal(t, []string{"Orphan"}, idx.Breadcrumb("orphan"))
	assert.Nil(t, idx.Breadcrumb("missing"))

	assert.Equal(t, []string{"condition", "symptoms"}, idx.Tags())
	assert.Equal(t, 2, idx.TagCount("symptoms"))
	assert.Zero(t, idx.TagCount("nope"))
	assert.Positive(t, idx.MemoryBytes())
}

func TestBreadcrumbCycle(t *testing.T) {
	c := &codec.Contents{
		Dimension: 1,
		Matrix:    []float32{1, 1},
		Records: []model.Record{
			{ID: "a", Parent: "b", Title: "A"},
			{ID: "b", Parent: "a", Title: "B"},
		},
	}
	idx, err := New(c)
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "A"}, idx.Breadcrumb("a"))
}

func TestScore(t *testing.T) {
	assert.Equal(t, "-inf", MinScore.String())
	assert.Equal(t, "0.5000", Score(0.5).String())
	assert.Equal(t, -1, MinScore.Compare(Score(-1)))
	assert.Equal(t, 0, Score(0.25).Compare(Score(0.25)))
	assert.Equal(t, 1, Score(1).Compare(Score(0.9)))
	assert.Equal(t, MinScore, newScore(math.NaN(), true))
}
