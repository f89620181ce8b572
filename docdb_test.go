package docdb_test

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docdb"
	"github.com/hupe1980/docdb/blobstore"
	"github.com/hupe1980/docdb/codec"
	"github.com/hupe1980/docdb/fetch"
	"github.com/hupe1980/docdb/testutil"
)

func contentStore(t *testing.T, c *codec.Contents) *blobstore.MemoryStore {
	t.Helper()
	store := blobstore.NewMemoryStore()
	for _, rec := range c.Records {
		body := fmt.Sprintf("  Body of %s.\n", rec.ID)
		require.NoError(t, store.Put(context.Background(), rec.Reference, []byte(body)))
	}
	return store
}

func loaded(t *testing.T, n, dim int, optFns ...docdb.Option) (*docdb.Service, *codec.Contents, *blobstore.MemoryStore) {
	t.Helper()
	c := testutil.Corpus(testutil.NewRNG(42), n, dim)
	store := contentStore(t, c)
	svc := docdb.New(store, optFns...)
	t.Cleanup(func() { _ = svc.Close() })
	require.NoError(t, svc.Load(context.Background(), testutil.MustEncode(t, c)))
	return svc, c, store
}

// shapeMismatchBlob returns a blob whose header claims one row fewer than
// its record table holds.
func shapeMismatchBlob(t *testing.T, c *codec.Contents) []byte {
	t.Helper()
	blob := testutil.MustEncode(t, c, func(o *codec.EncodeOptions) { o.DisableChecksum = true })

	rows := uint64(len(c.Records) - 1)
	rowBytes := uint64(c.Dimension * 4)
	out := append([]byte(nil), blob[:codec.HeaderSize]...)
	binary.LittleEndian.PutUint64(out[16:], rows)
	binary.LittleEndian.PutUint64(out[32:], rows*rowBytes)
	recordsOff := binary.LittleEndian.Uint64(blob[40:])
	binary.LittleEndian.PutUint64(out[40:], recordsOff-rowBytes)
	out = append(out, blob[codec.HeaderSize:uint64(codec.HeaderSize)+rows*rowBytes]...)
	out = append(out, blob[recordsOff:]...)
	return out
}

func TestSelfSimilarity(t *testing.T) {
	svc, c, _ := loaded(t, 64, 16)
	ctx := context.Background()

	for i := range c.Records {
		query := c.Matrix[i*c.Dimension : (i+1)*c.Dimension]
		hits, err := svc.Search(ctx, query, 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, i, hits[0].Row)
		assert.Equal(t, c.Records[i].ID, hits[0].Record.ID)
		assert.InDelta(t, 1.0, hits[0].Score.Float64(), 1e-5)
	}
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	c := testutil.Corpus(testutil.NewRNG(1), 8, 4)
	svc := docdb.New(contentStore(t, c))
	defer svc.Close()

	assert.Equal(t, docdb.StateUnloaded, svc.State())

	_, err := svc.Search(ctx, make([]float32, 4), 1)
	assert.ErrorIs(t, err, docdb.ErrNotReady)
	_, err = svc.FetchContents(ctx, nil)
	assert.ErrorIs(t, err, docdb.ErrNotReady)
	_, err = svc.Index()
	assert.ErrorIs(t, err, docdb.ErrNotReady)

	// A crafted row/record mismatch fails the load and builds nothing.
	err = svc.Load(ctx, shapeMismatchBlob(t, c))
	require.ErrorIs(t, err, docdb.ErrShapeMismatch)
	assert.Equal(t, docdb.StateFailed, svc.State())
	assert.ErrorIs(t, svc.Err(), docdb.ErrShapeMismatch)
	_, err = svc.Search(ctx, make([]float32, 4), 1)
	assert.ErrorIs(t, err, docdb.ErrNotReady)
	assert.Zero(t, svc.Stats().Rows)

	// Failed allows a retry.
	require.NoError(t, svc.Load(ctx, testutil.MustEncode(t, c)))
	assert.Equal(t, docdb.StateReady, svc.State())
	assert.NoError(t, svc.Err())

	err = svc.Load(ctx, testutil.MustEncode(t, c))
	assert.ErrorIs(t, err, docdb.ErrAlreadyLoaded)
	assert.Equal(t, docdb.StateReady, svc.State())

	require.NoError(t, svc.Close())
	assert.Equal(t, docdb.StateUnloaded, svc.State())
	_, err = svc.Search(ctx, make([]float32, 4), 1)
	assert.ErrorIs(t, err, docdb.ErrNotReady)
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("Malformed", func(t *testing.T) {
		svc := docdb.New(nil)
		assert.ErrorIs(t, svc.Load(ctx, []byte("garbage")), docdb.ErrMalformedBlob)
		assert.Equal(t, docdb.StateFailed, svc.State())
	})

	t.Run("MaxBlobSize", func(t *testing.T) {
		c := testutil.Corpus(testutil.NewRNG(1), 16, 8)
		svc := docdb.New(nil, docdb.WithMaxBlobSize(64))
		assert.ErrorIs(t, svc.Load(ctx, testutil.MustEncode(t, c)), docdb.ErrMalformedBlob)
	})

	t.Run("MemoryLimit", func(t *testing.T) {
		c := testutil.Corpus(testutil.NewRNG(1), 16, 8)
		svc := docdb.New(nil, docdb.WithMemoryLimit(128))
		assert.ErrorIs(t, svc.Load(ctx, testutil.MustEncode(t, c)), docdb.ErrMemoryLimitExceeded)
		assert.Equal(t, docdb.StateFailed, svc.State())
	})

	t.Run("Cancelled", func(t *testing.T) {
		c := testutil.Corpus(testutil.NewRNG(1), 4, 4)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		svc := docdb.New(nil)
		assert.ErrorIs(t, svc.Load(cctx, testutil.MustEncode(t, c)), context.Canceled)
		assert.Equal(t, docdb.StateFailed, svc.State())
	})
}

func TestLoadFrom(t *testing.T) {
	ctx := context.Background()
	c := testutil.Corpus(testutil.NewRNG(3), 8, 4)

	indexes := blobstore.NewMemoryStore()
	require.NoError(t, indexes.Put(ctx, "index.ddb", testutil.MustEncode(t, c, func(o *codec.EncodeOptions) {
		o.Compression = codec.CompressionZSTD
	})))

	t.Run("Missing", func(t *testing.T) {
		svc := docdb.New(nil)
		err := svc.LoadFrom(ctx, indexes, "other.ddb")
		assert.ErrorIs(t, err, docdb.ErrIndexUnavailable)
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
		assert.Equal(t, docdb.StateFailed, svc.State())

		require.NoError(t, svc.LoadFrom(ctx, indexes, "index.ddb"))
		assert.Equal(t, 8, svc.Stats().Rows)
	})

	t.Run("Timeout", func(t *testing.T) {
		slow := blobstore.StoreFunc(func(ctx context.Context, _ string) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
		svc := docdb.New(nil, docdb.WithLoadTimeout(20*time.Millisecond))
		err := svc.LoadFrom(ctx, slow, "index.ddb")
		assert.ErrorIs(t, err, docdb.ErrIndexUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("InProgress", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		blocking := blobstore.StoreFunc(func(ctx context.Context, name string) ([]byte, error) {
			close(started)
			<-release
			return indexes.Get(ctx, name)
		})

		svc := docdb.New(nil)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.LoadFrom(ctx, blocking, "index.ddb"))
		}()

		<-started
		assert.Equal(t, docdb.StateLoading, svc.State())
		assert.ErrorIs(t, svc.Load(ctx, nil), docdb.ErrLoadInProgress)
		assert.ErrorIs(t, svc.Close(), docdb.ErrLoadInProgress)
		close(release)
		wg.Wait()

		assert.Equal(t, docdb.StateReady, svc.State())
	})
}

func TestSearch(t *testing.T) {
	svc, c, _ := loaded(t, 32, 8)
	ctx := context.Background()
	query := c.Matrix[:c.Dimension]

	t.Run("K", func(t *testing.T) {
		hits, err := svc.Search(ctx, query, 0)
		require.NoError(t, err)
		assert.Empty(t, hits)

		hits, err = svc.Search(ctx, query, 1000)
		require.NoError(t, err)
		assert.Len(t, hits, 32)
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		_, err := svc.Search(ctx, []float32{1, 2, 3}, 5)
		var dm *docdb.ErrDimensionMismatch
		require.True(t, errors.As(err, &dm))
		assert.Equal(t, 8, dm.Expected)
		assert.Equal(t, 3, dm.Actual)
		assert.NotNil(t, errors.Unwrap(err))

		// The index remains usable.
		hits, err := svc.Search(ctx, query, 1)
		require.NoError(t, err)
		assert.Equal(t, 0, hits[0].Row)
	})

	t.Run("Ordering", func(t *testing.T) {
		hits, err := svc.Search(ctx, query, 10)
		require.NoError(t, err)
		assert.Equal(t, testutil.ExactTopK(query, c, 10), rowsOf(hits))
		for i := 1; i < len(hits); i++ {
			assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
		}
	})

	t.Run("Filters", func(t *testing.T) {
		hits, err := svc.Search(ctx, query, 32, docdb.WithTags("symptoms"))
		require.NoError(t, err)
		assert.Len(t, hits, 8)
		for _, h := range hits {
			assert.True(t, h.Record.HasTag("symptoms"))
		}

		hits, err = svc.Search(ctx, query, 32, docdb.WithIDs("doc-5", "doc-7"))
		require.NoError(t, err)
		assert.ElementsMatch(t, []int{5, 7}, rowsOf(hits))

		hits, err = svc.Search(ctx, query, 32, docdb.WithMinScore(0.999))
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, 0, hits[0].Row)
	})
}

func TestFetchContents(t *testing.T) {
	svc, c, store := loaded(t, 8, 4, docdb.WithCache(1<<20))
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "docs/doc-2.md"))

	hits, err := svc.Search(ctx, c.Matrix[:c.Dimension], 8)
	require.NoError(t, err)

	out, err := svc.FetchContents(ctx, hits, docdb.WithFetchConcurrency(2))
	require.NoError(t, err)
	require.Len(t, out, len(hits))

	failed := 0
	for i, o := range out {
		assert.Equal(t, hits[i].Row, o.Hit.Row)
		if o.Hit.Record.ID == "doc-2" {
			require.NotNil(t, o.Err)
			assert.Equal(t, fetch.KindNotFound, o.Err.Kind)
			assert.ErrorIs(t, o.Err, docdb.ErrNotFound)
			failed++
			continue
		}
		require.True(t, o.OK(), "%v", o.Err)
		assert.Contains(t, o.Content, "Body of "+o.Hit.Record.ID)
	}
	assert.Equal(t, 1, failed)

	_, err = svc.FetchContents(ctx, hits)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Gets("docs/doc-1.md"))

	st := svc.Stats()
	assert.Equal(t, int64(7), st.CacheHits)
	assert.Positive(t, st.CacheBytes)
}

func TestFetchContents_CachesLargeDocument(t *testing.T) {
	svc, c, store := loaded(t, 4, 4, docdb.WithCache(1024))
	ctx := context.Background()

	ref := c.Records[0].Reference
	body := strings.Repeat("x", 199) + "\n"
	require.NoError(t, store.Put(ctx, ref, []byte(body)))

	hits, err := svc.Search(ctx, c.Matrix[:c.Dimension], 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, 0, hits[0].Row)

	for range 3 {
		out, err := svc.FetchContents(ctx, hits)
		require.NoError(t, err)
		require.True(t, out[0].OK(), "%v", out[0].Err)
	}

	assert.Equal(t, 1, store.Gets(ref))
	st := svc.Stats()
	assert.Equal(t, int64(200), st.CacheBytes)
	assert.Equal(t, int64(2), st.CacheHits)
	assert.Equal(t, int64(1), st.CacheMisses)
}

func TestExcerpts(t *testing.T) {
	svc, _, _ := loaded(t, 8, 4)
	ctx := context.Background()

	idx, err := svc.Index()
	require.NoError(t, err)

	rec5, row5, ok := idx.Lookup("doc-5")
	require.True(t, ok)
	rec4, row4, ok := idx.Lookup("doc-4")
	require.True(t, ok)

	hits := []docdb.Hit{
		{Row: row5, Record: rec5, Rank: 1},
		{Row: row4, Record: rec4, Rank: 2},
		{Row: 99, Record: &docdb.Record{ID: "ghost", Reference: "docs/ghost.md"}, Rank: 3},
	}

	excerpts, err := svc.Excerpts(ctx, hits)
	require.NoError(t, err)
	require.Len(t, excerpts, 2)

	assert.Equal(t, "# Document 4 > Document 5\n\nBody of doc-5.\n\n<id:doc-5>", excerpts[0].Text)
	assert.Equal(t, "# Document 4\n\nBody of doc-4.\n\n<id:doc-4>", excerpts[1].Text)
	assert.Equal(t, "docs/doc-5.md", excerpts[0].Reference)
}

func TestLookup(t *testing.T) {
	svc, _, _ := loaded(t, 4, 4)

	rec, err := svc.Lookup("doc-3")
	require.NoError(t, err)
	assert.Equal(t, "Document 3", rec.Title)

	_, err = svc.Lookup("nope")
	assert.ErrorIs(t, err, docdb.ErrNotFound)
}

func TestMetricsAndStats(t *testing.T) {
	metrics := &docdb.BasicMetricsCollector{}
	svc, c, _ := loaded(t, 16, 4,
		docdb.WithMetricsCollector(metrics),
		docdb.WithLogger(docdb.NoopLogger()),
		docdb.WithMemoryLimit(1<<20),
	)
	ctx := context.Background()

	hits, err := svc.Search(ctx, c.Matrix[:4], 3)
	require.NoError(t, err)
	_, err = svc.Search(ctx, []float32{1}, 3)
	require.Error(t, err)
	_, err = svc.FetchContents(ctx, hits)
	require.NoError(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.LoadCount)
	assert.Zero(t, stats.LoadErrors)
	assert.Positive(t, stats.LoadBytes)
	assert.Equal(t, int64(2), stats.SearchCount)
	assert.Equal(t, int64(1), stats.SearchErrors)
	assert.Equal(t, int64(1), stats.FetchCount)
	assert.Equal(t, int64(3), stats.FetchItems)
	assert.Zero(t, stats.FetchFailed)

	st := svc.Stats()
	assert.Equal(t, docdb.StateReady, st.State)
	assert.Equal(t, 16, st.Rows)
	assert.Equal(t, 4, st.Dimension)
	assert.Equal(t, 4, st.QueryDimension)
	assert.Equal(t, 4, st.Tags)
	assert.Positive(t, st.IndexBytes)
	assert.Equal(t, st.IndexBytes, st.MemoryUsage)

	require.NoError(t, svc.Close())
	assert.Zero(t, svc.Stats().MemoryUsage)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "ready", docdb.StateReady.String())
	assert.Equal(t, "State(9)", docdb.State(9).String())
}

func rowsOf(hits []docdb.Hit) []int {
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.Row
	}
	return out
}
