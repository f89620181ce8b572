package fetch

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/docdb/blobstore"
	"github.com/hupe1980/docdb/index"
	"github.com/hupe1980/docdb/internal/cache"
	"github.com/hupe1980/docdb/internal/resource"
)

const (
	// DefaultMaxConcurrency bounds the number of in-flight fetches per batch.
	DefaultMaxConcurrency = 8
	// DefaultFetchTimeout bounds a single fetch.
	DefaultFetchTimeout = 10 * time.Second
)

var errEmptyContent = errors.New("empty content")

// Source retrieves raw content by reference.
type Source interface {
	Get(ctx context.Context, ref string) ([]byte, error)
}

// ContentValidator rejects retrieved content. A non-nil error marks the
// affected outcomes as malformed.
type ContentValidator func(ref string, content []byte) error

// Options configures a Fetcher.
type Options struct {
	// MaxConcurrency bounds in-flight source reads across all Fetch calls,
	// including reads still running for batches that already returned.
	// Default: 8
	MaxConcurrency int
	// FetchTimeout bounds each fetch. Zero disables the per-fetch timeout.
	// Default: 10s
	FetchTimeout time.Duration
	// BatchTimeout bounds a whole Fetch call. Zero means no batch timeout.
	BatchTimeout time.Duration
	// Resolver maps records to references. Default: ReferenceResolver
	Resolver Resolver
	// Validator is applied to every retrieved body.
	Validator ContentValidator
	// Cache keeps retrieved bodies across calls.
	Cache cache.Cache
	// Controller rate-limits calls into the source.
	Controller *resource.Controller
	Logger     *slog.Logger
}

// FetchOptions configures a single Fetch call.
type FetchOptions struct {
	// MaxConcurrency bounds the workers of this call. It can lower the
	// Fetcher-wide read limit but never raise it.
	MaxConcurrency int
}

// Outcome is the result for one hit. Exactly one of Content and Err is set.
type Outcome struct {
	Hit       index.Hit
	Reference string
	Content   string
	Err       *Error
}

// OK reports whether the content was retrieved.
func (o *Outcome) OK() bool { return o.Err == nil }

// Fetcher retrieves the documents behind search hits.
type Fetcher struct {
	source  Source
	caching *blobstore.CachingStore
	opts    Options
	group   singleflight.Group
	reads   *semaphore.Weighted
}

// New creates a Fetcher reading from source.
func New(source Source, optFns ...func(o *Options)) *Fetcher {
	opts := Options{
		MaxConcurrency: DefaultMaxConcurrency,
		FetchTimeout:   DefaultFetchTimeout,
		Resolver:       ReferenceResolver,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.Resolver == nil {
		opts.Resolver = ReferenceResolver
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	f := &Fetcher{
		opts:  opts,
		reads: semaphore.NewWeighted(int64(opts.MaxConcurrency)),
	}

	var s blobstore.Store = source
	if opts.Controller != nil {
		s = &limitedSource{inner: s, rc: opts.Controller}
	}
	if opts.Cache != nil {
		f.caching = blobstore.NewCachingStore(s, opts.Cache)
		s = f.caching
	}
	f.source = s
	return f
}

// CacheStats returns the hit and miss counters of the content cache.
func (f *Fetcher) CacheStats() (hits, misses int64) {
	if f.caching == nil {
		return 0, 0
	}
	return f.caching.Stats()
}

type body struct {
	content string
	err     *Error
}

// Fetch retrieves the content of every hit. The result has one outcome per
// hit, in input order. Hits sharing a reference are fetched once. Fetches that
// were not started when ctx ended are reported as network failures; completed
// ones are kept.
func (f *Fetcher) Fetch(ctx context.Context, hits []index.Hit, optFns ...func(o *FetchOptions)) []Outcome {
	fo := FetchOptions{MaxConcurrency: f.opts.MaxConcurrency}
	for _, fn := range optFns {
		fn(&fo)
	}
	if fo.MaxConcurrency <= 0 {
		fo.MaxConcurrency = f.opts.MaxConcurrency
	}

	if f.opts.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.BatchTimeout)
		defer cancel()
	}

	out := make([]Outcome, len(hits))
	refs := make([]string, 0, len(hits))
	byRef := make(map[string][]int, len(hits))

	for i, h := range hits {
		out[i].Hit = h
		if h.Record == nil {
			out[i].Err = malformed("", errors.New("hit has no record"))
			continue
		}
		ref, err := f.opts.Resolver.Resolve(h.Record)
		if err != nil {
			out[i].Err = malformed(ref, err)
			continue
		}
		out[i].Reference = ref
		if _, ok := byRef[ref]; !ok {
			refs = append(refs, ref)
		}
		byRef[ref] = append(byRef[ref], i)
	}

	bodies := make([]body, len(refs))

	var g errgroup.Group
	g.SetLimit(fo.MaxConcurrency)
	for j, ref := range refs {
		if err := ctx.Err(); err != nil {
			bodies[j].err = &Error{Kind: KindNetwork, Reference: ref, Err: err}
			continue
		}
		g.Go(func() error {
			bodies[j] = f.fetchOne(ctx, ref)
			return nil
		})
	}
	_ = g.Wait()

	for j, ref := range refs {
		b := bodies[j]
		for _, i := range byRef[ref] {
			if b.err != nil {
				out[i].Err = b.err
				continue
			}
			content, err := Slice(b.content, out[i].Hit.Record.Anchor)
			if err == nil && content == "" {
				err = errEmptyContent
			}
			if err != nil {
				out[i].Err = malformed(ref, err)
				continue
			}
			out[i].Content = content
		}
	}

	for i := range out {
		if e := out[i].Err; e != nil {
			f.opts.Logger.LogAttrs(ctx, slog.LevelDebug, "fetch failed",
				slog.String("reference", e.Reference),
				slog.String("kind", e.Kind.String()),
				slog.Any("error", e.Err),
			)
		}
	}

	return out
}

func (f *Fetcher) fetchOne(ctx context.Context, ref string) body {
	if err := ctx.Err(); err != nil {
		return body{err: &Error{Kind: KindNetwork, Reference: ref, Err: err}}
	}

	// The shared fetch outlives a cancelled waiter so that other callers
	// waiting on the same reference still get a result. It keeps its read
	// slot until it finishes, so detached reads still count against
	// MaxConcurrency.
	ch := f.group.DoChan(ref, func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		if f.opts.FetchTimeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(fctx, f.opts.FetchTimeout)
			defer cancel()
		}
		if err := f.reads.Acquire(fctx, 1); err != nil {
			return nil, err
		}
		defer f.reads.Release(1)

		data, err := f.source.Get(fctx, ref)
		if err != nil {
			return nil, err
		}
		if err := f.check(ref, data); err != nil {
			return nil, err
		}
		return string(data), nil
	})

	select {
	case <-ctx.Done():
		return body{err: &Error{Kind: KindNetwork, Reference: ref, Err: ctx.Err()}}
	case r := <-ch:
		if r.Err != nil {
			return body{err: classify(ref, r.Err)}
		}
		return body{content: r.Val.(string)}
	}
}

func (f *Fetcher) check(ref string, data []byte) error {
	if len(data) == 0 {
		return malformed(ref, errEmptyContent)
	}
	if !utf8.Valid(data) {
		return malformed(ref, errors.New("content is not valid UTF-8"))
	}
	if f.opts.Validator != nil {
		if err := f.opts.Validator(ref, data); err != nil {
			return malformed(ref, err)
		}
	}
	return nil
}

type limitedSource struct {
	inner blobstore.Store
	rc    *resource.Controller
}

func (s *limitedSource) Get(ctx context.Context, ref string) ([]byte, error) {
	if err := s.rc.AcquireFetch(ctx); err != nil {
		return nil, err
	}
	return s.inner.Get(ctx, ref)
}
