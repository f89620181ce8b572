package docdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/docdb/blobstore"
	"github.com/hupe1980/docdb/codec"
	"github.com/hupe1980/docdb/fetch"
	"github.com/hupe1980/docdb/index"
	"github.com/hupe1980/docdb/internal/cache"
	"github.com/hupe1980/docdb/internal/resource"
	"github.com/hupe1980/docdb/model"
)

// State is the lifecycle state of a Service.
type State int32

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

type (
	// Hit is a ranked search result.
	Hit = index.Hit
	// Outcome is the fetch result for one hit.
	Outcome = fetch.Outcome
	// Record describes one indexed chunk.
	Record = model.Record
)

// Excerpt is the rendered text of a successfully fetched hit.
type Excerpt struct {
	Hit       Hit
	Reference string
	Text      string
}

// Stats is a snapshot of service state.
type Stats struct {
	State          State
	Rows           int
	Dimension      int
	QueryDimension int
	Tags           int
	IndexBytes     int64
	CacheBytes     int64
	CacheHits      int64
	CacheMisses    int64
	MemoryUsage    int64
}

// Service loads an index blob and answers searches and content fetches
// against it. Once ready the index is immutable and reads take no locks.
type Service struct {
	mu    sync.Mutex // serializes state transitions
	state atomic.Int32
	idx   atomic.Pointer[index.Index]
	err   error // last load error

	opts    options
	rc      *resource.Controller
	cache   cache.Cache
	fetcher *fetch.Fetcher
	metrics MetricsCollector
	logger  *Logger
}

// New creates an unloaded Service that fetches document content from source.
func New(source fetch.Source, optFns ...Option) *Service {
	opts := applyOptions(optFns)

	s := &Service{
		opts:    opts,
		metrics: opts.metricsCollector,
		logger:  opts.logger,
		rc: resource.NewController(resource.Config{
			MemoryLimitBytes: opts.memoryLimit,
			FetchRate:        opts.fetchRate,
			FetchBurst:       opts.fetchBurst,
		}),
	}

	if source == nil {
		source = blobstore.StoreFunc(func(context.Context, string) ([]byte, error) {
			return nil, errors.New("no content source configured")
		})
	}
	if opts.cacheBytes > 0 {
		s.cache = cache.NewShardedLRUCache(opts.cacheBytes, s.rc)
	}

	s.fetcher = fetch.New(source, func(o *fetch.Options) {
		o.MaxConcurrency = opts.maxConcurrency
		o.FetchTimeout = opts.fetchTimeout
		o.BatchTimeout = opts.batchTimeout
		o.Resolver = opts.resolver
		o.Validator = opts.validator
		o.Cache = s.cache
		o.Logger = opts.logger.Logger
		if opts.fetchRate > 0 {
			o.Controller = s.rc
		}
	})

	return s
}

// State returns the current lifecycle state.
func (s *Service) State() State { return State(s.state.Load()) }

// Err returns the error of the last failed load, if the service is Failed.
func (s *Service) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() != StateFailed {
		return nil
	}
	return s.err
}

// Load decodes blob and makes the index available for search. It is allowed
// from Unloaded and Failed. Any validation error leaves the service Failed.
func (s *Service) Load(ctx context.Context, blob []byte) error {
	if err := s.begin(); err != nil {
		return err
	}
	return s.load(ctx, blob)
}

// LoadFrom downloads the blob called name from store within the load timeout
// and loads it.
func (s *Service) LoadFrom(ctx context.Context, store blobstore.Store, name string) error {
	if err := s.begin(); err != nil {
		return err
	}

	logger := s.logger.WithSource(name)

	dctx := ctx
	if s.opts.loadTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, s.opts.loadTimeout)
		defer cancel()
	}

	start := time.Now()
	blob, err := store.Get(dctx, name)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrIndexUnavailable, name, err)
		s.finish(nil, err)
		s.metrics.RecordLoad(0, time.Since(start), err)
		logger.LogLoad(ctx, 0, 0, 0, time.Since(start), err)
		return err
	}
	logger.DebugContext(ctx, "index downloaded", "bytes", len(blob), "elapsed", time.Since(start))

	return s.load(ctx, blob)
}

func (s *Service) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case StateReady:
		return ErrAlreadyLoaded
	case StateLoading:
		return ErrLoadInProgress
	}
	s.state.Store(int32(StateLoading))
	return nil
}

func (s *Service) load(ctx context.Context, blob []byte) error {
	start := time.Now()

	idx, err := s.build(ctx, blob)
	s.finish(idx, err)

	elapsed := time.Since(start)
	s.metrics.RecordLoad(len(blob), elapsed, err)
	if idx != nil {
		s.logger.LogLoad(ctx, len(blob), idx.Len(), idx.Dimension(), elapsed, nil)
	} else {
		s.logger.LogLoad(ctx, len(blob), 0, 0, elapsed, err)
	}
	return err
}

func (s *Service) build(ctx context.Context, blob []byte) (*index.Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contents, err := codec.Decode(blob, func(o *codec.DecodeOptions) {
		if s.opts.maxBlobSize > 0 {
			o.MaxSize = s.opts.maxBlobSize
		}
	})
	if err != nil {
		return nil, err
	}

	idx, err := index.New(contents)
	if err != nil {
		return nil, err
	}

	if err := s.rc.AcquireMemory(idx.MemoryBytes()); err != nil {
		return nil, fmt.Errorf("%w: index needs %d bytes, limit %d", err, idx.MemoryBytes(), s.rc.MemoryLimit())
	}
	return idx, nil
}

func (s *Service) finish(idx *index.Index, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.err = err
		s.state.Store(int32(StateFailed))
		return
	}
	s.err = nil
	s.idx.Store(idx)
	s.state.Store(int32(StateReady))
}

func (s *Service) ready() (*index.Index, error) {
	if s.State() != StateReady {
		return nil, ErrNotReady
	}
	idx := s.idx.Load()
	if idx == nil {
		return nil, ErrNotReady
	}
	return idx, nil
}

// Index returns the loaded index.
func (s *Service) Index() (*index.Index, error) {
	return s.ready()
}

// Search returns up to k hits most similar to query, best first.
func (s *Service) Search(ctx context.Context, query []float32, k int, optFns ...SearchOption) ([]Hit, error) {
	start := time.Now()

	idx, err := s.ready()
	if err == nil {
		var hits []Hit
		hits, err = idx.Search(ctx, query, k, optFns...)
		err = translateError(err)
		if err == nil {
			s.metrics.RecordSearch(k, time.Since(start), nil)
			s.logger.LogSearch(ctx, k, len(hits), nil)
			return hits, nil
		}
	}

	s.metrics.RecordSearch(k, time.Since(start), err)
	s.logger.LogSearch(ctx, k, 0, err)
	return nil, err
}

// Lookup returns the record with the given identifier.
func (s *Service) Lookup(id string) (*Record, error) {
	idx, err := s.ready()
	if err != nil {
		return nil, err
	}
	rec, _, ok := idx.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: record %q", ErrNotFound, id)
	}
	return rec, nil
}

// FetchContents retrieves the document text for every hit. It returns one
// outcome per hit in input order; fetch failures are reported on the
// outcomes and never as the call error.
func (s *Service) FetchContents(ctx context.Context, hits []Hit, optFns ...FetchOption) ([]Outcome, error) {
	if _, err := s.ready(); err != nil {
		return nil, err
	}

	start := time.Now()
	out := s.fetcher.Fetch(ctx, hits, optFns...)

	failed := 0
	for i := range out {
		if !out[i].OK() {
			failed++
		}
	}
	s.metrics.RecordFetch(len(out), failed, time.Since(start))
	s.logger.LogFetch(ctx, len(out), failed)

	return out, nil
}

// Excerpts fetches hits and renders each successful one as
//
//	# Root > ... > Title
//
//	body
//
//	<id:ID>
//
// Failed fetches are skipped.
func (s *Service) Excerpts(ctx context.Context, hits []Hit, optFns ...FetchOption) ([]Excerpt, error) {
	idx, err := s.ready()
	if err != nil {
		return nil, err
	}
	out, err := s.FetchContents(ctx, hits, optFns...)
	if err != nil {
		return nil, err
	}

	excerpts := make([]Excerpt, 0, len(out))
	for i := range out {
		if !out[i].OK() {
			continue
		}
		excerpts = append(excerpts, Excerpt{
			Hit:       out[i].Hit,
			Reference: out[i].Reference,
			Text:      renderExcerpt(idx.Breadcrumb(out[i].Hit.Record.ID), out[i].Content, out[i].Hit.Record.ID),
		})
	}
	return excerpts, nil
}

func renderExcerpt(breadcrumb []string, body, id string) string {
	titles := make([]string, 0, len(breadcrumb))
	for _, t := range breadcrumb {
		if t = strings.TrimSpace(t); t != "" {
			titles = append(titles, t)
		}
	}

	var b strings.Builder
	if len(titles) > 0 {
		b.WriteString("# ")
		b.WriteString(strings.Join(titles, " > "))
		b.WriteString("\n\n")
	}
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n\n<id:")
	b.WriteString(id)
	b.WriteString(">")
	return b.String()
}

// Stats returns a snapshot of the service.
func (s *Service) Stats() Stats {
	st := Stats{
		State:       s.State(),
		MemoryUsage: s.rc.MemoryUsage(),
	}
	if idx := s.idx.Load(); idx != nil && st.State == StateReady {
		st.Rows = idx.Len()
		st.Dimension = idx.Dimension()
		st.QueryDimension = idx.QueryDimension()
		st.Tags = len(idx.Tags())
		st.IndexBytes = idx.MemoryBytes()
	}
	if s.cache != nil {
		st.CacheBytes = s.cache.Size()
	}
	st.CacheHits, st.CacheMisses = s.fetcher.CacheStats()
	return st
}

// Close drops the index and the content cache. The service returns to
// Unloaded.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateLoading {
		return ErrLoadInProgress
	}

	var err error
	if s.cache != nil {
		err = s.cache.Close()
	}
	if idx := s.idx.Swap(nil); idx != nil {
		s.rc.ReleaseMemory(idx.MemoryBytes())
	}
	s.err = nil
	s.state.Store(int32(StateUnloaded))
	return err
}
