package docdb

import (
	"log/slog"
	"time"

	"github.com/hupe1980/docdb/fetch"
	"github.com/hupe1980/docdb/index"
)

const (
	// DefaultLoadTimeout bounds the index download in LoadFrom.
	DefaultLoadTimeout = 30 * time.Second
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	maxConcurrency   int
	fetchTimeout     time.Duration
	batchTimeout     time.Duration
	loadTimeout      time.Duration
	cacheBytes       int64
	fetchRate        float64
	fetchBurst       int
	memoryLimit      int64
	maxBlobSize      int64
	resolver         fetch.Resolver
	validator        fetch.ContentValidator
}

// Option configures a Service.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &docdb.BasicMetricsCollector{}
//	svc := docdb.New(source, docdb.WithMetricsCollector(metrics))
//	// ... use svc ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, Avg latency: %dns\n", stats.SearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := docdb.NewJSONLogger(slog.LevelInfo)
//	svc := docdb.New(source, docdb.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMaxConcurrency bounds the number of in-flight content fetches across
// all FetchContents calls of the service. Default: 8
func WithMaxConcurrency(n int) Option {
	return func(o *options) {
		o.maxConcurrency = n
	}
}

// WithFetchTimeout bounds each content fetch. Default: 10s
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) {
		o.fetchTimeout = d
	}
}

// WithBatchTimeout bounds a whole FetchContents call. Fetches still running
// when it elapses are reported as network failures.
func WithBatchTimeout(d time.Duration) Option {
	return func(o *options) {
		o.batchTimeout = d
	}
}

// WithLoadTimeout bounds the index download in LoadFrom. Default: 30s
func WithLoadTimeout(d time.Duration) Option {
	return func(o *options) {
		o.loadTimeout = d
	}
}

// WithCache keeps up to capacity bytes of fetched content in memory for the
// lifetime of the service.
func WithCache(capacity int64) Option {
	return func(o *options) {
		o.cacheBytes = capacity
	}
}

// WithFetchRateLimit limits content fetches to rps requests per second with
// the given burst.
func WithFetchRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		o.fetchRate = rps
		o.fetchBurst = burst
	}
}

// WithMemoryLimit caps the memory held by the decoded index and the content
// cache together. Zero means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithMaxBlobSize rejects index blobs larger than n bytes.
// Default: codec.DefaultMaxSize
func WithMaxBlobSize(n int64) Option {
	return func(o *options) {
		o.maxBlobSize = n
	}
}

// WithResolver sets how records are mapped to content references.
// Default: fetch.ReferenceResolver
func WithResolver(r fetch.Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithContentValidator rejects fetched content that fails v.
func WithContentValidator(v fetch.ContentValidator) Option {
	return func(o *options) {
		o.validator = v
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		maxConcurrency:   fetch.DefaultMaxConcurrency,
		fetchTimeout:     fetch.DefaultFetchTimeout,
		loadTimeout:      DefaultLoadTimeout,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// SearchOption configures a single Search call.
type SearchOption = index.SearchOption

// WithMinScore drops hits scoring below s.
func WithMinScore(s float64) SearchOption { return index.WithMinScore(s) }

// WithTags restricts the search to records carrying at least one of tags.
func WithTags(tags ...string) SearchOption { return index.WithTags(tags...) }

// WithIDs restricts the search to the given record identifiers.
func WithIDs(ids ...string) SearchOption { return index.WithIDs(ids...) }

// FetchOption configures a single FetchContents call.
type FetchOption = func(*fetch.FetchOptions)

// WithFetchConcurrency lowers the fetch concurrency for one call. Values above
// the service limit are capped by it.
func WithFetchConcurrency(n int) FetchOption {
	return func(o *fetch.FetchOptions) {
		o.MaxConcurrency = n
	}
}
