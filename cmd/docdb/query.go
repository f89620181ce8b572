package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/hupe1980/docdb"
	"github.com/hupe1980/docdb/fetch"
)

type queryFlags struct {
	configPath string
	index      string
	k          int
	minScore   float64
	tags       string
	fetch      bool
	vector     string
	verbose    bool
}

func runQuery(ctx context.Context, args []string) error {
	var qf queryFlags
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	fs.StringVar(&qf.configPath, "config", "docdb.yaml", "config file")
	fs.StringVar(&qf.index, "index", "", "index blob location (overrides config)")
	fs.IntVar(&qf.k, "k", 0, "number of results (overrides config)")
	fs.Float64Var(&qf.minScore, "min-score", 0, "minimum cosine similarity")
	fs.StringVar(&qf.tags, "tags", "", "comma-separated tag filter")
	fs.BoolVar(&qf.fetch, "fetch", false, "fetch and print document excerpts")
	fs.StringVar(&qf.vector, "vector", "", "JSON file with a query vector instead of embedding the text")
	fs.BoolVar(&qf.verbose, "verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	configPath := qf.configPath
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) && !flagSet(fs, "config") {
		configPath = ""
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if qf.index != "" {
		cfg.Index = qf.index
	}
	if qf.k > 0 {
		cfg.Search.TopK = qf.k
	}
	if flagSet(fs, "min-score") {
		cfg.Search.MinScore = &qf.minScore
	}
	if qf.tags != "" {
		cfg.Search.Tags = strings.Split(qf.tags, ",")
	}
	if qf.verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var embedder Embedder
	if qf.vector != "" {
		embedder = fileEmbedder(qf.vector)
	} else {
		if fs.NArg() == 0 {
			return errors.New("query text is required")
		}
		embedder, err = newOpenAIEmbedder(cfg.Embedding)
		if err != nil {
			return err
		}
	}

	return query(ctx, os.Stdout, cfg, embedder, strings.Join(fs.Args(), " "), qf.fetch)
}

func query(ctx context.Context, w io.Writer, cfg *Config, embedder Embedder, text string, withContent bool) error {
	svc, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	indexStore, name, err := openBlob(ctx, cfg, cfg.Index)
	if err != nil {
		return err
	}
	if err := svc.LoadFrom(ctx, indexStore, name); err != nil {
		return err
	}

	vec, err := embedder.Embed(ctx, text)
	if err != nil {
		return err
	}

	var opts []docdb.SearchOption
	if cfg.Search.MinScore != nil {
		opts = append(opts, docdb.WithMinScore(*cfg.Search.MinScore))
	}
	if len(cfg.Search.Tags) > 0 {
		opts = append(opts, docdb.WithTags(cfg.Search.Tags...))
	}

	hits, err := svc.Search(ctx, vec, cfg.Search.TopK, opts...)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Fprintln(w, "no results")
		return nil
	}

	for _, h := range hits {
		fmt.Fprintf(w, "%2d. %s  %s  %s\n", h.Rank, h.Score, h.Record.ID, h.Record.Title)
	}

	if !withContent {
		return nil
	}

	excerpts, err := svc.Excerpts(ctx, hits)
	if err != nil {
		return err
	}
	for _, ex := range excerpts {
		fmt.Fprintf(w, "\n---\n%s\n", ex.Text)
	}
	if missing := len(hits) - len(excerpts); missing > 0 {
		fmt.Fprintf(w, "\n(%d documents could not be fetched)\n", missing)
	}
	return nil
}

func newService(ctx context.Context, cfg *Config) (*docdb.Service, error) {
	opts := []docdb.Option{
		docdb.WithLogger(newLogger(cfg.LogLevel)),
		docdb.WithMemoryLimit(cfg.MemoryLimit),
	}
	if cfg.LoadTimeout > 0 {
		opts = append(opts, docdb.WithLoadTimeout(cfg.LoadTimeout))
	}
	if cfg.Fetch.MaxConcurrency > 0 {
		opts = append(opts, docdb.WithMaxConcurrency(cfg.Fetch.MaxConcurrency))
	}
	if cfg.Fetch.Timeout > 0 {
		opts = append(opts, docdb.WithFetchTimeout(cfg.Fetch.Timeout))
	}
	if cfg.Fetch.BatchTimeout > 0 {
		opts = append(opts, docdb.WithBatchTimeout(cfg.Fetch.BatchTimeout))
	}
	if cfg.Fetch.RateLimit > 0 {
		opts = append(opts, docdb.WithFetchRateLimit(cfg.Fetch.RateLimit, cfg.Fetch.Burst))
	}
	if cfg.Fetch.CacheBytes > 0 {
		opts = append(opts, docdb.WithCache(cfg.Fetch.CacheBytes))
	}
	if cfg.Content.Sharded {
		opts = append(opts, docdb.WithResolver(fetch.ShardedResolver{Prefix: cfg.Content.Prefix}))
	}

	var source fetch.Source
	if cfg.Content.Location != "" {
		store, err := openStore(ctx, cfg, cfg.Content.Location)
		if err != nil {
			return nil, err
		}
		source = store
	}
	return docdb.New(source, opts...), nil
}

func newLogger(level string) *docdb.Logger {
	switch strings.ToLower(level) {
	case "debug":
		return docdb.NewTextLogger(slog.LevelDebug)
	case "info":
		return docdb.NewTextLogger(slog.LevelInfo)
	case "warn":
		return docdb.NewTextLogger(slog.LevelWarn)
	case "error":
		return docdb.NewTextLogger(slog.LevelError)
	default:
		return docdb.NoopLogger()
	}
}

// fileEmbedder reads a precomputed query vector from a JSON file.
type fileEmbedder string

func (f fileEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return nil, err
	}
	var v []float32
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("query vector: %w", err)
	}
	return v, nil
}

func flagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
