package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/hupe1980/docdb/codec"
	"github.com/hupe1980/docdb/index"
)

func runInspect(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	loc := fs.String("index", "", "index blob location")
	configPath := fs.String("config", "", "config file (for minio:// locations)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *loc == "" {
		return errors.New("-index is required")
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}
	store, name, err := openBlob(ctx, cfg, *loc)
	if err != nil {
		return err
	}
	blob, err := store.Get(ctx, name)
	if err != nil {
		return err
	}
	return inspect(os.Stdout, blob)
}

func inspect(w io.Writer, blob []byte) error {
	h, err := codec.Inspect(blob)
	if err != nil {
		return err
	}

	compression := "none"
	if codec.IsCompressed(blob) {
		compression = codec.Compression(blob[4]).String()
	}

	c, err := codec.Decode(blob)
	if err != nil {
		return err
	}
	idx, err := index.New(c)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "size\t%d bytes\n", len(blob))
	fmt.Fprintf(tw, "compression\t%s\n", compression)
	fmt.Fprintf(tw, "version\t0x%08x\n", h.Version)
	fmt.Fprintf(tw, "rows\t%d\n", h.RowCount)
	fmt.Fprintf(tw, "dimension\t%d\n", h.Dimension)
	if idx.HasProjection() {
		fmt.Fprintf(tw, "query dimension\t%d\n", idx.QueryDimension())
	}
	if h.HasChecksum() {
		fmt.Fprintf(tw, "checksum\t0x%08x\n", h.Checksum)
	} else {
		fmt.Fprintf(tw, "checksum\tnone\n")
	}
	fmt.Fprintf(tw, "memory\t%d bytes\n", idx.MemoryBytes())

	if tags := idx.Tags(); len(tags) > 0 {
		fmt.Fprintf(tw, "\ntag\trecords\n")
		for _, tag := range tags {
			fmt.Fprintf(tw, "%s\t%d\n", tag, idx.TagCount(tag))
		}
	}
	return tw.Flush()
}
