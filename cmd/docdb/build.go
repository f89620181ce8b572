package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/docdb/codec"
	"github.com/hupe1980/docdb/distance"
	"github.com/hupe1980/docdb/model"
)

// jsonRecord is one line of a build input file.
type jsonRecord struct {
	ID        string      `json:"id"`
	Parent    string      `json:"parent,omitempty"`
	Title     string      `json:"title,omitempty"`
	Reference string      `json:"reference,omitempty"`
	Anchor    *jsonAnchor `json:"anchor,omitempty"`
	Tags      []string    `json:"tags,omitempty"`
	Embedding []float32   `json:"embedding"`
}

type jsonAnchor struct {
	Start   uint64 `json:"start,omitempty"`
	End     uint64 `json:"end,omitempty"`
	Heading string `json:"heading,omitempty"`
}

func (a *jsonAnchor) anchor() model.Anchor {
	switch {
	case a == nil:
		return model.Anchor{}
	case a.Heading != "":
		return model.HeadingAnchor(a.Heading)
	default:
		return model.RangeAnchor(a.Start, a.End)
	}
}

const maxLineSize = 64 << 20

// readRecords parses JSONL records into index contents. onRead is called
// with the byte count of every consumed line.
func readRecords(r io.Reader, onRead func(n int)) (*codec.Contents, error) {
	c := &codec.Contents{}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), maxLineSize)

	line := 0
	for sc.Scan() {
		line++
		if onRead != nil {
			onRead(len(sc.Bytes()) + 1)
		}
		if len(sc.Bytes()) == 0 {
			continue
		}

		var jr jsonRecord
		if err := json.Unmarshal(sc.Bytes(), &jr); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if c.Dimension == 0 {
			c.Dimension = len(jr.Embedding)
		}
		if len(jr.Embedding) != c.Dimension || c.Dimension == 0 {
			return nil, fmt.Errorf("line %d: embedding has %d components, expected %d", line, len(jr.Embedding), c.Dimension)
		}

		c.Matrix = append(c.Matrix, jr.Embedding...)
		c.Records = append(c.Records, model.Record{
			ID:        jr.ID,
			Parent:    jr.Parent,
			Title:     jr.Title,
			Reference: jr.Reference,
			Anchor:    jr.Anchor.anchor(),
			Tags:      jr.Tags,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(c.Records) == 0 {
		return nil, errors.New("no records")
	}
	return c, nil
}

// readProjection reads a JSON matrix with one row per query component.
func readProjection(path string, dim int) ([]float32, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	var rows [][]float32
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, 0, fmt.Errorf("projection: %w", err)
	}
	out := make([]float32, 0, len(rows)*dim)
	for i, row := range rows {
		if len(row) != dim {
			return nil, 0, fmt.Errorf("projection row %d has %d columns, expected %d", i, len(row), dim)
		}
		out = append(out, row...)
	}
	return out, len(rows), nil
}

// normalizeRows scales every non-zero row of the matrix to unit length so that
// consumers ranking by plain dot product agree with cosine order. Zero rows
// are left alone.
func normalizeRows(c *codec.Contents) int {
	n := 0
	for i := range c.Rows() {
		if distance.NormalizeL2InPlace(c.Matrix[i*c.Dimension : (i+1)*c.Dimension]) {
			n++
		}
	}
	return n
}

func runBuild(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	in := fs.String("in", "", "JSONL record file (- for stdin)")
	out := fs.String("out", "index.ddb", "output blob location (path, s3://, minio://)")
	compress := fs.String("compress", "none", "compression: none, lz4, zstd")
	projection := fs.String("projection", "", "optional JSON projection matrix")
	noChecksum := fs.Bool("no-checksum", false, "skip the body checksum")
	normalize := fs.Bool("normalize", false, "L2-normalize embeddings before encoding")
	configPath := fs.String("config", "", "config file (for minio:// output)")
	showProgress := fs.Bool("progress", defaultProgressEnabled(), "show progress")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("-in is required")
	}

	comp, err := codec.ParseCompression(*compress)
	if err != nil {
		return err
	}
	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}

	var (
		r    io.Reader = os.Stdin
		size int64
	)
	if *in != "-" {
		f, err := os.Open(*in)
		if err != nil {
			return err
		}
		defer f.Close()
		if fi, err := f.Stat(); err == nil {
			size = fi.Size()
		}
		r = f
	}

	bar := newProgress(*showProgress, size, "reading")
	contents, err := readRecords(r, bar.Add)
	bar.Finish()
	if err != nil {
		return err
	}

	if *normalize {
		normalizeRows(contents)
	}

	if *projection != "" {
		contents.Projection, contents.ProjectionDim, err = readProjection(*projection, contents.Dimension)
		if err != nil {
			return err
		}
	}

	blob, err := codec.Encode(contents, func(o *codec.EncodeOptions) {
		o.Compression = comp
		o.DisableChecksum = *noChecksum
	})
	if err != nil {
		return err
	}

	store, name, err := openWritableBlob(ctx, cfg, *out)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, name, blob); err != nil {
		return fmt.Errorf("failed to write %s: %w", *out, err)
	}

	fmt.Printf("wrote %s: %d records, dimension %d, %d bytes (%s)\n",
		*out, contents.Rows(), contents.Dimension, len(blob), comp)
	return nil
}
