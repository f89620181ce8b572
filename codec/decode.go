package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"sort"

	"github.com/hupe1980/docdb/distance"
	"github.com/hupe1980/docdb/model"
)

// DefaultMaxSize bounds the decompressed size of a blob.
const DefaultMaxSize int64 = 1 << 30

// Contents is a decoded, validated blob.
// Matrix is row-major with len(Matrix) == len(Records) * Dimension.
type Contents struct {
	Dimension     int
	Matrix        []float32
	Records       []model.Record
	ProjectionDim int       // 0 when Projection is nil
	Projection    []float32 // ProjectionDim x Dimension, row-major
}

// Rows returns the number of embedding rows.
func (c *Contents) Rows() int { return len(c.Records) }

// DecodeOptions configures Decode.
type DecodeOptions struct {
	// MaxSize bounds the decompressed blob size. 0 uses DefaultMaxSize.
	MaxSize int64
}

// Decode decodes and validates a blob. The returned Contents does not alias
// data.
func Decode(data []byte, optFns ...func(o *DecodeOptions)) (*Contents, error) {
	opts := DecodeOptions{MaxSize: DefaultMaxSize}
	for _, fn := range optFns {
		fn(&opts)
	}

	if IsCompressed(data) {
		raw, err := decompress(data, opts.MaxSize)
		if err != nil {
			return nil, err
		}
		data = raw
	} else if opts.MaxSize > 0 && int64(len(data)) > opts.MaxSize {
		return nil, malformed("blob of %d bytes exceeds limit %d", len(data), opts.MaxSize)
	}

	h, err := readHeader(data)
	if err != nil {
		return nil, err
	}
	if err := validateLayout(h, int64(len(data))); err != nil {
		return nil, err
	}
	if err := verifyChecksum(h, data[HeaderSize:]); err != nil {
		return nil, err
	}

	dim := int(h.Dimension)
	matrix := decodeFloats(segment(data, h.MatrixOffset, h.MatrixLength))

	records, err := decodeRecords(segment(data, h.RecordsOffset, h.RecordsLength))
	if err != nil {
		return nil, err
	}

	c := &Contents{
		Dimension: dim,
		Matrix:    matrix,
		Records:   records,
	}
	if h.HasProjection() {
		c.ProjectionDim = int(h.ProjectionDim)
		c.Projection = decodeFloats(segment(data, h.ProjectionOffset, h.ProjectionLength))
	}

	if uint64(len(records)) != h.RowCount {
		return nil, fmt.Errorf("%w: header declares %d rows, records segment holds %d", ErrShapeMismatch, h.RowCount, len(records))
	}
	if err := Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Inspect decodes only the header of a blob (after removing the compression
// envelope) and checks that its layout matches the blob size.
func Inspect(data []byte) (*Header, error) {
	if IsCompressed(data) {
		raw, err := decompress(data, DefaultMaxSize)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	h, err := readHeader(data)
	if err != nil {
		return nil, err
	}
	if err := validateLayout(h, int64(len(data))); err != nil {
		return nil, err
	}
	return h, nil
}

// Validate checks the invariants every decoded or to-be-encoded index must
// satisfy: positive dimension, matrix shape aligned with the record table,
// finite components, and unique non-empty identifiers.
func Validate(c *Contents) error {
	if c.Dimension <= 0 {
		return malformed("dimension must be positive, got %d", c.Dimension)
	}
	if len(c.Matrix)%c.Dimension != 0 {
		return malformed("matrix of %d components is not a multiple of dimension %d", len(c.Matrix), c.Dimension)
	}
	if rows := len(c.Matrix) / c.Dimension; rows != len(c.Records) {
		return fmt.Errorf("%w: %d embedding rows, %d records", ErrShapeMismatch, rows, len(c.Records))
	}
	if idx, ok := distance.IsFinite(c.Matrix); !ok {
		return &InvalidVectorError{Segment: "matrix", Row: idx / c.Dimension, Column: idx % c.Dimension}
	}

	if c.ProjectionDim < 0 || (c.ProjectionDim == 0) != (len(c.Projection) == 0) {
		return malformed("projection dimension %d does not match %d projection components", c.ProjectionDim, len(c.Projection))
	}
	if c.ProjectionDim > 0 {
		if len(c.Projection) != c.ProjectionDim*c.Dimension {
			return malformed("projection has %d components, want %d x %d", len(c.Projection), c.ProjectionDim, c.Dimension)
		}
		if idx, ok := distance.IsFinite(c.Projection); !ok {
			return &InvalidVectorError{Segment: "projection", Row: idx / c.Dimension, Column: idx % c.Dimension}
		}
	}

	seen := make(map[string]int, len(c.Records))
	for i := range c.Records {
		id := c.Records[i].ID
		if id == "" {
			return malformed("row %d has an empty identifier", i)
		}
		if first, ok := seen[id]; ok {
			return &DuplicateIdentifierError{ID: id, First: first, Second: i}
		}
		seen[id] = i
	}
	return nil
}

func readHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, malformed("blob of %d bytes is shorter than the %d-byte header", len(data), HeaderSize)
	}
	var h Header
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), binary.LittleEndian, &h); err != nil {
		return nil, malformed("header: %v", err)
	}
	if h.Magic != Magic {
		return nil, malformed("invalid magic %q", h.Magic[:])
	}
	if h.Version != Version {
		return nil, malformed("unsupported version 0x%08x", h.Version)
	}
	if h.Dimension == 0 {
		return nil, malformed("dimension must be positive")
	}
	return &h, nil
}

// validateLayout checks that the segment lengths agree with the declared
// shape and that the segments tile the blob exactly after the header.
func validateLayout(h *Header, size int64) error {
	matrixLen, ok := floatBytes(h.RowCount, uint64(h.Dimension))
	if !ok || matrixLen != h.MatrixLength {
		return malformed("matrix length %d does not match %d rows x %d dims", h.MatrixLength, h.RowCount, h.Dimension)
	}
	projLen, ok := floatBytes(uint64(h.ProjectionDim), uint64(h.Dimension))
	if !ok || projLen != h.ProjectionLength {
		return malformed("projection length %d does not match %d x %d", h.ProjectionLength, h.ProjectionDim, h.Dimension)
	}
	if h.ProjectionLength == 0 && h.ProjectionOffset != 0 {
		return malformed("empty projection segment has offset %d", h.ProjectionOffset)
	}
	if h.RecordsLength < recordCountSize {
		return malformed("records segment of %d bytes is too short", h.RecordsLength)
	}

	type span struct {
		name        string
		off, length uint64
	}
	spans := []span{
		{"matrix", h.MatrixOffset, h.MatrixLength},
		{"records", h.RecordsOffset, h.RecordsLength},
		{"projection", h.ProjectionOffset, h.ProjectionLength},
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].off < spans[j].off })

	cursor := uint64(HeaderSize)
	for _, s := range spans {
		if s.length == 0 {
			continue
		}
		if s.off != cursor {
			return malformed("%s segment at offset %d, expected %d", s.name, s.off, cursor)
		}
		end, carry := bits.Add64(s.off, s.length, 0)
		if carry != 0 {
			return malformed("%s segment overflows", s.name)
		}
		cursor = end
	}
	if cursor != uint64(size) {
		return malformed("segments cover %d bytes, blob has %d", cursor, size)
	}
	return nil
}

// floatBytes returns a*b*4 and whether it fits in a uint64.
func floatBytes(a, b uint64) (uint64, bool) {
	hi, n := bits.Mul64(a, b)
	if hi != 0 || n > math.MaxUint64/4 {
		return 0, false
	}
	return n * 4, true
}

func segment(data []byte, off, length uint64) []byte {
	return data[off : off+length]
}

func decodeFloats(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
