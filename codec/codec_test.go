package codec_test

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docdb/codec"
	"github.com/hupe1980/docdb/model"
	"github.com/hupe1980/docdb/testutil"
)

func sample() *codec.Contents {
	return &codec.Contents{
		Dimension: 2,
		Matrix:    []float32{1, 0, 0, 1, 0.7, 0.7},
		Records: []model.Record{
			{ID: "a", Title: "Alpha", Reference: "https://example.com/a.md", Tags: []string{"introduction"}},
			{ID: "b", Parent: "a", Title: "Beta", Reference: "docs/b.md", Anchor: model.RangeAnchor(10, 20)},
			{ID: "c", Parent: "a", Title: "Gamma", Reference: "docs/c.md", Anchor: model.HeadingAnchor("Symptoms"), Tags: []string{"condition", "symptoms"}},
		},
	}
}

func TestHeaderSize(t *testing.T) {
	assert.Equal(t, codec.HeaderSize, binary.Size(codec.Header{}))
}

func TestRoundTrip(t *testing.T) {
	for _, c := range []codec.Compression{codec.CompressionNone, codec.CompressionLZ4, codec.CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			in := testutil.Corpus(testutil.NewRNG(42), 64, 16)
			blob := testutil.MustEncode(t, in, func(o *codec.EncodeOptions) { o.Compression = c })
			assert.Equal(t, c != codec.CompressionNone, codec.IsCompressed(blob))

			out, err := codec.Decode(blob)
			require.NoError(t, err)
			assert.Equal(t, in.Dimension, out.Dimension)
			assert.Equal(t, in.Matrix, out.Matrix)
			assert.Equal(t, in.Records, out.Records)
		})
	}
}

func TestRoundTripAnchorsAndProjection(t *testing.T) {
	in := sample()
	in.ProjectionDim = 3
	in.Projection = []float32{1, 0, 0, 1, 0.5, 0.5}

	out, err := codec.Decode(testutil.MustEncode(t, in))
	require.NoError(t, err)
	assert.Equal(t, in.Records, out.Records)
	assert.Equal(t, 3, out.ProjectionDim)
	assert.Equal(t, in.Projection, out.Projection)
}

func TestInspect(t *testing.T) {
	blob := testutil.MustEncode(t, sample(), func(o *codec.EncodeOptions) { o.Compression = codec.CompressionZSTD })

	h, err := codec.Inspect(blob)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), h.Dimension)
	assert.Equal(t, uint64(3), h.RowCount)
	assert.False(t, h.HasProjection())
	assert.NotZero(t, h.Checksum)
	assert.Contains(t, h.String(), "rows=3")
}

func TestDecodeMalformed(t *testing.T) {
	valid := testutil.MustEncode(t, sample())

	tests := []struct {
		name   string
		mutate func(b []byte) []byte
	}{
		{"empty", func(b []byte) []byte { return nil }},
		{"short header", func(b []byte) []byte { return b[:codec.HeaderSize-1] }},
		{"bad magic", func(b []byte) []byte { b[0] = 'X'; return b }},
		{"bad version", func(b []byte) []byte { binary.LittleEndian.PutUint32(b[4:], 2); return b }},
		{"zero dimension", func(b []byte) []byte { binary.LittleEndian.PutUint32(b[8:], 0); return b }},
		{"truncated", func(b []byte) []byte { return b[:len(b)-1] }},
		{"trailing bytes", func(b []byte) []byte { return append(b, 0) }},
		{"matrix length", func(b []byte) []byte { binary.LittleEndian.PutUint64(b[32:], 4); return b }},
		{"records offset", func(b []byte) []byte {
			off := binary.LittleEndian.Uint64(b[40:])
			binary.LittleEndian.PutUint64(b[40:], off+1)
			return b
		}},
		{"offset overflow", func(b []byte) []byte { binary.LittleEndian.PutUint64(b[48:], math.MaxUint64); return b }},
		{"checksum", func(b []byte) []byte { b[len(b)-1] ^= 0xFF; return b }},
		{"bad envelope", func(b []byte) []byte { return []byte("DDBZ\x09\x00\x00\x00") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := tt.mutate(append([]byte(nil), valid...))
			_, err := codec.Decode(blob)
			require.Error(t, err)
			assert.ErrorIs(t, err, codec.ErrMalformedBlob)
		})
	}
}

func TestDecodeChecksumMismatch(t *testing.T) {
	blob := testutil.MustEncode(t, sample())
	blob[codec.HeaderSize] ^= 0x01

	_, err := codec.Decode(blob)

	var mismatch *codec.ChecksumMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.NotEqual(t, mismatch.Expected, mismatch.Actual)
}

func TestDecodeUncheckedBlob(t *testing.T) {
	blob := testutil.MustEncode(t, sample(), func(o *codec.EncodeOptions) { o.DisableChecksum = true })

	h, err := codec.Inspect(blob)
	require.NoError(t, err)
	assert.Zero(t, h.Checksum)
	assert.False(t, h.HasChecksum())

	_, err = codec.Decode(blob)
	assert.NoError(t, err)
}

func TestDecodeZeroChecksumIsVerified(t *testing.T) {
	blob := testutil.MustEncode(t, sample())

	h, err := codec.Inspect(blob)
	require.NoError(t, err)
	require.NotZero(t, h.Flags&codec.FlagChecksum)

	// A stored CRC of zero is a real value once the flag is set.
	const checksumOffset = 72
	binary.LittleEndian.PutUint32(blob[checksumOffset:], 0)

	_, err = codec.Decode(blob)
	var mismatch *codec.ChecksumMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Zero(t, mismatch.Expected)
	assert.ErrorIs(t, err, codec.ErrMalformedBlob)
}

func TestDecodeShapeMismatch(t *testing.T) {
	// A blob whose header claims two rows but whose records segment holds
	// three: patch RowCount and the matrix length, then drop one row.
	c := sample()
	blob := testutil.MustEncode(t, c, func(o *codec.EncodeOptions) { o.DisableChecksum = true })

	rowBytes := uint64(c.Dimension * 4)
	out := append([]byte(nil), blob[:codec.HeaderSize]...)
	binary.LittleEndian.PutUint64(out[16:], 2)
	binary.LittleEndian.PutUint64(out[32:], 2*rowBytes)
	recordsOff := binary.LittleEndian.Uint64(blob[40:])
	binary.LittleEndian.PutUint64(out[40:], recordsOff-rowBytes)
	out = append(out, blob[codec.HeaderSize:uint64(codec.HeaderSize)+2*rowBytes]...)
	out = append(out, blob[recordsOff:]...)

	_, err := codec.Decode(out)
	assert.ErrorIs(t, err, codec.ErrShapeMismatch)
}

func TestValidate(t *testing.T) {
	t.Run("ShapeMismatch", func(t *testing.T) {
		c := sample()
		c.Records = c.Records[:2]
		assert.ErrorIs(t, codec.Validate(c), codec.ErrShapeMismatch)
	})

	t.Run("InvalidVector", func(t *testing.T) {
		c := sample()
		c.Matrix[3] = float32(math.NaN())

		err := codec.Validate(c)
		require.ErrorIs(t, err, codec.ErrInvalidVector)

		var ive *codec.InvalidVectorError
		require.True(t, errors.As(err, &ive))
		assert.Equal(t, "matrix", ive.Segment)
		assert.Equal(t, 1, ive.Row)
		assert.Equal(t, 1, ive.Column)
	})

	t.Run("InfiniteProjection", func(t *testing.T) {
		c := sample()
		c.ProjectionDim = 1
		c.Projection = []float32{float32(math.Inf(1)), 0}
		assert.ErrorIs(t, codec.Validate(c), codec.ErrInvalidVector)
	})

	t.Run("DuplicateIdentifier", func(t *testing.T) {
		c := sample()
		c.Records[2].ID = "a"

		err := codec.Validate(c)
		require.ErrorIs(t, err, codec.ErrDuplicateIdentifier)

		var dup *codec.DuplicateIdentifierError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, "a", dup.ID)
		assert.Equal(t, 0, dup.First)
		assert.Equal(t, 2, dup.Second)
	})

	t.Run("EmptyIdentifier", func(t *testing.T) {
		c := sample()
		c.Records[1].ID = ""
		assert.ErrorIs(t, codec.Validate(c), codec.ErrMalformedBlob)
	})

	t.Run("ZeroDimension", func(t *testing.T) {
		c := sample()
		c.Dimension = 0
		assert.ErrorIs(t, codec.Validate(c), codec.ErrMalformedBlob)
	})

	t.Run("ProjectionShape", func(t *testing.T) {
		c := sample()
		c.ProjectionDim = 2
		c.Projection = []float32{1, 0}
		assert.ErrorIs(t, codec.Validate(c), codec.ErrMalformedBlob)
	})
}

func TestDecodeRejectsInvalidVector(t *testing.T) {
	c := sample()
	blob := testutil.MustEncode(t, c, func(o *codec.EncodeOptions) { o.DisableChecksum = true })
	binary.LittleEndian.PutUint32(blob[codec.HeaderSize+4:], math.Float32bits(float32(math.Inf(-1))))

	_, err := codec.Decode(blob)
	assert.ErrorIs(t, err, codec.ErrInvalidVector)
}

func TestDecodeRejectsDuplicateIdentifier(t *testing.T) {
	c := sample()
	c.Records[1].ID = "x"
	c.Records[2].ID = "y"
	blob := testutil.MustEncode(t, c, func(o *codec.EncodeOptions) { o.DisableChecksum = true })

	// IDs have equal length so the layout is unchanged.
	recordsOff := binary.LittleEndian.Uint64(blob[40:])
	seg := blob[recordsOff:]
	for i := range seg {
		if seg[i] == 'y' {
			seg[i] = 'x'
			break
		}
	}

	_, err := codec.Decode(blob)
	assert.ErrorIs(t, err, codec.ErrDuplicateIdentifier)
}

func TestDecodeMaxSize(t *testing.T) {
	blob := testutil.MustEncode(t, sample(), func(o *codec.EncodeOptions) { o.Compression = codec.CompressionLZ4 })

	_, err := codec.Decode(blob, func(o *codec.DecodeOptions) { o.MaxSize = codec.HeaderSize })
	assert.ErrorIs(t, err, codec.ErrMalformedBlob)

	raw := testutil.MustEncode(t, sample())
	_, err = codec.Decode(raw, func(o *codec.DecodeOptions) { o.MaxSize = int64(len(raw) - 1) })
	assert.ErrorIs(t, err, codec.ErrMalformedBlob)
}

func TestParseCompression(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		c, err := codec.ParseCompression(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.String())
	}

	_, err := codec.ParseCompression("brotli")
	assert.Error(t, err)
}
