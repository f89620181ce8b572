package codec

import (
	"bytes"
	"encoding/binary"
	"math"
)

// EncodeOptions configures Encode.
type EncodeOptions struct {
	// Compression wraps the blob in the compression envelope.
	Compression Compression
	// DisableChecksum leaves Header.Checksum at 0 and FlagChecksum unset.
	DisableChecksum bool
}

// Encode validates c and serializes it into a blob.
func Encode(c *Contents, optFns ...func(o *EncodeOptions)) ([]byte, error) {
	var opts EncodeOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := Validate(c); err != nil {
		return nil, err
	}

	records, err := appendRecords(nil, c.Records)
	if err != nil {
		return nil, err
	}

	h := Header{
		Magic:         Magic,
		Version:       Version,
		Dimension:     uint32(c.Dimension),
		ProjectionDim: uint32(c.ProjectionDim),
		RowCount:      uint64(len(c.Records)),
	}
	h.MatrixOffset = HeaderSize
	h.MatrixLength = uint64(len(c.Matrix)) * 4
	h.RecordsOffset = h.MatrixOffset + h.MatrixLength
	h.RecordsLength = uint64(len(records))
	if c.ProjectionDim > 0 {
		h.ProjectionOffset = h.RecordsOffset + h.RecordsLength
		h.ProjectionLength = uint64(len(c.Projection)) * 4
	}

	body := make([]byte, 0, h.MatrixLength+h.RecordsLength+h.ProjectionLength)
	body = appendFloats(body, c.Matrix)
	body = append(body, records...)
	body = appendFloats(body, c.Projection)

	if !opts.DisableChecksum {
		h.Checksum = ComputeChecksum(body)
		h.Flags |= FlagChecksum
	}

	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(body))
	if err := binary.Write(&buf, binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	buf.Write(body)

	return Compress(buf.Bytes(), opts.Compression)
}

func appendFloats(dst []byte, v []float32) []byte {
	for _, f := range v {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
	}
	return dst
}
