package codec

import (
	"errors"
	"fmt"
)

const (
	// Version is the current format version (v1.0).
	Version uint32 = 0x00010000

	// HeaderSize is the encoded size of Header in bytes.
	HeaderSize = 80

	// recordCountSize is the size of the record count prefix of the records segment.
	recordCountSize = 8

	maxIDLen      = 1<<16 - 1
	maxTagLen     = 1<<16 - 1
	maxTagsPerRow = 1<<8 - 1
)

// Magic identifies an uncompressed index blob.
var Magic = [4]byte{'D', 'D', 'B', '1'}

var (
	// ErrMalformedBlob is returned when the blob structure is inconsistent.
	ErrMalformedBlob = errors.New("malformed index blob")
	// ErrShapeMismatch is returned when the row count differs from the record count.
	ErrShapeMismatch = errors.New("embedding rows do not match records")
	// ErrInvalidVector is returned when an embedding contains NaN or Inf.
	ErrInvalidVector = errors.New("embedding contains NaN or Inf")
	// ErrDuplicateIdentifier is returned when two records share an identifier.
	ErrDuplicateIdentifier = errors.New("duplicate record identifier")
)

// Header is the fixed-size header at the start of every blob.
// Layout is fixed; do not reorder fields.
type Header struct {
	Magic            [4]byte
	Version          uint32
	Dimension        uint32 // Embedding dimensionality D
	ProjectionDim    uint32 // Input dimension of the projection (0 = none)
	RowCount         uint64 // Number of matrix rows (= number of records)
	MatrixOffset     uint64
	MatrixLength     uint64
	RecordsOffset    uint64
	RecordsLength    uint64
	ProjectionOffset uint64
	ProjectionLength uint64
	Checksum         uint32 // CRC32 (IEEE) of everything after the header
	Flags            uint32
}

// FlagChecksum marks Header.Checksum as valid. Without it a zero CRC would be
// indistinguishable from an unchecked blob.
const FlagChecksum uint32 = 1 << 0

// HasChecksum reports whether Decode verifies the body against Checksum.
// Blobs written before Flags existed carry a non-zero Checksum only.
func (h *Header) HasChecksum() bool {
	return h.Flags&FlagChecksum != 0 || h.Checksum != 0
}

// HasProjection reports whether the blob carries a query projection matrix.
func (h *Header) HasProjection() bool { return h.ProjectionDim > 0 }

// String returns a one-line summary of the header.
func (h *Header) String() string {
	return fmt.Sprintf("version=0x%08x dim=%d rows=%d projection=%d matrix=%d records=%d checksum=0x%08x",
		h.Version, h.Dimension, h.RowCount, h.ProjectionDim, h.MatrixLength, h.RecordsLength, h.Checksum)
}

// InvalidVectorError reports the first non-finite component found.
type InvalidVectorError struct {
	Segment string // "matrix" or "projection"
	Row     int
	Column  int
}

func (e *InvalidVectorError) Error() string {
	return fmt.Sprintf("%s: %s row %d column %d", ErrInvalidVector, e.Segment, e.Row, e.Column)
}

// Is reports whether target is ErrInvalidVector.
func (e *InvalidVectorError) Is(target error) bool { return target == ErrInvalidVector }

// DuplicateIdentifierError reports the rows that share an identifier.
type DuplicateIdentifierError struct {
	ID     string
	First  int
	Second int
}

func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("%s: %q at rows %d and %d", ErrDuplicateIdentifier, e.ID, e.First, e.Second)
}

// Is reports whether target is ErrDuplicateIdentifier.
func (e *DuplicateIdentifierError) Is(target error) bool { return target == ErrDuplicateIdentifier }

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedBlob, fmt.Sprintf(format, args...))
}
