package codec

import (
	"fmt"
	"hash/crc32"
)

// Checksums use CRC32 (IEEE). They detect accidental corruption of a
// downloaded blob; they are not a tamper check.

// ComputeChecksum returns the CRC32 (IEEE) of data.
func ComputeChecksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// ChecksumMismatchError is returned when checksum verification fails.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("%s: checksum mismatch: expected 0x%08x, got 0x%08x", ErrMalformedBlob, e.Expected, e.Actual)
}

// Is reports whether target is ErrMalformedBlob.
func (e *ChecksumMismatchError) Is(target error) bool { return target == ErrMalformedBlob }

func verifyChecksum(h *Header, body []byte) error {
	if !h.HasChecksum() {
		return nil
	}
	if actual := ComputeChecksum(body); actual != h.Checksum {
		return &ChecksumMismatchError{Expected: h.Checksum, Actual: actual}
	}
	return nil
}
