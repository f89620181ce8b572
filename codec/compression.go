package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression defines the algorithm used by the compression envelope.
type Compression uint8

const (
	// CompressionNone stores the blob as is.
	CompressionNone Compression = 0
	// CompressionLZ4 wraps the blob in an LZ4 block (fast to decode).
	CompressionLZ4 Compression = 1
	// CompressionZSTD wraps the blob in a zstd frame (better ratio).
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// ParseCompression maps a name ("none", "lz4", "zstd") to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression %q", name)
	}
}

// EnvelopeMagic identifies a compressed blob.
var EnvelopeMagic = [4]byte{'D', 'D', 'B', 'Z'}

// Envelope format: [magic 4][algorithm u8][pad 3][raw size u64][payload...]
const envelopeHeaderSize = 16

// IsCompressed reports whether data starts with the compression envelope.
func IsCompressed(data []byte) bool {
	return len(data) >= 4 && [4]byte(data[:4]) == EnvelopeMagic
}

// Compress wraps a raw blob in the compression envelope.
// CompressionNone returns raw unchanged.
func Compress(raw []byte, c Compression) ([]byte, error) {
	var payload []byte
	switch c {
	case CompressionNone:
		return raw, nil
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("lz4: blob of %d bytes is incompressible", len(raw))
		}
		payload = buf[:n]
	case CompressionZSTD:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return nil, err
		}
		payload = enc.EncodeAll(raw, nil)
		_ = enc.Close()
	default:
		return nil, fmt.Errorf("unsupported compression %s", c)
	}

	out := make([]byte, envelopeHeaderSize+len(payload))
	copy(out[0:4], EnvelopeMagic[:])
	out[4] = byte(c)
	binary.LittleEndian.PutUint64(out[8:], uint64(len(raw)))
	copy(out[envelopeHeaderSize:], payload)
	return out, nil
}

// decompress removes the compression envelope. maxSize bounds the size of
// the decompressed blob.
func decompress(data []byte, maxSize int64) ([]byte, error) {
	if len(data) < envelopeHeaderSize {
		return nil, malformed("envelope: %d bytes is shorter than the envelope header", len(data))
	}
	c := Compression(data[4])
	rawSize := binary.LittleEndian.Uint64(data[8:])
	if maxSize > 0 && rawSize > uint64(maxSize) {
		return nil, malformed("envelope: raw size %d exceeds limit %d", rawSize, maxSize)
	}
	if rawSize < HeaderSize {
		return nil, malformed("envelope: raw size %d is shorter than the blob header", rawSize)
	}
	payload := data[envelopeHeaderSize:]

	switch c {
	case CompressionLZ4:
		raw := make([]byte, rawSize)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return nil, malformed("envelope: lz4: %v", err)
		}
		if uint64(n) != rawSize {
			return nil, malformed("envelope: lz4 produced %d bytes, want %d", n, rawSize)
		}
		return raw, nil
	case CompressionZSTD:
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(rawSize),
		)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		raw, err := dec.DecodeAll(payload, make([]byte, 0, rawSize))
		if err != nil {
			return nil, malformed("envelope: zstd: %v", err)
		}
		if uint64(len(raw)) != rawSize {
			return nil, malformed("envelope: zstd produced %d bytes, want %d", len(raw), rawSize)
		}
		return raw, nil
	default:
		return nil, malformed("envelope: unknown compression %d", uint8(c))
	}
}
