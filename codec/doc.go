// Package codec decodes and encodes the single-blob index format.
//
// A blob is a fixed 80-byte header followed by three contiguous segments:
//
//	+---------------------+
//	| Header (80 bytes)   |  magic "DDB1", version, dimension, row count,
//	|                     |  segment offsets/lengths, CRC32 checksum
//	+---------------------+
//	| Matrix segment      |  RowCount x Dimension float32, row-major
//	+---------------------+
//	| Records segment     |  u64 count, then one encoded record per row
//	+---------------------+
//	| Projection segment  |  optional ProjectionDim x Dimension float32
//	+---------------------+
//
// All integers are little-endian. A blob may additionally be wrapped in a
// compression envelope ("DDBZ", LZ4 block or zstd), which Decode removes
// transparently.
//
// Decode validates the whole blob before returning anything: a partially
// valid blob never produces a partial result, because a row silently
// misaligned with its record would corrupt every later search.
package codec
