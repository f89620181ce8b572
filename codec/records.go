package codec

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/hupe1980/docdb/model"
)

// segmentReader is a bounds-checked little-endian cursor over a segment.
// The first failure sticks; later reads return zero values.
type segmentReader struct {
	buf []byte
	pos int
	err error
}

func (r *segmentReader) take(n int, what string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > len(r.buf)-r.pos {
		r.err = malformed("records: truncated %s at offset %d", what, r.pos)
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *segmentReader) u8(what string) uint8 {
	b := r.take(1, what)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *segmentReader) u16(what string) uint16 {
	b := r.take(2, what)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *segmentReader) u32(what string) uint32 {
	b := r.take(4, what)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *segmentReader) u64(what string) uint64 {
	b := r.take(8, what)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *segmentReader) str(n int, what string) string {
	b := r.take(n, what)
	if b == nil {
		return ""
	}
	if !utf8.Valid(b) {
		r.err = malformed("records: %s at offset %d is not valid UTF-8", what, r.pos-n)
		return ""
	}
	return string(b)
}

func (r *segmentReader) str16(what string) string {
	return r.str(int(r.u16(what+" length")), what)
}

func (r *segmentReader) str32(what string) string {
	n := r.u32(what + " length")
	if uint64(n) > uint64(math.MaxInt32) {
		r.err = malformed("records: %s length %d too large", what, n)
		return ""
	}
	return r.str(int(n), what)
}

// decodeRecords decodes the records segment. The count prefix is checked
// against the segment size before anything is allocated.
func decodeRecords(seg []byte) ([]model.Record, error) {
	r := &segmentReader{buf: seg}
	count := r.u64("record count")
	if r.err != nil {
		return nil, r.err
	}
	// Every record takes at least 2+2+4+4+1+1 bytes.
	const minRecordSize = 14
	if count > uint64(len(seg)-recordCountSize)/minRecordSize {
		return nil, malformed("records: count %d cannot fit in %d bytes", count, len(seg))
	}

	records := make([]model.Record, count)
	for i := range records {
		rec := &records[i]
		rec.ID = r.str16("id")
		rec.Parent = r.str16("parent")
		rec.Title = r.str32("title")
		rec.Reference = r.str32("reference")

		switch kind := model.AnchorKind(r.u8("anchor kind")); kind {
		case model.AnchorNone:
		case model.AnchorRange:
			rec.Anchor = model.RangeAnchor(r.u64("anchor start"), r.u64("anchor end"))
			if r.err == nil && rec.Anchor.End != 0 && rec.Anchor.End < rec.Anchor.Start {
				return nil, malformed("records: row %d anchor range %d-%d is inverted", i, rec.Anchor.Start, rec.Anchor.End)
			}
		case model.AnchorHeading:
			rec.Anchor = model.HeadingAnchor(r.str16("anchor heading"))
		default:
			if r.err == nil {
				return nil, malformed("records: row %d has unknown anchor kind %d", i, kind)
			}
		}

		if n := int(r.u8("tag count")); n > 0 {
			rec.Tags = make([]string, n)
			for j := range rec.Tags {
				rec.Tags[j] = r.str16("tag")
			}
		}

		if r.err != nil {
			return nil, r.err
		}
		if rec.ID == "" {
			return nil, malformed("records: row %d has an empty identifier", i)
		}
	}

	if r.pos != len(seg) {
		return nil, malformed("records: %d trailing bytes", len(seg)-r.pos)
	}
	return records, nil
}

// appendRecords encodes records in the records segment layout.
func appendRecords(dst []byte, records []model.Record) ([]byte, error) {
	dst = binary.LittleEndian.AppendUint64(dst, uint64(len(records)))
	for i := range records {
		rec := &records[i]
		if len(rec.ID) > maxIDLen || len(rec.Parent) > maxIDLen || len(rec.Anchor.Heading) > maxIDLen {
			return nil, malformed("records: row %d has an identifier or heading longer than %d bytes", i, maxIDLen)
		}
		if uint64(len(rec.Title)) > math.MaxUint32 || uint64(len(rec.Reference)) > math.MaxUint32 {
			return nil, malformed("records: row %d has a title or reference that is too long", i)
		}
		if len(rec.Tags) > maxTagsPerRow {
			return nil, malformed("records: row %d has %d tags, limit is %d", i, len(rec.Tags), maxTagsPerRow)
		}

		dst = appendStr16(dst, rec.ID)
		dst = appendStr16(dst, rec.Parent)
		dst = appendStr32(dst, rec.Title)
		dst = appendStr32(dst, rec.Reference)

		dst = append(dst, byte(rec.Anchor.Kind))
		switch rec.Anchor.Kind {
		case model.AnchorNone:
		case model.AnchorRange:
			dst = binary.LittleEndian.AppendUint64(dst, rec.Anchor.Start)
			dst = binary.LittleEndian.AppendUint64(dst, rec.Anchor.End)
		case model.AnchorHeading:
			dst = appendStr16(dst, rec.Anchor.Heading)
		default:
			return nil, malformed("records: row %d has unknown anchor kind %d", i, rec.Anchor.Kind)
		}

		dst = append(dst, byte(len(rec.Tags)))
		for _, tag := range rec.Tags {
			if len(tag) > maxTagLen {
				return nil, malformed("records: row %d has a tag longer than %d bytes", i, maxTagLen)
			}
			dst = appendStr16(dst, tag)
		}
	}
	return dst, nil
}

func appendStr16(dst []byte, s string) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(s)))
	return append(dst, s...)
}

func appendStr32(dst []byte, s string) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(s)))
	return append(dst, s...)
}
