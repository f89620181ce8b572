package model

import (
	"fmt"
	"slices"
)

// AnchorKind identifies how an Anchor locates a chunk.
type AnchorKind uint8

const (
	// AnchorNone means the whole referenced content belongs to the record.
	AnchorNone AnchorKind = iota
	// AnchorRange selects the byte range [Start, End). End == 0 means "to the end".
	AnchorRange
	// AnchorHeading selects the markdown section introduced by Heading.
	AnchorHeading
)

func (k AnchorKind) String() string {
	switch k {
	case AnchorNone:
		return "none"
	case AnchorRange:
		return "range"
	case AnchorHeading:
		return "heading"
	default:
		return fmt.Sprintf("AnchorKind(%d)", uint8(k))
	}
}

// Anchor locates a chunk within the content behind a reference.
type Anchor struct {
	Kind    AnchorKind
	Start   uint64
	End     uint64
	Heading string
}

// RangeAnchor returns an anchor selecting bytes [start, end).
func RangeAnchor(start, end uint64) Anchor {
	return Anchor{Kind: AnchorRange, Start: start, End: end}
}

// HeadingAnchor returns an anchor selecting a markdown section.
func HeadingAnchor(heading string) Anchor {
	return Anchor{Kind: AnchorHeading, Heading: heading}
}

// IsZero reports whether the anchor selects the whole content.
func (a Anchor) IsZero() bool { return a.Kind == AnchorNone }

// String returns a compact representation of the anchor.
func (a Anchor) String() string {
	switch a.Kind {
	case AnchorRange:
		return fmt.Sprintf("bytes=%d-%d", a.Start, a.End)
	case AnchorHeading:
		return "#" + a.Heading
	default:
		return ""
	}
}

// Record describes one indexed chunk. Document bodies are never stored; they
// are fetched on demand through Reference.
type Record struct {
	ID        string
	Parent    string
	Title     string
	Reference string
	Anchor    Anchor
	Tags      []string
}

// HasTag reports whether the record carries tag.
func (r *Record) HasTag(tag string) bool {
	return slices.Contains(r.Tags, tag)
}
