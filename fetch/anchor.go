package fetch

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hupe1980/docdb/model"
)

// Slice returns the part of content selected by anchor.
func Slice(content string, anchor model.Anchor) (string, error) {
	switch anchor.Kind {
	case model.AnchorNone:
		return content, nil
	case model.AnchorRange:
		return sliceRange(content, anchor.Start, anchor.End)
	case model.AnchorHeading:
		return sliceHeading(content, anchor.Heading)
	default:
		return "", fmt.Errorf("unknown anchor kind %s", anchor.Kind)
	}
}

func sliceRange(content string, start, end uint64) (string, error) {
	n := uint64(len(content))
	if end == 0 {
		end = n
	}
	if start > end || end > n {
		return "", fmt.Errorf("range %d-%d outside content of %d bytes", start, end, n)
	}
	out := content[start:end]
	if !utf8.ValidString(out) {
		return "", fmt.Errorf("range %d-%d splits a UTF-8 sequence", start, end)
	}
	return out, nil
}

// sliceHeading returns the section introduced by the first ATX heading whose
// text equals heading (case-insensitive). Headings inside fenced code blocks
// are ignored.
func sliceHeading(content, heading string) (string, error) {
	want := strings.TrimSpace(heading)

	start, level := -1, 0
	inFence := false
	pos := 0
	for pos < len(content) {
		end := strings.IndexByte(content[pos:], '\n')
		if end < 0 {
			end = len(content)
		} else {
			end += pos + 1
		}
		line := content[pos:end]

		if isFence(line) {
			inFence = !inFence
		} else if !inFence {
			if l, text, ok := parseHeading(line); ok {
				if start >= 0 && l <= level {
					return content[start:pos], nil
				}
				if start < 0 && strings.EqualFold(text, want) {
					start, level = pos, l
				}
			}
		}
		pos = end
	}

	if start < 0 {
		return "", fmt.Errorf("heading %q not found", heading)
	}
	return content[start:], nil
}

func isFence(line string) bool {
	t := strings.TrimLeft(line, " ")
	return strings.HasPrefix(t, "```") || strings.HasPrefix(t, "~~~")
}

// parseHeading recognizes an ATX heading ("## Title ##") and returns its level
// and text.
func parseHeading(line string) (int, string, bool) {
	line = strings.TrimRight(line, "\r\n")
	t := strings.TrimLeft(line, " ")
	if len(line)-len(t) > 3 {
		return 0, "", false
	}

	level := 0
	for level < len(t) && t[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return 0, "", false
	}
	rest := t[level:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return 0, "", false
	}

	text := strings.TrimSpace(rest)
	// Optional closing sequence.
	if trimmed := strings.TrimRight(text, "#"); trimmed != text {
		if trimmed == "" || strings.HasSuffix(trimmed, " ") || strings.HasSuffix(trimmed, "\t") {
			text = strings.TrimSpace(trimmed)
		}
	}
	return level, text, true
}
