package fetch

import (
	"errors"
	"strings"

	"github.com/hupe1980/docdb/model"
)

// ErrNoReference is returned by a Resolver for records it cannot locate.
var ErrNoReference = errors.New("record has no content reference")

// Resolver maps a record to the reference its content is fetched from.
type Resolver interface {
	Resolve(rec *model.Record) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(rec *model.Record) (string, error)

// Resolve calls f(rec).
func (f ResolverFunc) Resolve(rec *model.Record) (string, error) { return f(rec) }

// ReferenceResolver uses Record.Reference as is.
var ReferenceResolver Resolver = ResolverFunc(func(rec *model.Record) (string, error) {
	if rec.Reference == "" {
		return "", ErrNoReference
	}
	return rec.Reference, nil
})

// ShardedResolver lays documents out as "{Prefix}/a/b/c/{id}.md", where a, b
// and c are the first three characters of the record ID. Records with an
// explicit Reference keep it.
type ShardedResolver struct {
	Prefix string
	// Depth is the number of single-character directory levels. Default: 3
	Depth int
	// Ext is the file extension including the dot. Default: ".md"
	Ext string
}

// Resolve implements Resolver.
func (r ShardedResolver) Resolve(rec *model.Record) (string, error) {
	if rec.Reference != "" {
		return rec.Reference, nil
	}
	if rec.ID == "" {
		return "", ErrNoReference
	}

	depth := r.Depth
	if depth <= 0 {
		depth = 3
	}
	ext := r.Ext
	if ext == "" {
		ext = ".md"
	}

	var b strings.Builder
	if r.Prefix != "" {
		b.WriteString(strings.TrimSuffix(r.Prefix, "/"))
		b.WriteByte('/')
	}
	// One directory level per rune of the ID, slashes excluded.
	levels := 0
	for _, c := range rec.ID {
		if levels == depth {
			break
		}
		if c == '/' {
			continue
		}
		b.WriteRune(c)
		b.WriteByte('/')
		levels++
	}
	b.WriteString(rec.ID)
	b.WriteString(ext)
	return b.String(), nil
}
