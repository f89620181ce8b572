package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/docdb/blobstore"
	"github.com/hupe1980/docdb/blobstore/httpstore"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in     string
		scheme string
		host   string
		path   string
	}{
		{"./data/index.ddb", "", "", "./data/index.ddb"},
		{"file:///var/lib/index.ddb", "", "", "/var/lib/index.ddb"},
		{"s3://bucket/some/prefix", "s3", "bucket", "some/prefix"},
		{"minio://bucket", "minio", "bucket", ""},
		{"dynamodb://documents", "dynamodb", "documents", ""},
		{"https://example.com/db/documents", "https", "example.com", "db/documents"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			l, err := parseLocation(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.scheme, l.scheme)
			assert.Equal(t, tt.host, l.host)
			assert.Equal(t, tt.path, l.path)
		})
	}

	for _, bad := range []string{"", "ftp://host/x", "s3:///key"} {
		_, err := parseLocation(bad)
		assert.Error(t, err, bad)
	}
}

func TestSplitBlob(t *testing.T) {
	tests := []struct {
		in     string
		parent string
		name   string
	}{
		{"data/index.ddb", "data", "index.ddb"},
		{"index.ddb", ".", "index.ddb"},
		{"s3://bucket/indexes/v1.ddb", "s3://bucket/indexes/", "v1.ddb"},
		{"minio://bucket/v1.ddb", "minio://bucket/", "v1.ddb"},
		{"https://example.com/assets/index.ddb?v=2", "https://example.com/assets/", "index.ddb"},
	}

	for _, tt := range tests {
		parent, name, err := splitBlob(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.parent, parent, tt.in)
		assert.Equal(t, tt.name, name, tt.in)
	}

	_, _, err := splitBlob("s3://bucket/dir/")
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()

	s, err := openStore(ctx, cfg, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &blobstore.LocalStore{}, s)

	s, err = openStore(ctx, cfg, "https://example.com/docs")
	require.NoError(t, err)
	assert.IsType(t, &httpstore.Store{}, s)

	_, _, err = openWritableBlob(ctx, cfg, "https://example.com/index.ddb")
	assert.Error(t, err)
}
