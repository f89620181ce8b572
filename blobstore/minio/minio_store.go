package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"

	"github.com/minio/minio-go/v7"

	"github.com/hupe1980/docdb/blobstore"
)

var _ blobstore.WritableStore = (*Store)(nil)

// ErrObjectTooLarge is returned for objects above Options.MaxObjectSize.
var ErrObjectTooLarge = fmt.Errorf("minio: %w", blobstore.ErrTooLarge)

// Options configures a Store.
type Options struct {
	// MaxObjectSize bounds the size of a downloaded object. 0 means unlimited.
	MaxObjectSize int64
}

// Store reads documents and index blobs from a MinIO or other
// S3-compatible bucket.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
	opts   Options
}

// NewStore creates a Store for bucket. Names are resolved below rootPrefix.
func NewStore(client *minio.Client, bucket, rootPrefix string, optFns ...func(o *Options)) *Store {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{client: client, bucket: bucket, prefix: rootPrefix, opts: opts}
}

func (s *Store) objectName(name string) string {
	return path.Join(s.prefix, name)
}

// Get returns the content of the named object.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectName(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, translateError(err)
	}
	defer func() { _ = obj.Close() }()

	// The object handle is lazy; Stat performs the request and reports a
	// missing key.
	info, err := obj.Stat()
	if err != nil {
		return nil, translateError(err)
	}
	if limit := s.opts.MaxObjectSize; limit > 0 && info.Size > limit {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrObjectTooLarge, name, info.Size)
	}

	buf := bytes.NewBuffer(make([]byte, 0, max(info.Size, 0)))
	if _, err := io.Copy(buf, obj); err != nil {
		return nil, translateError(err)
	}
	return buf.Bytes(), nil
}

// Put uploads data under name, replacing any existing object.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, s.objectName(name), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	return err
}

func translateError(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return errors.Join(blobstore.ErrNotFound, err)
	}
	return err
}
