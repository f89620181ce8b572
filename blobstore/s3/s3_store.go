package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/docdb/blobstore"
)

var _ blobstore.WritableStore = (*Store)(nil)

// Client is the subset of the S3 API used by Store. *s3.Client satisfies it.
type Client interface {
	manager.DownloadAPIClient
	manager.UploadAPIClient
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Options configures a Store.
type Options struct {
	// PartSize is the part size for parallel downloads and multipart uploads.
	// Default: 8MB
	PartSize int64

	// Concurrency is the number of parallel part transfers.
	// 0 disables parallel downloads; Get then issues a single GetObject.
	Concurrency int
}

// Option configures a Store.
type Option func(*Options)

// WithParallelDownload makes Get fetch objects in parallel ranged parts.
// Use it for index blobs; document content is better served by single requests.
func WithParallelDownload(partSize int64, concurrency int) Option {
	return func(o *Options) {
		if partSize > 0 {
			o.PartSize = partSize
		}
		o.Concurrency = concurrency
	}
}

// Store implements blobstore.Store for S3.
type Store struct {
	client Client
	bucket string
	prefix string
	opts   Options
}

// NewStore creates a new S3 blob store.
// rootPrefix is prepended to all keys (e.g. "my-db/").
func NewStore(client Client, bucket, rootPrefix string, optFns ...Option) *Store {
	opts := Options{PartSize: 8 * 1024 * 1024}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
		opts:   opts,
	}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

func (s *Store) getInput(key string) *s3.GetObjectInput {
	return &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}
}

// Get downloads the named object.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	if s.opts.Concurrency > 0 {
		return s.download(ctx, s.key(name))
	}

	resp, err := s.client.GetObject(ctx, s.getInput(s.key(name)))
	if err != nil {
		return nil, translateError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	buf := bytes.NewBuffer(make([]byte, 0, max(aws.ToInt64(resp.ContentLength), 0)))
	if _, err := io.Copy(buf, resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// download fetches key with the transfer manager into a pre-sized buffer.
func (s *Store) download(ctx context.Context, key string) ([]byte, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translateError(err)
	}

	size := aws.ToInt64(head.ContentLength)
	buf := manager.NewWriteAtBuffer(make([]byte, 0, size))

	d := manager.NewDownloader(s.client, func(d *manager.Downloader) {
		d.PartSize = s.opts.PartSize
		d.Concurrency = s.opts.Concurrency
	})
	if _, err := d.Download(ctx, buf, s.getInput(key)); err != nil {
		return nil, translateError(err)
	}
	return buf.Bytes(), nil
}

// Put uploads data, using a multipart upload for large blobs.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	u := manager.NewUploader(s.client, func(u *manager.Uploader) {
		if s.opts.PartSize >= manager.MinUploadPartSize {
			u.PartSize = s.opts.PartSize
		}
		if s.opts.Concurrency > 0 {
			u.Concurrency = s.opts.Concurrency
		}
	})
	_, err := u.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
		Body:   bytes.NewReader(data),
	})
	return err
}

// translateError makes missing keys satisfy errors.Is(err, blobstore.ErrNotFound).
// HeadObject reports NotFound, GetObject reports NoSuchKey.
func translateError(err error) error {
	var (
		notFound *types.NotFound
		noKey    *types.NoSuchKey
	)
	if errors.As(err, &notFound) || errors.As(err, &noKey) {
		return errors.Join(blobstore.ErrNotFound, err)
	}
	return err
}
