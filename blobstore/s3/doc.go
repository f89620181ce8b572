// Package s3 provides an S3 implementation of the blobstore.Store interface.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	client := s3.NewFromConfig(cfg)
//
//	content := s3blob.NewStore(client, "my-bucket", "docs/")
//	index := s3blob.NewStore(client, "my-bucket", "indexes/",
//	    s3blob.WithParallelDownload(8<<20, 4),
//	)
//
// # Features
//
//   - Single-request GetObject for document content
//   - Parallel ranged downloads (feature/s3/manager) for large index blobs
//   - Multipart uploads for publishing index blobs
//   - Configurable prefix for multi-tenant isolation
package s3
