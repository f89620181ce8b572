// Package blobstore provides storage abstraction for index blobs and
// document content.
//
// Store is the read interface used both to download the index blob and to
// fetch document bodies by reference. Implementations must be safe for
// concurrent use and must return an error satisfying
// errors.Is(err, ErrNotFound) for missing objects.
//
// # Built-in Implementations
//
//   - MemoryStore: in-memory, for tests and embedding
//   - LocalStore: local filesystem rooted at a directory
//   - CachingStore: LRU cache in front of any Store
//   - s3.Store: Amazon S3 (parallel ranged downloads for large blobs)
//   - minio.Store: MinIO and other S3-compatible storage
//   - dynamo.Store: documents stored as DynamoDB items
//   - httpstore.Store: plain HTTP(S) GET
//
// # Custom Implementations
//
//	type Store interface {
//	    Get(ctx context.Context, name string) ([]byte, error)
//	}
//
// Stores that can also write implement WritableStore; the CLI uses it to
// publish built index blobs.
package blobstore
