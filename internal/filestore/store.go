// Package filestore defines the provider-neutral interface for S3-compatible
// object storage and the logic shared by every driver.
//
// Two drivers implement Store: filestore/s3 (AWS SDK, the default) and
// filestore/minio (MinIO SDK). Callers depend only on this package.
//
// Usage:
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	entries, err := store.ListObjects(ctx, "photos", filestore.ListOptions{Prefix: "2024/"})
package filestore

import (
	"context"
	"io"
)

// Store is the single interface all storage drivers implement.
// Every method performs exactly one provider request.
type Store interface {
	// Ping verifies the backend is reachable by listing buckets once.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error

	// ListBuckets returns the first page of buckets visible to the credentials.
	ListBuckets(ctx context.Context) ([]BucketInfo, error)

	// ListObjects returns one page of bucket entries, merged by MergeListing:
	// directory entries first, then objects, placeholders dropped.
	ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]ObjectInfo, error)

	// GetObject opens a streaming handle to the object at key.
	// The caller MUST call Object.Close() after reading.
	GetObject(ctx context.Context, bucket, key string) (Object, error)

	// PutObject uploads size bytes from r. size may be -1 when unknown.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts PutOptions) error

	// StatObject returns metadata for the object without downloading it.
	StatObject(ctx context.Context, bucket, key string) (*ObjectMetadata, error)

	DeleteObject(ctx context.Context, bucket, key string) error

	// CopyObject performs a server-side copy.
	CopyObject(ctx context.Context, req CopyRequest) error

	// CreateBucket creates bucket in the configured region.
	CreateBucket(ctx context.Context, bucket string) error

	DeleteBucket(ctx context.Context, bucket string) error

	// Presign returns a time-limited URL for req without performing it.
	Presign(ctx context.Context, req PresignRequest) (string, error)
}
