// Package minio provides a MinIO SDK implementation of filestore.Store.
//
// Configs whose provider is "minio" are routed here; everything else goes
// through the AWS SDK driver.
//
// Usage:
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	buckets, err := store.ListBuckets(ctx)
package minio

import (
	"context"
	"io"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/koustreak/stellars3/internal/errs"
	"github.com/koustreak/stellars3/internal/filestore"
)

// defaultMaxKeys matches the S3 page size; listings stop after one page.
const defaultMaxKeys = 1000

// Driver is a MinIO implementation of filestore.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client *miniogo.Client
	region string
}

var _ filestore.Store = (*Driver)(nil)

// New builds a MinIO client from cfg. It does not ping; connectivity is
// checked by the caller.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	client, err := miniogo.New(endpointHost(cfg), clientOptions(cfg))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfig, "failed to create minio client", err)
	}
	return &Driver{client: client, region: cfg.RegionOrDefault()}, nil
}

func endpointHost(cfg *filestore.Config) string {
	if cfg.Endpoint == "" {
		return filestore.DefaultEndpoint
	}
	return cfg.Endpoint
}

func clientOptions(cfg *filestore.Config) *miniogo.Options {
	lookup := miniogo.BucketLookupAuto
	if cfg.PathStyle {
		lookup = miniogo.BucketLookupPath
	}
	return &miniogo.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: lookup,
	}
}

// --- filestore.Store implementation ---

// Ping verifies the MinIO server is reachable by listing buckets.
func (d *Driver) Ping(ctx context.Context) error {
	if _, err := d.client.ListBuckets(ctx); err != nil {
		return mapError(err, "connection failed")
	}
	return nil
}

// Close is a no-op; the MinIO client holds no persistent connections.
func (d *Driver) Close() error {
	return nil
}

// ListBuckets returns all buckets accessible with the configured credentials.
func (d *Driver) ListBuckets(ctx context.Context) ([]filestore.BucketInfo, error) {
	raw, err := d.client.ListBuckets(ctx)
	if err != nil {
		return nil, mapError(err, "failed to list buckets")
	}

	buckets := make([]filestore.BucketInfo, len(raw))
	for i, b := range raw {
		buckets[i] = filestore.BucketInfo{
			Name:      b.Name,
			CreatedAt: filestore.Timestamp(b.CreationDate),
		}
	}
	return buckets, nil
}

// ListObjects issues a single ListObjectsV2 request and merges the page.
// The SDK's ListObjects iterator follows continuation tokens on its own,
// so the listing goes through Core, which sends exactly one request.
func (d *Driver) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultMaxKeys
	}
	delimiter := filestore.Delimiter
	if opts.Recursive {
		delimiter = ""
	}

	// Core takes no context; on cancellation the request is abandoned.
	type listResult struct {
		out miniogo.ListBucketV2Result
		err error
	}
	done := make(chan listResult, 1)
	go func() {
		core := miniogo.Core{Client: d.client}
		out, err := core.ListObjectsV2(bucket, opts.Prefix, opts.StartAfter, "", delimiter, limit)
		done <- listResult{out: out, err: err}
	}()

	var res listResult
	select {
	case <-ctx.Done():
		return nil, mapError(ctx.Err(), "failed to list objects")
	case res = <-done:
	}
	if res.err != nil {
		return nil, mapError(res.err, "failed to list objects")
	}
	return filestore.MergeListing(toPage(res.out)), nil
}

func toPage(out miniogo.ListBucketV2Result) filestore.ListPage {
	page := filestore.ListPage{
		Prefixes: make([]string, 0, len(out.CommonPrefixes)),
		Objects:  make([]filestore.ObjectInfo, 0, len(out.Contents)),
	}
	for _, p := range out.CommonPrefixes {
		page.Prefixes = append(page.Prefixes, p.Prefix)
	}
	for _, obj := range out.Contents {
		page.Objects = append(page.Objects, filestore.ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: filestore.Timestamp(obj.LastModified),
			ETag:         strings.Trim(obj.ETag, `"`),
			StorageClass: obj.StorageClass,
		})
	}
	return page
}

// GetObject opens a streaming handle to the object at key inside bucket.
// The caller MUST call Object.Close() after reading.
func (d *Driver) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	obj, err := d.client.GetObject(ctx, bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	// GetObject is lazy; Stat surfaces NoSuchKey before the caller reads.
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, mapError(err, "failed to get object")
	}

	return &object{ReadCloser: obj, size: stat.Size}, nil
}

// PutObject uploads r. With size -1 the SDK falls back to a streaming upload.
func (d *Driver) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts filestore.PutOptions) error {
	_, err := d.client.PutObject(ctx, bucket, key, r, size, miniogo.PutObjectOptions{
		ContentType: opts.ContentType,
	})
	if err != nil {
		return mapError(err, "failed to upload object")
	}
	return nil
}

// StatObject returns metadata for the object at key inside bucket
// without downloading its content.
func (d *Driver) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectMetadata, error) {
	stat, err := d.client.StatObject(ctx, bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get object metadata")
	}

	meta := make(map[string]string, len(stat.UserMetadata))
	for k, v := range stat.UserMetadata {
		meta[k] = v
	}
	return &filestore.ObjectMetadata{
		Key:          key,
		Size:         stat.Size,
		LastModified: filestore.Timestamp(stat.LastModified),
		ETag:         stat.ETag,
		ContentType:  stat.ContentType,
		Metadata:     meta,
	}, nil
}

func (d *Driver) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := d.client.RemoveObject(ctx, bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return mapError(err, "failed to delete object")
	}
	return nil
}

// CopyObject performs a server-side copy.
func (d *Driver) CopyObject(ctx context.Context, req filestore.CopyRequest) error {
	_, err := d.client.CopyObject(ctx,
		miniogo.CopyDestOptions{Bucket: req.DestBucket, Object: req.DestKey},
		miniogo.CopySrcOptions{Bucket: req.SourceBucket, Object: req.SourceKey},
	)
	if err != nil {
		return mapError(err, "failed to copy object")
	}
	return nil
}

// CreateBucket creates bucket in the driver's region; the SDK omits the
// location constraint for us-east-1 itself.
func (d *Driver) CreateBucket(ctx context.Context, bucket string) error {
	if err := d.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{Region: d.region}); err != nil {
		return mapError(err, "failed to create bucket")
	}
	return nil
}

func (d *Driver) DeleteBucket(ctx context.Context, bucket string) error {
	if err := d.client.RemoveBucket(ctx, bucket); err != nil {
		return mapError(err, "failed to delete bucket")
	}
	return nil
}

// Presign returns a time-limited URL for GET, PUT or DELETE.
func (d *Driver) Presign(ctx context.Context, req filestore.PresignRequest) (string, error) {
	method, err := filestore.ParseMethod(req.Method)
	if err != nil {
		return "", err
	}

	u, err := d.client.Presign(ctx, string(method), req.Bucket, req.Key, req.Expiry(), nil)
	if err != nil {
		return "", mapError(err, "failed to generate presigned URL")
	}
	return u.String(), nil
}

// --- internal types ---

// object wraps a MinIO GetObject response and exposes filestore.Object.
type object struct {
	io.ReadCloser
	size int64
}

func (o *object) Size() int64 {
	return o.size
}
