// Package s3 provides an AWS SDK implementation of filestore.Store.
//
// It talks to AWS S3 and to S3-compatible services (DigitalOcean Spaces,
// Wasabi, Backblaze B2, MinIO, LocalStack) through a custom endpoint.
//
// Usage:
//
//	store, err := s3.New(ctx, &filestore.Config{
//	    Endpoint:  "nyc3.digitaloceanspaces.com",
//	    AccessKey: "...",
//	    SecretKey: "...",
//	    Region:    "us-east-1",
//	    UseSSL:    true,
//	})
//	if err != nil { ... }
//	defer store.Close()
package s3

import (
	"context"
	"io"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3sdk "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/koustreak/stellars3/internal/filestore"
)

// Driver is an AWS SDK implementation of filestore.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	api       API
	presigner Presigner
	region    string
}

var _ filestore.Store = (*Driver)(nil)

// New builds a client from cfg. It performs no network I/O; call Ping to
// check connectivity. Region, credentials and endpoint come only from cfg:
// the shared config files, AWS_PROFILE and AWS_ENDPOINT_URL* are never read.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	awsCfg := aws.Config{
		Region:           cfg.RegionOrDefault(),
		Credentials:      credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		RetryMaxAttempts: 1,
	}

	client := s3sdk.NewFromConfig(awsCfg, clientOptions(cfg))
	return NewWithClient(client, s3sdk.NewPresignClient(client), cfg.RegionOrDefault()), nil
}

// NewWithClient wires a Driver around existing SDK clients.
func NewWithClient(api API, presigner Presigner, region string) *Driver {
	return &Driver{api: api, presigner: presigner, region: region}
}

// clientOptions applies the endpoint override and addressing style.
func clientOptions(cfg *filestore.Config) func(*s3sdk.Options) {
	return func(o *s3sdk.Options) {
		o.BaseEndpoint = nil
		if cfg.HasCustomEndpoint() {
			o.BaseEndpoint = aws.String(cfg.EndpointURL())
			// Third-party providers reject the newer default checksum headers.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
		o.UsePathStyle = cfg.PathStyle
	}
}

// --- filestore.Store implementation ---

// Ping verifies the endpoint answers an authenticated ListBuckets.
func (d *Driver) Ping(ctx context.Context) error {
	if _, err := d.api.ListBuckets(ctx, &s3sdk.ListBucketsInput{}); err != nil {
		return mapError(err, "connection failed")
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (d *Driver) Close() error {
	return nil
}

// ListBuckets returns the first page of buckets.
func (d *Driver) ListBuckets(ctx context.Context) ([]filestore.BucketInfo, error) {
	out, err := d.api.ListBuckets(ctx, &s3sdk.ListBucketsInput{})
	if err != nil {
		return nil, mapError(err, "failed to list buckets")
	}

	buckets := make([]filestore.BucketInfo, len(out.Buckets))
	for i, b := range out.Buckets {
		buckets[i] = filestore.BucketInfo{
			Name:      aws.ToString(b.Name),
			CreatedAt: b.CreationDate,
		}
	}
	return buckets, nil
}

// ListObjects issues a single ListObjectsV2 request and merges the page.
func (d *Driver) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	out, err := d.api.ListObjectsV2(ctx, listInput(bucket, opts))
	if err != nil {
		return nil, mapError(err, "failed to list objects")
	}
	return filestore.MergeListing(toPage(out)), nil
}

func listInput(bucket string, opts filestore.ListOptions) *s3sdk.ListObjectsV2Input {
	in := &s3sdk.ListObjectsV2Input{Bucket: aws.String(bucket)}
	if opts.Prefix != "" {
		in.Prefix = aws.String(opts.Prefix)
	}
	if !opts.Recursive {
		in.Delimiter = aws.String(filestore.Delimiter)
	}
	if opts.Limit > 0 {
		in.MaxKeys = aws.Int32(int32(opts.Limit))
	}
	if opts.StartAfter != "" {
		in.StartAfter = aws.String(opts.StartAfter)
	}
	return in
}

func toPage(out *s3sdk.ListObjectsV2Output) filestore.ListPage {
	page := filestore.ListPage{
		Prefixes: make([]string, 0, len(out.CommonPrefixes)),
		Objects:  make([]filestore.ObjectInfo, 0, len(out.Contents)),
	}
	for _, p := range out.CommonPrefixes {
		if p.Prefix == nil {
			continue
		}
		page.Prefixes = append(page.Prefixes, *p.Prefix)
	}
	for _, o := range out.Contents {
		page.Objects = append(page.Objects, filestore.ObjectInfo{
			Key:          aws.ToString(o.Key),
			Size:         aws.ToInt64(o.Size),
			LastModified: o.LastModified,
			ETag:         aws.ToString(o.ETag),
			StorageClass: string(o.StorageClass),
		})
	}
	return page
}

// GetObject opens a streaming handle to the object body.
func (d *Driver) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	out, err := d.api.GetObject(ctx, &s3sdk.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	return &object{ReadCloser: out.Body, size: size}, nil
}

// PutObject uploads r in a single request.
func (d *Driver) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts filestore.PutOptions) error {
	in := &s3sdk.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}

	if _, err := d.api.PutObject(ctx, in); err != nil {
		return mapError(err, "failed to upload object")
	}
	return nil
}

// StatObject issues a HeadObject request.
func (d *Driver) StatObject(ctx context.Context, bucket, key string) (*filestore.ObjectMetadata, error) {
	out, err := d.api.HeadObject(ctx, &s3sdk.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "failed to get object metadata")
	}

	meta := make(map[string]string, len(out.Metadata))
	for k, v := range out.Metadata {
		meta[k] = v
	}
	return &filestore.ObjectMetadata{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: out.LastModified,
		ETag:         aws.ToString(out.ETag),
		ContentType:  aws.ToString(out.ContentType),
		Metadata:     meta,
	}, nil
}

func (d *Driver) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := d.api.DeleteObject(ctx, &s3sdk.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapError(err, "failed to delete object")
	}
	return nil
}

// CopyObject performs a server-side copy.
func (d *Driver) CopyObject(ctx context.Context, req filestore.CopyRequest) error {
	_, err := d.api.CopyObject(ctx, &s3sdk.CopyObjectInput{
		Bucket:     aws.String(req.DestBucket),
		Key:        aws.String(req.DestKey),
		CopySource: aws.String(copySource(req.SourceBucket, req.SourceKey)),
	})
	if err != nil {
		return mapError(err, "failed to copy object")
	}
	return nil
}

// copySource builds the "bucket/key" locator, URL-encoded except for "/".
func copySource(bucket, key string) string {
	return (&url.URL{Path: bucket + "/" + key}).EscapedPath()
}

// CreateBucket creates bucket in the driver's region.
func (d *Driver) CreateBucket(ctx context.Context, bucket string) error {
	if _, err := d.api.CreateBucket(ctx, createBucketInput(bucket, d.region)); err != nil {
		return mapError(err, "failed to create bucket")
	}
	return nil
}

// createBucketInput attaches a location constraint for every region except
// us-east-1, which rejects one.
func createBucketInput(bucket, region string) *s3sdk.CreateBucketInput {
	in := &s3sdk.CreateBucketInput{Bucket: aws.String(bucket)}
	if region != "" && region != filestore.DefaultRegion {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}
	return in
}

func (d *Driver) DeleteBucket(ctx context.Context, bucket string) error {
	if _, err := d.api.DeleteBucket(ctx, &s3sdk.DeleteBucketInput{Bucket: aws.String(bucket)}); err != nil {
		return mapError(err, "failed to delete bucket")
	}
	return nil
}

// Presign asks the SDK signer for a URL; nothing is sent to the provider.
func (d *Driver) Presign(ctx context.Context, req filestore.PresignRequest) (string, error) {
	method, err := filestore.ParseMethod(req.Method)
	if err != nil {
		return "", err
	}

	bucket, key := aws.String(req.Bucket), aws.String(req.Key)
	expires := s3sdk.WithPresignExpires(req.Expiry())

	var u string
	switch method {
	case filestore.MethodGet:
		r, err := d.presigner.PresignGetObject(ctx, &s3sdk.GetObjectInput{Bucket: bucket, Key: key}, expires)
		if err != nil {
			return "", mapError(err, "failed to presign GET")
		}
		u = r.URL
	case filestore.MethodPut:
		r, err := d.presigner.PresignPutObject(ctx, &s3sdk.PutObjectInput{Bucket: bucket, Key: key}, expires)
		if err != nil {
			return "", mapError(err, "failed to presign PUT")
		}
		u = r.URL
	case filestore.MethodDelete:
		r, err := d.presigner.PresignDeleteObject(ctx, &s3sdk.DeleteObjectInput{Bucket: bucket, Key: key}, expires)
		if err != nil {
			return "", mapError(err, "failed to presign DELETE")
		}
		u = r.URL
	}
	return u, nil
}

// --- internal types ---

// object wraps a GetObject body and exposes filestore.Object.
type object struct {
	io.ReadCloser
	size int64
}

func (o *object) Size() int64 {
	return o.size
}
