package s3

import (
	"context"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	s3sdk "github.com/aws/aws-sdk-go-v2/service/s3"
)

// API is the subset of *s3.Client the driver calls. Tests substitute a mock.
type API interface {
	ListBuckets(ctx context.Context, params *s3sdk.ListBucketsInput, optFns ...func(*s3sdk.Options)) (*s3sdk.ListBucketsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3sdk.ListObjectsV2Input, optFns ...func(*s3sdk.Options)) (*s3sdk.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3sdk.GetObjectInput, optFns ...func(*s3sdk.Options)) (*s3sdk.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3sdk.PutObjectInput, optFns ...func(*s3sdk.Options)) (*s3sdk.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3sdk.HeadObjectInput, optFns ...func(*s3sdk.Options)) (*s3sdk.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3sdk.DeleteObjectInput, optFns ...func(*s3sdk.Options)) (*s3sdk.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, params *s3sdk.CopyObjectInput, optFns ...func(*s3sdk.Options)) (*s3sdk.CopyObjectOutput, error)
	CreateBucket(ctx context.Context, params *s3sdk.CreateBucketInput, optFns ...func(*s3sdk.Options)) (*s3sdk.CreateBucketOutput, error)
	DeleteBucket(ctx context.Context, params *s3sdk.DeleteBucketInput, optFns ...func(*s3sdk.Options)) (*s3sdk.DeleteBucketOutput, error)
}

// Presigner is the subset of *s3.PresignClient the driver calls.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3sdk.GetObjectInput, optFns ...func(*s3sdk.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignPutObject(ctx context.Context, params *s3sdk.PutObjectInput, optFns ...func(*s3sdk.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignDeleteObject(ctx context.Context, params *s3sdk.DeleteObjectInput, optFns ...func(*s3sdk.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var (
	_ API       = (*s3sdk.Client)(nil)
	_ Presigner = (*s3sdk.PresignClient)(nil)
)
