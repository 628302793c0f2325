// Package commands is the operation facade behind every StellarS3 command.
//
// Each method takes the caller's connection config, obtains a store for it,
// performs one request/response cycle against the provider and returns a
// plain record or an *errs.Error. Nothing is cached except, when enabled,
// the clients themselves.
package commands

import (
	"context"
	"time"

	"github.com/koustreak/stellars3/internal/errs"
	"github.com/koustreak/stellars3/internal/filestore"
	"github.com/koustreak/stellars3/internal/filestore/minio"
	"github.com/koustreak/stellars3/internal/filestore/s3"
	"github.com/koustreak/stellars3/internal/logger"
	"github.com/koustreak/stellars3/internal/session"
)

// Options configures a Service. The zero value builds a fresh AWS SDK or
// MinIO client per command with no timeout and no logging.
type Options struct {
	// Opener builds stores; nil means OpenStore.
	Opener session.Opener

	// RequestTimeout bounds each command. Zero leaves the provider default.
	RequestTimeout time.Duration

	// ReuseClients keeps one client per connection in a session.Pool.
	ReuseClients bool

	Logger *logger.Logger
}

// Service runs storage commands. It is safe for concurrent use.
type Service struct {
	open    session.Opener
	pool    *session.Pool
	timeout time.Duration
	log     *logger.Logger
}

// New returns a Service configured by opts.
func New(opts Options) *Service {
	s := &Service{
		open:    opts.Opener,
		timeout: opts.RequestTimeout,
		log:     opts.Logger,
	}
	if s.open == nil {
		s.open = OpenStore
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if opts.ReuseClients {
		s.pool = session.NewPool(s.open)
	}
	return s
}

// OpenStore routes cfg to a driver: the MinIO SDK for ProviderMinIO and
// the AWS SDK for everything else.
func OpenStore(ctx context.Context, cfg *filestore.Config) (filestore.Store, error) {
	if cfg.Provider == filestore.ProviderMinIO {
		return minio.New(ctx, cfg)
	}
	return s3.New(ctx, cfg)
}

// Close releases pooled clients.
func (s *Service) Close() error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Close()
}

type fields map[string]string

// run obtains a store for cfg, calls fn with it and logs the outcome.
func (s *Service) run(ctx context.Context, name string, cfg *filestore.Config, f fields, fn func(context.Context, filestore.Store) error) error {
	start := time.Now()
	err := s.do(ctx, cfg, fn)
	s.log.Command(name, time.Since(start), err, f)
	return err
}

func (s *Service) do(ctx context.Context, cfg *filestore.Config, fn func(context.Context, filestore.Store) error) error {
	if cfg == nil {
		return errs.New(errs.ErrKindInvalidInput, "missing connection config")
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if s.pool != nil {
		return s.pool.Use(ctx, cfg, func(store filestore.Store) error {
			return fn(ctx, store)
		})
	}

	store, err := s.open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, store)
}

// Connect builds a client and checks connectivity with one ListBuckets call.
func (s *Service) Connect(ctx context.Context, cfg *filestore.Config) (bool, error) {
	return s.ping(ctx, "connect", cfg)
}

// TestConnection is the same operation as Connect.
func (s *Service) TestConnection(ctx context.Context, cfg *filestore.Config) (bool, error) {
	return s.ping(ctx, "test_connection", cfg)
}

func (s *Service) ping(ctx context.Context, name string, cfg *filestore.Config) (bool, error) {
	err := s.run(ctx, name, cfg, fields{"endpoint": endpointOf(cfg)}, func(ctx context.Context, st filestore.Store) error {
		return st.Ping(ctx)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) ListBuckets(ctx context.Context, cfg *filestore.Config) ([]filestore.BucketInfo, error) {
	var out []filestore.BucketInfo
	err := s.run(ctx, "list_buckets", cfg, nil, func(ctx context.Context, st filestore.Store) error {
		var err error
		out, err = st.ListBuckets(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []filestore.BucketInfo{}
	}
	return out, nil
}

// ListObjects returns the one-level view of bucket under prefix: directory
// entries for common prefixes first, then objects. Only the first page is
// read.
func (s *Service) ListObjects(ctx context.Context, cfg *filestore.Config, bucket string, prefix *string) ([]filestore.ObjectInfo, error) {
	opts := filestore.ListOptions{}
	if prefix != nil {
		opts.Prefix = *prefix
	}

	var out []filestore.ObjectInfo
	err := s.run(ctx, "list_objects", cfg, fields{"bucket": bucket, "prefix": opts.Prefix}, func(ctx context.Context, st filestore.Store) error {
		var err error
		out, err = st.ListObjects(ctx, bucket, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []filestore.ObjectInfo{}
	}
	return out, nil
}

func (s *Service) UploadFile(ctx context.Context, cfg *filestore.Config, bucket, key, filePath string) error {
	return s.run(ctx, "upload_file", cfg, fields{"bucket": bucket, "key": key, "file_path": filePath}, func(ctx context.Context, st filestore.Store) error {
		return filestore.UploadFile(ctx, st, bucket, key, filePath)
	})
}

func (s *Service) UploadData(ctx context.Context, cfg *filestore.Config, bucket, key string, data []byte) error {
	return s.run(ctx, "upload_data", cfg, fields{"bucket": bucket, "key": key}, func(ctx context.Context, st filestore.Store) error {
		return filestore.UploadData(ctx, st, bucket, key, data)
	})
}

// DownloadFile writes the object to filePath. A failed transfer may leave
// a partial file behind.
func (s *Service) DownloadFile(ctx context.Context, cfg *filestore.Config, bucket, key, filePath string) error {
	return s.run(ctx, "download_file", cfg, fields{"bucket": bucket, "key": key, "file_path": filePath}, func(ctx context.Context, st filestore.Store) error {
		return filestore.DownloadFile(ctx, st, bucket, key, filePath)
	})
}

func (s *Service) DownloadData(ctx context.Context, cfg *filestore.Config, bucket, key string) ([]byte, error) {
	var out []byte
	err := s.run(ctx, "download_data", cfg, fields{"bucket": bucket, "key": key}, func(ctx context.Context, st filestore.Store) error {
		var err error
		out, err = filestore.DownloadData(ctx, st, bucket, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) DeleteObject(ctx context.Context, cfg *filestore.Config, bucket, key string) error {
	return s.run(ctx, "delete_object", cfg, fields{"bucket": bucket, "key": key}, func(ctx context.Context, st filestore.Store) error {
		return st.DeleteObject(ctx, bucket, key)
	})
}

func (s *Service) CreateBucket(ctx context.Context, cfg *filestore.Config, bucket string) error {
	return s.run(ctx, "create_bucket", cfg, fields{"bucket": bucket}, func(ctx context.Context, st filestore.Store) error {
		return st.CreateBucket(ctx, bucket)
	})
}

func (s *Service) DeleteBucket(ctx context.Context, cfg *filestore.Config, bucket string) error {
	return s.run(ctx, "delete_bucket", cfg, fields{"bucket": bucket}, func(ctx context.Context, st filestore.Store) error {
		return st.DeleteBucket(ctx, bucket)
	})
}

func (s *Service) GetObjectMetadata(ctx context.Context, cfg *filestore.Config, bucket, key string) (*filestore.ObjectMetadata, error) {
	var out *filestore.ObjectMetadata
	err := s.run(ctx, "get_object_metadata", cfg, fields{"bucket": bucket, "key": key}, func(ctx context.Context, st filestore.Store) error {
		var err error
		out, err = st.StatObject(ctx, bucket, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) CopyObject(ctx context.Context, cfg *filestore.Config, req filestore.CopyRequest) error {
	return s.run(ctx, "copy_object", cfg, transferFields(req.SourceBucket, req.SourceKey, req.DestBucket, req.DestKey), func(ctx context.Context, st filestore.Store) error {
		return st.CopyObject(ctx, req)
	})
}

// MoveObject copies then deletes the source. It is not atomic: when the
// delete fails both objects exist and the delete error is returned.
func (s *Service) MoveObject(ctx context.Context, cfg *filestore.Config, req filestore.MoveRequest) error {
	return s.run(ctx, "move_object", cfg, transferFields(req.SourceBucket, req.SourceKey, req.DestBucket, req.DestKey), func(ctx context.Context, st filestore.Store) error {
		return filestore.MoveObject(ctx, st, req)
	})
}

// GetPresignedURL signs a URL for req. The method is checked before any
// client is built.
func (s *Service) GetPresignedURL(ctx context.Context, cfg *filestore.Config, req filestore.PresignRequest) (string, error) {
	f := fields{"bucket": req.Bucket, "key": req.Key, "method": req.Method}

	if _, err := filestore.ParseMethod(req.Method); err != nil {
		s.log.Command("get_presigned_url", 0, err, f)
		return "", err
	}

	var out string
	err := s.run(ctx, "get_presigned_url", cfg, f, func(ctx context.Context, st filestore.Store) error {
		var err error
		out, err = st.Presign(ctx, req)
		return err
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func transferFields(srcBucket, srcKey, dstBucket, dstKey string) fields {
	return fields{
		"source_bucket": srcBucket,
		"source_key":    srcKey,
		"dest_bucket":   dstBucket,
		"dest_key":      dstKey,
	}
}

func endpointOf(cfg *filestore.Config) string {
	if cfg == nil {
		return ""
	}
	return cfg.Endpoint
}
