// Package memory provides an in-process implementation of filestore.Store.
//
// It keeps buckets and objects in maps and follows the same listing and
// error semantics as the real drivers, which makes it the store of choice
// for tests of the command layer and the HTTP server.
package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/koustreak/stellars3/internal/errs"
	"github.com/koustreak/stellars3/internal/filestore"
)

const defaultPageSize = 1000

type object struct {
	data        []byte
	contentType string
	modified    time.Time
	metadata    map[string]string
}

type bucket struct {
	created time.Time
	objects map[string]*object
}

// Store is an in-memory filestore.Store. The zero value is not usable; call New.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	now     func() time.Time

	// Fail, when set, is consulted before every operation; a non-nil
	// return aborts the operation with that error.
	Fail func(op, bucket, key string) error
}

var _ filestore.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (s *Store) fail(op, b, k string) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(op, b, k)
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.ErrKindTimeout, "ping failed", err)
	}
	return s.fail("ping", "", "")
}

func (s *Store) Close() error { return nil }

func (s *Store) ListBuckets(ctx context.Context) ([]filestore.BucketInfo, error) {
	if err := s.fail("list_buckets", "", ""); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.buckets))
	for name := range s.buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]filestore.BucketInfo, len(names))
	for i, name := range names {
		out[i] = filestore.BucketInfo{Name: name, CreatedAt: filestore.Timestamp(s.buckets[name].created)}
	}
	return out, nil
}

// ListObjects mirrors ListObjectsV2: keys in lexical order, deeper keys
// folded into common prefixes unless opts.Recursive is set.
func (s *Store) ListObjects(ctx context.Context, bucketName string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	if err := s.fail("list_objects", bucketName, ""); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := s.bucket(bucketName)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		if strings.HasPrefix(k, opts.Prefix) && k > opts.StartAfter {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	var page filestore.ListPage
	seen := make(map[string]bool)
	count := 0
	for _, k := range keys {
		if count >= limit {
			break
		}
		if !opts.Recursive {
			rest := k[len(opts.Prefix):]
			if i := strings.Index(rest, filestore.Delimiter); i >= 0 {
				p := opts.Prefix + rest[:i+1]
				if !seen[p] {
					seen[p] = true
					page.Prefixes = append(page.Prefixes, p)
					count++
				}
				continue
			}
		}
		o := b.objects[k]
		page.Objects = append(page.Objects, filestore.ObjectInfo{
			Key:          k,
			Size:         int64(len(o.data)),
			LastModified: filestore.Timestamp(o.modified),
			ETag:         etag(o.data),
			StorageClass: "STANDARD",
		})
		count++
	}

	return filestore.MergeListing(page), nil
}

func (s *Store) GetObject(ctx context.Context, bucketName, key string) (filestore.Object, error) {
	if err := s.fail("get_object", bucketName, key); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, err := s.object(bucketName, key)
	if err != nil {
		return nil, err
	}
	return reader{bytes.NewReader(o.data)}, nil
}

func (s *Store) PutObject(ctx context.Context, bucketName, key string, r io.Reader, size int64, opts filestore.PutOptions) error {
	if err := s.fail("put_object", bucketName, key); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return errs.Wrap(errs.ErrKindConnectionFailed, "failed to read upload body", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bucket(bucketName)
	if err != nil {
		return err
	}
	b.objects[key] = &object{
		data:        data,
		contentType: opts.ContentType,
		modified:    s.now(),
		metadata:    map[string]string{},
	}
	return nil
}

func (s *Store) StatObject(ctx context.Context, bucketName, key string) (*filestore.ObjectMetadata, error) {
	if err := s.fail("stat_object", bucketName, key); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, err := s.object(bucketName, key)
	if err != nil {
		return nil, err
	}
	meta := make(map[string]string, len(o.metadata))
	for k, v := range o.metadata {
		meta[k] = v
	}
	return &filestore.ObjectMetadata{
		Key:          key,
		Size:         int64(len(o.data)),
		LastModified: filestore.Timestamp(o.modified),
		ETag:         etag(o.data),
		ContentType:  o.contentType,
		Metadata:     meta,
	}, nil
}

// SetMetadata attaches user metadata to an existing object.
func (s *Store) SetMetadata(bucketName, key string, meta map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.object(bucketName, key)
	if err != nil {
		return err
	}
	for k, v := range meta {
		o.metadata[k] = v
	}
	return nil
}

func (s *Store) DeleteObject(ctx context.Context, bucketName, key string) error {
	if err := s.fail("delete_object", bucketName, key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bucket(bucketName)
	if err != nil {
		return err
	}
	// S3 reports success for missing keys.
	delete(b.objects, key)
	return nil
}

func (s *Store) CopyObject(ctx context.Context, req filestore.CopyRequest) error {
	if err := s.fail("copy_object", req.SourceBucket, req.SourceKey); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.object(req.SourceBucket, req.SourceKey)
	if err != nil {
		return err
	}
	dst, err := s.bucket(req.DestBucket)
	if err != nil {
		return err
	}
	meta := make(map[string]string, len(src.metadata))
	for k, v := range src.metadata {
		meta[k] = v
	}
	dst.objects[req.DestKey] = &object{
		data:        append([]byte(nil), src.data...),
		contentType: src.contentType,
		modified:    s.now(),
		metadata:    meta,
	}
	return nil
}

func (s *Store) CreateBucket(ctx context.Context, name string) error {
	if err := s.fail("create_bucket", name, ""); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buckets[name]; ok {
		return errs.Newf(errs.ErrKindConflict, "bucket %s already exists", name)
	}
	s.buckets[name] = &bucket{created: s.now(), objects: make(map[string]*object)}
	return nil
}

func (s *Store) DeleteBucket(ctx context.Context, name string) error {
	if err := s.fail("delete_bucket", name, ""); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bucket(name)
	if err != nil {
		return err
	}
	if len(b.objects) > 0 {
		return errs.Newf(errs.ErrKindConflict, "bucket %s is not empty", name)
	}
	delete(s.buckets, name)
	return nil
}

// Presign returns a memory:// URL carrying the method and expiry. It never
// checks that the object exists, matching real signers.
func (s *Store) Presign(ctx context.Context, req filestore.PresignRequest) (string, error) {
	method, err := filestore.ParseMethod(req.Method)
	if err != nil {
		return "", err
	}
	if err := s.fail("presign", req.Bucket, req.Key); err != nil {
		return "", err
	}
	u := url.URL{
		Scheme: "memory",
		Host:   req.Bucket,
		Path:   "/" + req.Key,
		RawQuery: url.Values{
			"method":  {string(method)},
			"expires": {strconv.FormatUint(req.ExpiresIn, 10)},
		}.Encode(),
	}
	return u.String(), nil
}

// Has reports whether bucket/key exists. Test helper.
func (s *Store) Has(bucketName, key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := s.object(bucketName, key)
	return err == nil
}

// caller holds s.mu
func (s *Store) bucket(name string) (*bucket, error) {
	b, ok := s.buckets[name]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "no such bucket: %s", name)
	}
	return b, nil
}

// caller holds s.mu
func (s *Store) object(bucketName, key string) (*object, error) {
	b, err := s.bucket(bucketName)
	if err != nil {
		return nil, err
	}
	o, ok := b.objects[key]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "no such key: %s", key)
	}
	return o, nil
}

func etag(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// reader gets Size from bytes.Reader.
type reader struct {
	*bytes.Reader
}

func (reader) Close() error { return nil }
