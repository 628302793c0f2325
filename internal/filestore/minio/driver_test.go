package minio

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/stellars3/internal/errs"
	"github.com/koustreak/stellars3/internal/filestore"
)

func TestClientOptions(t *testing.T) {
	cfg := &filestore.Config{AccessKey: "ak", SecretKey: "sk", Region: "eu-west-1", UseSSL: true}
	opts := clientOptions(cfg)
	assert.True(t, opts.Secure)
	assert.Equal(t, "eu-west-1", opts.Region)
	assert.Equal(t, miniogo.BucketLookupAuto, opts.BucketLookup)

	cfg.PathStyle = true
	assert.Equal(t, miniogo.BucketLookupPath, clientOptions(cfg).BucketLookup)
}

func TestEndpointHost(t *testing.T) {
	assert.Equal(t, filestore.DefaultEndpoint, endpointHost(&filestore.Config{}))
	assert.Equal(t, "localhost:9000", endpointHost(&filestore.Config{Endpoint: "localhost:9000"}))
}

func TestNew_BadEndpointIsConfigError(t *testing.T) {
	_, err := New(context.Background(), &filestore.Config{Endpoint: "http://localhost:9000"})
	require.Error(t, err)
	assert.True(t, errs.IsConfig(err))
}

func TestPresign(t *testing.T) {
	d, err := New(context.Background(), &filestore.Config{
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Region:    "us-east-1",
		PathStyle: true,
	})
	require.NoError(t, err)

	u, err := d.Presign(context.Background(), filestore.PresignRequest{Bucket: "photos", Key: "a.png", ExpiresIn: 60, Method: "get"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "http://localhost:9000/photos/a.png?"), u)
	assert.Contains(t, u, "X-Amz-Expires=60")

	_, err = d.Presign(context.Background(), filestore.PresignRequest{Bucket: "photos", Key: "a.png", ExpiresIn: 60, Method: "PATCH"})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.ErrKind
	}{
		{"canceled", context.Canceled, errs.ErrKindTimeout},
		{"no such key", miniogo.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, errs.ErrKindNotFound},
		{"access denied", miniogo.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, errs.ErrKindPermissionDenied},
		{"bucket owned", miniogo.ErrorResponse{Code: "BucketAlreadyOwnedByYou", StatusCode: http.StatusConflict}, errs.ErrKindConflict},
		{"bad name", miniogo.ErrorResponse{Code: "InvalidBucketName", StatusCode: http.StatusBadRequest}, errs.ErrKindInvalidInput},
		{"slow down", miniogo.ErrorResponse{Code: "SlowDown", StatusCode: http.StatusServiceUnavailable}, errs.ErrKindTimeout},
		{"bare 404", miniogo.ErrorResponse{StatusCode: http.StatusNotFound}, errs.ErrKindNotFound},
		{"bare 401", miniogo.ErrorResponse{StatusCode: http.StatusUnauthorized}, errs.ErrKindPermissionDenied},
		{"server error", miniogo.ErrorResponse{Code: "InternalError", StatusCode: http.StatusInternalServerError}, errs.ErrKindProviderRejected},
		{"dial", errors.New("dial tcp: lookup nowhere: no such host"), errs.ErrKindConnectionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "op failed")
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
		})
	}

	assert.Nil(t, mapError(nil, "x"))
}

// fakeS3 answers the path-style requests the driver sends for bucket "bkt".
type fakeS3 struct {
	release chan struct{}

	mu         sync.Mutex
	lists      int
	listQuery  url.Values
	copySource string
	createBody string
}

var fakeModified = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

const listPageOne = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>bkt</Name><Prefix>a/</Prefix><Delimiter>/</Delimiter><MaxKeys>1000</MaxKeys>
  <IsTruncated>true</IsTruncated><NextContinuationToken>page-2</NextContinuationToken>
  <Contents><Key>a/</Key><LastModified>2024-01-02T03:04:05.000Z</LastModified><ETag>"d41d8cd98f00b204e9800998ecf8427e"</ETag><Size>0</Size><StorageClass>STANDARD</StorageClass></Contents>
  <Contents><Key>a/x.txt</Key><LastModified>2024-01-02T03:04:05.000Z</LastModified><ETag>"5d41402abc4b2a76b9719d911017c592"</ETag><Size>5</Size><StorageClass>STANDARD</StorageClass></Contents>
  <CommonPrefixes><Prefix>a/deep/</Prefix></CommonPrefixes>
</ListBucketResult>`

const listPageTwo = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>bkt</Name><Prefix>a/</Prefix><Delimiter>/</Delimiter><MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents><Key>a/second-page.txt</Key><LastModified>2024-01-02T03:04:05.000Z</LastModified><ETag>"abc"</ETag><Size>1</Size></Contents>
</ListBucketResult>`

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/slow" {
		<-f.release
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/bkt" && r.URL.Query().Get("list-type") == "2":
		f.lists++
		f.listQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/xml")
		if r.URL.Query().Get("continuation-token") != "" {
			io.WriteString(w, listPageTwo)
			return
		}
		io.WriteString(w, listPageOne)

	case r.URL.Path == "/bkt/a/x.txt" && (r.Method == http.MethodGet || r.Method == http.MethodHead):
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Content-Length", "5")
		w.Header().Set("ETag", `"5d41402abc4b2a76b9719d911017c592"`)
		w.Header().Set("Last-Modified", fakeModified.Format(http.TimeFormat))
		w.Header().Set("X-Amz-Meta-Owner", "ops")
		if r.Method == http.MethodGet {
			io.WriteString(w, "hello")
		}

	case r.Method == http.MethodPut && r.URL.Path == "/bkt/copy.txt":
		f.copySource = r.Header.Get("X-Amz-Copy-Source")
		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, `<CopyObjectResult><ETag>"5d41402abc4b2a76b9719d911017c592"</ETag><LastModified>2024-01-02T03:04:05.000Z</LastModified></CopyObjectResult>`)

	case r.Method == http.MethodPut && r.URL.Path == "/newbkt":
		body, _ := io.ReadAll(r.Body)
		f.createBody = string(body)

	case r.Method == http.MethodPut && r.URL.Path == "/taken":
		writeS3Error(w, http.StatusConflict, "BucketAlreadyOwnedByYou")

	case r.Method == http.MethodHead:
		w.WriteHeader(http.StatusNotFound)

	default:
		writeS3Error(w, http.StatusNotFound, "NoSuchKey")
	}
}

func (f *fakeS3) locked(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>`+code+`</Code><Message>`+code+`</Message></Error>`)
}

func newFakeDriver(t *testing.T, region string) (*Driver, *fakeS3) {
	t.Helper()
	f := &fakeS3{release: make(chan struct{})}
	ts := httptest.NewServer(f)
	t.Cleanup(ts.Close)
	t.Cleanup(func() { close(f.release) })

	d, err := New(context.Background(), &filestore.Config{
		Provider:  filestore.ProviderMinIO,
		Endpoint:  strings.TrimPrefix(ts.URL, "http://"),
		AccessKey: "ak",
		SecretKey: "sk",
		Region:    region,
		PathStyle: true,
	})
	require.NoError(t, err)
	return d, f
}

func TestListObjects_SinglePage(t *testing.T) {
	d, f := newFakeDriver(t, "us-east-1")

	entries, err := d.ListObjects(context.Background(), "bkt", filestore.ListOptions{Prefix: "a/"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "a/deep/", entries[0].Key)
	assert.True(t, entries[0].IsDir)
	assert.Equal(t, filestore.DirectoryContentType, entries[0].ContentType)

	assert.Equal(t, "a/x.txt", entries[1].Key)
	assert.False(t, entries[1].IsDir)
	assert.Equal(t, int64(5), entries[1].Size)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", entries[1].ETag)
	assert.Equal(t, "STANDARD", entries[1].StorageClass)
	assert.Equal(t, "text/plain", entries[1].ContentType)
	require.NotNil(t, entries[1].LastModified)
	assert.True(t, fakeModified.Equal(*entries[1].LastModified))

	f.locked(func() {
		assert.Equal(t, 1, f.lists)
		assert.Equal(t, "a/", f.listQuery.Get("prefix"))
		assert.Equal(t, "/", f.listQuery.Get("delimiter"))
		assert.Equal(t, "1000", f.listQuery.Get("max-keys"))
		assert.Empty(t, f.listQuery.Get("continuation-token"))
	})
}

func TestListObjects_RecursiveAndLimit(t *testing.T) {
	d, f := newFakeDriver(t, "us-east-1")

	_, err := d.ListObjects(context.Background(), "bkt", filestore.ListOptions{Recursive: true, Limit: 10, StartAfter: "a/m"})
	require.NoError(t, err)

	f.locked(func() {
		assert.Equal(t, "", f.listQuery.Get("delimiter"))
		assert.Equal(t, "10", f.listQuery.Get("max-keys"))
		assert.Equal(t, "a/m", f.listQuery.Get("start-after"))
	})
}

func TestListObjects_ContextCancelled(t *testing.T) {
	d, _ := newFakeDriver(t, "us-east-1")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := d.ListObjects(ctx, "slow", filestore.ListOptions{})
	require.Error(t, err)
	assert.True(t, errs.IsTimeout(err))
}

func TestListObjects_MissingBucket(t *testing.T) {
	d, _ := newFakeDriver(t, "us-east-1")

	_, err := d.ListObjects(context.Background(), "nope", filestore.ListOptions{})
	assert.True(t, errs.IsNotFound(err))
}

func TestGetObject(t *testing.T) {
	d, _ := newFakeDriver(t, "us-east-1")

	obj, err := d.GetObject(context.Background(), "bkt", "a/x.txt")
	require.NoError(t, err)
	defer obj.Close()

	assert.Equal(t, int64(5), obj.Size())
	body, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	_, err = d.GetObject(context.Background(), "bkt", "missing.txt")
	assert.True(t, errs.IsNotFound(err))
}

func TestStatObject(t *testing.T) {
	d, _ := newFakeDriver(t, "us-east-1")

	meta, err := d.StatObject(context.Background(), "bkt", "a/x.txt")
	require.NoError(t, err)
	assert.Equal(t, "a/x.txt", meta.Key)
	assert.Equal(t, int64(5), meta.Size)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", meta.ETag)
	assert.Equal(t, "text/plain", meta.ContentType)
	require.NotNil(t, meta.LastModified)
	assert.True(t, fakeModified.Equal(*meta.LastModified))

	_, err = d.StatObject(context.Background(), "bkt", "missing.txt")
	assert.True(t, errs.IsNotFound(err))
}

func TestCopyObject(t *testing.T) {
	d, f := newFakeDriver(t, "us-east-1")

	err := d.CopyObject(context.Background(), filestore.CopyRequest{
		SourceBucket: "bkt", SourceKey: "a/x.txt",
		DestBucket: "bkt", DestKey: "copy.txt",
	})
	require.NoError(t, err)

	f.locked(func() {
		assert.Contains(t, f.copySource, "bkt/a/x.txt")
	})
}

func TestCreateBucket(t *testing.T) {
	t.Run("default region sends no constraint", func(t *testing.T) {
		d, f := newFakeDriver(t, "us-east-1")
		require.NoError(t, d.CreateBucket(context.Background(), "newbkt"))
		f.locked(func() {
			assert.NotContains(t, f.createBody, "LocationConstraint")
		})
	})

	t.Run("other region sends its constraint", func(t *testing.T) {
		d, f := newFakeDriver(t, "eu-west-1")
		require.NoError(t, d.CreateBucket(context.Background(), "newbkt"))
		f.locked(func() {
			assert.Contains(t, f.createBody, "<LocationConstraint>eu-west-1</LocationConstraint>")
		})
	})

	t.Run("existing bucket is a conflict", func(t *testing.T) {
		d, _ := newFakeDriver(t, "us-east-1")
		err := d.CreateBucket(context.Background(), "taken")
		assert.Equal(t, errs.ErrKindConflict, errs.KindOf(err))
	})
}
