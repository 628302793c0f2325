package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/stellars3/internal/commands"
	"github.com/koustreak/stellars3/internal/errs"
	"github.com/koustreak/stellars3/internal/filestore"
	"github.com/koustreak/stellars3/internal/filestore/memory"
	"github.com/koustreak/stellars3/internal/logger"
)

const cfgJSON = `{"provider":"minio","endpoint":"localhost:9000","access_key":"ak","secret_key":"sk","region":"us-east-1","path_style":true}`

func newTestServer(t *testing.T, store *memory.Store, cfg Config, log *logger.Logger) *httptest.Server {
	t.Helper()
	svc := commands.New(commands.Options{
		Opener: func(context.Context, *filestore.Config) (filestore.Store, error) { return store, nil },
	})
	srv := New(cfg, commands.NewDispatcher(svc), log)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

type response struct {
	Data  any    `json:"data"`
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func post(t *testing.T, ts *httptest.Server, name, args string) (int, response) {
	t.Helper()
	body := `{"config":` + cfgJSON + args + `}`
	resp, err := http.Post(ts.URL+"/api/v1/commands/"+name, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, memory.New(), Config{}, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	raw, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"status":"ok"}`, string(raw))
}

func TestListCommands(t *testing.T) {
	ts := newTestServer(t, memory.New(), Config{}, nil)

	resp, err := http.Get(ts.URL + "/api/v1/commands")
	require.NoError(t, err)
	defer resp.Body.Close()

	var out struct {
		Data []string `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out.Data, "list_objects")
	assert.Contains(t, out.Data, "get_presigned_url")
}

func TestCommands(t *testing.T) {
	store := memory.New()
	ts := newTestServer(t, store, Config{}, nil)

	t.Run("connect", func(t *testing.T) {
		status, out := post(t, ts, "connect", "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, out.Data)
	})

	t.Run("create bucket", func(t *testing.T) {
		status, out := post(t, ts, "create_bucket", `,"bucket":"photos"`)
		assert.Equal(t, http.StatusOK, status)
		assert.Nil(t, out.Data)
		assert.Empty(t, out.Error)
	})

	t.Run("create bucket twice is a conflict", func(t *testing.T) {
		status, out := post(t, ts, "create_bucket", `,"bucket":"photos"`)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "conflict", out.Kind)
		assert.Contains(t, out.Error, "already exists")
	})

	t.Run("upload data", func(t *testing.T) {
		data := base64.StdEncoding.EncodeToString([]byte("hello"))
		status, _ := post(t, ts, "upload_data", `,"bucket":"photos","key":"2024/a.txt","data":"`+data+`"`)
		assert.Equal(t, http.StatusOK, status)
		assert.True(t, store.Has("photos", "2024/a.txt"))
	})

	t.Run("list objects", func(t *testing.T) {
		status, out := post(t, ts, "list_objects", `,"bucket":"photos"`)
		assert.Equal(t, http.StatusOK, status)
		entries, ok := out.Data.([]any)
		require.True(t, ok)
		require.Len(t, entries, 1)
		dir := entries[0].(map[string]any)
		assert.Equal(t, "2024/", dir["key"])
		assert.Equal(t, true, dir["is_dir"])
	})

	t.Run("download data", func(t *testing.T) {
		status, out := post(t, ts, "download_data", `,"bucket":"photos","key":"2024/a.txt"`)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("hello")), out.Data)
	})

	t.Run("metadata of missing key", func(t *testing.T) {
		status, out := post(t, ts, "get_object_metadata", `,"bucket":"photos","key":"nope"`)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "not_found", out.Kind)
	})

	t.Run("presign rejects method", func(t *testing.T) {
		status, out := post(t, ts, "get_presigned_url", `,"request":{"bucket":"photos","key":"k","expires_in":60,"method":"PATCH"}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid_input", out.Kind)
	})

	t.Run("unknown command", func(t *testing.T) {
		status, out := post(t, ts, "format_disk", "")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, out.Error, "unknown command")
	})
}

func TestRunCommand_BodyTooLarge(t *testing.T) {
	ts := newTestServer(t, memory.New(), Config{MaxBodyBytes: 16}, nil)

	resp, err := http.Post(ts.URL+"/api/v1/commands/list_buckets", "application/json", bytes.NewReader(bytes.Repeat([]byte("x"), 64)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, memory.New(), Config{}, nil)

	resp, err := http.Get(ts.URL + "/nowhere")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/v1/commands/list_buckets")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&logger.Config{Level: "info", Format: "json", Output: &buf})
	srv := New(Config{}, commands.NewDispatcher(commands.New(commands.Options{})), log)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, buf.String(), `"path":"/healthz"`)
	assert.Contains(t, buf.String(), `"status":200`)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind errs.ErrKind
		want int
	}{
		{errs.ErrKindInvalidInput, http.StatusBadRequest},
		{errs.ErrKindConfig, http.StatusBadRequest},
		{errs.ErrKindNotFound, http.StatusNotFound},
		{errs.ErrKindPermissionDenied, http.StatusForbidden},
		{errs.ErrKindConflict, http.StatusConflict},
		{errs.ErrKindTimeout, http.StatusGatewayTimeout},
		{errs.ErrKindConnectionFailed, http.StatusBadGateway},
		{errs.ErrKindProviderRejected, http.StatusBadGateway},
		{errs.ErrKindLocalIO, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(errs.New(tt.kind, "x")))
		})
	}
}

// lockedBuffer is written by handler goroutines while Serve logs.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	buf := &lockedBuffer{}
	log := logger.New(&logger.Config{Level: "info", Format: "json", Output: buf})
	svc := commands.New(commands.Options{})
	srv := New(Config{ShutdownTimeout: time.Second}, commands.NewDispatcher(svc), log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.Contains(t, buf.String(), `"message":"server listening"`)
	assert.Contains(t, buf.String(), `"commands":16`)
	assert.Contains(t, buf.String(), `"message":"server shutting down"`)
}
