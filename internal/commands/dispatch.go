package commands

import (
	"context"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/koustreak/stellars3/internal/errs"
	"github.com/koustreak/stellars3/internal/filestore"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Args is the union of all command arguments as they arrive on the wire.
// Each command reads only the fields it needs.
type Args struct {
	Config   *filestore.Config   `json:"config"`
	Bucket   string              `json:"bucket"`
	Prefix   *string             `json:"prefix"`
	Key      string              `json:"key"`
	FilePath string              `json:"file_path"`
	Data     []byte              `json:"data"` // base64
	Request  jsoniter.RawMessage `json:"request"`
}

type handler func(ctx context.Context, s *Service, a *Args) (any, error)

// Dispatcher runs commands by name from JSON payloads.
type Dispatcher struct {
	svc      *Service
	handlers map[string]handler
}

// NewDispatcher returns a Dispatcher backed by svc.
func NewDispatcher(svc *Service) *Dispatcher {
	return &Dispatcher{
		svc: svc,
		handlers: map[string]handler{
			"connect":             connect,
			"connect_to_s3":       connect,
			"test_connection":     testConnection,
			"list_buckets":        listBuckets,
			"list_objects":        listObjects,
			"upload_file":         uploadFile,
			"upload_data":         uploadData,
			"download_file":       downloadFile,
			"download_data":       downloadData,
			"delete_object":       deleteObject,
			"create_bucket":       createBucket,
			"delete_bucket":       deleteBucket,
			"get_object_metadata": getObjectMetadata,
			"copy_object":         copyObject,
			"move_object":         moveObject,
			"get_presigned_url":   getPresignedURL,
		},
	}
}

// Names returns every command name the dispatcher accepts, sorted.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.handlers))
	for n := range d.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Dispatch decodes payload and runs the named command. Commands without
// output return nil.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, payload []byte) (any, error) {
	h, ok := d.handlers[name]
	if !ok {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "unknown command: %s", name)
	}

	var a Args
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid command payload", err)
		}
	}
	return h(ctx, d.svc, &a)
}

func decodeRequest(a *Args, v any) error {
	if len(a.Request) == 0 {
		return errs.New(errs.ErrKindInvalidInput, "missing request")
	}
	if err := json.Unmarshal(a.Request, v); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid request", err)
	}
	return nil
}

func connect(ctx context.Context, s *Service, a *Args) (any, error) {
	return s.Connect(ctx, a.Config)
}

func testConnection(ctx context.Context, s *Service, a *Args) (any, error) {
	return s.TestConnection(ctx, a.Config)
}

func listBuckets(ctx context.Context, s *Service, a *Args) (any, error) {
	return s.ListBuckets(ctx, a.Config)
}

func listObjects(ctx context.Context, s *Service, a *Args) (any, error) {
	return s.ListObjects(ctx, a.Config, a.Bucket, a.Prefix)
}

func uploadFile(ctx context.Context, s *Service, a *Args) (any, error) {
	return nil, s.UploadFile(ctx, a.Config, a.Bucket, a.Key, a.FilePath)
}

func uploadData(ctx context.Context, s *Service, a *Args) (any, error) {
	return nil, s.UploadData(ctx, a.Config, a.Bucket, a.Key, a.Data)
}

func downloadFile(ctx context.Context, s *Service, a *Args) (any, error) {
	return nil, s.DownloadFile(ctx, a.Config, a.Bucket, a.Key, a.FilePath)
}

func downloadData(ctx context.Context, s *Service, a *Args) (any, error) {
	data, err := s.DownloadData(ctx, a.Config, a.Bucket, a.Key)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func deleteObject(ctx context.Context, s *Service, a *Args) (any, error) {
	return nil, s.DeleteObject(ctx, a.Config, a.Bucket, a.Key)
}

func createBucket(ctx context.Context, s *Service, a *Args) (any, error) {
	return nil, s.CreateBucket(ctx, a.Config, a.Bucket)
}

func deleteBucket(ctx context.Context, s *Service, a *Args) (any, error) {
	return nil, s.DeleteBucket(ctx, a.Config, a.Bucket)
}

func getObjectMetadata(ctx context.Context, s *Service, a *Args) (any, error) {
	meta, err := s.GetObjectMetadata(ctx, a.Config, a.Bucket, a.Key)
	if err != nil {
		return nil, err
	}
	return meta, nil
}

func copyObject(ctx context.Context, s *Service, a *Args) (any, error) {
	var req filestore.CopyRequest
	if err := decodeRequest(a, &req); err != nil {
		return nil, err
	}
	return nil, s.CopyObject(ctx, a.Config, req)
}

func moveObject(ctx context.Context, s *Service, a *Args) (any, error) {
	var req filestore.MoveRequest
	if err := decodeRequest(a, &req); err != nil {
		return nil, err
	}
	return nil, s.MoveObject(ctx, a.Config, req)
}

func getPresignedURL(ctx context.Context, s *Service, a *Args) (any, error) {
	var req filestore.PresignRequest
	if err := decodeRequest(a, &req); err != nil {
		return nil, err
	}
	return s.GetPresignedURL(ctx, a.Config, req)
}
