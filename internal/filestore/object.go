package filestore

import (
	"io"
	"time"
)

// BucketInfo describes a storage bucket.
type BucketInfo struct {
	Name string `json:"name"`

	// CreatedAt is nil when the provider did not report a creation time.
	CreatedAt *time.Time `json:"creation_date,omitempty"`
}

// ObjectInfo describes one entry of a bucket listing: either a stored
// object or a virtual directory (common prefix).
type ObjectInfo struct {
	// Key is the full object path within the bucket (e.g. "images/photo.jpg").
	Key string `json:"key"`

	Size         int64      `json:"size"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	ETag         string     `json:"etag,omitempty"`
	StorageClass string     `json:"storage_class,omitempty"`

	// IsDir is true when the entry represents a common prefix,
	// not an actual stored object.
	IsDir bool `json:"is_dir"`

	// ContentType is inferred from the key's extension. Empty when unknown.
	ContentType string `json:"content_type,omitempty"`
}

// ObjectMetadata is the result of a HEAD request on one object.
type ObjectMetadata struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size"`
	LastModified *time.Time        `json:"last_modified,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	ContentType  string            `json:"content_type,omitempty"`
	Metadata     map[string]string `json:"metadata"`
}

// Object is a streaming handle to an object's content.
// The caller MUST call Close() after reading to avoid resource leaks.
type Object interface {
	io.ReadCloser

	// Size is the content length reported by the provider, -1 if unknown.
	Size() int64
}

// ListOptions controls a single listing request.
type ListOptions struct {
	// Prefix restricts results to keys that start with this string.
	Prefix string

	// Recursive, when true, lists every key under the prefix without
	// grouping by "/". When false (default), deeper keys are folded into
	// common prefixes and returned as IsDir entries.
	Recursive bool

	// Limit caps the page size. 0 means the provider default (1000).
	Limit int

	// StartAfter resumes listing after this key. "" starts at the beginning.
	StartAfter string
}

// PutOptions carries optional headers for uploads.
type PutOptions struct {
	ContentType string
}

// CopyRequest names a server-side copy.
type CopyRequest struct {
	SourceBucket string `json:"source_bucket"`
	SourceKey    string `json:"source_key"`
	DestBucket   string `json:"dest_bucket"`
	DestKey      string `json:"dest_key"`
}

// MoveRequest names a copy followed by deletion of the source.
type MoveRequest struct {
	SourceBucket string `json:"source_bucket"`
	SourceKey    string `json:"source_key"`
	DestBucket   string `json:"dest_bucket"`
	DestKey      string `json:"dest_key"`
}

// PresignRequest asks for a time-limited URL for one operation on one key.
type PresignRequest struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`

	// ExpiresIn is the URL lifetime in seconds.
	ExpiresIn uint64 `json:"expires_in"`

	// Method is GET, PUT or DELETE, matched case-insensitively.
	Method string `json:"method"`
}

// Expiry returns ExpiresIn as a duration.
func (r PresignRequest) Expiry() time.Duration {
	return time.Duration(r.ExpiresIn) * time.Second
}

// Timestamp converts a provider time into the optional form used by the
// records above; the zero time becomes nil.
func Timestamp(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
