package filestore

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/gabriel-vasile/mimetype"

	"github.com/koustreak/stellars3/internal/errs"
)

// UploadFile streams the local file at path into bucket/key in one request.
func UploadFile(ctx context.Context, s Store, bucket, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errs.Wrap(errs.ErrKindLocalIO, "failed to open upload source", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errs.Wrap(errs.ErrKindLocalIO, "failed to stat upload source", err)
	}
	if info.IsDir() {
		return errs.Newf(errs.ErrKindLocalIO, "upload source %s is a directory", path)
	}

	contentType, err := detectReader(f, key)
	if err != nil {
		return errs.Wrap(errs.ErrKindLocalIO, "failed to read upload source", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return errs.Wrap(errs.ErrKindLocalIO, "failed to rewind upload source", err)
	}

	return s.PutObject(ctx, bucket, key, f, info.Size(), PutOptions{ContentType: contentType})
}

// UploadData uploads an in-memory buffer into bucket/key.
func UploadData(ctx context.Context, s Store, bucket, key string, data []byte) error {
	opts := PutOptions{ContentType: DetectContentType(data, key)}
	return s.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), opts)
}

// DownloadFile writes bucket/key to the local file at path.
// A failure midway leaves whatever was written so far in place.
func DownloadFile(ctx context.Context, s Store, bucket, key, path string) error {
	obj, err := s.GetObject(ctx, bucket, key)
	if err != nil {
		return err
	}
	defer obj.Close()

	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(errs.ErrKindLocalIO, "failed to create download destination", err)
	}

	dst := &fileWriter{w: f}
	if _, err := io.Copy(dst, obj); err != nil {
		f.Close()
		if dst.err != nil {
			return errs.Wrap(errs.ErrKindLocalIO, "failed to write download destination", err)
		}
		return readError(ctx, err)
	}
	if err := f.Close(); err != nil {
		return errs.Wrap(errs.ErrKindLocalIO, "failed to flush download destination", err)
	}
	return nil
}

// DownloadData reads bucket/key fully into memory.
func DownloadData(ctx context.Context, s Store, bucket, key string) ([]byte, error) {
	obj, err := s.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	var buf bytes.Buffer
	if n := obj.Size(); n > 0 {
		buf.Grow(int(n))
	}
	if _, err := io.Copy(&buf, obj); err != nil {
		return nil, readError(ctx, err)
	}
	return buf.Bytes(), nil
}

// fileWriter records the local file's write error so a failed copy can be
// blamed on the right side.
type fileWriter struct {
	w   io.Writer
	err error
}

func (fw *fileWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if err != nil {
		fw.err = err
	}
	return n, err
}

// readError classifies a failure reading an object body.
func readError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errs.Wrap(errs.ErrKindTimeout, "object body read interrupted", err)
	}
	return errs.Wrap(errs.ErrKindConnectionFailed, "failed to read object body", err)
}

// MoveObject copies the source to the destination and then deletes the
// source. There is no rollback: when the delete fails both objects remain
// and the delete error is returned.
func MoveObject(ctx context.Context, s Store, req MoveRequest) error {
	err := s.CopyObject(ctx, CopyRequest{
		SourceBucket: req.SourceBucket,
		SourceKey:    req.SourceKey,
		DestBucket:   req.DestBucket,
		DestKey:      req.DestKey,
	})
	if err != nil {
		return err
	}
	return s.DeleteObject(ctx, req.SourceBucket, req.SourceKey)
}

// DetectContentType sniffs data, falling back to the key's extension when
// the content alone only says "application/octet-stream" or "text/plain".
func DetectContentType(data []byte, key string) string {
	mt := mimetype.Detect(data)
	if byKey := ContentTypeByKey(key); byKey != "" && isGeneric(mt) {
		return byKey
	}
	return mt.String()
}

func detectReader(r io.Reader, key string) (string, error) {
	mt, err := mimetype.DetectReader(r)
	if err != nil {
		return "", err
	}
	if byKey := ContentTypeByKey(key); byKey != "" && isGeneric(mt) {
		return byKey, nil
	}
	return mt.String(), nil
}

func isGeneric(mt *mimetype.MIME) bool {
	return mt.Is("application/octet-stream") || mt.Is("text/plain")
}
