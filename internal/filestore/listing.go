package filestore

import (
	"mime"
	"path"
	"strings"
)

const (
	// Delimiter groups keys into virtual directories.
	Delimiter = "/"

	// DirectoryContentType marks synthetic directory entries.
	DirectoryContentType = "application/x-directory"
)

// ListPage is one provider listing response reduced to what the merge needs.
// Prefixes and Objects keep the provider's order.
type ListPage struct {
	Prefixes []string
	Objects  []ObjectInfo
}

// MergeListing flattens a page into the entries shown to the user.
// All common prefixes come first as directory entries, followed by the
// objects. Zero-byte keys ending in "/" are folder placeholders created
// by consoles and are dropped so a folder is not shown twice.
func MergeListing(page ListPage) []ObjectInfo {
	out := make([]ObjectInfo, 0, len(page.Prefixes)+len(page.Objects))

	for _, p := range page.Prefixes {
		out = append(out, ObjectInfo{
			Key:         p,
			IsDir:       true,
			ContentType: DirectoryContentType,
		})
	}

	for _, obj := range page.Objects {
		if IsPlaceholder(obj.Key, obj.Size) {
			continue
		}
		obj.IsDir = false
		obj.ContentType = ContentTypeByKey(obj.Key)
		out = append(out, obj)
	}

	return out
}

// IsPlaceholder reports whether a listed object is a folder marker.
func IsPlaceholder(key string, size int64) bool {
	return size == 0 && strings.HasSuffix(key, Delimiter)
}

// extensionTypes pins the common extensions so listings do not depend on
// the host's mime.types files.
var extensionTypes = map[string]string{
	".txt":  "text/plain",
	".log":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".tsv":  "text/tab-separated-values",
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".mjs":  "application/javascript",
	".json": "application/json",
	".xml":  "text/xml",
	".yaml": "text/x-yaml",
	".yml":  "text/x-yaml",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".gz":   "application/gzip",
	".tar":  "application/x-tar",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".wasm": "application/wasm",
}

// ContentTypeByKey guesses a bare MIME type (no parameters) from the key's
// extension. It returns "" when the extension is unknown.
func ContentTypeByKey(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ext == "" {
		return ""
	}
	if t, ok := extensionTypes[ext]; ok {
		return t
	}

	t := mime.TypeByExtension(ext)
	if t == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(t)
	if err != nil {
		return ""
	}
	return mediaType
}
