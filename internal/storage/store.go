package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"mime"
	"net/url"
	"path"
	"strings"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = errors.New("storage: object not found")

// ArtifactStore caches downloaded model files by key.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, string, error)
}

var modelContentTypes = map[string]string{
	".glb":  "model/gltf-binary",
	".gltf": "model/gltf+json",
	".usdz": "model/vnd.usdz+zip",
	".fbx":  "application/octet-stream",
	".obj":  "model/obj",
	".stl":  "model/stl",
	".webp": "image/webp",
	".png":  "image/png",
	".jpg":  "image/jpeg",
}

// ContentTypeFor guesses a MIME type from a file name or URL path.
func ContentTypeFor(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ct, ok := modelContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// KeyForURL derives a stable cache key from an artifact URL. Query strings
// (signed URL parameters) are ignored so re-signed links share one entry.
func KeyForURL(raw string) string {
	u, err := url.Parse(raw)
	target := raw
	ext := ""
	if err == nil {
		target = u.Host + u.Path
		ext = strings.ToLower(path.Ext(u.Path))
	}
	sum := sha256.Sum256([]byte(target))
	return "artifacts/" + hex.EncodeToString(sum[:16]) + ext
}
