// Package storage holds artwork bytes behind a key/value AssetStore.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

var ErrNotFound = errors.New("storage: object not found")

// AssetStore persists artwork bytes under slash-separated keys and exposes
// them at public URLs the fulfillment service can fetch.
type AssetStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	PublicURL(key string) string
}

func GeneratedKey(sessionID, artifactID, ext string) string {
	return path.Join("generated", sessionID, artifactID+normalizeExt(ext))
}

func NormalizedKey(sessionID, artifactID string) string {
	return path.Join("normalized", sessionID, artifactID+".png")
}

func CompositedKey(sessionID, side, id string) string {
	return path.Join("composited", sessionID, fmt.Sprintf("%s-%s.png", side, id))
}

func UploadKey(sessionID, artifactID, ext string) string {
	return path.Join("uploads", sessionID, artifactID+normalizeExt(ext))
}

// ExtensionFor maps an image MIME type to a file extension.
func ExtensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func normalizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return ".png"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
