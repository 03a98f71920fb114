package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"tailor/internal/infra"
)

// Open builds the store selected by STORAGE_BACKEND. For the local backend
// it also returns the directory the API serves under /static.
func Open(ctx context.Context, cfg *infra.Config) (AssetStore, string, error) {
	switch cfg.StorageBackend {
	case "minio":
		store, err := NewMinIOStore(ctx, MinIOOptions{
			Endpoint:      cfg.MinIOEndpoint,
			AccessKey:     cfg.MinIOAccessKey,
			SecretKey:     cfg.MinIOSecretKey,
			Bucket:        cfg.MinIOBucket,
			UseSSL:        cfg.MinIOUseSSL,
			PublicBaseURL: cfg.StorageBaseURL,
		})
		if err != nil {
			return nil, "", err
		}
		return store, "", nil
	case "local", "":
		path := cfg.StoragePath
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		store, err := NewFileStore(path, cfg.StorageBaseURL)
		if err != nil {
			return nil, "", err
		}
		return store, store.BasePath(), nil
	default:
		return nil, "", fmt.Errorf("storage: unknown backend %q", cfg.StorageBackend)
	}
}
