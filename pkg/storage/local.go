package storage

import (
	"context"
	"os"
	"path/filepath"
)

type localStorage struct {
	rootDir string
}

// NewLocalStorage stores objects under rootDir on the local filesystem. The
// Bucket and Prefix fields become subdirectories.
func NewLocalStorage(rootDir string) Storage {
	return &localStorage{rootDir: rootDir}
}

func (s *localStorage) Upload(ctx context.Context, object *UploadObject) (*UploadResponse, error) {
	dir := filepath.Join(s.rootDir, object.Bucket, object.Prefix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, object.FileName)
	if err := os.WriteFile(path, object.Data, 0o644); err != nil {
		return nil, err
	}

	return &UploadResponse{Url: path, FileName: object.FileName}, nil
}
