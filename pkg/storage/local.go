package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalAdapter stores objects on the local filesystem under a root
// directory, mirroring the storage key as the relative path.
type LocalAdapter struct {
	root    string
	baseURL string
}

// NewLocalAdapter creates a disk-backed storage adapter
func NewLocalAdapter(root, baseURL string) (*LocalAdapter, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalAdapter{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Name identifies the adapter in file descriptor rows
func (a *LocalAdapter) Name() string { return "local" }

// Store writes the object under root/key
func (a *LocalAdapter) Store(ctx context.Context, key string, body io.Reader, contentType string, size int64) (*UploadResult, error) {
	target := a.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	dst, err := os.Create(target)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, body)
	if err != nil {
		os.Remove(target)
		return nil, fmt.Errorf("write file: %w", err)
	}

	return &UploadResult{
		Key:         key,
		URL:         a.URL(key),
		ContentType: contentType,
		Size:        written,
	}, nil
}

// Retrieve opens the stored object
func (a *LocalAdapter) Retrieve(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(a.path(key))
	if err != nil {
		return nil, fmt.Errorf("open stored object: %w", err)
	}
	return f, nil
}

// Delete removes the object; a missing file is not an error
func (a *LocalAdapter) Delete(ctx context.Context, key string) error {
	err := os.Remove(a.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete stored object: %w", err)
	}
	return nil
}

// URL returns the public URL for a key
func (a *LocalAdapter) URL(key string) string {
	return a.baseURL + "/" + key
}

// path resolves the key inside the root, refusing traversal outside it
func (a *LocalAdapter) path(key string) string {
	clean := filepath.Clean("/" + key)
	return filepath.Join(a.root, clean)
}
