// Package storage provides the file-storage adapters behind
// file-reference fields. The API core only persists the descriptor a
// Store call returns; raw bytes never cross into the service layer.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UploadResult is the location descriptor of one stored object
type UploadResult struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	CDNURL      string `json:"cdn_url,omitempty"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Adapter is the contract a storage backend must satisfy
type Adapter interface {
	// Name identifies the adapter in file descriptor rows
	Name() string
	// Store writes the object and returns its location descriptor
	Store(ctx context.Context, key string, body io.Reader, contentType string, size int64) (*UploadResult, error)
	// Retrieve opens the stored object for reading
	Retrieve(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object
	Delete(ctx context.Context, key string) error
	// URL returns a client-reachable URL for the key
	URL(key string) string
}

// GenerateKey creates a unique storage key with a date prefix. The
// uuid suffix keeps concurrent uploads of the same filename apart.
func GenerateKey(filename string) string {
	now := time.Now()
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%d/%02d/%s%s", now.Year(), now.Month(), uuid.NewString(), ext)
}
