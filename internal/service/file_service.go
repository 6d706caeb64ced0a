package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dev7ch/api/internal/common"
	"github.com/dev7ch/api/internal/domain"
	"github.com/dev7ch/api/pkg/storage"
	"github.com/rs/zerolog/log"
)

const filesCollection = "dev7_files"
const foldersCollection = "dev7_folders"

// UploadInput is a file upload payload. Data carries the raw bytes
// base64-encoded, optionally as a data URI.
type UploadInput struct {
	Filename    string `json:"filename" binding:"required"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
	Location    string `json:"location"`
	Folder      *int64 `json:"folder"`
	Data        string `json:"data" binding:"required"`
}

// FileService stores uploaded objects and keeps their descriptor rows
// in the files collection. Descriptors go through the item facade so
// uploads are activity-logged like any other create.
type FileService interface {
	Upload(ctx context.Context, in UploadInput, opts MutationOptions) (domain.Record, error)
	Find(ctx context.Context, id interface{}, q QueryOptions) (domain.Record, error)
	FindAll(ctx context.Context, q QueryOptions) ([]domain.Record, error)
	Update(ctx context.Context, id interface{}, payload domain.Record, opts MutationOptions) (domain.Record, error)
	Delete(ctx context.Context, id interface{}, opts MutationOptions) error

	CreateFolder(ctx context.Context, payload domain.Record, opts MutationOptions) (domain.Record, error)
	FindFolder(ctx context.Context, id interface{}, q QueryOptions) (domain.Record, error)
	FindFolders(ctx context.Context, q QueryOptions) ([]domain.Record, error)
	UpdateFolder(ctx context.Context, id interface{}, payload domain.Record, opts MutationOptions) (domain.Record, error)
	DeleteFolder(ctx context.Context, id interface{}, opts MutationOptions) error
}

type fileService struct {
	items   ItemService
	adapter storage.Adapter
}

// NewFileService creates a new FileService
func NewFileService(items ItemService, adapter storage.Adapter) FileService {
	return &fileService{items: items, adapter: adapter}
}

// Upload decodes the payload, stores the object, then creates the
// descriptor row. A failed row insert removes the stored object again
// so the two never drift apart.
func (s *fileService) Upload(ctx context.Context, in UploadInput, opts MutationOptions) (domain.Record, error) {
	data, contentType, err := decodeUploadData(in.Data)
	if err != nil {
		verr := &common.ValidationError{Collection: filesCollection}
		verr.Add("data", common.CodeValidationFailed, err.Error())
		return nil, verr
	}
	if in.Type != "" {
		contentType = in.Type
	}

	key := storage.GenerateKey(in.Filename)
	result, err := s.adapter.Store(ctx, key, bytes.NewReader(data), contentType, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	title := in.Title
	if title == "" {
		title = in.Filename
	}
	record, err := s.items.Create(ctx, filesCollection, domain.Record{
		"storage":     s.adapter.Name(),
		"storage_key": result.Key,
		"filename":    in.Filename,
		"title":       title,
		"type":        contentType,
		"filesize":    result.Size,
		"description": in.Description,
		"tags":        in.Tags,
		"location":    in.Location,
		"folder":      folderValue(in.Folder),
		"uploaded_by": opts.Actor,
	}, opts)
	if err != nil {
		if rmErr := s.adapter.Delete(ctx, result.Key); rmErr != nil {
			log.Error().Err(rmErr).Str("key", result.Key).Msg("Failed to remove orphaned upload")
		}
		return nil, err
	}

	record["url"] = s.adapter.URL(result.Key)
	return record, nil
}

func (s *fileService) Find(ctx context.Context, id interface{}, q QueryOptions) (domain.Record, error) {
	record, err := s.items.Find(ctx, filesCollection, id, q)
	if err != nil {
		return nil, err
	}
	s.attachURL(record)
	return record, nil
}

func (s *fileService) FindAll(ctx context.Context, q QueryOptions) ([]domain.Record, error) {
	records, err := s.items.FindAll(ctx, filesCollection, q)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		s.attachURL(r)
	}
	return records, nil
}

// Update touches descriptor metadata only; the stored object is immutable
func (s *fileService) Update(ctx context.Context, id interface{}, payload domain.Record, opts MutationOptions) (domain.Record, error) {
	delete(payload, "storage")
	delete(payload, "storage_key")
	record, err := s.items.Update(ctx, filesCollection, id, payload, opts)
	if err != nil {
		return nil, err
	}
	s.attachURL(record)
	return record, nil
}

// Delete removes the descriptor row first, then the object. An object
// that outlives its row is garbage, the reverse would be a broken link.
func (s *fileService) Delete(ctx context.Context, id interface{}, opts MutationOptions) error {
	record, err := s.items.Find(ctx, filesCollection, id, QueryOptions{})
	if err != nil {
		return err
	}
	if err := s.items.Delete(ctx, filesCollection, id, opts); err != nil {
		return err
	}
	if key, ok := record["storage_key"].(string); ok && key != "" {
		if err := s.adapter.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to remove stored object")
		}
	}
	return nil
}

func (s *fileService) CreateFolder(ctx context.Context, payload domain.Record, opts MutationOptions) (domain.Record, error) {
	return s.items.Create(ctx, foldersCollection, payload, opts)
}

func (s *fileService) FindFolder(ctx context.Context, id interface{}, q QueryOptions) (domain.Record, error) {
	return s.items.Find(ctx, foldersCollection, id, q)
}

func (s *fileService) FindFolders(ctx context.Context, q QueryOptions) ([]domain.Record, error) {
	return s.items.FindAll(ctx, foldersCollection, q)
}

func (s *fileService) UpdateFolder(ctx context.Context, id interface{}, payload domain.Record, opts MutationOptions) (domain.Record, error) {
	return s.items.Update(ctx, foldersCollection, id, payload, opts)
}

func (s *fileService) DeleteFolder(ctx context.Context, id interface{}, opts MutationOptions) error {
	return s.items.Delete(ctx, foldersCollection, id, opts)
}

func (s *fileService) attachURL(record domain.Record) {
	if key, ok := record["storage_key"].(string); ok && key != "" {
		record["url"] = s.adapter.URL(key)
	}
}

func folderValue(folder *int64) interface{} {
	if folder == nil {
		return nil
	}
	return *folder
}

// decodeUploadData accepts plain base64 or a full data URI and returns
// the raw bytes plus the content type the URI declared, if any
func decodeUploadData(data string) ([]byte, string, error) {
	contentType := "application/octet-stream"
	if strings.HasPrefix(data, "data:") {
		semi := strings.Index(data, ";base64,")
		if semi < 0 {
			return nil, "", fmt.Errorf("data uri must be base64 encoded")
		}
		if mime := data[len("data:"):semi]; mime != "" {
			contentType = mime
		}
		data = data[semi+len(";base64,"):]
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, "", fmt.Errorf("invalid base64 payload")
	}
	if len(raw) == 0 {
		return nil, "", fmt.Errorf("empty file payload")
	}
	return raw, contentType, nil
}
