package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/bankdata-pipeline/internal/logger"
)

const uploadTimeout = 2 * time.Minute

// GCSStorage implements Storage on Google Cloud Storage.
type GCSStorage struct {
	client *storage.Client
	bucket string
}

// NewGCSStorage creates a storage client scoped to bucket.
// It assumes Application Default Credentials are configured (gcloud auth application-default login).
func NewGCSStorage(ctx context.Context, bucket string) (*GCSStorage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStorage: creating storage client: %w", err)
	}
	return NewGCSStorageWithClient(client, bucket), nil
}

// NewGCSStorageWithClient wraps an existing client.
func NewGCSStorageWithClient(client *storage.Client, bucket string) *GCSStorage {
	return &GCSStorage{client: client, bucket: bucket}
}

// Close releases the underlying client.
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

// Bucket returns the default bucket name.
func (s *GCSStorage) Bucket() string {
	return s.bucket
}

func (s *GCSStorage) object(name string) (*storage.ObjectHandle, error) {
	bucket, object := s.bucket, name
	if strings.HasPrefix(name, uriScheme) {
		var err error
		bucket, object, err = ParseGCSURI(name)
		if err != nil {
			return nil, err
		}
	}
	if bucket == "" {
		return nil, fmt.Errorf("no bucket configured for object %q", name)
	}
	return s.client.Bucket(bucket).Object(object), nil
}

// Read implements Storage.
func (s *GCSStorage) Read(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.object(name)
	if err != nil {
		return nil, fmt.Errorf("Read: %w", err)
	}

	rc, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("Read: %s: %w", name, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("Read: opening object %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Read: reading bytes of %s: %w", name, err)
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("object", name).
		Int("bytes", len(data)).
		Msg("Downloaded object")

	return data, nil
}

// Stat implements Storage.
func (s *GCSStorage) Stat(ctx context.Context, name string) (ObjectInfo, error) {
	obj, err := s.object(name)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("Stat: %w", err)
	}

	attrs, err := obj.Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return ObjectInfo{}, fmt.Errorf("Stat: %s: %w", name, ErrObjectNotFound)
		}
		return ObjectInfo{}, fmt.Errorf("Stat: fetching attributes of %s: %w", name, err)
	}

	return ObjectInfo{
		Name:       attrs.Name,
		Updated:    attrs.Updated,
		Generation: attrs.Generation,
		Size:       attrs.Size,
	}, nil
}

// Write implements Storage.
func (s *GCSStorage) Write(ctx context.Context, name string, data []byte, contentType string) error {
	obj, err := s.object(name)
	if err != nil {
		return fmt.Errorf("Write: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := obj.NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("Write: writing %s: %w", name, err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("Write: finalizing %s: %w", name, err)
	}

	return nil
}

// UploadFile uploads a local file under objectName.
func (s *GCSStorage) UploadFile(ctx context.Context, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("UploadFile: open file %q: %w", filePath, err)
	}
	defer f.Close()

	obj, err := s.object(objectName)
	if err != nil {
		return fmt.Errorf("UploadFile: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := obj.NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("UploadFile: copy file to GCS writer: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("UploadFile: finalize upload: %w", err)
	}

	return nil
}
