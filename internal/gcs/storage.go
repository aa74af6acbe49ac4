// Package gcs wraps the object storage used for source exports, processed
// artifacts and classifier models.
package gcs

import (
	"context"
	"errors"
	"time"
)

// ErrObjectNotFound is returned when the requested object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo is the subset of object attributes the pipeline relies on.
type ObjectInfo struct {
	Name       string
	Updated    time.Time
	Generation int64
	Size       int64
}

// Storage provides an interface for object storage operations.
// Names are either object paths inside the configured bucket or full
// gs://bucket/object URIs.
type Storage interface {
	// Read downloads the full content of an object.
	Read(ctx context.Context, name string) ([]byte, error)

	// Stat returns object attributes without downloading the content.
	Stat(ctx context.Context, name string) (ObjectInfo, error)

	// Write stores data under name, replacing any previous content.
	Write(ctx context.Context, name string, data []byte, contentType string) error
}
