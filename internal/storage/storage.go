package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrSizeMismatch   = errors.New("object size mismatch")
)

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// DatasetStore moves benchmark input files between an object store and the
// local disk. Relations are only ever registered over local copies.
type DatasetStore interface {
	// Fetch downloads key into the local file dst. It fails with
	// ErrSizeMismatch when the local copy is not as long as the stored object.
	Fetch(ctx context.Context, key, dst string) (ObjectInfo, error)
	// UploadCSV stores the local file src under key as text/csv.
	UploadCSV(ctx context.Context, key, src string) (ObjectInfo, error)
}
