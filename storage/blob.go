// Package storage keeps attachment bytes outside the database. Callers only
// ever see an opaque location string.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrTooLarge is returned when an upload exceeds the configured size limit.
var ErrTooLarge = errors.New("storage: blob exceeds size limit")

// ErrInvalidLocation is returned for locations this store did not produce.
var ErrInvalidLocation = errors.New("storage: invalid blob location")

// BlobMeta describes the upload being stored.
type BlobMeta struct {
	FileName string
	MimeType string
	Size     int64
}

// BlobStore persists raw attachment bytes.
type BlobStore interface {
	// Store copies r and returns the location of the new blob.
	Store(ctx context.Context, r io.Reader, meta BlobMeta) (string, error)
	Delete(ctx context.Context, location string) error
}

// objectKey derives a collision free key grouped by upload day.
func objectKey(now time.Time, fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == 0:
			return -1
		case r < 0x20:
			return '_'
		}
		return r
	}, base)
	if base == "." || base == "" {
		base = "file"
	}
	return path.Join(now.UTC().Format("2006/01/02"), uuid.NewString()+"_"+base)
}
