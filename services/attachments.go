package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/billboard/auth"
	"github.com/cppla/billboard/metrics"
	"github.com/cppla/billboard/models"
	"github.com/cppla/billboard/storage"
)

// Upload is one incoming attachment. Body is read exactly once.
type Upload struct {
	FileName string
	MimeType string
	Size     int64
	Body     io.Reader
}

// AttachmentManager owns the file side of an article: blob placement,
// binding to the article and best-effort blob release.
type AttachmentManager struct {
	blobs   storage.BlobStore
	metrics *metrics.Collector
	log     *zap.Logger
	now     func() time.Time
}

// NewAttachmentManager creates an AttachmentManager over blobs.
func NewAttachmentManager(blobs storage.BlobStore, m *metrics.Collector, log *zap.Logger) *AttachmentManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &AttachmentManager{blobs: blobs, metrics: m, log: log, now: time.Now}
}

// Store writes each upload to the blob store and returns unattached file
// rows. uploadedBy is taken from the caller identity. If any upload fails the
// blobs already written are released.
func (m *AttachmentManager) Store(ctx context.Context, uploads []Upload, uploader auth.Identity) ([]models.File, error) {
	files := make([]models.File, 0, len(uploads))
	for _, up := range uploads {
		location, err := m.blobs.Store(ctx, up.Body, storage.BlobMeta{
			FileName: up.FileName,
			MimeType: up.MimeType,
			Size:     up.Size,
		})
		if err != nil {
			m.Discard(ctx, files)
			return nil, fmt.Errorf("store %q: %w", up.FileName, err)
		}
		mime := up.MimeType
		if mime == "" {
			mime = "application/octet-stream"
		}
		files = append(files, models.File{
			FileName:    up.FileName,
			StoragePath: location,
			Size:        up.Size,
			MimeType:    mime,
			UploadedAt:  m.now().UTC(),
			UploadedBy:  uploader.Username,
		})
	}
	return files, nil
}

// Attach binds files to a; each gets the article's id as back-reference.
func (m *AttachmentManager) Attach(a *models.Article, files ...models.File) {
	for _, f := range files {
		a.AddFile(f)
	}
}

// Detach unbinds the files with the given ids from a and returns them.
// Nothing is changed when any id is not attached to a.
func (m *AttachmentManager) Detach(a *models.Article, fileIDs ...uint) ([]models.File, error) {
	verr := &ValidationError{}
	for _, id := range fileIDs {
		if _, ok := a.FileByID(id); !ok {
			verr.add("removeFileIds", "file.unknown", fmt.Sprintf("file %d is not attached to this article", id))
		}
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	removed := make([]models.File, 0, len(fileIDs))
	for _, id := range fileIDs {
		if f, ok := a.RemoveFile(id); ok {
			removed = append(removed, f)
		}
	}
	return removed, nil
}

// Discard releases the blobs behind files. Failures are logged and counted only.
func (m *AttachmentManager) Discard(ctx context.Context, files []models.File) {
	for _, f := range files {
		if f.StoragePath == "" {
			continue
		}
		if err := m.blobs.Delete(ctx, f.StoragePath); err != nil {
			m.metrics.RecordBlobCleanupFailure()
			m.log.Warn("blob cleanup failed",
				zap.Uint("file_id", f.ID),
				zap.String("location", f.StoragePath),
				zap.Error(err),
			)
		}
	}
}
