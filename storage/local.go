package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore writes blobs under a root directory on local disk.
type LocalStore struct {
	root     string
	maxBytes int64
	now      func() time.Time
}

// NewLocalStore creates root if needed. maxBytes <= 0 disables the size limit.
func NewLocalStore(root string, maxBytes int64) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{root: abs, maxBytes: maxBytes, now: time.Now}, nil
}

// Root returns the absolute upload directory.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) Store(ctx context.Context, r io.Reader, meta BlobMeta) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.maxBytes > 0 && meta.Size > s.maxBytes {
		return "", ErrTooLarge
	}
	key := objectKey(s.now(), meta.FileName)
	full := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(full)
		if err == ErrTooLarge {
			return "", err
		}
		return "", fmt.Errorf("write blob: %w", err)
	}
	return key, nil
}

func (s *LocalStore) Delete(ctx context.Context, location string) error {
	full, err := s.resolve(location)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

func (s *LocalStore) resolve(location string) (string, error) {
	if location == "" || filepath.IsAbs(location) {
		return "", ErrInvalidLocation
	}
	full := filepath.Join(s.root, filepath.FromSlash(location))
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", ErrInvalidLocation
	}
	return full, nil
}
