package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalBackend persists attachments on disk under a base directory, with a
// sibling archive directory for replaced files.
type LocalBackend struct {
	baseDir    string
	archiveDir string
}

// NewLocalBackend ensures both directories exist and returns a handle.
func NewLocalBackend(baseDir, archiveDir string) (*LocalBackend, error) {
	if baseDir == "" {
		baseDir = "./uploads/notice"
	}
	if archiveDir == "" {
		archiveDir = filepath.Join(baseDir, "archive")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &LocalBackend{baseDir: baseDir, archiveDir: archiveDir}, nil
}

// Store copies the stream into baseDir/key.
func (s *LocalBackend) Store(ctx context.Context, key string, r io.Reader) (Descriptor, error) {
	path := filepath.Join(s.baseDir, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Descriptor{}, fmt.Errorf("prepare upload directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("create upload file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		return Descriptor{}, fmt.Errorf("write upload stream: %w", err)
	}
	return Descriptor{Locator: path, Key: key}, nil
}

// Open returns a read-only handle for the stored file.
func (s *LocalBackend) Open(ctx context.Context, d Descriptor) (io.ReadCloser, error) {
	file, err := os.Open(d.Locator)
	if err != nil {
		return nil, fmt.Errorf("open upload file: %w", err)
	}
	return file, nil
}

// Archive moves the file into the archive directory under its key.
func (s *LocalBackend) Archive(ctx context.Context, d Descriptor) error {
	target := filepath.Join(s.archiveDir, filepath.Base(d.Key))
	if err := os.Rename(d.Locator, target); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("archive upload file: %w", err)
	}
	return nil
}

// Delete removes the primary file if present.
func (s *LocalBackend) Delete(ctx context.Context, d Descriptor) error {
	if err := os.Remove(d.Locator); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload file: %w", err)
	}
	return nil
}

// DeleteArchived removes the archived copy for key, if one exists.
func (s *LocalBackend) DeleteArchived(ctx context.Context, key string) error {
	target := filepath.Join(s.archiveDir, filepath.Base(key))
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete archived file: %w", err)
	}
	return nil
}
