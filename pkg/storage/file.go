package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileMedium stores one file per blob under a base directory.
type FileMedium struct {
	basePath string
}

// NewFileMedium creates the base directory if missing.
func NewFileMedium(basePath string) (*FileMedium, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileMedium{basePath: basePath}, nil
}

// Get reads the blob file for key.
func (f *FileMedium) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

// Set writes the blob to a temp file and renames it into place so readers
// never observe a half-written blob.
func (f *FileMedium) Set(_ context.Context, key string, value []byte) error {
	tmp, err := os.CreateTemp(f.basePath, ".blob-*")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename blob: %w", err)
	}
	return nil
}

// Close is a no-op.
func (f *FileMedium) Close() error {
	return nil
}

// path escapes the key so "likedMessages:<browser>" and similar keys map to a
// single flat file name.
func (f *FileMedium) path(key string) string {
	name := url.PathEscape(key)
	if name == "" || name == "." || name == ".." {
		name = "_" + name
	}
	return filepath.Join(f.basePath, name+".json")
}
