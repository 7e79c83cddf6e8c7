package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore saves report files to disk under a base directory.
type FileStore struct {
	basePath string
}

// NewFileStore creates the base directory if missing.
func NewFileStore(basePath string) (*FileStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(filepath.Join(basePath, keyPrefix), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// Save streams r into a new object, writing through a partial file that is
// renamed only once the copy succeeds.
func (f *FileStore) Save(ctx context.Context, r io.Reader, limit int64) (Object, error) {
	key := NewKey()
	target := f.path(key)
	partial := target + ".partial"

	out, err := os.OpenFile(partial, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Object{}, fmt.Errorf("create file: %w", err)
	}
	src := newCapReader(contextReader{ctx: ctx, r: r}, limit)
	buf := make([]byte, 32*1024)
	_, copyErr := io.CopyBuffer(out, src, buf)
	closeErr := out.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(partial)
		if src.exceeded {
			return Object{}, ErrTooLarge
		}
		return Object{}, fmt.Errorf("write file: %w", copyErr)
	}
	if err := os.Rename(partial, target); err != nil {
		_ = os.Remove(partial)
		return Object{}, fmt.Errorf("commit file: %w", err)
	}
	return Object{Key: key, Size: src.n}, nil
}

// Open returns a reader over a stored report.
func (f *FileStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	file, err := os.Open(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return file, nil
}

// Delete removes a stored report. Missing files are not an error.
func (f *FileStore) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.basePath, filepath.FromSlash(key))
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
