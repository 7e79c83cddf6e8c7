package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

const (
	keyPrefix = "reports/"
	keySuffix = ".pdf"

	// PDFContentType is stored with every report object.
	PDFContentType = "application/pdf"
)

var (
	ErrTooLarge   = errors.New("storage: object exceeds size limit")
	ErrNotFound   = errors.New("storage: object not found")
	ErrInvalidKey = errors.New("storage: invalid object key")
)

// Object describes a stored report file.
type Object struct {
	Key  string
	Size int64
}

// ReportStore persists report PDFs. Save streams r and never buffers the
// whole file; a failed Save leaves nothing behind.
type ReportStore interface {
	Save(ctx context.Context, r io.Reader, limit int64) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// NewKey returns a fresh opaque key for a report object.
func NewKey() string {
	return keyPrefix + uuid.NewString() + keySuffix
}

// ValidateKey rejects keys that were not produced by NewKey.
func ValidateKey(key string) error {
	if !strings.HasPrefix(key, keyPrefix) || !strings.HasSuffix(key, keySuffix) {
		return ErrInvalidKey
	}
	if path.Clean(key) != key {
		return ErrInvalidKey
	}
	id := strings.TrimSuffix(strings.TrimPrefix(key, keyPrefix), keySuffix)
	if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
		return ErrInvalidKey
	}
	return nil
}

// capReader fails with ErrTooLarge once more than limit bytes are read.
type capReader struct {
	r         io.Reader
	remaining int64
	n         int64
	exceeded  bool
}

func newCapReader(r io.Reader, limit int64) *capReader {
	return &capReader{r: r, remaining: limit}
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.exceeded {
		return 0, ErrTooLarge
	}
	if c.remaining <= 0 {
		var extra [1]byte
		n, err := c.r.Read(extra[:])
		if n > 0 {
			c.exceeded = true
			return 0, ErrTooLarge
		}
		return 0, err
	}
	if int64(len(p)) > c.remaining {
		p = p[:c.remaining]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	c.n += int64(n)
	return n, err
}
