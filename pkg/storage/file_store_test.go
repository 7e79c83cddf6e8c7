package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileStoreSaveOpenDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	payload := []byte("%PDF-1.4 body")
	obj, err := s.Save(context.Background(), bytes.NewReader(payload), 1024)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if obj.Size != int64(len(payload)) {
		t.Fatalf("unexpected size %d", obj.Size)
	}
	if err := ValidateKey(obj.Key); err != nil {
		t.Fatalf("generated key invalid: %v", err)
	}

	rc, err := s.Open(context.Background(), obj.Key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(got, payload) {
		t.Fatalf("unexpected content %q", got)
	}

	if err := s.Delete(context.Background(), obj.Key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Open(context.Background(), obj.Key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := s.Delete(context.Background(), obj.Key); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
}

func TestFileStoreRejectsOversizedUploadAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	_, err = s.Save(context.Background(), strings.NewReader(strings.Repeat("x", 101)), 100)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "reports"))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no leftovers, found %d entries", len(entries))
	}

	obj, err := s.Save(context.Background(), strings.NewReader(strings.Repeat("x", 100)), 100)
	if err != nil {
		t.Fatalf("exact limit should pass: %v", err)
	}
	if obj.Size != 100 {
		t.Fatalf("unexpected size %d", obj.Size)
	}
}

func TestFileStoreStopsOnCancelledContext(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Save(ctx, strings.NewReader("data"), 100); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestValidateKey(t *testing.T) {
	cases := []struct {
		key string
		ok  bool
	}{
		{NewKey(), true},
		{"reports/../../etc/passwd.pdf", false},
		{"reports/not-a-uuid.pdf", false},
		{"other/3f1c2b8e-7f55-4a4e-9a0d-1d3b2e6c9f10.pdf", false},
		{"reports/3f1c2b8e-7f55-4a4e-9a0d-1d3b2e6c9f10.txt", false},
		{"reports/3f1c2b8e-7f55-4a4e-9a0d-1d3b2e6c9f10.pdf", true},
	}
	for _, tc := range cases {
		err := ValidateKey(tc.key)
		if tc.ok && err != nil {
			t.Fatalf("%q: unexpected error %v", tc.key, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("%q: expected ErrInvalidKey, got %v", tc.key, err)
		}
	}
}
