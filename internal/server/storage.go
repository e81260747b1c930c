package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"govrfp/internal/config"
)

// ErrOutsideUploadDir is returned when a name would resolve outside the
// upload directory. SanitizeFilename output never triggers it.
var ErrOutsideUploadDir = errors.New("path escapes upload directory")

// Store persists accepted uploads under their sanitized name. Saving a name
// that already exists replaces it (last write wins).
type Store interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (int64, error)
	Ready(ctx context.Context) error
	Location() string
}

// OpenStore builds the backend selected by cfg.Storage.
func OpenStore(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.Storage.Backend {
	case "", "disk":
		return NewDiskStore(cfg.Upload.Dir)
	case "minio":
		return NewMinioStore(ctx, cfg.Storage)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// DiskStore writes uploads as plain files in one directory.
type DiskStore struct {
	dir string
}

// NewDiskStore creates dir if needed and returns a store rooted at its
// absolute path.
func NewDiskStore(dir string) (*DiskStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{dir: abs}, nil
}

func (s *DiskStore) Location() string { return s.dir }

// Path returns the absolute path name is stored at.
func (s *DiskStore) Path(name string) (string, error) {
	p := filepath.Join(s.dir, name)
	rel, err := filepath.Rel(s.dir, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideUploadDir, name)
	}
	return p, nil
}

// Save streams r into a temporary file next to the destination and renames
// it into place, so a failed or rejected upload never leaves a partial file
// under the final name.
func (s *DiskStore) Save(ctx context.Context, name, _ string, r io.Reader) (int64, error) {
	dst, err := s.Path(name)
	if err != nil {
		return 0, err
	}

	tmp := filepath.Join(s.dir, tempUploadPrefix+uuid.NewString()+".part")
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = os.Remove(tmp)
		return n, fmt.Errorf("write upload: %w", err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return n, fmt.Errorf("move upload into place: %w", err)
	}
	return n, nil
}

// Ready checks that the upload directory exists and accepts new files.
func (s *DiskStore) Ready(_ context.Context) error {
	fi, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	f, err := os.CreateTemp(s.dir, ".ready-*")
	if err != nil {
		return fmt.Errorf("upload dir not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
