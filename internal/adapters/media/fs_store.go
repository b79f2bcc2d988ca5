package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

// FSStore keeps correspondence photos as plain files under one directory.
// Writes go through a temp file and a rename so a reader never sees a
// partial image.
type FSStore struct {
	dir string
}

func NewFSStore(dir string) (*FSStore, error) {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create photo directory: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) Put(ctx context.Context, name, _ string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp photo: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write photo: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close photo: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("store photo: %w", err)
	}
	return nil
}

// Open returns the file and a content type derived from its extension. The
// returned *os.File is seekable, so HTTP range requests work.
func (s *FSStore) Open(ctx context.Context, name string) (io.ReadCloser, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	path, err := s.path(name)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("photo %s: %w", name, domain.ErrNotFound)
		}
		return nil, "", fmt.Errorf("open photo: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return f, contentType, nil
}

func (s *FSStore) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", domain.NewValidationError("name", "invalid photo name")
	}
	return filepath.Join(s.dir, name), nil
}
