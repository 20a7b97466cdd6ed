package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/neuroshield/scan-api/pkg/errors"
)

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".dcm":  true,
}

// LocalStore writes blobs to a directory on disk. Keys are generated uuids
// with a sanitized extension, never the client-supplied filename, so keys
// cannot collide or traverse outside the upload directory.
type LocalStore struct {
	dir         string
	maxFileSize int64
}

func NewLocalStore(dir string, maxFileSize int64) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	if maxFileSize <= 0 {
		maxFileSize = 16 << 20
	}
	return &LocalStore{dir: dir, maxFileSize: maxFileSize}, nil
}

func (s *LocalStore) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	ext := sanitizeExtension(originalName)
	if !allowedExtensions[ext] {
		return "", apperrors.Storage(fmt.Sprintf("file type %q not allowed", ext), nil)
	}

	key := uuid.New().String() + ext
	path := filepath.Join(s.dir, key)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", apperrors.Storage("failed to create blob file", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxFileSize+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > s.maxFileSize {
		err = fmt.Errorf("file exceeds %d bytes", s.maxFileSize)
	}
	if err == nil && n == 0 {
		err = fmt.Errorf("empty file")
	}
	if err != nil {
		os.Remove(path)
		return "", apperrors.Storage("failed to store image", err)
	}

	return key, nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFound("image", err)
		}
		return nil, apperrors.Storage("failed to open blob", err)
	}
	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return apperrors.Storage("failed to delete blob", err)
	}
	return nil
}

// resolve rejects keys that would escape the upload directory.
func (s *LocalStore) resolve(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.Contains(key, "..") {
		return "", apperrors.Storage("invalid blob key", nil)
	}
	return filepath.Join(s.dir, key), nil
}

func sanitizeExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	var b strings.Builder
	for _, r := range ext {
		if r == '.' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
