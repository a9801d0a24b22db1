// Package attachments stores uploaded transaction files on local disk.
// Records keep only the generated filename; the bytes live under the
// configured upload directory.
package attachments

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrTooLarge    = errors.New("attachment too large")
	ErrNotFound    = errors.New("attachment not found")
	ErrBadFilename = errors.New("invalid attachment name")
)

type Store struct {
	dir      string
	maxBytes int64
}

// NewStore creates the upload directory if needed and returns a store.
func NewStore(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

// Save writes an uploaded file to disk under a generated name and
// returns that name. The original filename only contributes its
// extension.
func (s *Store) Save(file multipart.File, header *multipart.FileHeader) (string, error) {
	if header.Size > s.maxBytes {
		return "", ErrTooLarge
	}

	name := uuid.NewString() + sanitizeExt(header.Filename)
	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("create attachment file: %w", err)
	}
	defer dst.Close()

	// +1 so an underreported header size still cannot exceed the limit
	n, err := io.Copy(dst, io.LimitReader(file, s.maxBytes+1))
	if err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("write attachment: %w", err)
	}
	if n > s.maxBytes {
		os.Remove(dst.Name())
		return "", ErrTooLarge
	}

	return name, nil
}

// Open returns a reader for a stored attachment. The name must be a
// bare filename produced by Save; anything path-like is rejected.
func (s *Store) Open(name string) (*os.File, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	return f, nil
}

// Remove deletes a stored attachment. Missing files are not an error.
func (s *Store) Remove(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove attachment: %w", err)
	}
	return nil
}

func validName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, "/\\") {
		return ErrBadFilename
	}
	return nil
}

func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 10 {
		return ""
	}
	for _, r := range ext {
		if r != '.' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
