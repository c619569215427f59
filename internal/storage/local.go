// Package storage keeps uploaded attachment bytes on the local filesystem.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrTooLarge = errors.New("storage: file too large")
	ErrNotFound = errors.New("storage: file not found")
)

type Local struct {
	root string
}

// Stored describes a file written by Save. Path is relative to the root.
type Stored struct {
	Path     string
	Size     int64
	MimeType string
}

func New(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &Local{root: root}, nil
}

func (l *Local) Root() string {
	return l.root
}

// Save copies at most maxBytes from r into a new uniquely named file that
// keeps the extension of filename. Larger input is removed and ErrTooLarge
// returned.
func (l *Local) Save(r io.Reader, filename string, maxBytes int64) (*Stored, error) {
	name := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	full := filepath.Join(l.root, name)

	dst, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	n, err := io.Copy(dst, io.LimitReader(r, maxBytes+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(full)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}
	if n > maxBytes {
		os.Remove(full)
		return nil, ErrTooLarge
	}

	mime, err := mimetype.DetectFile(full)
	if err != nil {
		os.Remove(full)
		return nil, fmt.Errorf("failed to detect content type: %w", err)
	}

	return &Stored{Path: name, Size: n, MimeType: mime.String()}, nil
}

// Path resolves a stored relative path, refusing anything outside the root.
func (l *Local) Path(rel string) (string, error) {
	clean := filepath.Clean(rel)
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", ErrNotFound
	}
	full := filepath.Join(l.root, clean)
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return full, nil
}

func (l *Local) Remove(rel string) error {
	full, err := l.Path(rel)
	if err != nil {
		return err
	}
	return os.Remove(full)
}
