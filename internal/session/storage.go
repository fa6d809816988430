package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// photoExtensions are the upload extensions kept on stored photos
var photoExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".heic": true, ".heif": true, ".pdf": true,
}

// Storage defines the interface for receipt photo storage
type Storage interface {
	// Save stores a session's photo and returns its name
	Save(key, filename string, data []byte) (string, error)

	// Get retrieves a stored photo
	Get(name string) ([]byte, error)

	// Delete removes a stored photo. Missing photos are not an error.
	Delete(name string) error
}

// LocalStorage implements Storage on the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// photoName names the photo after its session; the upload's own name is
// dropped apart from a known extension
func photoName(key, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if !photoExtensions[ext] {
		ext = ""
	}
	return key + ext
}

func (l *LocalStorage) path(name string) string {
	return filepath.Join(l.basePath, filepath.Base(name))
}

// Save writes the photo
func (l *LocalStorage) Save(key, filename string, data []byte) (string, error) {
	name := photoName(key, filename)
	if err := os.WriteFile(l.path(name), data, 0600); err != nil {
		return "", fmt.Errorf("writing photo: %w", err)
	}
	return name, nil
}

// Get reads a photo
func (l *LocalStorage) Get(name string) ([]byte, error) {
	data, err := os.ReadFile(l.path(name))
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}
	return data, nil
}

// Delete removes a photo
func (l *LocalStorage) Delete(name string) error {
	if err := os.Remove(l.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting photo: %w", err)
	}
	return nil
}
