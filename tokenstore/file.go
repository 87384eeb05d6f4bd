package tokenstore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore persists the token as a single file, the host persistent storage
// of a desktop deployment. Writes go through a temp file and rename so a
// crash mid-write never leaves a torn token behind.
type FileStore struct {
	Path string
}

// NewFileStore creates a file-backed store at path. An empty path places the
// token under the user config directory.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(base, "sentinel", DefaultKey)
	}
	return &FileStore{Path: path}, nil
}

// Get returns the stored token.
func (s *FileStore) Get(_ context.Context) (string, bool, error) {
	payload, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	token := strings.TrimSpace(string(payload))
	if token == "" {
		return "", false, nil
	}
	return token, true, nil
}

// Set stores the token.
func (s *FileStore) Set(_ context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.Path), ".token-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.Path)
}

// Clear removes the stored token.
func (s *FileStore) Clear(_ context.Context) error {
	err := os.Remove(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
