package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var _ ObjectStore = (*LocalStorage)(nil)

type LocalStorage struct {
	dir     string
	baseURL string
}

func NewLocalStorage(dir, baseURL string) *LocalStorage {
	return &LocalStorage{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *LocalStorage) Put(_ context.Context, name string, r io.Reader, _ string) (string, error) {
	clean := filepath.Clean("/" + name)
	path := filepath.Join(s.dir, clean)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return s.baseURL + filepath.ToSlash(clean), nil
}

func (s *LocalStorage) IsOwnedURL(url string) bool {
	return s.baseURL != "" && strings.HasPrefix(url, s.baseURL+"/")
}

func (s *LocalStorage) EnsureDirectories() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	return nil
}
