package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

const gcsPublicHost = "https://storage.googleapis.com"

var _ ObjectStore = (*GCSStorage)(nil)

type GCSStorage struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCSStorage(ctx context.Context, bucket, prefix string) (*GCSStorage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStorage{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (s *GCSStorage) Close() error {
	return s.client.Close()
}

func (s *GCSStorage) Put(ctx context.Context, name string, r io.Reader, contentType string) (string, error) {
	objectName := s.objectName(name)

	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize object: %w", err)
	}

	return s.publicURL(objectName), nil
}

func (s *GCSStorage) IsOwnedURL(url string) bool {
	return isOwnedGCSURL(s.bucket, url)
}

func (s *GCSStorage) objectName(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *GCSStorage) publicURL(objectName string) string {
	return fmt.Sprintf("%s/%s/%s", gcsPublicHost, s.bucket, objectName)
}

func isOwnedGCSURL(bucket, url string) bool {
	if bucket == "" || url == "" {
		return false
	}
	return strings.HasPrefix(url, fmt.Sprintf("%s/%s/", gcsPublicHost, bucket)) ||
		strings.HasPrefix(url, fmt.Sprintf("https://%s.storage.googleapis.com/", bucket)) ||
		strings.HasPrefix(url, fmt.Sprintf("gs://%s/", bucket))
}
