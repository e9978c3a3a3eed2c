package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore writes objects to a Google Cloud Storage bucket.
type GCSStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// NewGCSStore prefers application default credentials; explicit service
// account JSON is used when configured.
func NewGCSStore(ctx context.Context, cfg Config) (*GCSStore, error) {
	if cfg.GCSBucket == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}

	var opts []option.ClientOption
	if credJSON := strings.TrimSpace(cfg.GCSCredentialsJSON); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	baseURL := cfg.AccessBaseURL
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + cfg.GCSBucket
	}
	return &GCSStore{client: client, bucket: cfg.GCSBucket, baseURL: baseURL}, nil
}

func (s *GCSStore) PutImage(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	wc := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return "", fmt.Errorf("failed to upload %s to GCS: %w", key, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize %s in GCS: %w", key, err)
	}
	return BuildAccessURL(s.baseURL, key), nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
