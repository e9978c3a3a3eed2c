// Package storage uploads product images to GCS or S3.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Provider names accepted by New.
const (
	ProviderGCS = "gcs"
	ProviderS3  = "s3"
)

// Config selects and configures the object store.
type Config struct {
	Provider string

	// Public URL prefix for stored objects. May contain {objectKey}.
	AccessBaseURL string

	GCSBucket          string
	GCSCredentialsJSON string

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3Secret    string
}

// ObjectStore is an image destination returning a public URL per object.
type ObjectStore interface {
	PutImage(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Close() error
}

// New builds the object store named by cfg.Provider.
func New(ctx context.Context, cfg Config) (ObjectStore, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderGCS:
		return NewGCSStore(ctx, cfg)
	case ProviderS3:
		return NewS3Store(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
}

// ImageKey is the object key for one image of a product.
func ImageKey(tenantID, productID, name, ext string) string {
	return fmt.Sprintf("%s/products/%s/%s%s", tenantID, productID, name, ext)
}

// BuildAccessURL joins a base URL and an object key. A base containing
// {objectKey} is treated as a template; a base with a query string gets the
// escaped key appended.
func BuildAccessURL(base, objectKey string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return objectKey
	}
	if strings.Contains(base, "{objectKey}") {
		escaped := objectKey
		if strings.Contains(base, "?") {
			escaped = url.QueryEscape(objectKey)
		}
		return strings.ReplaceAll(base, "{objectKey}", escaped)
	}
	if strings.Contains(base, "?") {
		return base + url.QueryEscape(objectKey)
	}
	return strings.TrimRight(base, "/") + "/" + objectKey
}
