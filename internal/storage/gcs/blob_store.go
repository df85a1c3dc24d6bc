// Package gcs implements news.BlobStore on Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// BlobStore writes objects into one GCS bucket. Authentication uses
// Application Default Credentials.
type BlobStore struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

// New initializes the client and fails fast when the bucket is missing or
// inaccessible.
func New(ctx context.Context, bucket string, logger *zap.Logger) (*BlobStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		closeErr := client.Close()
		if closeErr != nil {
			logger.Warn("failed to close storage client", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("access bucket %q: %w", bucket, err)
	}
	return &BlobStore{client: client, bucket: bucket, logger: logger}, nil
}

// PutObject uploads data and returns the object's gs:// URI.
func (b *BlobStore) PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	wc := b.client.Bucket(b.bucket).Object(path).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		closeErr := wc.Close()
		if closeErr != nil {
			b.logger.Warn("failed to close object writer after write failure", zap.Error(closeErr))
		}
		return "", fmt.Errorf("write object %s: %w", path, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("finalize object %s: %w", path, err)
	}
	return fmt.Sprintf("gs://%s/%s", b.bucket, path), nil
}

// Close releases the underlying client.
func (b *BlobStore) Close() error {
	return b.client.Close()
}
