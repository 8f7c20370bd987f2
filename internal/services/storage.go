// Google Cloud Storage implementation of [CacheStore]
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
)

// BucketStore mirrors the token cache to a single object in a GCS bucket.
//
// Credentials come from the environment (GOOGLE_APPLICATION_CREDENTIALS or the runtime service account).
type BucketStore struct {
	client *storage.Client
	bucket string
	key    string

	attrs     func(ctx context.Context) (*storage.ObjectAttrs, error)
	newReader func(ctx context.Context) (io.ReadCloser, error)
	newWriter func(ctx context.Context) io.WriteCloser
}

// NewBucketStore creates a storage client and resolves the object named key in bucket.
func NewBucketStore(ctx context.Context, bucket, key string) (*BucketStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	obj := client.Bucket(bucket).Object(key)
	return &BucketStore{
		client: client,
		bucket: bucket,
		key:    key,
		attrs:  obj.Attrs,
		newReader: func(ctx context.Context) (io.ReadCloser, error) {
			return obj.NewReader(ctx)
		},
		newWriter: func(ctx context.Context) io.WriteCloser {
			w := obj.NewWriter(ctx)
			w.ContentType = "application/json"
			return w
		},
	}, nil
}

// String returns the gs:// URL of the object.
func (b *BucketStore) String() string {
	return fmt.Sprintf("gs://%s/%s", b.bucket, b.key)
}

// Exists reports whether the object is present in the bucket.
func (b *BucketStore) Exists(ctx context.Context) (bool, error) {
	_, err := b.attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", b, err)
	}
	return true, nil
}

// Download copies the object to the file at path.
func (b *BucketStore) Download(ctx context.Context, path string) error {
	r, err := b.newReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", b, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", b, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Upload overwrites the object with the contents of the file at path.
func (b *BucketStore) Upload(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	w := b.newWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write %s: %w", b, err)
	}
	// The object is only committed on Close.
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to upload %s: %w", b, err)
	}
	return nil
}

// Close releases the storage client.
func (b *BucketStore) Close() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}
