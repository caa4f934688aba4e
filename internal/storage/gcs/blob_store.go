// Package gcs stores crawl reports in Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

// Config names the destination bucket.
type Config struct {
	Bucket string
}

// BlobStore uploads reports to one bucket.
type BlobStore struct {
	bucket *storage.BucketHandle
	name   string
}

// New validates cfg and binds the store to its bucket.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	name := strings.TrimSpace(cfg.Bucket)
	if name == "" {
		return nil, errors.New("bucket name is required")
	}
	return &BlobStore{bucket: client.Bucket(name), name: name}, nil
}

// Bucket returns the bucket name.
func (s *BlobStore) Bucket() string {
	return s.name
}

// PutObject uploads r as object p and returns its gs:// URI. An existing
// object is replaced.
func (s *BlobStore) PutObject(ctx context.Context, p string, contentType string, r io.Reader) (string, error) {
	object, err := objectName(p)
	if err != nil {
		return "", err
	}
	w := s.bucket.Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		return "", errors.Join(fmt.Errorf("upload %s: %w", object, err), w.Close())
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finish upload %s: %w", object, err)
	}
	return URI(s.name, object), nil
}

// objectName cleans p into a bucket-relative name.
func objectName(p string) (string, error) {
	object := strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(p)), "/")
	if object == "" {
		return "", errors.New("object path is required")
	}
	return object, nil
}

// URI formats the gs:// address of an object.
func URI(bucket, object string) string {
	return "gs://" + bucket + "/" + object
}

// ParseURI splits gs://bucket/object into its bucket and object name.
func ParseURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// uri: %q", uri)
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" || object == "" {
		return "", "", fmt.Errorf("gs uri %q needs a bucket and an object name", uri)
	}
	return bucket, object, nil
}
