package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// IsNotFound reports whether err means the bucket or object does not exist.
func IsNotFound(err error) bool {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return true
	}
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

// StorageSource reads archive intake objects from Cloud Storage.
type StorageSource struct {
	client *storage.Client
}

func NewStorageSource(ctx context.Context) (*StorageSource, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	return &StorageSource{client: client}, nil
}

// Download streams gs://bucket/object into destPath and returns the number of
// bytes written. A partially written file is removed on failure.
func (s *StorageSource) Download(ctx context.Context, bucket, object, destPath string) (int64, error) {
	gcsReader, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer gcsReader.Close()

	localFile, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file at %s: %w", destPath, err)
	}
	n, copyErr := io.Copy(localFile, gcsReader)
	closeErr := localFile.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.Remove(destPath)
		return 0, fmt.Errorf("failed to copy GCS object to local file: %w", copyErr)
	}
	return n, nil
}

// List returns the names of all objects under prefix, skipping directory
// placeholders.
func (s *StorageSource) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate objects in gs://%s/%s: %w", bucket, prefix, err)
		}
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

func (s *StorageSource) Close() error {
	return s.client.Close()
}
