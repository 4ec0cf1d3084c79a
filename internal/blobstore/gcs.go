package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

var _ ObjectStore = (*GCSStore)(nil)

// GCSOptions configures a GCSStore. Without CredentialsFile the application
// default credentials are used. Endpoint targets an emulator and disables
// authentication.
type GCSOptions struct {
	Bucket          string
	CredentialsFile string
	Endpoint        string
}

// GCSStore keeps objects in one Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a GCSStore.
func NewGCSStore(ctx context.Context, opts GCSOptions) (*GCSStore, error) {
	if opts.Bucket == "" {
		return nil, errors.New("gcs blob store: bucket is required")
	}

	var clientOpts []option.ClientOption
	switch {
	case opts.Endpoint != "":
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint), option.WithoutAuthentication())
	case opts.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithAuthCredentialsFile(option.ServiceAccount, opts.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSStore{client: client, bucket: opts.Bucket}, nil
}

// Put implements ObjectStore.
func (s *GCSStore) Put(ctx context.Context, key string, data []byte) error {
	if _, err := cleanKey(key); err != nil {
		return err
	}
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("put gs://%s/%s: %w", s.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("put gs://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Get implements ObjectStore.
func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	if _, err := cleanKey(key); err != nil {
		return nil, err
	}
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("get gs://%s/%s: %w", s.bucket, key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("get gs://%s/%s: %w", s.bucket, key, err)
	}
	defer r.Close() //nolint:errcheck

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}

// Delete implements ObjectStore.
func (s *GCSStore) Delete(ctx context.Context, key string) error {
	if _, err := cleanKey(key); err != nil {
		return err
	}
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete gs://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Close releases the client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
