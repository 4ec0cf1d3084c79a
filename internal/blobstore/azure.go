package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

var _ ObjectStore = (*AzureStore)(nil)

// AzureOptions configures an AzureStore with shared-key authentication.
// ServiceURL defaults to https://<account>.blob.core.windows.net.
type AzureOptions struct {
	AccountName string
	AccountKey  string
	Container   string
	ServiceURL  string
}

// AzureStore keeps objects in one Azure Blob Storage container.
type AzureStore struct {
	client    *azblob.Client
	container string
}

// NewAzureStore creates an AzureStore.
func NewAzureStore(opts AzureOptions) (*AzureStore, error) {
	if opts.Container == "" {
		return nil, errors.New("azure blob store: container is required")
	}
	if opts.AccountName == "" || opts.AccountKey == "" {
		return nil, errors.New("azure blob store: account name and key are required")
	}

	cred, err := azblob.NewSharedKeyCredential(opts.AccountName, opts.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}
	serviceURL := opts.ServiceURL
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", opts.AccountName)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &AzureStore{client: client, container: opts.Container}, nil
}

// Put implements ObjectStore.
func (s *AzureStore) Put(ctx context.Context, key string, data []byte) error {
	if _, err := cleanKey(key); err != nil {
		return err
	}
	if _, err := s.client.UploadBuffer(ctx, s.container, key, data, nil); err != nil {
		return fmt.Errorf("put azure %s/%s: %w", s.container, key, err)
	}
	return nil
}

// Get implements ObjectStore.
func (s *AzureStore) Get(ctx context.Context, key string) ([]byte, error) {
	if _, err := cleanKey(key); err != nil {
		return nil, err
	}
	resp, err := s.client.DownloadStream(ctx, s.container, key, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return nil, fmt.Errorf("get azure %s/%s: %w", s.container, key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("get azure %s/%s: %w", s.container, key, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read azure %s/%s: %w", s.container, key, err)
	}
	return data, nil
}

// Delete implements ObjectStore.
func (s *AzureStore) Delete(ctx context.Context, key string) error {
	if _, err := cleanKey(key); err != nil {
		return err
	}
	if _, err := s.client.DeleteBlob(ctx, s.container, key, nil); err != nil && !isAzureNotFound(err) {
		return fmt.Errorf("delete azure %s/%s: %w", s.container, key, err)
	}
	return nil
}

func isAzureNotFound(err error) bool {
	return bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound)
}
