package blobstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsS3NotFound(t *testing.T) {
	assert.True(t, isS3NotFound(fmt.Errorf("op: %w", &types.NoSuchKey{})))
	assert.True(t, isS3NotFound(&types.NotFound{}))
	assert.False(t, isS3NotFound(errors.New("access denied")))
}

func TestIsAzureNotFound(t *testing.T) {
	assert.True(t, isAzureNotFound(&azcore.ResponseError{ErrorCode: string(bloberror.BlobNotFound)}))
	assert.True(t, isAzureNotFound(&azcore.ResponseError{ErrorCode: string(bloberror.ContainerNotFound)}))
	assert.False(t, isAzureNotFound(&azcore.ResponseError{ErrorCode: string(bloberror.AuthorizationFailure)}))
	assert.False(t, isAzureNotFound(errors.New("boom")))
}

func TestCloudStoreConstructorsValidate(t *testing.T) {
	_, err := NewGCSStore(context.Background(), GCSOptions{})
	require.Error(t, err)

	_, err = NewAzureStore(AzureOptions{AccountName: "acct", AccountKey: "a2V5"})
	require.Error(t, err, "container is required")

	_, err = NewAzureStore(AzureOptions{Container: "sessions"})
	require.Error(t, err, "credentials are required")

	s, err := NewAzureStore(AzureOptions{AccountName: "acct", AccountKey: "a2V5", Container: "sessions"})
	require.NoError(t, err)
	assert.Equal(t, "sessions", s.container)
}

func TestCleanKey(t *testing.T) {
	k, err := cleanKey("a/b/c.db")
	require.NoError(t, err)
	assert.Equal(t, "a/b/c.db", k)

	for _, bad := range []string{"", "/a", "a/../b", "a//b", "."} {
		_, err := cleanKey(bad)
		assert.Error(t, err, bad)
	}
}
