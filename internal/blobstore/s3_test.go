package blobstore_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbunify/internal/blobstore"
	"dbunify/internal/domain"
)

// fakeS3 serves path-style PUT/GET/DELETE for a single bucket.
type fakeS3 struct {
	bucket  string
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	prefix := "/" + f.bucket + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.Error(w, "wrong bucket", http.StatusBadRequest)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, prefix)

	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		f.objects[key] = body
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
				`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

func TestS3Store_AgainstCompatibleEndpoint(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{bucket: "sessions", objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s3store, err := blobstore.NewS3Store(ctx, blobstore.S3Options{
		Bucket:   "sessions",
		Region:   "eu-central",
		Endpoint: srv.URL,
		KeyID:    "test-key",
		Secret:   "test-secret",
	})
	require.NoError(t, err)

	_, err = s3store.Get(ctx, "missing.bin")
	require.ErrorIs(t, err, blobstore.ErrObjectNotFound)

	store := blobstore.NewStore(s3store, "user-1", nil)
	in := []domain.SourceImage{{Name: "a.db", Data: []byte("alpha")}, {Name: "b.db", Data: []byte("beta")}}
	require.NoError(t, store.Save(ctx, in))
	assert.Contains(t, fake.objects, "user-1/manifest.json")

	out, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	require.NoError(t, store.Clear(ctx))
	assert.Empty(t, fake.objects)
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := blobstore.NewS3Store(context.Background(), blobstore.S3Options{})
	require.Error(t, err)
}
