package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-resource-api/pkg/config"
)

func TestEmulatorEndpoint(t *testing.T) {
	require.Equal(t, "", emulatorEndpoint("  "))
	require.Equal(t, "http://localhost:4443/storage/v1/", emulatorEndpoint("localhost:4443"))
	require.Equal(t, "http://gcs:4443/storage/v1/", emulatorEndpoint("http://gcs:4443/"))
	require.Equal(t, "https://fake.test/storage/v1/", emulatorEndpoint("https://fake.test/storage/v1"))
}

func TestGCSStorageFailedCopyCommitsNothing(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"bucket":"resources","name":"broken.pdf","size":"0"}`)
	}))
	defer srv.Close()

	store, err := NewGCSStorage(context.Background(), config.StorageConfig{GCSBucket: "resources", GCSEndpoint: srv.URL})
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Save(context.Background(), "broken.pdf", failingReader{})
	require.Error(t, err)
	require.Zero(t, requests.Load(), "a failed copy must not reach the bucket")
}
