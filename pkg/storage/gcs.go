package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/noah-isme/edu-resource-api/pkg/config"
)

// GCSStorage keeps files as flat objects in a Cloud Storage bucket.
type GCSStorage struct {
	client *gcs.Client
	bucket string
}

// NewGCSStorage connects to the configured bucket. A non-empty endpoint is
// treated as an emulator and disables authentication for this client only.
func NewGCSStorage(ctx context.Context, cfg config.StorageConfig) (*GCSStorage, error) {
	if cfg.GCSBucket == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if endpoint := emulatorEndpoint(cfg.GCSEndpoint); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	} else {
		if cfg.GCSCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
		}
		opts = append(opts, option.WithScopes(gcs.ScopeReadWrite))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSStorage{client: client, bucket: cfg.GCSBucket}, nil
}

// Save streams r into a new object. A failed copy cancels the upload, so no
// truncated object is ever committed under name.
func (s *GCSStorage) Save(ctx context.Context, name string, r io.Reader) (int64, error) {
	if err := validateName(name); err != nil {
		return 0, err
	}
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(wctx)
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		w.ContentType = ct
	}
	written, err := io.Copy(w, r)
	if err != nil {
		cancel()
		_ = w.Close()
		return 0, fmt.Errorf("write gcs object: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("close gcs writer: %w", err)
	}
	return written, nil
}

// Open returns a streaming reader for the object.
func (s *GCSStorage) Open(ctx context.Context, name string) (*Object, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	r, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("open gcs object: %w", err)
	}
	return &Object{
		Name:        name,
		Size:        r.Attrs.Size,
		ModTime:     r.Attrs.LastModified,
		ContentType: r.Attrs.ContentType,
		Reader:      r,
	}, nil
}

// Delete removes the object if present.
func (s *GCSStorage) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := s.client.Bucket(s.bucket).Object(name).Delete(ctx); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("delete gcs object: %w", err)
	}
	return nil
}

// emulatorEndpoint turns GCS_ENDPOINT (a bare host:port or a URL) into the
// JSON API base the client expects. An empty value selects production.
func emulatorEndpoint(raw string) string {
	endpoint := strings.TrimRight(strings.TrimSpace(raw), "/")
	if endpoint == "" {
		return ""
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	if !strings.HasSuffix(endpoint, "/storage/v1") {
		endpoint += "/storage/v1"
	}
	return endpoint + "/"
}

// Close releases the client.
func (s *GCSStorage) Close() error {
	return s.client.Close()
}
