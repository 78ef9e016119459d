package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned when a stored name does not exist.
var ErrObjectNotFound = errors.New("stored object not found")

// ErrInvalidName is returned for names that are not flat file names.
var ErrInvalidName = errors.New("invalid stored name")

// Store persists uploaded files under flat, unique names.
type Store interface {
	Save(ctx context.Context, name string, r io.Reader) (int64, error)
	Open(ctx context.Context, name string) (*Object, error)
	Delete(ctx context.Context, name string) error
}

// Object is an opened stored file. Callers must Close it.
type Object struct {
	Name        string
	Size        int64
	ModTime     time.Time
	ContentType string
	Reader      io.ReadCloser
}

// Read implements io.Reader.
func (o *Object) Read(p []byte) (int, error) {
	return o.Reader.Read(p)
}

// Close releases the underlying reader.
func (o *Object) Close() error {
	if o == nil || o.Reader == nil {
		return nil
	}
	return o.Reader.Close()
}

// Seeker returns the reader as an io.ReadSeeker when the driver supports
// random access, enabling byte-range responses.
func (o *Object) Seeker() (io.ReadSeeker, bool) {
	rs, ok := o.Reader.(io.ReadSeeker)
	return rs, ok
}

// Extension returns the lower-cased extension of name without the dot.
func Extension(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// GenerateName returns <epoch-millis>-<uuid>.<ext> for the original file name.
func GenerateName(original string) string {
	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString())
	if ext := Extension(original); ext != "" {
		name += "." + ext
	}
	return name
}

// SaveUnique stores r under a freshly generated name derived from original.
func SaveUnique(ctx context.Context, s Store, original string, r io.Reader) (string, int64, error) {
	name := GenerateName(original)
	size, err := s.Save(ctx, name, r)
	if err != nil {
		return "", 0, err
	}
	return name, size, nil
}

// validateName accepts flat names only. Dot-prefixed names are reserved for
// in-flight uploads and are never served.
func validateName(name string) error {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
