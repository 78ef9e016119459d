// Package upload decides whether an uploaded file may be stored. It never
// touches storage.
package upload

import (
	"fmt"
	"io"
	"mime/multipart"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/noah-isme/edu-resource-api/pkg/config"
	appErrors "github.com/noah-isme/edu-resource-api/pkg/errors"
	"github.com/noah-isme/edu-resource-api/pkg/storage"
)

// Multipart field names.
const (
	FieldFile    = "file"
	FieldPreview = "preview_image"
)

// Policy is the allow-list and size ceiling for one upload field.
type Policy struct {
	Field      string
	Extensions map[string]struct{}
	MaxBytes   int64
}

// NewPolicy normalises extensions to lower case without leading dots.
func NewPolicy(field string, extensions []string, maxBytes int64) Policy {
	return Policy{Field: field, Extensions: extensionSet(extensions), MaxBytes: maxBytes}
}

// Allows reports whether ext (without dot) is on the allow-list.
func (p Policy) Allows(ext string) bool {
	_, ok := p.Extensions[strings.ToLower(ext)]
	return ok
}

// Validate checks the declared name and size.
func (p Policy) Validate(name string, size int64) error {
	ext := storage.Extension(name)
	if ext == "" || !p.Allows(ext) {
		return unsupported(ext)
	}
	if p.MaxBytes > 0 && size > p.MaxBytes {
		return tooLarge(p.MaxBytes)
	}
	return nil
}

// Validator validates the multipart payload of a resource upload.
type Validator struct {
	File    Policy
	Preview Policy
}

// NewValidator builds the validator from configuration.
func NewValidator(cfg config.UploadsConfig) *Validator {
	return &Validator{
		File:    NewPolicy(FieldFile, cfg.ResourceExtensions, cfg.MaxRequestBytes),
		Preview: NewPolicy(FieldPreview, cfg.PreviewExtensions, cfg.MaxPreviewBytes),
	}
}

// CheckFileCounts enforces at most one resource file and one preview image,
// and rejects files under any other field. requireFile demands the resource file.
func (v *Validator) CheckFileCounts(files map[string][]*multipart.FileHeader, requireFile bool) error {
	for field, headers := range files {
		switch field {
		case FieldFile, FieldPreview:
			if len(headers) > 1 {
				return appErrors.Clone(appErrors.ErrTooManyFiles, "Too many files. Only one file allowed per upload.")
			}
		default:
			if len(headers) > 0 {
				return appErrors.Clone(appErrors.ErrTooManyFiles, "Too many files. Only one file allowed per upload.")
			}
		}
	}
	if requireFile && len(files[FieldFile]) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	return nil
}

// ValidateFile checks the resource file against the global policy.
func (v *Validator) ValidateFile(name string, size int64) error {
	return v.File.Validate(name, size)
}

// ValidateForType applies a resource type's own ceiling and extension list.
// An empty extension list means the type does not narrow the global policy.
func ValidateForType(name string, size int64, typeName string, extensions []string, maxBytes int64) error {
	ext := storage.Extension(name)
	if len(extensions) > 0 {
		if _, ok := extensionSet(extensions)[ext]; !ok {
			return appErrors.Clone(appErrors.ErrUnsupportedType, fmt.Sprintf("File type .%s is not allowed for %s resources", ext, typeName))
		}
	}
	if maxBytes > 0 && size > maxBytes {
		return appErrors.Clone(appErrors.ErrFileTooLarge, fmt.Sprintf("File size too large. Maximum size for %s is %s.", typeName, HumanSize(maxBytes)))
	}
	return nil
}

// ValidatePreview checks the preview image name, size and content. r is read
// up to the sniffing limit; callers should rewind it afterwards.
func (v *Validator) ValidatePreview(name string, size int64, r io.Reader) error {
	if err := v.Preview.Validate(name, size); err != nil {
		if appErrors.HasCode(err, appErrors.ErrUnsupportedType.Code) {
			return appErrors.Clone(appErrors.ErrUnsupportedType, "Preview image must be: "+strings.Join(sortedKeys(v.Preview.Extensions), ", "))
		}
		return err
	}
	detected, err := mimetype.DetectReader(r)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unable to read preview image")
	}
	if !strings.HasPrefix(detected.String(), "image/") {
		return appErrors.Clone(appErrors.ErrUnsupportedType, "Preview image content is not an image")
	}
	return nil
}

// DetectMIME sniffs the content type of r, falling back to the declared type.
func DetectMIME(r io.Reader, declared string) string {
	detected, err := mimetype.DetectReader(r)
	if err != nil || detected.Is("application/octet-stream") {
		if declared != "" {
			return declared
		}
		return "application/octet-stream"
	}
	return detected.String()
}

// HumanSize renders a byte count the way limits are phrased to users.
func HumanSize(n int64) string {
	switch {
	case n >= 1<<30 && n%(1<<30) == 0:
		return fmt.Sprintf("%dGB", n>>30)
	case n >= 1<<20:
		return fmt.Sprintf("%dMB", n>>20)
	case n >= 1<<10:
		return fmt.Sprintf("%dKB", n>>10)
	default:
		return fmt.Sprintf("%dB", n)
	}
}

func unsupported(ext string) error {
	if ext == "" {
		return appErrors.Clone(appErrors.ErrUnsupportedType, "File type is not allowed")
	}
	return appErrors.Clone(appErrors.ErrUnsupportedType, fmt.Sprintf("File type .%s is not allowed", ext))
}

func tooLarge(max int64) error {
	return appErrors.Clone(appErrors.ErrFileTooLarge, fmt.Sprintf("File size too large. Maximum size is %s.", HumanSize(max)))
}

func extensionSet(extensions []string) map[string]struct{} {
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			set[ext] = struct{}{}
		}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
