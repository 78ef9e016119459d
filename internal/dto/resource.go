package dto

import "github.com/noah-isme/edu-resource-api/internal/models"

// CreateResourceRequest contains metadata submitted alongside a file upload.
type CreateResourceRequest struct {
	Title       string                `form:"title" json:"title" validate:"required,max=255"`
	Description string                `form:"description" json:"description" validate:"max=5000"`
	TypeID      string                `form:"type_id" json:"type_id" validate:"required"`
	SubjectID   string                `form:"subject_id" json:"subject_id" validate:"required"`
	GradeID     string                `form:"grade_id" json:"grade_id" validate:"required"`
	Status      models.ResourceStatus `form:"status" json:"status" validate:"omitempty,oneof=draft published"`
	TagIDs      []string              `form:"tag_ids" json:"tag_ids"`
}

// UpdateResourceRequest replaces the editable metadata of a resource. Tags
// are replaced by TagIDs; an empty list clears them.
type UpdateResourceRequest struct {
	Title       string                `form:"title" json:"title" validate:"required,max=255"`
	Description string                `form:"description" json:"description" validate:"max=5000"`
	TypeID      string                `form:"type_id" json:"type_id" validate:"required"`
	SubjectID   string                `form:"subject_id" json:"subject_id" validate:"required"`
	GradeID     string                `form:"grade_id" json:"grade_id" validate:"required"`
	Status      models.ResourceStatus `form:"status" json:"status" validate:"omitempty,oneof=draft published"`
	TagIDs      []string              `form:"tag_ids" json:"tag_ids"`
}

// ListResourcesQuery captures list query parameters.
type ListResourcesQuery struct {
	Status  string `form:"status"`
	Subject string `form:"subject"`
	Grade   string `form:"grade"`
	Type    string `form:"type"`
	Search  string `form:"search"`
	Sort    string `form:"sort"`
	Limit   int    `form:"limit"`
	Offset  int    `form:"offset"`
}

// BoardQuery captures board query parameters.
type BoardQuery struct {
	Search   string   `form:"search"`
	Subjects []string `form:"subjects"`
	Types    []string `form:"types"`
}

// CreateResourceResponse is returned after a successful upload.
type CreateResourceResponse struct {
	ResourceID string           `json:"resource_id"`
	Resource   *models.Resource `json:"resource,omitempty"`
}

// DownloadLinkResponse carries a signed download URL.
type DownloadLinkResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
}
