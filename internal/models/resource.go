package models

import "time"

// ResourceStatus is the publication state of a resource.
type ResourceStatus string

const (
	ResourceStatusDraft     ResourceStatus = "draft"
	ResourceStatusPublished ResourceStatus = "published"
)

// Valid reports whether s is a known status.
func (s ResourceStatus) Valid() bool {
	return s == ResourceStatusDraft || s == ResourceStatusPublished
}

// Resource is an uploaded educational file with its classification. The
// joined label columns are populated on reads only.
type Resource struct {
	ID            string         `db:"id" json:"id"`
	Title         string         `db:"title" json:"title"`
	Description   string         `db:"description" json:"description"`
	TypeID        string         `db:"type_id" json:"type_id"`
	SubjectID     string         `db:"subject_id" json:"subject_id"`
	GradeID       string         `db:"grade_id" json:"grade_id"`
	CreatedBy     string         `db:"created_by" json:"created_by"`
	FileName      string         `db:"file_name" json:"file_name"`
	OriginalName  string         `db:"original_name" json:"original_name"`
	FileSize      int64          `db:"file_size" json:"file_size"`
	MimeType      string         `db:"mime_type" json:"mime_type"`
	PreviewImage  *string        `db:"preview_image" json:"preview_image,omitempty"`
	Status        ResourceStatus `db:"status" json:"status"`
	DownloadCount int64          `db:"download_count" json:"download_count"`
	ViewCount     int64          `db:"view_count" json:"view_count"`
	Likes         int64          `db:"likes" json:"likes"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`

	TypeName     string `db:"type_name" json:"type_name,omitempty"`
	TypeIcon     string `db:"type_icon" json:"type_icon,omitempty"`
	SubjectName  string `db:"subject_name" json:"subject_name,omitempty"`
	SubjectColor string `db:"subject_color" json:"subject_color,omitempty"`
	GradeLevel   string `db:"grade_level" json:"grade_level,omitempty"`
	GradeNumber  int    `db:"grade_number" json:"grade_number,omitempty"`
	AuthorName   string `db:"author_name" json:"author_name,omitempty"`

	Tags []Tag `db:"-" json:"tags"`
}

// StoredFiles lists the stored names owned by the resource.
func (r *Resource) StoredFiles() []string {
	files := make([]string, 0, 2)
	if r.FileName != "" {
		files = append(files, r.FileName)
	}
	if r.PreviewImage != nil && *r.PreviewImage != "" {
		files = append(files, *r.PreviewImage)
	}
	return files
}

// ResourceSort selects list ordering.
type ResourceSort string

const (
	ResourceSortNewest  ResourceSort = "newest"
	ResourceSortPopular ResourceSort = "popular"
)

// ResourceFilter narrows resource listings. Subject, Grade and Type accept
// either the row id or its natural-key label.
type ResourceFilter struct {
	Status    ResourceStatus
	Subject   string
	Grade     string
	Type      string
	CreatedBy string
	Search    string
	Sort      ResourceSort
	Limit     int
	Offset    int
}

// LikeResult reports the caller's like state after a toggle.
type LikeResult struct {
	ResourceID string `json:"resource_id"`
	Liked      bool   `json:"liked"`
	Likes      int64  `json:"likes"`
}

// Stats summarises catalog totals.
type Stats struct {
	TotalResources int64 `db:"total_resources" json:"totalResources"`
	TotalUsers     int64 `db:"total_users" json:"totalUsers"`
	TotalDownloads int64 `db:"total_downloads" json:"totalDownloads"`
	TotalViews     int64 `db:"total_views" json:"totalViews"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}
