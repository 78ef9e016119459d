package dto

// GradeRequest creates or updates a grade.
type GradeRequest struct {
	GradeLevel  string `json:"grade_level" validate:"required,max=50"`
	GradeNumber int    `json:"grade_number" validate:"gte=0,lte=20"`
	Description string `json:"description" validate:"max=1000"`
}

// SubjectRequest creates or updates a subject.
type SubjectRequest struct {
	SubjectName string `json:"subject_name" validate:"required,max=100"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
	Description string `json:"description" validate:"max=1000"`
}

// ResourceTypeRequest creates or updates a resource type.
type ResourceTypeRequest struct {
	TypeName          string `json:"type_name" validate:"required,max=50"`
	AllowedExtensions string `json:"allowed_extensions" validate:"max=255"`
	Icon              string `json:"icon" validate:"max=50"`
	MaxFileSize       int64  `json:"max_file_size" validate:"gte=0"`
	Description       string `json:"description" validate:"max=1000"`
}

// TagRequest creates or updates a tag.
type TagRequest struct {
	TagName     string `json:"tag_name" validate:"required,max=50"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
	Description string `json:"description" validate:"max=1000"`
}
