package models

import (
	"strings"
	"time"
)

// Grade is a school year level such as "Grade 3".
type Grade struct {
	ID          string    `db:"id" json:"id"`
	GradeLevel  string    `db:"grade_level" json:"grade_level"`
	GradeNumber int       `db:"grade_number" json:"grade_number"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Subject is a curriculum subject.
type Subject struct {
	ID          string    `db:"id" json:"id"`
	SubjectName string    `db:"subject_name" json:"subject_name"`
	Color       string    `db:"color" json:"color"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ResourceType governs the extensions and size ceiling of a resource file.
type ResourceType struct {
	ID                string    `db:"id" json:"id"`
	TypeName          string    `db:"type_name" json:"type_name"`
	AllowedExtensions string    `db:"allowed_extensions" json:"allowed_extensions"`
	Icon              string    `db:"icon" json:"icon"`
	MaxFileSize       int64     `db:"max_file_size" json:"max_file_size"`
	Description       string    `db:"description" json:"description"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Extensions splits AllowedExtensions into a list.
func (t ResourceType) Extensions() []string {
	if strings.TrimSpace(t.AllowedExtensions) == "" {
		return nil
	}
	parts := strings.Split(t.AllowedExtensions, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Tag is a free-form label attached to resources.
type Tag struct {
	ID          string    `db:"id" json:"id"`
	TagName     string    `db:"tag_name" json:"tag_name"`
	Color       string    `db:"color" json:"color"`
	Description string    `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at,omitempty"`
}

// ResourceTag links a tag to a resource in bulk tag lookups.
type ResourceTag struct {
	ResourceID string `db:"resource_id"`
	Tag
}

// SeedData is the bootstrap catalog written on first start.
type SeedData struct {
	Grades   []Grade
	Subjects []Subject
	Types    []ResourceType
	Tags     []Tag
	Admin    *User
}
