package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-resource-api/internal/models"
)

// SeedResult counts rows actually inserted per table.
type SeedResult struct {
	Grades   int64
	Subjects int64
	Types    int64
	Tags     int64
	Admins   int64
}

// SeedRepository writes bootstrap data. Existing natural keys are left untouched.
type SeedRepository struct {
	db *sqlx.DB
}

// NewSeedRepository creates a new repository instance.
func NewSeedRepository(db *sqlx.DB) *SeedRepository {
	return &SeedRepository{db: db}
}

// Apply inserts the seed data in one transaction.
func (r *SeedRepository) Apply(ctx context.Context, data models.SeedData) (result SeedResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin seed: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	exec := func(counter *int64, query string, args ...interface{}) error {
		res, execErr := tx.ExecContext(ctx, query, args...)
		if execErr != nil {
			return execErr
		}
		n, execErr := res.RowsAffected()
		if execErr != nil {
			return execErr
		}
		*counter += n
		return nil
	}

	for _, g := range data.Grades {
		if err = exec(&result.Grades, `INSERT INTO grades (id, grade_level, grade_number, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $5) ON CONFLICT (grade_level) DO NOTHING`,
			uuid.NewString(), g.GradeLevel, g.GradeNumber, g.Description, now); err != nil {
			return result, fmt.Errorf("seed grade %s: %w", g.GradeLevel, err)
		}
	}
	for _, s := range data.Subjects {
		if err = exec(&result.Subjects, `INSERT INTO subjects (id, subject_name, color, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $5) ON CONFLICT (subject_name) DO NOTHING`,
			uuid.NewString(), s.SubjectName, s.Color, s.Description, now); err != nil {
			return result, fmt.Errorf("seed subject %s: %w", s.SubjectName, err)
		}
	}
	for _, t := range data.Types {
		if err = exec(&result.Types, `INSERT INTO resource_types (id, type_name, allowed_extensions, icon, max_file_size, description, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $7) ON CONFLICT (type_name) DO NOTHING`,
			uuid.NewString(), t.TypeName, t.AllowedExtensions, t.Icon, t.MaxFileSize, t.Description, now); err != nil {
			return result, fmt.Errorf("seed resource type %s: %w", t.TypeName, err)
		}
	}
	for _, t := range data.Tags {
		if err = exec(&result.Tags, `INSERT INTO resource_tags (id, tag_name, color, description, created_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (tag_name) DO NOTHING`,
			uuid.NewString(), t.TagName, t.Color, t.Description, now); err != nil {
			return result, fmt.Errorf("seed tag %s: %w", t.TagName, err)
		}
	}
	if admin := data.Admin; admin != nil {
		if err = exec(&result.Admins, `INSERT INTO users (id, name, email, password_hash, role, organization, designation, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9) ON CONFLICT (email) DO NOTHING`,
			uuid.NewString(), admin.Name, admin.Email, admin.PasswordHash, admin.Role, admin.Organization, admin.Designation, admin.Status, now); err != nil {
			return result, fmt.Errorf("seed admin: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return result, fmt.Errorf("commit seed: %w", err)
	}
	return result, nil
}
