package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-resource-api/internal/models"
)

const gradeColumns = `id, grade_level, grade_number, COALESCE(description, '') AS description, created_at, updated_at`

// GradeRepository handles persistence for grades.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new repository instance.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// List returns every grade ordered by grade number.
func (r *GradeRepository) List(ctx context.Context) ([]models.Grade, error) {
	query := fmt.Sprintf("SELECT %s FROM grades ORDER BY grade_number, grade_level", gradeColumns)
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}

// FindByID returns a grade by id.
func (r *GradeRepository) FindByID(ctx context.Context, id string) (*models.Grade, error) {
	query := fmt.Sprintf("SELECT %s FROM grades WHERE id = $1", gradeColumns)
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find grade: %w", err)
	}
	return &grade, nil
}

// ExistsByLevel checks uniqueness of the grade label.
func (r *GradeRepository) ExistsByLevel(ctx context.Context, level, excludeID string) (bool, error) {
	return existsExcluding(ctx, r.db, "grades", "grade_level", level, excludeID)
}

// Create persists a new grade.
func (r *GradeRepository) Create(ctx context.Context, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	grade.CreatedAt = now
	grade.UpdatedAt = now

	const query = `INSERT INTO grades (id, grade_level, grade_number, description, created_at, updated_at) VALUES (:id, :grade_level, :grade_number, :description, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, query, grade)
	return translateWrite(err, "create grade")
}

// Update modifies a grade.
func (r *GradeRepository) Update(ctx context.Context, grade *models.Grade) error {
	grade.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grades SET grade_level = :grade_level, grade_number = :grade_number, description = :description, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, grade)
	if err != nil {
		return translateWrite(err, "update grade")
	}
	return requireAffected(res, "update grade")
}

// Delete removes a grade unless resources reference it.
func (r *GradeRepository) Delete(ctx context.Context, id string) error {
	return deleteUnreferenced(ctx, r.db, "grades", "grade_id", id)
}
