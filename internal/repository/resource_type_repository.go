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

const resourceTypeColumns = `id, type_name, COALESCE(allowed_extensions, '') AS allowed_extensions, COALESCE(icon, '') AS icon, max_file_size, COALESCE(description, '') AS description, created_at, updated_at`

// ResourceTypeRepository handles persistence for resource types.
type ResourceTypeRepository struct {
	db *sqlx.DB
}

// NewResourceTypeRepository creates a new repository instance.
func NewResourceTypeRepository(db *sqlx.DB) *ResourceTypeRepository {
	return &ResourceTypeRepository{db: db}
}

// List returns every resource type ordered by name.
func (r *ResourceTypeRepository) List(ctx context.Context) ([]models.ResourceType, error) {
	query := fmt.Sprintf("SELECT %s FROM resource_types ORDER BY type_name", resourceTypeColumns)
	var types []models.ResourceType
	if err := r.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("list resource types: %w", err)
	}
	return types, nil
}

// FindByID returns a resource type by id.
func (r *ResourceTypeRepository) FindByID(ctx context.Context, id string) (*models.ResourceType, error) {
	query := fmt.Sprintf("SELECT %s FROM resource_types WHERE id = $1", resourceTypeColumns)
	var rt models.ResourceType
	if err := r.db.GetContext(ctx, &rt, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find resource type: %w", err)
	}
	return &rt, nil
}

// ExistsByName checks uniqueness of the type name.
func (r *ResourceTypeRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	return existsExcluding(ctx, r.db, "resource_types", "type_name", name, excludeID)
}

// Create persists a new resource type.
func (r *ResourceTypeRepository) Create(ctx context.Context, rt *models.ResourceType) error {
	if rt.ID == "" {
		rt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rt.CreatedAt = now
	rt.UpdatedAt = now

	const query = `INSERT INTO resource_types (id, type_name, allowed_extensions, icon, max_file_size, description, created_at, updated_at) VALUES (:id, :type_name, :allowed_extensions, :icon, :max_file_size, :description, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, query, rt)
	return translateWrite(err, "create resource type")
}

// Update modifies a resource type.
func (r *ResourceTypeRepository) Update(ctx context.Context, rt *models.ResourceType) error {
	rt.UpdatedAt = time.Now().UTC()
	const query = `UPDATE resource_types SET type_name = :type_name, allowed_extensions = :allowed_extensions, icon = :icon, max_file_size = :max_file_size, description = :description, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, rt)
	if err != nil {
		return translateWrite(err, "update resource type")
	}
	return requireAffected(res, "update resource type")
}

// Delete removes a resource type unless resources reference it.
func (r *ResourceTypeRepository) Delete(ctx context.Context, id string) error {
	return deleteUnreferenced(ctx, r.db, "resource_types", "type_id", id)
}
