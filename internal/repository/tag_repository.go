package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/edu-resource-api/internal/models"
)

const tagColumns = `id, tag_name, COALESCE(color, '') AS color, COALESCE(description, '') AS description, created_at`

// TagRepository handles persistence for tags and their resource links.
type TagRepository struct {
	db *sqlx.DB
}

// NewTagRepository creates a new repository instance.
func NewTagRepository(db *sqlx.DB) *TagRepository {
	return &TagRepository{db: db}
}

// List returns every tag ordered by name.
func (r *TagRepository) List(ctx context.Context) ([]models.Tag, error) {
	query := fmt.Sprintf("SELECT %s FROM resource_tags ORDER BY tag_name", tagColumns)
	var tags []models.Tag
	if err := r.db.SelectContext(ctx, &tags, query); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// FindByID returns a tag by id.
func (r *TagRepository) FindByID(ctx context.Context, id string) (*models.Tag, error) {
	query := fmt.Sprintf("SELECT %s FROM resource_tags WHERE id = $1", tagColumns)
	var tag models.Tag
	if err := r.db.GetContext(ctx, &tag, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find tag: %w", err)
	}
	return &tag, nil
}

// FindByIDs returns the tags among ids that exist.
func (r *TagRepository) FindByIDs(ctx context.Context, ids []string) ([]models.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM resource_tags WHERE id::text = ANY($1)", tagColumns)
	var tags []models.Tag
	if err := r.db.SelectContext(ctx, &tags, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find tags: %w", err)
	}
	return tags, nil
}

// ListForResources loads the tags of many resources in one query.
func (r *TagRepository) ListForResources(ctx context.Context, resourceIDs []string) ([]models.ResourceTag, error) {
	if len(resourceIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT m.resource_id, t.id, t.tag_name, COALESCE(t.color, '') AS color, COALESCE(t.description, '') AS description, t.created_at
FROM resource_tag_map m JOIN resource_tags t ON t.id = m.tag_id
WHERE m.resource_id::text = ANY($1) ORDER BY t.tag_name`
	var rows []models.ResourceTag
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(resourceIDs)); err != nil {
		return nil, fmt.Errorf("list resource tags: %w", err)
	}
	return rows, nil
}

// ExistsByName checks uniqueness of the tag name.
func (r *TagRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	return existsExcluding(ctx, r.db, "resource_tags", "tag_name", name, excludeID)
}

// Create persists a new tag.
func (r *TagRepository) Create(ctx context.Context, tag *models.Tag) error {
	if tag.ID == "" {
		tag.ID = uuid.NewString()
	}
	tag.CreatedAt = time.Now().UTC()

	const query = `INSERT INTO resource_tags (id, tag_name, color, description, created_at) VALUES (:id, :tag_name, :color, :description, :created_at)`
	_, err := r.db.NamedExecContext(ctx, query, tag)
	return translateWrite(err, "create tag")
}

// Update modifies a tag.
func (r *TagRepository) Update(ctx context.Context, tag *models.Tag) error {
	const query = `UPDATE resource_tags SET tag_name = :tag_name, color = :color, description = :description WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, tag)
	if err != nil {
		return translateWrite(err, "update tag")
	}
	return requireAffected(res, "update tag")
}

// Delete removes a tag together with its resource associations.
func (r *TagRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tag: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM resource_tag_map WHERE tag_id = $1`, id); err != nil {
		return fmt.Errorf("delete tag links: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM resource_tags WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if err = requireAffected(res, "delete tag"); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete tag: %w", err)
	}
	return nil
}
