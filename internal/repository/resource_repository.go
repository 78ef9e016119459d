package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-resource-api/internal/models"
)

const (
	resourceSelect = `SELECT r.id, r.title, COALESCE(r.description, '') AS description, r.type_id, r.subject_id, r.grade_id, r.created_by,
r.file_name, r.original_name, r.file_size, r.mime_type, r.preview_image, r.status, r.download_count, r.view_count, r.likes, r.created_at, r.updated_at,
rt.type_name, COALESCE(rt.icon, '') AS type_icon, s.subject_name, COALESCE(s.color, '') AS subject_color, g.grade_level, g.grade_number,
COALESCE(u.name, '') AS author_name`
	resourceFrom = ` FROM resources r
JOIN resource_types rt ON rt.id = r.type_id
JOIN subjects s ON s.id = r.subject_id
JOIN grades g ON g.id = r.grade_id
LEFT JOIN users u ON u.id = r.created_by`

	// PopularityScore weighs downloads over likes over views.
	PopularityScore = `(r.download_count * 3 + r.likes * 2 + r.view_count)`

	defaultResourceLimit = 20
	maxResourceLimit     = 1000
)

// ResourceRepository persists resources, their tag links, likes and counters.
type ResourceRepository struct {
	db *sqlx.DB
}

// NewResourceRepository creates a new repository instance.
func NewResourceRepository(db *sqlx.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// List returns resources matching the filter along with the total count.
func (r *ResourceRepository) List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, int, error) {
	where, args := buildResourceWhere(filter)

	limit, offset := pageWindow(filter.Limit, filter.Offset, defaultResourceLimit, maxResourceLimit)

	order := "r.created_at DESC, r.id"
	if filter.Sort == models.ResourceSortPopular {
		order = PopularityScore + " DESC, r.created_at DESC"
	}

	query := fmt.Sprintf("%s%s%s ORDER BY %s LIMIT %d OFFSET %d", resourceSelect, resourceFrom, where, order, limit, offset)
	var resources []models.Resource
	if err := r.db.SelectContext(ctx, &resources, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list resources: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+resourceFrom+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count resources: %w", err)
	}

	if err := r.attachTags(ctx, resources); err != nil {
		return nil, 0, err
	}
	return resources, total, nil
}

func buildResourceWhere(filter models.ResourceFilter) (string, []interface{}) {
	var c conditions
	if filter.Status != "" {
		c.add("r.status = $%d", filter.Status)
	}
	if filter.Subject != "" {
		c.add("(r.subject_id::text = $%[1]d OR s.subject_name = $%[1]d)", filter.Subject)
	}
	if filter.Grade != "" {
		c.add("(r.grade_id::text = $%[1]d OR g.grade_level = $%[1]d)", filter.Grade)
	}
	if filter.Type != "" {
		c.add("(r.type_id::text = $%[1]d OR rt.type_name = $%[1]d)", filter.Type)
	}
	if filter.CreatedBy != "" {
		c.add("r.created_by = $%d", filter.CreatedBy)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		c.add(`(LOWER(r.title) LIKE $%[1]d OR LOWER(COALESCE(r.description, '')) LIKE $%[1]d OR LOWER(s.subject_name) LIKE $%[1]d OR LOWER(g.grade_level) LIKE $%[1]d
OR EXISTS (SELECT 1 FROM resource_tag_map m JOIN resource_tags t ON t.id = m.tag_id WHERE m.resource_id = r.id AND LOWER(t.tag_name) LIKE $%[1]d))`, likePattern(term))
	}
	return c.where(), c.args
}

// FindByID returns a resource with its tags.
func (r *ResourceRepository) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	var res models.Resource
	if err := r.db.GetContext(ctx, &res, resourceSelect+resourceFrom+" WHERE r.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find resource: %w", err)
	}
	list := []models.Resource{res}
	if err := r.attachTags(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (r *ResourceRepository) attachTags(ctx context.Context, resources []models.Resource) error {
	if len(resources) == 0 {
		return nil
	}
	ids := make([]string, len(resources))
	index := make(map[string]int, len(resources))
	for i := range resources {
		ids[i] = resources[i].ID
		index[resources[i].ID] = i
		resources[i].Tags = []models.Tag{}
	}

	rows, err := NewTagRepository(r.db).ListForResources(ctx, ids)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if i, ok := index[row.ResourceID]; ok {
			resources[i].Tags = append(resources[i].Tags, row.Tag)
		}
	}
	return nil
}

// Create inserts the resource row and its tag links in one transaction.
func (r *ResourceRepository) Create(ctx context.Context, res *models.Resource, tagIDs []string) (err error) {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	res.CreatedAt = now
	res.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create resource: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO resources (id, title, description, type_id, subject_id, grade_id, created_by, file_name, original_name, file_size, mime_type, preview_image, status, download_count, view_count, likes, created_at, updated_at)
VALUES (:id, :title, :description, :type_id, :subject_id, :grade_id, :created_by, :file_name, :original_name, :file_size, :mime_type, :preview_image, :status, 0, 0, 0, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, res); err != nil {
		return fmt.Errorf("create resource: %w", err)
	}
	if err = insertTagLinks(ctx, tx, res.ID, tagIDs); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create resource: %w", err)
	}
	return nil
}

// Update overwrites the editable columns and replaces the tag set.
func (r *ResourceRepository) Update(ctx context.Context, res *models.Resource, tagIDs []string) (err error) {
	res.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update resource: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE resources SET title = :title, description = :description, type_id = :type_id, subject_id = :subject_id, grade_id = :grade_id,
file_name = :file_name, original_name = :original_name, file_size = :file_size, mime_type = :mime_type, preview_image = :preview_image,
status = :status, updated_at = :updated_at WHERE id = :id`
	result, err := tx.NamedExecContext(ctx, query, res)
	if err != nil {
		return fmt.Errorf("update resource: %w", err)
	}
	if err = requireAffected(result, "update resource"); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM resource_tag_map WHERE resource_id = $1`, res.ID); err != nil {
		return fmt.Errorf("clear resource tags: %w", err)
	}
	if err = insertTagLinks(ctx, tx, res.ID, tagIDs); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update resource: %w", err)
	}
	return nil
}

func insertTagLinks(ctx context.Context, tx *sqlx.Tx, resourceID string, tagIDs []string) error {
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO resource_tag_map (resource_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, resourceID, tagID); err != nil {
			return fmt.Errorf("link resource tag: %w", err)
		}
	}
	return nil
}

// Delete removes the resource row with its tag links and likes.
func (r *ResourceRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete resource: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM resource_tag_map WHERE resource_id = $1`, id); err != nil {
		return fmt.Errorf("delete resource tags: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM resource_likes WHERE resource_id = $1`, id); err != nil {
		return fmt.Errorf("delete resource likes: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	if err = requireAffected(result, "delete resource"); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete resource: %w", err)
	}
	return nil
}

// IncrementDownloads adds one to the download counter and returns the new value.
func (r *ResourceRepository) IncrementDownloads(ctx context.Context, id string) (int64, error) {
	return r.increment(ctx, "download_count", id)
}

// IncrementViews adds one to the view counter and returns the new value.
func (r *ResourceRepository) IncrementViews(ctx context.Context, id string) (int64, error) {
	return r.increment(ctx, "view_count", id)
}

func (r *ResourceRepository) increment(ctx context.Context, column, id string) (int64, error) {
	query := fmt.Sprintf("UPDATE resources SET %[1]s = %[1]s + 1 WHERE id = $1 RETURNING %[1]s", column)
	var value int64
	if err := r.db.GetContext(ctx, &value, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}
		return 0, fmt.Errorf("increment %s: %w", column, err)
	}
	return value, nil
}

// ToggleLike flips the like of userID on the resource and keeps the
// denormalised counter in step.
func (r *ResourceRepository) ToggleLike(ctx context.Context, resourceID, userID string) (result *models.LikeResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin toggle like: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current int64
	if err = tx.GetContext(ctx, &current, `SELECT likes FROM resources WHERE id = $1 FOR UPDATE`, resourceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock resource: %w", err)
	}

	removed, err := tx.ExecContext(ctx, `DELETE FROM resource_likes WHERE resource_id = $1 AND user_id = $2`, resourceID, userID)
	if err != nil {
		return nil, fmt.Errorf("remove like: %w", err)
	}
	n, err := removed.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("remove like rows affected: %w", err)
	}

	result = &models.LikeResult{ResourceID: resourceID}
	if n > 0 {
		err = tx.GetContext(ctx, &result.Likes, `UPDATE resources SET likes = GREATEST(likes - 1, 0) WHERE id = $1 RETURNING likes`, resourceID)
	} else {
		if _, err = tx.ExecContext(ctx, `INSERT INTO resource_likes (resource_id, user_id, created_at) VALUES ($1, $2, $3)`, resourceID, userID, time.Now().UTC()); err != nil {
			return nil, fmt.Errorf("add like: %w", err)
		}
		result.Liked = true
		err = tx.GetContext(ctx, &result.Likes, `UPDATE resources SET likes = likes + 1 WHERE id = $1 RETURNING likes`, resourceID)
	}
	if err != nil {
		return nil, fmt.Errorf("update like count: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit toggle like: %w", err)
	}
	return result, nil
}

// Stats returns catalog totals.
func (r *ResourceRepository) Stats(ctx context.Context) (*models.Stats, error) {
	const query = `SELECT
(SELECT COUNT(*) FROM resources) AS total_resources,
(SELECT COUNT(*) FROM users) AS total_users,
(SELECT COALESCE(SUM(download_count), 0) FROM resources) AS total_downloads,
(SELECT COALESCE(SUM(view_count), 0) FROM resources) AS total_views`
	var stats models.Stats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("resource stats: %w", err)
	}
	return &stats, nil
}
