package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-resource-api/internal/models"
)

var resourceRowColumns = []string{
	"id", "title", "description", "type_id", "subject_id", "grade_id", "created_by",
	"file_name", "original_name", "file_size", "mime_type", "preview_image", "status", "download_count", "view_count", "likes", "created_at", "updated_at",
	"type_name", "type_icon", "subject_name", "subject_color", "grade_level", "grade_number", "author_name",
}

func resourceRow(rows *sqlmock.Rows, id, title string) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, title, "", "type-doc", "sub-math", "grade-3", "admin-1",
		"1700000000000-abc.pdf", "notes.pdf", 1024, "application/pdf", nil, "published", 4, 10, 2, now, now,
		"Document", "📄", "Mathematics", "#EF4444", "Grade 3", 3, "System Admin")
}

func TestResourceRepositoryListFiltersAndSearch(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	rows := resourceRow(sqlmock.NewRows(resourceRowColumns), "res-1", "Fractions")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.status = $1 AND (r.grade_id::text = $2 OR g.grade_level = $2) AND (LOWER(r.title) LIKE $3")).
		WithArgs(models.ResourceStatusPublished, "Grade 3", "%frac\\%%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(models.ResourceStatusPublished, "Grade 3", "%frac\\%%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM resource_tag_map m JOIN resource_tags t")).
		WillReturnRows(sqlmock.NewRows([]string{"resource_id", "id", "tag_name", "color", "description", "created_at"}).
			AddRow("res-1", "tag-1", "Python", "#3776AB", "", now))

	resources, total, err := repo.List(context.Background(), models.ResourceFilter{
		Status: models.ResourceStatusPublished,
		Grade:  "Grade 3",
		Search: "  FRAC% ",
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, resources, 1)
	require.Equal(t, "Grade 3", resources[0].GradeLevel)
	require.Len(t, resources[0].Tags, 1)
	require.Equal(t, "Python", resources[0].Tags[0].TagName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepositoryListPopularCapsLimit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY " + PopularityScore + " DESC, r.created_at DESC LIMIT 1000 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows(resourceRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	resources, total, err := repo.List(context.Background(), models.ResourceFilter{Sort: models.ResourceSortPopular, Limit: 5000, Offset: -3})
	require.NoError(t, err)
	require.Empty(t, resources)
	require.Zero(t, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepositoryCreateWithTags(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO resources").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO resource_tag_map (resource_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "tag-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO resource_tag_map")).
		WithArgs(sqlmock.AnyArg(), "tag-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res := &models.Resource{Title: "Fractions", TypeID: "type-doc", SubjectID: "sub-math", GradeID: "grade-3", Status: models.ResourceStatusPublished}
	require.NoError(t, repo.Create(context.Background(), res, []string{"tag-1", "tag-2"}))
	require.NotEmpty(t, res.ID)
	require.False(t, res.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepositoryCreateRollsBackOnTagFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO resources").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO resource_tag_map").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Resource{Title: "x"}, []string{"tag-1"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepositoryUpdateReplacesTags(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE resources SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM resource_tag_map WHERE resource_id = $1")).
		WithArgs("res-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, repo.Update(context.Background(), &models.Resource{ID: "res-1", Title: "New"}, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM resource_tag_map WHERE resource_id = $1")).WithArgs("res-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM resource_likes WHERE resource_id = $1")).WithArgs("res-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM resources WHERE id = $1")).WithArgs("res-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "res-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepositoryIncrementDownloads(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE resources SET download_count = download_count + 1 WHERE id = $1 RETURNING download_count")).
		WithArgs("res-1").
		WillReturnRows(sqlmock.NewRows([]string{"download_count"}).AddRow(5))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE resources SET download_count = download_count + 1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"download_count"}))

	count, err := repo.IncrementDownloads(context.Background(), "res-1")
	require.NoError(t, err)
	require.Equal(t, int64(5), count)

	_, err = repo.IncrementDownloads(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepositoryToggleLike(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	// like
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT likes FROM resources WHERE id = $1 FOR UPDATE")).WithArgs("res-1").
		WillReturnRows(sqlmock.NewRows([]string{"likes"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM resource_likes")).WithArgs("res-1", "user-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO resource_likes")).WithArgs("res-1", "user-1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE resources SET likes = likes + 1")).WithArgs("res-1").
		WillReturnRows(sqlmock.NewRows([]string{"likes"}).AddRow(3))
	mock.ExpectCommit()

	// unlike
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT likes FROM resources WHERE id = $1 FOR UPDATE")).WithArgs("res-1").
		WillReturnRows(sqlmock.NewRows([]string{"likes"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM resource_likes")).WithArgs("res-1", "user-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE resources SET likes = GREATEST(likes - 1, 0)")).WithArgs("res-1").
		WillReturnRows(sqlmock.NewRows([]string{"likes"}).AddRow(2))
	mock.ExpectCommit()

	liked, err := repo.ToggleLike(context.Background(), "res-1", "user-1")
	require.NoError(t, err)
	require.True(t, liked.Liked)
	require.Equal(t, int64(3), liked.Likes)

	unliked, err := repo.ToggleLike(context.Background(), "res-1", "user-1")
	require.NoError(t, err)
	require.False(t, unliked.Liked)
	require.Equal(t, int64(2), unliked.Likes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepositoryStats(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResourceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("(SELECT COUNT(*) FROM resources) AS total_resources")).
		WillReturnRows(sqlmock.NewRows([]string{"total_resources", "total_users", "total_downloads", "total_views"}).AddRow(12, 3, 40, 90))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(12), stats.TotalResources)
	require.Equal(t, int64(90), stats.TotalViews)
	require.NoError(t, mock.ExpectationsWereMet())
}
