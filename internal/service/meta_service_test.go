package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-resource-api/internal/dto"
	"github.com/noah-isme/edu-resource-api/internal/models"
	"github.com/noah-isme/edu-resource-api/internal/repository"
	"github.com/noah-isme/edu-resource-api/pkg/cache"
	appErrors "github.com/noah-isme/edu-resource-api/pkg/errors"
)

type gradeMem struct {
	rows       map[string]*models.Grade
	referenced map[string]bool
	listCalls  int
	createErr  error
}

func (g *gradeMem) List(ctx context.Context) ([]models.Grade, error) {
	g.listCalls++
	out := make([]models.Grade, 0, len(g.rows))
	for _, row := range g.rows {
		out = append(out, *row)
	}
	return out, nil
}

func (g *gradeMem) FindByID(ctx context.Context, id string) (*models.Grade, error) {
	row, ok := g.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *row
	return &clone, nil
}

func (g *gradeMem) ExistsByLevel(ctx context.Context, level, excludeID string) (bool, error) {
	for id, row := range g.rows {
		if row.GradeLevel == level && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (g *gradeMem) Create(ctx context.Context, grade *models.Grade) error {
	if g.createErr != nil {
		return g.createErr
	}
	grade.ID = fmt.Sprintf("g-%d", len(g.rows)+1)
	clone := *grade
	g.rows[grade.ID] = &clone
	return nil
}

func (g *gradeMem) Update(ctx context.Context, grade *models.Grade) error {
	if _, ok := g.rows[grade.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *grade
	g.rows[grade.ID] = &clone
	return nil
}

func (g *gradeMem) Delete(ctx context.Context, id string) error {
	if _, ok := g.rows[id]; !ok {
		return sql.ErrNoRows
	}
	if g.referenced[id] {
		return fmt.Errorf("grade %s: %w", id, repository.ErrReferenced)
	}
	delete(g.rows, id)
	return nil
}

type subjectMem struct {
	rows map[string]*models.Subject
}

func (s *subjectMem) List(ctx context.Context) ([]models.Subject, error) {
	out := make([]models.Subject, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, *row)
	}
	return out, nil
}

func (s *subjectMem) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	row, ok := s.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *row
	return &clone, nil
}

func (s *subjectMem) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	for id, row := range s.rows {
		if row.SubjectName == name && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *subjectMem) Create(ctx context.Context, subject *models.Subject) error {
	subject.ID = fmt.Sprintf("s-%d", len(s.rows)+1)
	clone := *subject
	s.rows[subject.ID] = &clone
	return nil
}

func (s *subjectMem) Update(ctx context.Context, subject *models.Subject) error {
	clone := *subject
	s.rows[subject.ID] = &clone
	return nil
}

func (s *subjectMem) Delete(ctx context.Context, id string) error {
	if _, ok := s.rows[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.rows, id)
	return nil
}

type typeMem struct {
	created *models.ResourceType
}

func (t *typeMem) List(ctx context.Context) ([]models.ResourceType, error) { return nil, nil }
func (t *typeMem) FindByID(ctx context.Context, id string) (*models.ResourceType, error) {
	return nil, sql.ErrNoRows
}
func (t *typeMem) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	return false, nil
}
func (t *typeMem) Create(ctx context.Context, rt *models.ResourceType) error {
	rt.ID = "rt-1"
	t.created = rt
	return nil
}
func (t *typeMem) Update(ctx context.Context, rt *models.ResourceType) error { return nil }
func (t *typeMem) Delete(ctx context.Context, id string) error               { return nil }

type tagMem struct {
	deleted []string
}

func (t *tagMem) List(ctx context.Context) ([]models.Tag, error) { return []models.Tag{}, nil }
func (t *tagMem) FindByID(ctx context.Context, id string) (*models.Tag, error) {
	return nil, sql.ErrNoRows
}
func (t *tagMem) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	return false, nil
}
func (t *tagMem) Create(ctx context.Context, tag *models.Tag) error { return nil }
func (t *tagMem) Update(ctx context.Context, tag *models.Tag) error { return nil }
func (t *tagMem) Delete(ctx context.Context, id string) error {
	t.deleted = append(t.deleted, id)
	return nil
}

type statsCounter struct {
	calls int
}

func (s *statsCounter) Stats(ctx context.Context) (*models.Stats, error) {
	s.calls++
	return &models.Stats{TotalResources: int64(s.calls)}, nil
}

type metaFixture struct {
	svc      *MetaService
	grades   *gradeMem
	subjects *subjectMem
	types    *typeMem
	tags     *tagMem
	stats    *statsCounter
}

func newMetaFixture(t *testing.T) *metaFixture {
	t.Helper()
	bc, err := cache.NewMemory(context.Background(), time.Minute)
	require.NoError(t, err)
	repo := repository.NewMemoryCacheRepository(bc)
	t.Cleanup(func() { _ = repo.Close() })

	fx := &metaFixture{
		grades: &gradeMem{
			rows:       map[string]*models.Grade{"g-1": {ID: "g-1", GradeLevel: "Grade 1", GradeNumber: 1}},
			referenced: map[string]bool{},
		},
		subjects: &subjectMem{rows: map[string]*models.Subject{"s-1": {ID: "s-1", SubjectName: "Mathematics"}}},
		types:    &typeMem{},
		tags:     &tagMem{},
		stats:    &statsCounter{},
	}
	cacheSvc := NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)
	fx.svc = NewMetaService(fx.grades, fx.subjects, fx.types, fx.tags, fx.stats, cacheSvc, nil, nil, MetaServiceConfig{})
	return fx
}

func TestMetaServiceListGradesIsCachedUntilWrite(t *testing.T) {
	fx := newMetaFixture(t)
	ctx := context.Background()

	first, err := fx.svc.ListGrades(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	_, err = fx.svc.ListGrades(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fx.grades.listCalls)

	_, err = fx.svc.CreateGrade(ctx, dto.GradeRequest{GradeLevel: "Grade 2", GradeNumber: 2})
	require.NoError(t, err)

	after, err := fx.svc.ListGrades(ctx)
	require.NoError(t, err)
	assert.Len(t, after, 2)
	assert.Equal(t, 2, fx.grades.listCalls)
}

func TestMetaServiceDuplicateNaturalKey(t *testing.T) {
	fx := newMetaFixture(t)
	ctx := context.Background()

	_, err := fx.svc.CreateGrade(ctx, dto.GradeRequest{GradeLevel: "Grade 1", GradeNumber: 1})
	requireCode(t, err, appErrors.ErrConflict.Code)

	_, err = fx.svc.CreateSubject(ctx, dto.SubjectRequest{SubjectName: "Mathematics"})
	requireCode(t, err, appErrors.ErrConflict.Code)

	created, err := fx.svc.CreateSubject(ctx, dto.SubjectRequest{SubjectName: "Science", Color: "#10B981"})
	require.NoError(t, err)
	_, err = fx.svc.UpdateSubject(ctx, created.ID, dto.SubjectRequest{SubjectName: "Mathematics"})
	requireCode(t, err, appErrors.ErrConflict.Code)

	// Renaming a row to its own name is not a conflict.
	_, err = fx.svc.UpdateSubject(ctx, created.ID, dto.SubjectRequest{SubjectName: "Science", Description: "Experiments"})
	require.NoError(t, err)
}

func TestMetaServiceRejectsMarkupInNaturalKeys(t *testing.T) {
	fx := newMetaFixture(t)
	ctx := context.Background()

	_, err := fx.svc.CreateTag(ctx, dto.TagRequest{TagName: "a<b", Color: "#10B981"})
	requireCode(t, err, appErrors.ErrValidation.Code)
	assert.Equal(t, "tag_name must be plain text", appErrors.FromError(err).Message)

	_, err = fx.svc.UpdateGrade(ctx, "g-1", dto.GradeRequest{GradeLevel: "Grade 1", GradeNumber: 1, Description: "<b>first</b>"})
	requireCode(t, err, appErrors.ErrValidation.Code)

	subject, err := fx.svc.CreateSubject(ctx, dto.SubjectRequest{SubjectName: "Numbers < 10", Color: "#10B981"})
	require.NoError(t, err)
	assert.Equal(t, "Numbers < 10", subject.SubjectName)
}

func TestMetaServiceRacingInsertMapsToConflict(t *testing.T) {
	fx := newMetaFixture(t)
	fx.grades.createErr = fmt.Errorf("insert grade: %w", repository.ErrDuplicate)

	_, err := fx.svc.CreateGrade(context.Background(), dto.GradeRequest{GradeLevel: "Grade 5", GradeNumber: 5})
	requireCode(t, err, appErrors.ErrConflict.Code)
}

func TestMetaServiceDeleteGuards(t *testing.T) {
	fx := newMetaFixture(t)
	ctx := context.Background()
	fx.grades.referenced["g-1"] = true

	err := fx.svc.DeleteGrade(ctx, "g-1")
	requireCode(t, err, appErrors.ErrConflict.Code)
	assert.Contains(t, err.Error(), "used by existing resources")

	fx.grades.referenced["g-1"] = false
	require.NoError(t, fx.svc.DeleteGrade(ctx, "g-1"))
	requireCode(t, fx.svc.DeleteGrade(ctx, "g-1"), appErrors.ErrNotFound.Code)

	require.NoError(t, fx.svc.DeleteTag(ctx, "t-1"))
	assert.Equal(t, []string{"t-1"}, fx.tags.deleted)
}

func TestMetaServiceUpdateMissing(t *testing.T) {
	fx := newMetaFixture(t)

	_, err := fx.svc.UpdateGrade(context.Background(), "nope", dto.GradeRequest{GradeLevel: "Grade 9", GradeNumber: 9})
	requireCode(t, err, appErrors.ErrNotFound.Code)
}

func TestMetaServiceValidatesPayload(t *testing.T) {
	fx := newMetaFixture(t)

	_, err := fx.svc.CreateTag(context.Background(), dto.TagRequest{TagName: "Exam", Color: "blue"})
	requireCode(t, err, appErrors.ErrValidation.Code)

	_, err = fx.svc.CreateGrade(context.Background(), dto.GradeRequest{})
	requireCode(t, err, appErrors.ErrValidation.Code)
}

func TestMetaServiceNormalizesExtensions(t *testing.T) {
	fx := newMetaFixture(t)

	rt, err := fx.svc.CreateResourceType(context.Background(), dto.ResourceTypeRequest{TypeName: "Video", AllowedExtensions: " .MP4, mov,,mp4 ,.WebM", MaxFileSize: 500 << 20})
	require.NoError(t, err)
	assert.Equal(t, "mp4,mov,webm", rt.AllowedExtensions)
	assert.Equal(t, []string{"mp4", "mov", "webm"}, fx.types.created.Extensions())
}

func TestMetaServiceStatsCached(t *testing.T) {
	fx := newMetaFixture(t)
	ctx := context.Background()

	first, err := fx.svc.Stats(ctx)
	require.NoError(t, err)
	second, err := fx.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.TotalResources, second.TotalResources)
	assert.Equal(t, 1, fx.stats.calls)
}

func TestMetaServiceWorksWithoutCache(t *testing.T) {
	grades := &gradeMem{rows: map[string]*models.Grade{}, referenced: map[string]bool{}}
	svc := NewMetaService(grades, nil, nil, nil, nil, nil, nil, nil, MetaServiceConfig{})

	_, err := svc.ListGrades(context.Background())
	require.NoError(t, err)
	_, err = svc.ListGrades(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, grades.listCalls)
}
