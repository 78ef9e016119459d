package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-resource-api/internal/dto"
	"github.com/noah-isme/edu-resource-api/internal/models"
	"github.com/noah-isme/edu-resource-api/internal/repository"
	appErrors "github.com/noah-isme/edu-resource-api/pkg/errors"
	"github.com/noah-isme/edu-resource-api/pkg/sanitize"
)

// Cache keys owned by MetaService. Every reference write drops MetaCachePattern.
const (
	MetaCachePattern     = "meta:*"
	metaGradesKey        = "meta:grades"
	metaSubjectsKey      = "meta:subjects"
	metaResourceTypesKey = "meta:resource-types"
	metaTagsKey          = "meta:tags"
	metaStatsKey         = "meta:stats"
)

type gradeStore interface {
	List(ctx context.Context) ([]models.Grade, error)
	FindByID(ctx context.Context, id string) (*models.Grade, error)
	ExistsByLevel(ctx context.Context, level, excludeID string) (bool, error)
	Create(ctx context.Context, grade *models.Grade) error
	Update(ctx context.Context, grade *models.Grade) error
	Delete(ctx context.Context, id string) error
}

type subjectStore interface {
	List(ctx context.Context) ([]models.Subject, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
}

type resourceTypeStore interface {
	List(ctx context.Context) ([]models.ResourceType, error)
	FindByID(ctx context.Context, id string) (*models.ResourceType, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, rt *models.ResourceType) error
	Update(ctx context.Context, rt *models.ResourceType) error
	Delete(ctx context.Context, id string) error
}

type tagStore interface {
	List(ctx context.Context) ([]models.Tag, error)
	FindByID(ctx context.Context, id string) (*models.Tag, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, tag *models.Tag) error
	Update(ctx context.Context, tag *models.Tag) error
	Delete(ctx context.Context, id string) error
}

type statsProvider interface {
	Stats(ctx context.Context) (*models.Stats, error)
}

// MetaServiceConfig controls cache lifetimes.
type MetaServiceConfig struct {
	ListTTL  time.Duration
	StatsTTL time.Duration
}

// MetaService manages grades, subjects, resource types and tags.
type MetaService struct {
	grades    gradeStore
	subjects  subjectStore
	types     resourceTypeStore
	tags      tagStore
	stats     statsProvider
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       MetaServiceConfig
}

// NewMetaService wires the reference repositories.
func NewMetaService(grades gradeStore, subjects subjectStore, types resourceTypeStore, tags tagStore, stats statsProvider, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cfg MetaServiceConfig) *MetaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = 10 * time.Minute
	}
	if cfg.StatsTTL <= 0 {
		cfg.StatsTTL = 30 * time.Second
	}
	return &MetaService{
		grades:    grades,
		subjects:  subjects,
		types:     types,
		tags:      tags,
		stats:     stats,
		cache:     cache,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// ListGrades returns all grades ordered by grade number.
func (s *MetaService) ListGrades(ctx context.Context) ([]models.Grade, error) {
	grades, err := cacheAside(ctx, s.cache, metaGradesKey, s.cfg.ListTTL, s.grades.List)
	if err != nil {
		return nil, internalError(err, "failed to list grades")
	}
	return grades, nil
}

// CreateGrade adds a grade with a unique label.
func (s *MetaService) CreateGrade(ctx context.Context, req dto.GradeRequest) (*models.Grade, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	key, description, err := plainText("grade_level", req.GradeLevel, req.Description)
	if err != nil {
		return nil, err
	}
	grade := &models.Grade{
		GradeLevel:  key,
		GradeNumber: req.GradeNumber,
		Description: description,
	}
	if err := s.ensureUnique(s.grades.ExistsByLevel(ctx, grade.GradeLevel, "")); err != nil {
		return nil, metaConflict(err, "grade", grade.GradeLevel)
	}
	if err := s.grades.Create(ctx, grade); err != nil {
		return nil, translateMetaWrite(err, "grade", grade.GradeLevel)
	}
	s.invalidate(ctx)
	return grade, nil
}

// UpdateGrade replaces a grade's fields.
func (s *MetaService) UpdateGrade(ctx context.Context, id string, req dto.GradeRequest) (*models.Grade, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	key, description, err := plainText("grade_level", req.GradeLevel, req.Description)
	if err != nil {
		return nil, err
	}
	grade, err := s.grades.FindByID(ctx, id)
	if err != nil {
		return nil, translateMetaRead(err, "grade")
	}
	grade.GradeLevel = key
	grade.GradeNumber = req.GradeNumber
	grade.Description = description
	if err := s.ensureUnique(s.grades.ExistsByLevel(ctx, grade.GradeLevel, id)); err != nil {
		return nil, metaConflict(err, "grade", grade.GradeLevel)
	}
	if err := s.grades.Update(ctx, grade); err != nil {
		return nil, translateMetaWrite(err, "grade", grade.GradeLevel)
	}
	s.invalidate(ctx)
	return grade, nil
}

// DeleteGrade removes a grade that no resource uses.
func (s *MetaService) DeleteGrade(ctx context.Context, id string) error {
	if err := s.grades.Delete(ctx, id); err != nil {
		return translateMetaDelete(err, "grade")
	}
	s.invalidate(ctx)
	return nil
}

// ListSubjects returns all subjects.
func (s *MetaService) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	subjects, err := cacheAside(ctx, s.cache, metaSubjectsKey, s.cfg.ListTTL, s.subjects.List)
	if err != nil {
		return nil, internalError(err, "failed to list subjects")
	}
	return subjects, nil
}

// CreateSubject adds a subject with a unique name.
func (s *MetaService) CreateSubject(ctx context.Context, req dto.SubjectRequest) (*models.Subject, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	key, description, err := plainText("subject_name", req.SubjectName, req.Description)
	if err != nil {
		return nil, err
	}
	subject := &models.Subject{
		SubjectName: key,
		Color:       req.Color,
		Description: description,
	}
	if err := s.ensureUnique(s.subjects.ExistsByName(ctx, subject.SubjectName, "")); err != nil {
		return nil, metaConflict(err, "subject", subject.SubjectName)
	}
	if err := s.subjects.Create(ctx, subject); err != nil {
		return nil, translateMetaWrite(err, "subject", subject.SubjectName)
	}
	s.invalidate(ctx)
	return subject, nil
}

// UpdateSubject replaces a subject's fields.
func (s *MetaService) UpdateSubject(ctx context.Context, id string, req dto.SubjectRequest) (*models.Subject, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	key, description, err := plainText("subject_name", req.SubjectName, req.Description)
	if err != nil {
		return nil, err
	}
	subject, err := s.subjects.FindByID(ctx, id)
	if err != nil {
		return nil, translateMetaRead(err, "subject")
	}
	subject.SubjectName = key
	subject.Color = req.Color
	subject.Description = description
	if err := s.ensureUnique(s.subjects.ExistsByName(ctx, subject.SubjectName, id)); err != nil {
		return nil, metaConflict(err, "subject", subject.SubjectName)
	}
	if err := s.subjects.Update(ctx, subject); err != nil {
		return nil, translateMetaWrite(err, "subject", subject.SubjectName)
	}
	s.invalidate(ctx)
	return subject, nil
}

// DeleteSubject removes a subject that no resource uses.
func (s *MetaService) DeleteSubject(ctx context.Context, id string) error {
	if err := s.subjects.Delete(ctx, id); err != nil {
		return translateMetaDelete(err, "subject")
	}
	s.invalidate(ctx)
	return nil
}

// ListResourceTypes returns all resource types.
func (s *MetaService) ListResourceTypes(ctx context.Context) ([]models.ResourceType, error) {
	types, err := cacheAside(ctx, s.cache, metaResourceTypesKey, s.cfg.ListTTL, s.types.List)
	if err != nil {
		return nil, internalError(err, "failed to list resource types")
	}
	return types, nil
}

// CreateResourceType adds a resource type with a unique name.
func (s *MetaService) CreateResourceType(ctx context.Context, req dto.ResourceTypeRequest) (*models.ResourceType, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	key, description, err := plainText("type_name", req.TypeName, req.Description)
	if err != nil {
		return nil, err
	}
	rt := &models.ResourceType{
		TypeName:          key,
		AllowedExtensions: normalizeExtensions(req.AllowedExtensions),
		Icon:              strings.TrimSpace(req.Icon),
		MaxFileSize:       req.MaxFileSize,
		Description:       description,
	}
	if err := s.ensureUnique(s.types.ExistsByName(ctx, rt.TypeName, "")); err != nil {
		return nil, metaConflict(err, "resource type", rt.TypeName)
	}
	if err := s.types.Create(ctx, rt); err != nil {
		return nil, translateMetaWrite(err, "resource type", rt.TypeName)
	}
	s.invalidate(ctx)
	return rt, nil
}

// UpdateResourceType replaces a resource type's fields.
func (s *MetaService) UpdateResourceType(ctx context.Context, id string, req dto.ResourceTypeRequest) (*models.ResourceType, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	key, description, err := plainText("type_name", req.TypeName, req.Description)
	if err != nil {
		return nil, err
	}
	rt, err := s.types.FindByID(ctx, id)
	if err != nil {
		return nil, translateMetaRead(err, "resource type")
	}
	rt.TypeName = key
	rt.AllowedExtensions = normalizeExtensions(req.AllowedExtensions)
	rt.Icon = strings.TrimSpace(req.Icon)
	rt.MaxFileSize = req.MaxFileSize
	rt.Description = description
	if err := s.ensureUnique(s.types.ExistsByName(ctx, rt.TypeName, id)); err != nil {
		return nil, metaConflict(err, "resource type", rt.TypeName)
	}
	if err := s.types.Update(ctx, rt); err != nil {
		return nil, translateMetaWrite(err, "resource type", rt.TypeName)
	}
	s.invalidate(ctx)
	return rt, nil
}

// DeleteResourceType removes a resource type that no resource uses.
func (s *MetaService) DeleteResourceType(ctx context.Context, id string) error {
	if err := s.types.Delete(ctx, id); err != nil {
		return translateMetaDelete(err, "resource type")
	}
	s.invalidate(ctx)
	return nil
}

// ListTags returns all tags.
func (s *MetaService) ListTags(ctx context.Context) ([]models.Tag, error) {
	tags, err := cacheAside(ctx, s.cache, metaTagsKey, s.cfg.ListTTL, s.tags.List)
	if err != nil {
		return nil, internalError(err, "failed to list tags")
	}
	return tags, nil
}

// CreateTag adds a tag with a unique name.
func (s *MetaService) CreateTag(ctx context.Context, req dto.TagRequest) (*models.Tag, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	key, description, err := plainText("tag_name", req.TagName, req.Description)
	if err != nil {
		return nil, err
	}
	tag := &models.Tag{
		TagName:     key,
		Color:       req.Color,
		Description: description,
	}
	if err := s.ensureUnique(s.tags.ExistsByName(ctx, tag.TagName, "")); err != nil {
		return nil, metaConflict(err, "tag", tag.TagName)
	}
	if err := s.tags.Create(ctx, tag); err != nil {
		return nil, translateMetaWrite(err, "tag", tag.TagName)
	}
	s.invalidate(ctx)
	return tag, nil
}

// UpdateTag replaces a tag's fields.
func (s *MetaService) UpdateTag(ctx context.Context, id string, req dto.TagRequest) (*models.Tag, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	key, description, err := plainText("tag_name", req.TagName, req.Description)
	if err != nil {
		return nil, err
	}
	tag, err := s.tags.FindByID(ctx, id)
	if err != nil {
		return nil, translateMetaRead(err, "tag")
	}
	tag.TagName = key
	tag.Color = req.Color
	tag.Description = description
	if err := s.ensureUnique(s.tags.ExistsByName(ctx, tag.TagName, id)); err != nil {
		return nil, metaConflict(err, "tag", tag.TagName)
	}
	if err := s.tags.Update(ctx, tag); err != nil {
		return nil, translateMetaWrite(err, "tag", tag.TagName)
	}
	s.invalidate(ctx)
	return tag, nil
}

// DeleteTag removes a tag and detaches it from every resource.
func (s *MetaService) DeleteTag(ctx context.Context, id string) error {
	if err := s.tags.Delete(ctx, id); err != nil {
		return translateMetaDelete(err, "tag")
	}
	s.invalidate(ctx)
	return nil
}

// Stats returns catalog totals, cached briefly.
func (s *MetaService) Stats(ctx context.Context) (*models.Stats, error) {
	stats, err := cacheAside(ctx, s.cache, metaStatsKey, s.cfg.StatsTTL, s.stats.Stats)
	if err != nil {
		return nil, internalError(err, "failed to load stats")
	}
	return stats, nil
}

func (s *MetaService) validate(req interface{}) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	return nil
}

var errNameTaken = errors.New("name taken")

func (s *MetaService) ensureUnique(exists bool, err error) error {
	if err != nil {
		return err
	}
	if exists {
		return errNameTaken
	}
	return nil
}

func (s *MetaService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, MetaCachePattern); err != nil {
		s.logger.Warn("failed to invalidate meta cache", zap.Error(err))
	}
}

func metaConflict(err error, entity, name string) error {
	if errors.Is(err, errNameTaken) {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s %q already exists", entity, name))
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to check %s uniqueness", entity))
}

// plainText checks a reference row's natural key and description.
func plainText(keyField, key, description string) (string, string, error) {
	var text sanitize.Fields
	key = text.Text(keyField, key)
	description = text.Text("description", description)
	if err := text.Err(); err != nil {
		return "", "", plainTextError(err)
	}
	return key, description, nil
}

func translateMetaRead(err error, entity string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+entity)
}

func translateMetaWrite(err error, entity, name string) error {
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s %q already exists", entity, name))
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save "+entity)
	}
}

func translateMetaDelete(err error, entity string) error {
	switch {
	case errors.Is(err, repository.ErrReferenced):
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot delete %s: it is used by existing resources", entity))
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete "+entity)
	}
}

// normalizeExtensions lower-cases a comma list and strips dots and blanks.
func normalizeExtensions(raw string) string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(p), "."))
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return strings.Join(out, ",")
}
