package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-resource-api/internal/dto"
	"github.com/noah-isme/edu-resource-api/internal/models"
	appErrors "github.com/noah-isme/edu-resource-api/pkg/errors"
	"github.com/noah-isme/edu-resource-api/pkg/export"
	"github.com/noah-isme/edu-resource-api/pkg/jobs"
	"github.com/noah-isme/edu-resource-api/pkg/sanitize"
	"github.com/noah-isme/edu-resource-api/pkg/storage"
	"github.com/noah-isme/edu-resource-api/pkg/upload"
)

// CleanupJobType identifies stored-file removal jobs.
const CleanupJobType = "storage.delete"

const (
	defaultPopularLimit = 10
	maxPopularLimit     = 50
	exportLimit         = 1000
)

type resourceStore interface {
	List(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, int, error)
	FindByID(ctx context.Context, id string) (*models.Resource, error)
	Create(ctx context.Context, res *models.Resource, tagIDs []string) error
	Update(ctx context.Context, res *models.Resource, tagIDs []string) error
	Delete(ctx context.Context, id string) error
	IncrementDownloads(ctx context.Context, id string) (int64, error)
	IncrementViews(ctx context.Context, id string) (int64, error)
	ToggleLike(ctx context.Context, resourceID, userID string) (*models.LikeResult, error)
}

type gradeFinder interface {
	FindByID(ctx context.Context, id string) (*models.Grade, error)
}

type subjectFinder interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type resourceTypeFinder interface {
	FindByID(ctx context.Context, id string) (*models.ResourceType, error)
}

type tagFinder interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Tag, error)
}

type downloadSigner interface {
	Generate(resourceID, storedName string) (string, time.Time, error)
	Parse(token string) (*storage.DownloadClaims, error)
}

type cleanupQueue interface {
	Submit(ctx context.Context, job jobs.Job) error
}

// ResourceCatalog groups the reference lookups a resource write is checked against.
type ResourceCatalog struct {
	Grades   gradeFinder
	Subjects subjectFinder
	Types    resourceTypeFinder
	Tags     tagFinder
}

// FileUpload is one multipart file handed to the service.
type FileUpload struct {
	Name        string
	Size        int64
	ContentType string
	Reader      io.ReadSeeker
}

// ResourceUploads carries the optional files of a resource write.
type ResourceUploads struct {
	File    *FileUpload
	Preview *FileUpload
}

// ResourceDownload is an opened stored file ready for streaming. Callers
// must close Object.
type ResourceDownload struct {
	Resource *models.Resource
	Object   *storage.Object
	FileName string
	MimeType string
}

// ExportResult is a rendered catalog export.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
}

// ResourceServiceConfig holds URL settings.
type ResourceServiceConfig struct {
	APIPrefix string
}

// ResourceService implements resource upload, editing, browsing and download.
type ResourceService struct {
	repo      resourceStore
	catalog   ResourceCatalog
	store     storage.Store
	signer    downloadSigner
	uploads   *upload.Validator
	cleanup   cleanupQueue
	audit     auditLogger
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ResourceServiceConfig
}

// NewResourceService constructs the service. cleanup may be nil, in which
// case superseded files are removed inline.
func NewResourceService(repo resourceStore, catalog ResourceCatalog, store storage.Store, signer downloadSigner, uploads *upload.Validator, cleanup cleanupQueue, audit auditLogger, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ResourceServiceConfig) *ResourceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api"
	}
	return &ResourceService{
		repo:      repo,
		catalog:   catalog,
		store:     store,
		signer:    signer,
		uploads:   uploads,
		cleanup:   cleanup,
		audit:     audit,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Create validates the metadata and files, stores the files under fresh
// names and inserts the row. Stored files are removed if the insert fails.
func (s *ResourceService) Create(ctx context.Context, req dto.CreateResourceRequest, files ResourceUploads, actor *models.JWTClaims) (*models.Resource, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleSchool {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource payload")
	}
	var text sanitize.Fields
	title := text.Text("title", req.Title)
	description := text.Text("description", req.Description)
	if err := text.Err(); err != nil {
		return nil, plainTextError(err)
	}
	if title == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	if files.File == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if err := s.validateUploads(files); err != nil {
		return nil, err
	}

	rt, tagIDs, err := s.checkReferences(ctx, req.GradeID, req.SubjectID, req.TypeID, req.TagIDs)
	if err != nil {
		return nil, err
	}
	if err := s.validateForType(files, rt); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.ResourceStatusPublished
	}
	res := &models.Resource{
		Title:       title,
		Description: description,
		TypeID:      rt.ID,
		SubjectID:   req.SubjectID,
		GradeID:     req.GradeID,
		CreatedBy:   actor.UserID,
		Status:      status,
	}

	stored, err := s.storeUploads(ctx, files, res)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, res, tagIDs); err != nil {
		s.removeNow(ctx, stored...)
		s.metrics.RecordUpload("failed", 0)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save resource")
	}
	s.metrics.RecordUpload("accepted", res.FileSize)
	s.invalidateStats(ctx)

	newPayload, _ := json.Marshal(map[string]interface{}{"title": res.Title, "file_name": res.FileName, "status": res.Status})
	s.emitAudit(ctx, actor, models.AuditActionResourceCreate, res.ID, nil, newPayload)

	s.logger.Info("resource created",
		zap.String("resource_id", res.ID),
		zap.String("user_id", actor.UserID),
		zap.String("file_name", res.FileName),
		zap.Int64("file_size", res.FileSize),
	)
	return s.reload(ctx, res), nil
}

// Update replaces the metadata of a resource and, when files are supplied,
// swaps the stored files. The whole payload is written; concurrent updates
// resolve as last write wins.
func (s *ResourceService) Update(ctx context.Context, id string, req dto.UpdateResourceRequest, files ResourceUploads, actor *models.JWTClaims) (*models.Resource, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource payload")
	}
	var text sanitize.Fields
	title := text.Text("title", req.Title)
	description := text.Text("description", req.Description)
	if err := text.Err(); err != nil {
		return nil, plainTextError(err)
	}
	if title == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title is required")
	}

	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canModify(existing, actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the creator or an admin can modify this resource")
	}

	if err := s.validateUploads(files); err != nil {
		return nil, err
	}
	rt, tagIDs, err := s.checkReferences(ctx, req.GradeID, req.SubjectID, req.TypeID, req.TagIDs)
	if err != nil {
		return nil, err
	}
	if err := s.validateForType(files, rt); err != nil {
		return nil, err
	}

	updated := *existing
	updated.Title = title
	updated.Description = description
	updated.TypeID = rt.ID
	updated.SubjectID = req.SubjectID
	updated.GradeID = req.GradeID
	if req.Status != "" {
		updated.Status = req.Status
	}

	stored, err := s.storeUploads(ctx, files, &updated)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &updated, tagIDs); err != nil {
		s.removeNow(ctx, stored...)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update resource")
	}

	var superseded []string
	if files.File != nil && existing.FileName != "" {
		superseded = append(superseded, existing.FileName)
	}
	if files.Preview != nil && existing.PreviewImage != nil && *existing.PreviewImage != "" {
		superseded = append(superseded, *existing.PreviewImage)
	}
	s.discard(ctx, superseded...)
	if files.File != nil {
		s.metrics.RecordUpload("accepted", updated.FileSize)
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"title": existing.Title, "status": existing.Status, "file_name": existing.FileName})
	newPayload, _ := json.Marshal(map[string]interface{}{"title": updated.Title, "status": updated.Status, "file_name": updated.FileName})
	s.emitAudit(ctx, actor, models.AuditActionResourceUpdate, id, oldPayload, newPayload)

	return s.reload(ctx, &updated), nil
}

// Delete removes the resource row and schedules its stored files for removal.
func (s *ResourceService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	existing, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !canModify(existing, actor) {
		return appErrors.Clone(appErrors.ErrForbidden, "only the creator or an admin can delete this resource")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete resource")
	}
	s.discard(ctx, existing.StoredFiles()...)
	s.invalidateStats(ctx)

	oldPayload, _ := json.Marshal(map[string]interface{}{"title": existing.Title, "file_name": existing.FileName})
	s.emitAudit(ctx, actor, models.AuditActionResourceDelete, id, oldPayload, nil)
	return nil
}

// Get returns one resource and records a view. Drafts are visible to their
// creator and admins only.
func (s *ResourceService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Resource, error) {
	res, err := s.visible(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	views, err := s.repo.IncrementViews(ctx, id)
	if err != nil {
		s.logger.Warn("failed to record resource view", zap.String("resource_id", id), zap.Error(err))
	} else {
		res.ViewCount = views
	}
	return res, nil
}

// List returns a filtered page of resources. Anonymous callers only see
// published resources; a school user asking for drafts only sees their own.
func (s *ResourceService) List(ctx context.Context, query dto.ListResourcesQuery, actor *models.JWTClaims) ([]models.Resource, *models.Pagination, error) {
	filter, err := buildResourceFilter(query)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case actor.IsAdmin():
	case actor == nil || filter.Status == "":
		filter.Status = models.ResourceStatusPublished
	case filter.Status == models.ResourceStatusDraft:
		filter.CreatedBy = actor.UserID
	}
	return s.list(ctx, filter)
}

// ListMine returns the caller's own resources in any status.
func (s *ResourceService) ListMine(ctx context.Context, query dto.ListResourcesQuery, actor *models.JWTClaims) ([]models.Resource, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter, err := buildResourceFilter(query)
	if err != nil {
		return nil, nil, err
	}
	filter.CreatedBy = actor.UserID
	return s.list(ctx, filter)
}

// Popular returns published resources ranked by popularity.
func (s *ResourceService) Popular(ctx context.Context, limit int) ([]models.Resource, error) {
	if limit <= 0 {
		limit = defaultPopularLimit
	}
	if limit > maxPopularLimit {
		limit = maxPopularLimit
	}
	items, _, err := s.repo.List(ctx, models.ResourceFilter{
		Status: models.ResourceStatusPublished,
		Sort:   models.ResourceSortPopular,
		Limit:  limit,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list popular resources")
	}
	return items, nil
}

// Download opens the stored file and counts one download.
func (s *ResourceService) Download(ctx context.Context, id string, actor *models.JWTClaims) (*ResourceDownload, error) {
	res, err := s.visible(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, res, "direct")
}

// DownloadLink issues a signed, expiring URL for the resource file.
func (s *ResourceService) DownloadLink(ctx context.Context, id string, actor *models.JWTClaims) (*dto.DownloadLinkResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	res, err := s.visible(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(res.ID, res.FileName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	return &dto.DownloadLinkResponse{
		URL:       fmt.Sprintf("%s/files/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token),
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

// DownloadByToken serves a signed link. A link dies when its file is replaced.
func (s *ResourceService) DownloadByToken(ctx context.Context, token string) (*ResourceDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	claims, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link has expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	res, err := s.load(ctx, claims.ResourceID)
	if err != nil {
		return nil, err
	}
	if res.FileName != claims.StoredName {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link is no longer valid")
	}
	return s.open(ctx, res, "signed")
}

// OpenStored opens a stored file by name, used for preview images.
func (s *ResourceService) OpenStored(ctx context.Context, name string) (*storage.Object, error) {
	obj, err := s.store.Open(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrInvalidName) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return obj, nil
}

// ToggleLike likes the resource for the caller, or removes an existing like.
func (s *ResourceService) ToggleLike(ctx context.Context, id string, actor *models.JWTClaims) (*models.LikeResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	result, err := s.repo.ToggleLike(ctx, id, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle like")
	}
	return result, nil
}

// Export renders the filtered catalog as CSV or PDF. Admin only.
func (s *ResourceService) Export(ctx context.Context, query dto.ListResourcesQuery, format string, actor *models.JWTClaims) (*ExportResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	exporter, ok := export.ForFormat(format)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	filter, err := buildResourceFilter(query)
	if err != nil {
		return nil, err
	}
	filter.Limit = exportLimit
	filter.Offset = 0

	items, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list resources for export")
	}
	data, err := exporter.Render(resourceDataset(items))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportResult{
		FileName:    fmt.Sprintf("resources-%s.%s", time.Now().UTC().Format("20060102-150405"), exporter.Extension()),
		ContentType: exporter.ContentType(),
		Data:        data,
	}, nil
}

func (s *ResourceService) list(ctx context.Context, filter models.ResourceFilter) ([]models.Resource, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list resources")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > exportLimit {
		limit = exportLimit
	}
	return items, &models.Pagination{Limit: limit, Offset: filter.Offset, Total: total}, nil
}

func (s *ResourceService) load(ctx context.Context, id string) (*models.Resource, error) {
	res, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}
	return res, nil
}

func (s *ResourceService) visible(ctx context.Context, id string, actor *models.JWTClaims) (*models.Resource, error) {
	res, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Status != models.ResourceStatusPublished && !canModify(res, actor) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
	}
	return res, nil
}

func (s *ResourceService) reload(ctx context.Context, res *models.Resource) *models.Resource {
	fresh, err := s.repo.FindByID(ctx, res.ID)
	if err != nil {
		s.logger.Warn("failed to reload resource", zap.String("resource_id", res.ID), zap.Error(err))
		return res
	}
	return fresh
}

func (s *ResourceService) open(ctx context.Context, res *models.Resource, channel string) (*ResourceDownload, error) {
	obj, err := s.store.Open(ctx, res.FileName)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	count, err := s.repo.IncrementDownloads(ctx, res.ID)
	if err != nil {
		obj.Close() //nolint:errcheck
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record download")
	}
	res.DownloadCount = count
	s.metrics.RecordDownload(channel)

	mimeType := res.MimeType
	if mimeType == "" {
		mimeType = obj.ContentType
	}
	return &ResourceDownload{
		Resource: res,
		Object:   obj,
		FileName: res.OriginalName,
		MimeType: mimeType,
	}, nil
}

// checkReferences verifies the grade, subject, type and tags exist and
// returns the type with the de-duplicated tag ids.
func (s *ResourceService) checkReferences(ctx context.Context, gradeID, subjectID, typeID string, tagIDs []string) (*models.ResourceType, []string, error) {
	if _, err := s.catalog.Grades.FindByID(ctx, gradeID); err != nil {
		return nil, nil, referenceError(err, "grade")
	}
	if _, err := s.catalog.Subjects.FindByID(ctx, subjectID); err != nil {
		return nil, nil, referenceError(err, "subject")
	}
	rt, err := s.catalog.Types.FindByID(ctx, typeID)
	if err != nil {
		return nil, nil, referenceError(err, "resource type")
	}

	unique := uniqueIDs(tagIDs)
	if len(unique) == 0 {
		return rt, unique, nil
	}
	tags, err := s.catalog.Tags.FindByIDs(ctx, unique)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tags")
	}
	if len(tags) != len(unique) {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "tag not found")
	}
	return rt, unique, nil
}

// validateUploads applies the global field policies. It runs before any
// lookup so a rejected file never reaches storage.
func (s *ResourceService) validateUploads(files ResourceUploads) error {
	if f := files.File; f != nil {
		if f.Reader == nil {
			return appErrors.Clone(appErrors.ErrValidation, "file is required")
		}
		if err := s.uploads.ValidateFile(f.Name, f.Size); err != nil {
			s.metrics.RecordUpload("rejected", 0)
			return err
		}
	}
	if p := files.Preview; p != nil {
		if p.Reader == nil {
			return appErrors.Clone(appErrors.ErrValidation, "preview image is empty")
		}
		err := s.uploads.ValidatePreview(p.Name, p.Size, p.Reader)
		if rewindErr := rewind(p.Reader); err == nil {
			err = rewindErr
		}
		if err != nil {
			s.metrics.RecordUpload("rejected", 0)
			return err
		}
	}
	return nil
}

// validateForType applies the resource type's own extension list and ceiling.
func (s *ResourceService) validateForType(files ResourceUploads, rt *models.ResourceType) error {
	f := files.File
	if f == nil {
		return nil
	}
	if err := upload.ValidateForType(f.Name, f.Size, rt.TypeName, rt.Extensions(), rt.MaxFileSize); err != nil {
		s.metrics.RecordUpload("rejected", 0)
		return err
	}
	return nil
}

// storeUploads writes the supplied files and points res at them. It returns
// the stored names so callers can roll them back.
func (s *ResourceService) storeUploads(ctx context.Context, files ResourceUploads, res *models.Resource) ([]string, error) {
	var stored []string
	if f := files.File; f != nil {
		mimeType := upload.DetectMIME(f.Reader, f.ContentType)
		if err := rewind(f.Reader); err != nil {
			return nil, err
		}
		name, size, err := storage.SaveUnique(ctx, s.store, f.Name, f.Reader)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
		}
		stored = append(stored, name)
		res.FileName = name
		res.OriginalName = strings.TrimSpace(f.Name)
		res.FileSize = size
		res.MimeType = mimeType
	}
	if p := files.Preview; p != nil {
		name, _, err := storage.SaveUnique(ctx, s.store, p.Name, p.Reader)
		if err != nil {
			s.removeNow(ctx, stored...)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store preview image")
		}
		stored = append(stored, name)
		res.PreviewImage = &name
	}
	return stored, nil
}

// discard hands stored files to the cleanup queue, falling back to inline removal.
func (s *ResourceService) discard(ctx context.Context, names ...string) {
	for _, name := range names {
		if s.cleanup != nil {
			err := s.cleanup.Submit(ctx, jobs.Job{ID: name, Type: CleanupJobType, Payload: name})
			if err == nil {
				continue
			}
			s.logger.Warn("cleanup queue unavailable, removing inline", zap.String("file", name), zap.Error(err))
		}
		s.removeNow(ctx, name)
	}
}

func (s *ResourceService) removeNow(ctx context.Context, names ...string) {
	for _, name := range names {
		if err := s.store.Delete(ctx, name); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			s.metrics.RecordCleanup("failed")
			s.logger.Warn("failed to remove stored file", zap.String("file", name), zap.Error(err))
			continue
		}
		s.metrics.RecordCleanup("removed")
	}
}

func (s *ResourceService) invalidateStats(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, metaStatsKey); err != nil {
		s.logger.Debug("failed to invalidate stats cache", zap.Error(err))
	}
}

func (s *ResourceService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, oldValues, newValues []byte) {
	if s.audit == nil {
		return
	}
	userID := actor.UserID
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "resource",
		ResourceID: &resourceID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  "system",
		UserAgent:  "resource-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record resource audit", zap.String("action", action), zap.Error(err))
	}
}

// NewStorageCleanupHandler returns the job handler that removes stored files
// queued by ResourceService. Missing files count as removed.
func NewStorageCleanupHandler(store storage.Store, metrics *MetricsService, logger *zap.Logger) jobs.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, job jobs.Job) error {
		name, ok := job.Payload.(string)
		if !ok || name == "" {
			logger.Error("cleanup job without file name", zap.String("job_id", job.ID))
			return nil
		}
		if err := store.Delete(ctx, name); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			metrics.RecordCleanup("failed")
			return fmt.Errorf("delete stored file %s: %w", name, err)
		}
		metrics.RecordCleanup("removed")
		logger.Debug("stored file removed", zap.String("file", name))
		return nil
	}
}

func canModify(res *models.Resource, actor *models.JWTClaims) bool {
	if actor == nil {
		return false
	}
	return actor.IsAdmin() || res.CreatedBy == actor.UserID
}

func referenceError(err error, entity string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+entity)
}

func buildResourceFilter(query dto.ListResourcesQuery) (models.ResourceFilter, error) {
	filter := models.ResourceFilter{
		Subject: strings.TrimSpace(query.Subject),
		Grade:   strings.TrimSpace(query.Grade),
		Type:    strings.TrimSpace(query.Type),
		Search:  strings.TrimSpace(query.Search),
		Limit:   query.Limit,
		Offset:  query.Offset,
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if status := strings.ToLower(strings.TrimSpace(query.Status)); status != "" {
		filter.Status = models.ResourceStatus(status)
		if !filter.Status.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "status must be draft or published")
		}
	}
	switch strings.ToLower(strings.TrimSpace(query.Sort)) {
	case "", string(models.ResourceSortNewest):
		filter.Sort = models.ResourceSortNewest
	case string(models.ResourceSortPopular):
		filter.Sort = models.ResourceSortPopular
	default:
		return filter, appErrors.Clone(appErrors.ErrValidation, "sort must be newest or popular")
	}
	return filter, nil
}

func resourceDataset(items []models.Resource) export.Dataset {
	headers := []string{"Title", "Grade", "Subject", "Type", "Status", "Author", "Downloads", "Views", "Likes", "Created"}
	rows := make([]map[string]string, 0, len(items))
	for _, r := range items {
		rows = append(rows, map[string]string{
			"Title":     r.Title,
			"Grade":     r.GradeLevel,
			"Subject":   r.SubjectName,
			"Type":      r.TypeName,
			"Status":    string(r.Status),
			"Author":    r.AuthorName,
			"Downloads": strconv.FormatInt(r.DownloadCount, 10),
			"Views":     strconv.FormatInt(r.ViewCount, 10),
			"Likes":     strconv.FormatInt(r.Likes, 10),
			"Created":   r.CreatedAt.UTC().Format("2006-01-02"),
		})
	}
	return export.Dataset{Title: "Resource Catalog", Headers: headers, Rows: rows}
}

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func rewind(r io.Seeker) error {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	return nil
}
