package handler

import (
	"context"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/noah-isme/edu-resource-api/internal/dto"
	"github.com/noah-isme/edu-resource-api/internal/models"
	"github.com/noah-isme/edu-resource-api/internal/service"
	appErrors "github.com/noah-isme/edu-resource-api/pkg/errors"
	"github.com/noah-isme/edu-resource-api/pkg/response"
	"github.com/noah-isme/edu-resource-api/pkg/storage"
	"github.com/noah-isme/edu-resource-api/pkg/upload"
)

// multipartOverhead leaves room for form fields and boundaries on top of the
// file ceiling.
const (
	multipartOverhead = 1 << 20
	multipartMemory   = 32 << 20
	defaultPopular    = 10
)

type resourceService interface {
	Create(ctx context.Context, req dto.CreateResourceRequest, files service.ResourceUploads, actor *models.JWTClaims) (*models.Resource, error)
	Update(ctx context.Context, id string, req dto.UpdateResourceRequest, files service.ResourceUploads, actor *models.JWTClaims) (*models.Resource, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Resource, error)
	List(ctx context.Context, query dto.ListResourcesQuery, actor *models.JWTClaims) ([]models.Resource, *models.Pagination, error)
	ListMine(ctx context.Context, query dto.ListResourcesQuery, actor *models.JWTClaims) ([]models.Resource, *models.Pagination, error)
	Popular(ctx context.Context, limit int) ([]models.Resource, error)
	Download(ctx context.Context, id string, actor *models.JWTClaims) (*service.ResourceDownload, error)
	DownloadLink(ctx context.Context, id string, actor *models.JWTClaims) (*dto.DownloadLinkResponse, error)
	DownloadByToken(ctx context.Context, token string) (*service.ResourceDownload, error)
	OpenStored(ctx context.Context, name string) (*storage.Object, error)
	ToggleLike(ctx context.Context, id string, actor *models.JWTClaims) (*models.LikeResult, error)
	Export(ctx context.Context, query dto.ListResourcesQuery, format string, actor *models.JWTClaims) (*service.ExportResult, error)
}

type boardService interface {
	Board(ctx context.Context, query dto.BoardQuery) (*models.Board, error)
}

type uploadChecker interface {
	CheckFileCounts(files map[string][]*multipart.FileHeader, requireFile bool) error
}

// ResourceHandler exposes resource upload, browsing and download endpoints.
type ResourceHandler struct {
	service         resourceService
	board           boardService
	uploads         uploadChecker
	maxRequestBytes int64
}

// NewResourceHandler constructs the handler. maxRequestBytes bounds the
// multipart body before it is parsed.
func NewResourceHandler(svc resourceService, board boardService, uploads uploadChecker, maxRequestBytes int64) *ResourceHandler {
	return &ResourceHandler{service: svc, board: board, uploads: uploads, maxRequestBytes: maxRequestBytes}
}

// List godoc
// @Summary List resources
// @Description Published resources for everyone; admins and owners may also see drafts
// @Tags Resources
// @Produce json
// @Param status query string false "published or draft"
// @Param subject query string false "Subject id or name"
// @Param grade query string false "Grade id or level"
// @Param type query string false "Resource type id or name"
// @Param search query string false "Title, description or tag"
// @Param sort query string false "newest or popular"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /resources [get]
func (h *ResourceHandler) List(c *gin.Context) {
	query, ok := bindListQuery(c)
	if !ok {
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// All godoc
// @Summary List every resource
// @Description Authenticated listing; admins also see drafts
// @Tags Resources
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /resources/all [get]
func (h *ResourceHandler) All(c *gin.Context) {
	query, ok := bindListQuery(c)
	if !ok {
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Mine godoc
// @Summary List own uploads
// @Tags Resources
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /resources/mine [get]
func (h *ResourceHandler) Mine(c *gin.Context) {
	query, ok := bindListQuery(c)
	if !ok {
		return
	}
	items, pagination, err := h.service.ListMine(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Popular godoc
// @Summary Most downloaded resources
// @Tags Resources
// @Produce json
// @Param limit query int false "Number of resources"
// @Success 200 {object} response.Envelope
// @Router /resources/popular [get]
func (h *ResourceHandler) Popular(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultPopular)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.service.Popular(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Board godoc
// @Summary Grade board
// @Description Published resources grouped into one column per grade
// @Tags Resources
// @Produce json
// @Param search query string false "Case-insensitive search"
// @Param subjects query []string false "Subject ids" collectionFormat(multi)
// @Param types query []string false "Resource type ids" collectionFormat(multi)
// @Success 200 {object} response.Envelope
// @Router /resources/board [get]
func (h *ResourceHandler) Board(c *gin.Context) {
	var query dto.BoardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	board, err := h.board.Board(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, board, nil)
}

// Export godoc
// @Summary Export catalog
// @Tags Resources
// @Produce application/octet-stream
// @Security BearerAuth
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /resources/export [get]
func (h *ResourceHandler) Export(c *gin.Context) {
	query, ok := bindListQuery(c)
	if !ok {
		return
	}
	result, err := h.service.Export(c.Request.Context(), query, c.DefaultQuery("format", "csv"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", contentDisposition("attachment", result.FileName))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

// Get godoc
// @Summary Get resource
// @Tags Resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id} [get]
func (h *ResourceHandler) Get(c *gin.Context) {
	res, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Create godoc
// @Summary Upload resource
// @Tags Resources
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Resource file"
// @Param preview_image formData file false "Preview image"
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param type_id formData string true "Resource type"
// @Param subject_id formData string true "Subject"
// @Param grade_id formData string true "Grade"
// @Param status formData string false "draft or published"
// @Param tag_ids formData string false "Comma separated tag ids"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /resources [post]
func (h *ResourceHandler) Create(c *gin.Context) {
	form, ok := h.parseMultipart(c, true)
	if !ok {
		return
	}

	var req dto.CreateResourceRequest
	if err := c.ShouldBindWith(&req, binding.FormMultipart); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.TagIDs = dto.SplitList(req.TagIDs)

	files, closeAll, err := openUploads(form)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeAll()

	res, err := h.service.Create(c.Request.Context(), req, files, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Resource uploaded successfully", dto.CreateResourceResponse{ResourceID: res.ID, Resource: res})
}

// Update godoc
// @Summary Update resource
// @Description Accepts JSON metadata or a multipart body with optional replacement files
// @Tags Resources
// @Accept json,multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Resource ID"
// @Param payload body dto.UpdateResourceRequest true "Resource metadata"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id} [put]
func (h *ResourceHandler) Update(c *gin.Context) {
	var (
		req   dto.UpdateResourceRequest
		files service.ResourceUploads
	)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		form, ok := h.parseMultipart(c, false)
		if !ok {
			return
		}
		if err := c.ShouldBindWith(&req, binding.FormMultipart); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
		opened, closeAll, err := openUploads(form)
		if err != nil {
			response.Error(c, err)
			return
		}
		defer closeAll()
		files = opened
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.TagIDs = dto.SplitList(req.TagIDs)

	res, err := h.service.Update(c.Request.Context(), c.Param("id"), req, files, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Resource updated successfully", res)
}

// Delete godoc
// @Summary Delete resource
// @Tags Resources
// @Produce json
// @Security BearerAuth
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resources/{id} [delete]
func (h *ResourceHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Resource deleted successfully", nil)
}

// Like godoc
// @Summary Toggle like
// @Tags Resources
// @Produce json
// @Security BearerAuth
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Router /resources/{id}/like [post]
func (h *ResourceHandler) Like(c *gin.Context) {
	result, err := h.service.ToggleLike(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download resource file
// @Description Streams the file and increments the download counter
// @Tags Resources
// @Produce application/octet-stream
// @Param id path string true "Resource ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /resources/{id}/download [get]
func (h *ResourceHandler) Download(c *gin.Context) {
	dl, err := h.service.Download(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveObject(c, dl.Object, dl.FileName, dl.MimeType, "attachment")
}

// DownloadLink godoc
// @Summary Signed download link
// @Tags Resources
// @Produce json
// @Security BearerAuth
// @Param id path string true "Resource ID"
// @Success 200 {object} response.Envelope
// @Router /resources/{id}/download-link [post]
func (h *ResourceHandler) DownloadLink(c *gin.Context) {
	link, err := h.service.DownloadLink(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// SignedDownload godoc
// @Summary Download through a signed link
// @Tags Files
// @Produce application/octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /files/{token} [get]
func (h *ResourceHandler) SignedDownload(c *gin.Context) {
	dl, err := h.service.DownloadByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveObject(c, dl.Object, dl.FileName, dl.MimeType, "attachment")
}

// Uploaded godoc
// @Summary Serve stored upload
// @Description Serves preview images and files inline by stored name
// @Tags Files
// @Produce octet-stream
// @Param name path string true "Stored name"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /uploads/{name} [get]
func (h *ResourceHandler) Uploaded(c *gin.Context) {
	obj, err := h.service.OpenStored(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveObject(c, obj, obj.Name, obj.ContentType, "inline")
}

// parseMultipart bounds and parses the body, then checks file counts.
func (h *ResourceHandler) parseMultipart(c *gin.Context, requireFile bool) (*multipart.Form, bool) {
	if h.maxRequestBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxRequestBytes+multipartOverhead)
	}
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.Clone(appErrors.ErrFileTooLarge, "File too large. Maximum size is "+upload.HumanSize(h.maxRequestBytes)+"."))
			return nil, false
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart payload"))
		return nil, false
	}
	form := c.Request.MultipartForm
	if err := h.uploads.CheckFileCounts(form.File, requireFile); err != nil {
		response.Error(c, err)
		return nil, false
	}
	return form, true
}

// openUploads opens the file and preview parts. The returned func closes
// whatever was opened.
func openUploads(form *multipart.Form) (service.ResourceUploads, func(), error) {
	var (
		uploads service.ResourceUploads
		opened  []multipart.File
	)
	closeAll := func() {
		for _, f := range opened {
			f.Close() //nolint:errcheck
		}
	}
	open := func(field string) (*service.FileUpload, error) {
		headers := form.File[field]
		if len(headers) == 0 {
			return nil, nil
		}
		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read "+field)
		}
		opened = append(opened, f)
		return &service.FileUpload{
			Name:        fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get("Content-Type"),
			Reader:      f,
		}, nil
	}

	var err error
	if uploads.File, err = open(upload.FieldFile); err != nil {
		closeAll()
		return uploads, func() {}, err
	}
	if uploads.Preview, err = open(upload.FieldPreview); err != nil {
		closeAll()
		return uploads, func() {}, err
	}
	return uploads, closeAll, nil
}

func bindListQuery(c *gin.Context) (dto.ListResourcesQuery, bool) {
	var query dto.ListResourcesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return query, false
	}
	return query, true
}

// serveObject streams obj and closes it. Seekable drivers get byte-range
// support through http.ServeContent.
func serveObject(c *gin.Context, obj *storage.Object, fileName, mimeType, disposition string) {
	defer obj.Close() //nolint:errcheck

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	c.Header("Content-Disposition", contentDisposition(disposition, fileName))
	c.Header("X-Content-Type-Options", "nosniff")

	if rs, ok := obj.Seeker(); ok {
		c.Header("Content-Type", mimeType)
		http.ServeContent(c.Writer, c.Request, fileName, obj.ModTime, rs)
		return
	}
	c.DataFromReader(http.StatusOK, obj.Size, mimeType, obj, nil)
}

func contentDisposition(disposition, fileName string) string {
	if fileName == "" {
		return disposition
	}
	if v := mime.FormatMediaType(disposition, map[string]string{"filename": fileName}); v != "" {
		return v
	}
	return disposition
}
