package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-resource-api/internal/dto"
	"github.com/noah-isme/edu-resource-api/internal/models"
	"github.com/noah-isme/edu-resource-api/pkg/response"
)

type metaService interface {
	ListGrades(ctx context.Context) ([]models.Grade, error)
	CreateGrade(ctx context.Context, req dto.GradeRequest) (*models.Grade, error)
	UpdateGrade(ctx context.Context, id string, req dto.GradeRequest) (*models.Grade, error)
	DeleteGrade(ctx context.Context, id string) error

	ListSubjects(ctx context.Context) ([]models.Subject, error)
	CreateSubject(ctx context.Context, req dto.SubjectRequest) (*models.Subject, error)
	UpdateSubject(ctx context.Context, id string, req dto.SubjectRequest) (*models.Subject, error)
	DeleteSubject(ctx context.Context, id string) error

	ListResourceTypes(ctx context.Context) ([]models.ResourceType, error)
	CreateResourceType(ctx context.Context, req dto.ResourceTypeRequest) (*models.ResourceType, error)
	UpdateResourceType(ctx context.Context, id string, req dto.ResourceTypeRequest) (*models.ResourceType, error)
	DeleteResourceType(ctx context.Context, id string) error

	ListTags(ctx context.Context) ([]models.Tag, error)
	CreateTag(ctx context.Context, req dto.TagRequest) (*models.Tag, error)
	UpdateTag(ctx context.Context, id string, req dto.TagRequest) (*models.Tag, error)
	DeleteTag(ctx context.Context, id string) error

	Stats(ctx context.Context) (*models.Stats, error)
}

// MetaHandler serves the reference entities used to classify resources.
type MetaHandler struct {
	service metaService
}

// NewMetaHandler constructs the handler.
func NewMetaHandler(svc metaService) *MetaHandler {
	return &MetaHandler{service: svc}
}

// ListGrades godoc
// @Summary List grades
// @Tags Meta
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /meta/grades [get]
func (h *MetaHandler) ListGrades(c *gin.Context) {
	grades, err := h.service.ListGrades(c.Request.Context())
	respondList(c, grades, err)
}

// CreateGrade godoc
// @Summary Create grade
// @Tags Meta
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.GradeRequest true "Grade"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meta/grades [post]
func (h *MetaHandler) CreateGrade(c *gin.Context) {
	var req dto.GradeRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	grade, err := h.service.CreateGrade(c.Request.Context(), req)
	respondCreated(c, "Grade created successfully", grade, err)
}

// UpdateGrade godoc
// @Summary Update grade
// @Tags Meta
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Grade ID"
// @Param payload body dto.GradeRequest true "Grade"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meta/grades/{id} [put]
func (h *MetaHandler) UpdateGrade(c *gin.Context) {
	var req dto.GradeRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	grade, err := h.service.UpdateGrade(c.Request.Context(), c.Param("id"), req)
	respondUpdated(c, "Grade updated successfully", grade, err)
}

// DeleteGrade godoc
// @Summary Delete grade
// @Description Refused with 409 while resources use the grade
// @Tags Meta
// @Produce json
// @Security BearerAuth
// @Param id path string true "Grade ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meta/grades/{id} [delete]
func (h *MetaHandler) DeleteGrade(c *gin.Context) {
	respondDeleted(c, "Grade deleted successfully", h.service.DeleteGrade(c.Request.Context(), c.Param("id")))
}

// ListSubjects godoc
// @Summary List subjects
// @Tags Meta
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /meta/subjects [get]
func (h *MetaHandler) ListSubjects(c *gin.Context) {
	subjects, err := h.service.ListSubjects(c.Request.Context())
	respondList(c, subjects, err)
}

// CreateSubject godoc
// @Summary Create subject
// @Tags Meta
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SubjectRequest true "Subject"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meta/subjects [post]
func (h *MetaHandler) CreateSubject(c *gin.Context) {
	var req dto.SubjectRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	subject, err := h.service.CreateSubject(c.Request.Context(), req)
	respondCreated(c, "Subject created successfully", subject, err)
}

// UpdateSubject godoc
// @Summary Update subject
// @Tags Meta
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subject ID"
// @Param payload body dto.SubjectRequest true "Subject"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meta/subjects/{id} [put]
func (h *MetaHandler) UpdateSubject(c *gin.Context) {
	var req dto.SubjectRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	subject, err := h.service.UpdateSubject(c.Request.Context(), c.Param("id"), req)
	respondUpdated(c, "Subject updated successfully", subject, err)
}

// DeleteSubject godoc
// @Summary Delete subject
// @Description Refused with 409 while resources use the subject
// @Tags Meta
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meta/subjects/{id} [delete]
func (h *MetaHandler) DeleteSubject(c *gin.Context) {
	respondDeleted(c, "Subject deleted successfully", h.service.DeleteSubject(c.Request.Context(), c.Param("id")))
}

// ListResourceTypes godoc
// @Summary List resource types
// @Tags Meta
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /meta/resource-types [get]
func (h *MetaHandler) ListResourceTypes(c *gin.Context) {
	types, err := h.service.ListResourceTypes(c.Request.Context())
	respondList(c, types, err)
}

// CreateResourceType godoc
// @Summary Create resource type
// @Tags Meta
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ResourceTypeRequest true "Resource type"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meta/resource-types [post]
func (h *MetaHandler) CreateResourceType(c *gin.Context) {
	var req dto.ResourceTypeRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	rt, err := h.service.CreateResourceType(c.Request.Context(), req)
	respondCreated(c, "Resource type created successfully", rt, err)
}

// UpdateResourceType godoc
// @Summary Update resource type
// @Tags Meta
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Resource type ID"
// @Param payload body dto.ResourceTypeRequest true "Resource type"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meta/resource-types/{id} [put]
func (h *MetaHandler) UpdateResourceType(c *gin.Context) {
	var req dto.ResourceTypeRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	rt, err := h.service.UpdateResourceType(c.Request.Context(), c.Param("id"), req)
	respondUpdated(c, "Resource type updated successfully", rt, err)
}

// DeleteResourceType godoc
// @Summary Delete resource type
// @Description Refused with 409 while resources use the type
// @Tags Meta
// @Produce json
// @Security BearerAuth
// @Param id path string true "Resource type ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meta/resource-types/{id} [delete]
func (h *MetaHandler) DeleteResourceType(c *gin.Context) {
	respondDeleted(c, "Resource type deleted successfully", h.service.DeleteResourceType(c.Request.Context(), c.Param("id")))
}

// ListTags godoc
// @Summary List tags
// @Tags Meta
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /meta/tags [get]
func (h *MetaHandler) ListTags(c *gin.Context) {
	tags, err := h.service.ListTags(c.Request.Context())
	respondList(c, tags, err)
}

// CreateTag godoc
// @Summary Create tag
// @Tags Meta
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.TagRequest true "Tag"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meta/tags [post]
func (h *MetaHandler) CreateTag(c *gin.Context) {
	var req dto.TagRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	tag, err := h.service.CreateTag(c.Request.Context(), req)
	respondCreated(c, "Tag created successfully", tag, err)
}

// UpdateTag godoc
// @Summary Update tag
// @Tags Meta
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Tag ID"
// @Param payload body dto.TagRequest true "Tag"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meta/tags/{id} [put]
func (h *MetaHandler) UpdateTag(c *gin.Context) {
	var req dto.TagRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	tag, err := h.service.UpdateTag(c.Request.Context(), c.Param("id"), req)
	respondUpdated(c, "Tag updated successfully", tag, err)
}

// DeleteTag godoc
// @Summary Delete tag
// @Description Removes the tag from every resource
// @Tags Meta
// @Produce json
// @Security BearerAuth
// @Param id path string true "Tag ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /meta/tags/{id} [delete]
func (h *MetaHandler) DeleteTag(c *gin.Context) {
	respondDeleted(c, "Tag deleted successfully", h.service.DeleteTag(c.Request.Context(), c.Param("id")))
}

// Stats godoc
// @Summary Catalog totals
// @Tags Meta
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /meta/stats [get]
func (h *MetaHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

func respondList(c *gin.Context, data interface{}, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, data, nil)
}

func respondCreated(c *gin.Context, message string, data interface{}, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, message, data)
}

func respondUpdated(c *gin.Context, message string, data interface{}, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, message, data)
}

func respondDeleted(c *gin.Context, message string, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, message, nil)
}
