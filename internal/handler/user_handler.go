package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-resource-api/internal/dto"
	"github.com/noah-isme/edu-resource-api/internal/models"
	appErrors "github.com/noah-isme/edu-resource-api/pkg/errors"
	"github.com/noah-isme/edu-resource-api/pkg/response"
)

type userService interface {
	List(ctx context.Context, query dto.ListUsersQuery) ([]models.User, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.User, error)
	CreateSchoolUser(ctx context.Context, req dto.CreateSchoolUserRequest, actorID string, meta models.LoginRequest) (*models.User, error)
	UpdateStatus(ctx context.Context, id string, req dto.UpdateUserStatusRequest, actorID string, meta models.LoginRequest) (*models.User, error)
}

// UserHandler exposes admin user management.
type UserHandler struct {
	service userService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

// List godoc
// @Summary List users
// @Description List users with filtering and pagination
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param role query string false "admin or school"
// @Param status query string false "active, inactive or banned"
// @Param search query string false "Name, email or organization"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	var query dto.ListUsersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	users, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, users, pagination)
}

// Get godoc
// @Summary Get user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// CreateSchool godoc
// @Summary Create school account
// @Description Admin creates an active school user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateSchoolUserRequest true "School account"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /users/schools [post]
func (h *UserHandler) CreateSchool(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	var req dto.CreateSchoolUserRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}

	user, err := h.service.CreateSchoolUser(c.Request.Context(), req, claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "School user created successfully", user)
}

// UpdateStatus godoc
// @Summary Update account status
// @Description Deactivating or banning an account revokes its sessions
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param payload body dto.UpdateUserStatusRequest true "New status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /users/{id}/status [patch]
func (h *UserHandler) UpdateStatus(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	var req dto.UpdateUserStatusRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}

	user, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req, claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, "User status updated successfully", user)
}
