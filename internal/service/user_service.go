package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/edu-resource-api/internal/dto"
	"github.com/noah-isme/edu-resource-api/internal/models"
	"github.com/noah-isme/edu-resource-api/internal/repository"
	appErrors "github.com/noah-isme/edu-resource-api/pkg/errors"
	"github.com/noah-isme/edu-resource-api/pkg/sanitize"
)

const (
	defaultUserPage = 20
	maxUserPage     = 100
)

var (
	errUserNotFound = appErrors.Clone(appErrors.ErrNotFound, "user not found")
	errEmailTaken   = appErrors.Clone(appErrors.ErrConflict, "email already exists")
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	UpdateStatus(ctx context.Context, id string, status models.UserStatus) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

// UserService is the admin-facing account directory. Only school accounts
// are created here; admins come from the seed.
type UserService struct {
	repo      userRepository
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

func NewUserService(repo userRepository, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List filters by role, status and a free-text search over name, email and
// organization.
func (s *UserService) List(ctx context.Context, query dto.ListUsersQuery) ([]models.User, *models.Pagination, error) {
	filter := models.UserFilter{
		Role:   models.UserRole(normalizeToken(query.Role)),
		Status: models.UserStatus(normalizeToken(query.Status)),
		Search: strings.TrimSpace(query.Search),
		Limit:  query.Limit,
		Offset: max(query.Offset, 0),
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultUserPage
	case filter.Limit > maxUserPage:
		filter.Limit = maxUserPage
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list users")
	}
	return users, &models.Pagination{Limit: filter.Limit, Offset: filter.Offset, Total: total}, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateUserErr(err, "failed to load user")
	}
	return user, nil
}

// CreateSchoolUser opens an active school account.
func (s *UserService) CreateSchoolUser(ctx context.Context, req dto.CreateSchoolUserRequest, actorID string, meta models.LoginRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}

	var text sanitize.Fields
	name := text.Text("name", req.Name)
	organization := text.Text("organization", req.Organization)
	designation := text.Text("designation", req.Designation)
	if err := text.Err(); err != nil {
		return nil, plainTextError(err)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	switch taken, err := s.repo.ExistsByEmail(ctx, email); {
	case err != nil:
		return nil, internalError(err, "failed to check email uniqueness")
	case taken:
		return nil, errEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), PasswordCost)
	if err != nil {
		return nil, internalError(err, "failed to hash password")
	}
	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleSchool,
		Organization: organization,
		Designation:  designation,
		Status:       models.UserStatusActive,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, errEmailTaken
		}
		return nil, internalError(err, "failed to create user")
	}

	s.audited(ctx, actorID, models.AuditActionUserCreate, user.ID, meta, nil, map[string]interface{}{
		"id": user.ID, "email": user.Email, "role": user.Role, "organization": user.Organization,
	})
	return user, nil
}

// UpdateStatus activates, deactivates or bans an account. Sessions of an
// account leaving the active state are revoked. Admins cannot lock
// themselves out.
func (s *UserService) UpdateStatus(ctx context.Context, id string, req dto.UpdateUserStatusRequest, actorID string, meta models.LoginRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	if id == actorID && req.Status != models.UserStatusActive {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot deactivate your own account")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := user.Status
	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		return nil, translateUserErr(err, "failed to update user status")
	}
	user.Status = req.Status

	if user.Status != models.UserStatusActive {
		if err := s.repo.RevokeUserRefreshTokens(ctx, id); err != nil {
			s.logger.Warn("failed to revoke sessions of deactivated user", zap.String("user_id", id), zap.Error(err))
		}
	}

	s.audited(ctx, actorID, models.AuditActionUserUpdate, user.ID, meta,
		map[string]interface{}{"status": previous},
		map[string]interface{}{"status": user.Status})
	return user, nil
}

func (s *UserService) audited(ctx context.Context, actorID, action, userID string, meta models.LoginRequest, before, after map[string]interface{}) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "users",
		ResourceID: &userID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if before != nil {
		entry.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		entry.NewValues, _ = json.Marshal(after)
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record user audit log", zap.String("action", action), zap.Error(err))
	}
}

func translateUserErr(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errUserNotFound
	}
	return internalError(err, message)
}

func normalizeToken(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
