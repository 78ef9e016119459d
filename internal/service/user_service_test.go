package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/edu-resource-api/internal/dto"
	"github.com/noah-isme/edu-resource-api/internal/models"
	"github.com/noah-isme/edu-resource-api/internal/repository"
	appErrors "github.com/noah-isme/edu-resource-api/pkg/errors"
)

type mockUserRepo struct {
	users      map[string]*models.User
	listUsers  []models.User
	listCount  int
	listFilter models.UserFilter
	listErr    error
	createErr  error
	revokedFor []string
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.listFilter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listUsers, m.listCount, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	user.ID = "new-user"
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) UpdateStatus(ctx context.Context, id string, status models.UserStatus) error {
	user, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	user.Status = status
	return nil
}

func (m *mockUserRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedFor = append(m.revokedFor, userID)
	return nil
}

func TestUserServiceList(t *testing.T) {
	repo := &mockUserRepo{listUsers: []models.User{{ID: "1", Email: "a@edu.local"}}, listCount: 1}
	svc := NewUserService(repo, nil, validator.New(), zap.NewNop())

	users, pagination, err := svc.List(context.Background(), dto.ListUsersQuery{Role: "SCHOOL", Offset: -4})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.Total)
	assert.Equal(t, 20, pagination.Limit)
	assert.Equal(t, models.RoleSchool, repo.listFilter.Role)
	assert.Equal(t, 0, repo.listFilter.Offset)
}

func TestUserServiceCreateSchoolUser(t *testing.T) {
	repo := &mockUserRepo{users: make(map[string]*models.User)}
	audit := &auditRecorder{}
	svc := NewUserService(repo, audit, validator.New(), zap.NewNop())

	user, err := svc.CreateSchoolUser(context.Background(), dto.CreateSchoolUserRequest{
		Name:         "  Budi Santoso ",
		Email:        " Teacher@School.EDU ",
		Password:     "secret1",
		Organization: "SD Negeri 1",
	}, "admin", models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, "teacher@school.edu", user.Email)
	assert.Equal(t, "Budi Santoso", user.Name)
	assert.Equal(t, models.RoleSchool, user.Role)
	assert.Equal(t, models.UserStatusActive, user.Status)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")))
	assert.Equal(t, []string{models.AuditActionUserCreate}, audit.actions())
}

func TestUserServiceCreateSchoolUserDuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"1": {ID: "1", Email: "dup@edu.local"}}}
	svc := NewUserService(repo, nil, nil, nil)

	_, err := svc.CreateSchoolUser(context.Background(), dto.CreateSchoolUserRequest{Name: "X", Email: "DUP@edu.local", Password: "secret1", Organization: "Org"}, "admin", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateSchoolUserRacingInsert(t *testing.T) {
	repo := &mockUserRepo{createErr: repository.ErrDuplicate}
	svc := NewUserService(repo, nil, nil, nil)

	_, err := svc.CreateSchoolUser(context.Background(), dto.CreateSchoolUserRequest{Name: "X", Email: "x@edu.local", Password: "secret1", Organization: "Org"}, "admin", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceUpdateStatusRevokesSessions(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"1": {ID: "1", Email: "a@edu.local", Role: models.RoleSchool, Status: models.UserStatusActive}}}
	svc := NewUserService(repo, nil, validator.New(), zap.NewNop())

	user, err := svc.UpdateStatus(context.Background(), "1", dto.UpdateUserStatusRequest{Status: models.UserStatusBanned}, "admin", models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusBanned, user.Status)
	assert.Equal(t, []string{"1"}, repo.revokedFor)
}

func TestUserServiceUpdateStatusGuards(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"admin": {ID: "admin", Role: models.RoleAdmin, Status: models.UserStatusActive}}}
	svc := NewUserService(repo, nil, validator.New(), zap.NewNop())

	_, err := svc.UpdateStatus(context.Background(), "admin", dto.UpdateUserStatusRequest{Status: models.UserStatusInactive}, "admin", models.LoginRequest{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.UpdateStatus(context.Background(), "missing", dto.UpdateUserStatusRequest{Status: models.UserStatusInactive}, "admin", models.LoginRequest{})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.UpdateStatus(context.Background(), "admin", dto.UpdateUserStatusRequest{Status: "frozen"}, "other", models.LoginRequest{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceListCapsLimit(t *testing.T) {
	repo := &mockUserRepo{}
	svc := NewUserService(repo, nil, nil, nil)

	_, pagination, err := svc.List(context.Background(), dto.ListUsersQuery{Status: " Banned ", Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 100, pagination.Limit)
	assert.Equal(t, 100, repo.listFilter.Limit)
	assert.Equal(t, models.UserStatusBanned, repo.listFilter.Status)
}

func TestUserServiceCreateSchoolUserRejectsMarkup(t *testing.T) {
	repo := &mockUserRepo{users: make(map[string]*models.User)}
	svc := NewUserService(repo, nil, nil, nil)

	_, err := svc.CreateSchoolUser(context.Background(), dto.CreateSchoolUserRequest{
		Name: "Budi <b>Santoso</b>", Email: "budi@edu.local", Password: "secret1", Organization: "SD Negeri 1",
	}, "admin", models.LoginRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Equal(t, "name must be plain text", appErrors.FromError(err).Message)
	assert.Empty(t, repo.users)
}
