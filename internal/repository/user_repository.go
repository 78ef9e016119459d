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
	userColumns = `id, name, email, password_hash, role, COALESCE(organization, '') AS organization, COALESCE(designation, '') AS designation, status, last_login, created_at, updated_at`

	refreshTokenColumns = `id, user_id, token_hash, expires_at, created_at, revoked, revoked_at, ip_address, user_agent`

	defaultUserLimit = 20
	maxUserLimit     = 100
)

// UserRepository stores accounts and their refresh token sessions.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail matches email case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "LOWER(email) = LOWER($1)", email, "find user by email")
}

// FindByID returns sql.ErrNoRows for unknown ids.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, "id = $1", id, "find user by id")
}

func (r *UserRepository) findOne(ctx context.Context, predicate string, arg interface{}, op string) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, "SELECT "+userColumns+" FROM users WHERE "+predicate+" LIMIT 1", arg)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

// ExistsByEmail reports whether an account already uses email.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// List pages accounts newest first and returns the unpaged total.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var c conditions
	if filter.Role != "" {
		c.add("role = $%d", filter.Role)
	}
	if filter.Status != "" {
		c.add("status = $%d", filter.Status)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		c.add("(LOWER(email) LIKE $%[1]d OR LOWER(name) LIKE $%[1]d OR LOWER(COALESCE(organization, '')) LIKE $%[1]d)", likePattern(term))
	}
	where := c.where()
	limit, offset := pageWindow(filter.Limit, filter.Offset, defaultUserLimit, maxUserLimit)

	var users []models.User
	page := fmt.Sprintf("SELECT %s FROM users%s ORDER BY created_at DESC LIMIT %d OFFSET %d", userColumns, where, limit, offset)
	if err := r.db.SelectContext(ctx, &users, page, c.args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM users"+where, c.args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

// Create assigns an id and timestamps when missing. A taken email yields ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.UpdatedAt = time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = user.UpdatedAt
	}

	_, err := r.db.NamedExecContext(ctx, `INSERT INTO users
		(id, name, email, password_hash, role, organization, designation, status, created_at, updated_at)
		VALUES (:id, :name, :email, :password_hash, :role, :organization, :designation, :status, :created_at, :updated_at)`, user)
	return translateWrite(err, "create user")
}

// UpdateStatus returns sql.ErrNoRows when id matches no account.
func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status models.UserStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	return requireAffected(res, "update user status")
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "update last login", `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`, id, at)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	return r.exec(ctx, "update password", `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, passwordHash, at)
}

// CreateRefreshToken stores a session keyed by the token fingerprint.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO refresh_tokens (`+refreshTokenColumns+`)
		VALUES (:id, :user_id, :token_hash, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`, token)
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken looks a session up by token fingerprint.
func (r *UserRepository) FindRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	err := r.db.GetContext(ctx, &rt, `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "revoke refresh token", `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`, id, at)
}

// RevokeUserRefreshTokens ends every open session of userID.
func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	return r.exec(ctx, "revoke user refresh tokens",
		`UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`, userID, time.Now().UTC())
}

func (r *UserRepository) exec(ctx context.Context, op, query string, args ...interface{}) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
