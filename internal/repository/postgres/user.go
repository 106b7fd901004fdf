package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/practicedesk/booking-api/internal/authz"
	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/internal/repository"
)

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

const userColumns = `
	id, organization_id, email, name, password_hash, role, status,
	revocation_marker, external_subject, login_attempts, last_login_attempt,
	settings, created_at, updated_at, deleted_at
`

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			id, organization_id, email, name, password_hash, role, status,
			revocation_marker, external_subject, login_attempts,
			last_login_attempt, settings, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.OrganizationID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.RevocationMarker,
		user.ExternalSubject,
		user.LoginAttempts,
		user.LastLoginAttempt,
		user.Settings,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return wrapErr("create user", err)
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, wrapErr("get user", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, orgID uuid.UUID, email string) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE organization_id = $1 AND email = $2 AND deleted_at IS NULL
	`
	var user model.User
	if err := r.db.GetContext(ctx, &user, query, orgID, email); err != nil {
		return nil, wrapErr("get user by email", err)
	}
	return &user, nil
}

func (r *userRepository) GetByExternalSubject(ctx context.Context, subject string) (*model.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE external_subject = $1 AND deleted_at IS NULL
	`
	var user model.User
	if err := r.db.GetContext(ctx, &user, query, subject); err != nil {
		return nil, wrapErr("get user by external subject", err)
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users
		SET email = $1, name = $2, password_hash = $3, role = $4, status = $5,
			external_subject = $6, login_attempts = $7, last_login_attempt = $8,
			settings = $9, updated_at = $10
		WHERE id = $11 AND deleted_at IS NULL
	`
	user.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.ExternalSubject,
		user.LoginAttempts,
		user.LastLoginAttempt,
		user.Settings,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return wrapErr("update user", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return wrapErr("update user", err)
	}
	if rows == 0 {
		return wrapErr("update user", errNoRows())
	}
	return nil
}

func (r *userRepository) RotateRevocationMarker(ctx context.Context, userID uuid.UUID, marker string) error {
	query := `
		UPDATE users
		SET revocation_marker = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, marker, time.Now(), userID)
	if err != nil {
		return wrapErr("rotate revocation marker", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return wrapErr("rotate revocation marker", err)
	}
	if rows == 0 {
		return wrapErr("rotate revocation marker", errNoRows())
	}
	return nil
}

// List applies the authorization scope before any caller filter; the
// organization predicate is not optional.
func (r *userRepository) List(ctx context.Context, scope authz.Scope, filter *model.UserFilter) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE organization_id = $1 AND deleted_at IS NULL`
	args := []interface{}{scope.OrganizationID}
	argCount := 2

	if scope.OwnerID != nil {
		query += fmt.Sprintf(" AND id = $%d", argCount)
		args = append(args, *scope.OwnerID)
		argCount++
	}

	if filter != nil {
		if filter.Role != "" {
			query += fmt.Sprintf(" AND role = $%d", argCount)
			args = append(args, filter.Role)
			argCount++
		}
		if filter.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, filter.Status)
			argCount++
		}
		if filter.SearchTerm != "" {
			query += fmt.Sprintf(" AND (name ILIKE $%d OR email ILIKE $%d)", argCount, argCount)
			args = append(args, "%"+filter.SearchTerm+"%")
			argCount++
		}
	}

	query += " ORDER BY name ASC"

	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, wrapErr("list users", err)
	}
	return users, nil
}
