package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/internal/repository"
)

type organizationRepository struct {
	BaseRepository
}

func NewOrganizationRepository(base BaseRepository) repository.OrganizationRepository {
	return &organizationRepository{base}
}

func (r *organizationRepository) Create(ctx context.Context, org *model.Organization) error {
	query := `
		INSERT INTO organizations (
			id, name, subdomain, active, settings, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	org.ID = uuid.New()
	org.Subdomain = strings.ToLower(org.Subdomain)
	org.CreatedAt = time.Now()
	org.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		org.ID,
		org.Name,
		org.Subdomain,
		org.Active,
		org.Settings,
		org.CreatedAt,
		org.UpdatedAt,
	)
	return wrapErr("create organization", err)
}

func (r *organizationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	query := `
		SELECT id, name, subdomain, active, settings, created_at, updated_at, deleted_at
		FROM organizations
		WHERE id = $1 AND deleted_at IS NULL
	`
	var org model.Organization
	if err := r.db.GetContext(ctx, &org, query, id); err != nil {
		return nil, wrapErr("get organization", err)
	}
	return &org, nil
}

func (r *organizationRepository) GetBySubdomain(ctx context.Context, subdomain string) (*model.Organization, error) {
	query := `
		SELECT id, name, subdomain, active, settings, created_at, updated_at, deleted_at
		FROM organizations
		WHERE subdomain = $1 AND deleted_at IS NULL
	`
	var org model.Organization
	if err := r.db.GetContext(ctx, &org, query, strings.ToLower(subdomain)); err != nil {
		return nil, wrapErr("get organization by subdomain", err)
	}
	return &org, nil
}

func (r *organizationRepository) Update(ctx context.Context, org *model.Organization) error {
	query := `
		UPDATE organizations
		SET name = $1, active = $2, settings = $3, updated_at = $4
		WHERE id = $5 AND deleted_at IS NULL
	`
	org.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		org.Name,
		org.Active,
		org.Settings,
		org.UpdatedAt,
		org.ID,
	)
	if err != nil {
		return wrapErr("update organization", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return wrapErr("update organization", err)
	}
	if rows == 0 {
		return wrapErr("update organization", errNoRows())
	}
	return nil
}
