package tenant

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/internal/repository"
	"github.com/practicedesk/booking-api/pkg/apperror"
)

// Hint carries the two channels an organization can be identified by:
// a routing-derived subdomain and an organization id claim extracted
// from a credential. When both are present the claim is authoritative
// and a disagreement is a hard failure.
type Hint struct {
	Subdomain  string
	ClaimOrgID uuid.UUID
}

type Resolver struct {
	repo  repository.OrganizationRepository
	cache *gocache.Cache
}

func NewResolver(repo repository.OrganizationRepository) *Resolver {
	return &Resolver{
		repo:  repo,
		cache: gocache.New(5*time.Minute, 15*time.Minute),
	}
}

// Resolve determines the active organization for an inbound operation.
// Inactive organizations are rejected; a subdomain/claim mismatch is
// never silently overridden.
func (r *Resolver) Resolve(ctx context.Context, hint Hint) (*model.Organization, error) {
	var org *model.Organization
	var err error

	switch {
	case hint.ClaimOrgID != uuid.Nil:
		org, err = r.repo.Get(ctx, hint.ClaimOrgID)
		if err != nil {
			return nil, err
		}
		if hint.Subdomain != "" && !strings.EqualFold(hint.Subdomain, org.Subdomain) {
			return nil, apperror.New(apperror.KindTenantMismatch, "credential does not belong to this organization")
		}
	case hint.Subdomain != "":
		org, err = r.bySubdomain(ctx, hint.Subdomain)
		if err != nil {
			return nil, err
		}
	default:
		return nil, apperror.NotFound("organization")
	}

	if !org.Active {
		return nil, apperror.New(apperror.KindTenantInactive, "organization is inactive")
	}
	return org, nil
}

func (r *Resolver) bySubdomain(ctx context.Context, subdomain string) (*model.Organization, error) {
	key := strings.ToLower(subdomain)
	if cached, ok := r.cache.Get(key); ok {
		return cached.(*model.Organization), nil
	}

	org, err := r.repo.GetBySubdomain(ctx, key)
	if err != nil {
		return nil, err
	}

	r.cache.Set(key, org, gocache.DefaultExpiration)
	return org, nil
}
