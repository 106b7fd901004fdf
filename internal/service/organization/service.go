package organization

import (
	"context"
	"fmt"

	"github.com/practicedesk/booking-api/internal/authz"
	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/internal/repository"
	"github.com/practicedesk/booking-api/internal/service/audit"
)

type Service struct {
	repo    repository.OrganizationRepository
	engine  *authz.Engine
	auditor *audit.Service
}

func NewService(repo repository.OrganizationRepository, engine *authz.Engine, auditor *audit.Service) *Service {
	return &Service{repo: repo, engine: engine, auditor: auditor}
}

// Get returns the principal's own organization. There is no path to
// another tenant's record.
func (s *Service) Get(ctx context.Context, p *model.Principal) (*model.Organization, error) {
	org, err := s.repo.Get(ctx, p.OrganizationID())
	if err != nil {
		return nil, err
	}
	if err := s.engine.Can(p, authz.ActionOrgView, org); err != nil {
		return nil, err
	}
	return org, nil
}

func (s *Service) Update(ctx context.Context, p *model.Principal, req *model.UpdateOrganizationRequest) (*model.Organization, error) {
	org, err := s.repo.Get(ctx, p.OrganizationID())
	if err != nil {
		return nil, err
	}
	if err := s.engine.Can(p, authz.ActionOrgUpdate, org); err != nil {
		return nil, err
	}

	if req.Name != nil {
		org.Name = *req.Name
	}
	if req.Active != nil {
		org.Active = *req.Active
	}
	if req.Settings != nil {
		org.Settings = req.Settings
	}

	if err := s.repo.Update(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}

	s.auditor.Log(ctx, p.UserID(), p.OrganizationID(), "update", "organization", org.ID, nil)
	return org, nil
}
