package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/practicedesk/booking-api/internal/authz"
	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/internal/repository"
	"github.com/practicedesk/booking-api/internal/service/audit"
	"github.com/practicedesk/booking-api/pkg/apperror"
)

type Service struct {
	repo    repository.UserRepository
	engine  *authz.Engine
	auditor *audit.Service
}

func NewService(repo repository.UserRepository, engine *authz.Engine, auditor *audit.Service) *Service {
	return &Service{repo: repo, engine: engine, auditor: auditor}
}

// Get loads a user visible to the principal. Absent ids are NotFound;
// cross-tenant or out-of-policy records are Forbidden.
func (s *Service) Get(ctx context.Context, p *model.Principal, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Can(p, authz.ActionUsersView, user); err != nil {
		return nil, err
	}
	return user, nil
}

// List returns users in the principal's visible scope.
func (s *Service) List(ctx context.Context, p *model.Principal, filter *model.UserFilter) ([]*model.User, error) {
	scope, err := s.engine.ScopeFor(p, authz.KindUser)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, scope, filter)
}

func (s *Service) Update(ctx context.Context, p *model.Principal, id uuid.UUID, req *model.UpdateUserRequest) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Can(p, authz.ActionUsersUpdate, user); err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Role != nil {
		if !req.Role.Valid() {
			return nil, apperror.Validation("unknown role")
		}
		user.Role = *req.Role
	}
	if req.Status != nil {
		user.Status = *req.Status
	}
	if req.Settings != nil {
		user.Settings = req.Settings
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.auditor.Log(ctx, p.UserID(), p.OrganizationID(), "update", "user", user.ID, nil)
	return user, nil
}
