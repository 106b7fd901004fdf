package user

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/practicedesk/booking-api/internal/authz"
	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/internal/service/audit"
	"github.com/practicedesk/booking-api/pkg/apperror"
	"github.com/practicedesk/booking-api/pkg/logger"
)

type fakeUserRepo struct {
	store map[uuid.UUID]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{store: make(map[uuid.UUID]*model.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	cp := *user
	r.store[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, ok := r.store[id]
	if !ok {
		return nil, apperror.NotFound("user")
	}
	cp := *user
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, orgID uuid.UUID, email string) (*model.User, error) {
	for _, user := range r.store {
		if user.OrganizationID == orgID && user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user")
}

func (r *fakeUserRepo) GetByExternalSubject(ctx context.Context, subject string) (*model.User, error) {
	return nil, apperror.NotFound("user")
}

func (r *fakeUserRepo) Update(ctx context.Context, user *model.User) error {
	if _, ok := r.store[user.ID]; !ok {
		return apperror.NotFound("user")
	}
	cp := *user
	r.store[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) RotateRevocationMarker(ctx context.Context, userID uuid.UUID, marker string) error {
	return nil
}

func (r *fakeUserRepo) List(ctx context.Context, scope authz.Scope, filter *model.UserFilter) ([]*model.User, error) {
	var out []*model.User
	for _, user := range r.store {
		if user.OrganizationID != scope.OrganizationID {
			continue
		}
		if scope.OwnerID != nil && user.ID != *scope.OwnerID {
			continue
		}
		cp := *user
		out = append(out, &cp)
	}
	return out, nil
}

type noopAuditRepo struct{}

func (noopAuditRepo) Create(ctx context.Context, entry *model.AuditLog) error { return nil }

type userFixture struct {
	svc  *Service
	repo *fakeUserRepo

	orgID        uuid.UUID
	admin        *model.Principal
	staff        *model.Principal
	professional *model.Principal
	client       *model.Principal
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()

	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	f := &userFixture{
		repo:  newFakeUserRepo(),
		orgID: uuid.New(),
	}
	f.svc = NewService(f.repo, authz.NewEngine(nil), audit.NewService(noopAuditRepo{}, log))

	f.admin = f.principal(t, model.RoleAdmin, "admin@example.com")
	f.staff = f.principal(t, model.RoleStaff, "staff@example.com")
	f.professional = f.principal(t, model.RoleProfessional, "pro@example.com")
	f.client = f.principal(t, model.RoleClient, "client@example.com")
	return f
}

// principal seeds a user row and returns the matching principal, so the
// record each caller owns actually exists in the repository.
func (f *userFixture) principal(t *testing.T, role model.Role, email string) *model.Principal {
	t.Helper()

	user := &model.User{
		OrganizationID: f.orgID,
		Email:          email,
		Role:           role,
		Status:         model.UserStatusActive,
	}
	require.NoError(t, f.repo.Create(context.Background(), user))

	org := &model.Organization{Active: true}
	org.ID = f.orgID
	return &model.Principal{User: user, Organization: org}
}

func TestGetVisibility(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	t.Run("client reads own record", func(t *testing.T) {
		got, err := f.svc.Get(ctx, f.client, f.client.UserID())
		require.NoError(t, err)
		assert.Equal(t, f.client.UserID(), got.ID)
	})

	t.Run("client cannot read another user", func(t *testing.T) {
		_, err := f.svc.Get(ctx, f.client, f.professional.UserID())
		assert.True(t, apperror.IsKind(err, apperror.KindForbidden))
	})

	t.Run("staff read across the tenant", func(t *testing.T) {
		got, err := f.svc.Get(ctx, f.staff, f.professional.UserID())
		require.NoError(t, err)
		assert.Equal(t, f.professional.UserID(), got.ID)
	})

	t.Run("absent id is not found", func(t *testing.T) {
		_, err := f.svc.Get(ctx, f.admin, uuid.New())
		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	})
}

// A client's listing and their single-record reads must agree: the list
// shows exactly the records Get would admit.
func TestListAndGetAgree(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	listed, err := f.svc.List(ctx, f.client, &model.UserFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, f.client.UserID(), listed[0].ID)

	got, err := f.svc.Get(ctx, f.client, listed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, listed[0].ID, got.ID)

	staffView, err := f.svc.List(ctx, f.staff, &model.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, staffView, 4)
}

func TestUpdateGates(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	name := "Renamed"

	t.Run("staff cannot update a colleague", func(t *testing.T) {
		_, err := f.svc.Update(ctx, f.staff, f.professional.UserID(), &model.UpdateUserRequest{Name: &name})
		assert.True(t, apperror.IsKind(err, apperror.KindForbidden))
	})

	t.Run("client cannot update even their own record", func(t *testing.T) {
		_, err := f.svc.Update(ctx, f.client, f.client.UserID(), &model.UpdateUserRequest{Name: &name})
		assert.True(t, apperror.IsKind(err, apperror.KindForbidden))
	})

	t.Run("admin updates anyone in the tenant", func(t *testing.T) {
		got, err := f.svc.Update(ctx, f.admin, f.professional.UserID(), &model.UpdateUserRequest{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Name)
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		bad := model.Role("superuser")
		_, err := f.svc.Update(ctx, f.admin, f.professional.UserID(), &model.UpdateUserRequest{Role: &bad})
		assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	})
}
