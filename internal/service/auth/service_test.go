package auth

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	authzpkg "github.com/practicedesk/booking-api/internal/authz"
	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/internal/service/audit"
	"github.com/practicedesk/booking-api/internal/service/event"
	"github.com/practicedesk/booking-api/internal/tenant"
	"github.com/practicedesk/booking-api/pkg/apperror"
	pkgauth "github.com/practicedesk/booking-api/pkg/auth"
	"github.com/practicedesk/booking-api/pkg/identity"
	"github.com/practicedesk/booking-api/pkg/logger"
	"github.com/practicedesk/booking-api/pkg/security"
)

type fakeOrgRepo struct {
	orgs map[uuid.UUID]*model.Organization
}

func (r *fakeOrgRepo) Create(ctx context.Context, org *model.Organization) error {
	r.orgs[org.ID] = org
	return nil
}

func (r *fakeOrgRepo) Get(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	org, ok := r.orgs[id]
	if !ok {
		return nil, apperror.NotFound("organization")
	}
	cp := *org
	return &cp, nil
}

func (r *fakeOrgRepo) GetBySubdomain(ctx context.Context, subdomain string) (*model.Organization, error) {
	for _, org := range r.orgs {
		if strings.EqualFold(org.Subdomain, subdomain) {
			cp := *org
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("organization")
}

func (r *fakeOrgRepo) Update(ctx context.Context, org *model.Organization) error {
	r.orgs[org.ID] = org
	return nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, apperror.NotFound("user")
	}
	cp := *user
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, orgID uuid.UUID, email string) (*model.User, error) {
	for _, user := range r.users {
		if user.OrganizationID == orgID && strings.EqualFold(user.Email, email) {
			cp := *user
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user")
}

func (r *fakeUserRepo) GetByExternalSubject(ctx context.Context, subject string) (*model.User, error) {
	for _, user := range r.users {
		if user.ExternalSubject != nil && *user.ExternalSubject == subject {
			cp := *user
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user")
}

func (r *fakeUserRepo) Update(ctx context.Context, user *model.User) error {
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) RotateRevocationMarker(ctx context.Context, userID uuid.UUID, marker string) error {
	user, ok := r.users[userID]
	if !ok {
		return apperror.NotFound("user")
	}
	user.RevocationMarker = marker
	return nil
}

func (r *fakeUserRepo) List(ctx context.Context, scope authzpkg.Scope, filter *model.UserFilter) ([]*model.User, error) {
	return nil, nil
}

type fakeVerifier struct {
	ident *identity.ExternalIdentity
	err   error
}

func (v *fakeVerifier) Verify(ctx context.Context, token string) (*identity.ExternalIdentity, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.ident, nil
}

type fakeEmitter struct {
	events []string
}

func (e *fakeEmitter) Emit(ctx context.Context, eventType string, payload event.Payload) error {
	e.events = append(e.events, eventType)
	return nil
}

type noopAuditRepo struct{}

func (noopAuditRepo) Create(ctx context.Context, entry *model.AuditLog) error { return nil }

type authFixture struct {
	svc      *Service
	userRepo *fakeUserRepo
	orgRepo  *fakeOrgRepo
	verifier *fakeVerifier
	emitter  *fakeEmitter
	jwtSvc   pkgauth.JWTService
	hasher   security.PasswordHasher

	org  *model.Organization
	user *model.User
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	org := &model.Organization{Name: "Acme Clinic", Subdomain: "acme", Active: true}
	org.ID = uuid.New()

	f := &authFixture{
		userRepo: newFakeUserRepo(),
		orgRepo:  &fakeOrgRepo{orgs: map[uuid.UUID]*model.Organization{org.ID: org}},
		verifier: &fakeVerifier{},
		emitter:  &fakeEmitter{},
		jwtSvc: pkgauth.NewJWTService(pkgauth.Config{
			Secret:        "test-secret",
			RefreshSecret: "test-refresh-secret",
			Expiry:        time.Hour,
			RefreshExpiry: 24 * time.Hour,
			Issuer:        "booking-test",
		}),
		hasher: security.NewBcryptHasher(bcrypt.MinCost),
		org:    org,
	}

	hash, err := f.hasher.Hash("correct-horse")
	require.NoError(t, err)

	user := &model.User{
		OrganizationID:   org.ID,
		Email:            "pat@example.com",
		Name:             "Pat",
		PasswordHash:     hash,
		Role:             model.RoleClient,
		Status:           model.UserStatusActive,
		RevocationMarker: uuid.New().String(),
	}
	user.ID = uuid.New()
	require.NoError(t, f.userRepo.Create(context.Background(), user))
	f.user = user

	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	f.svc = NewService(
		f.userRepo,
		tenant.NewResolver(f.orgRepo),
		f.jwtSvc,
		f.verifier,
		f.hasher,
		f.emitter,
		audit.NewService(noopAuditRepo{}, log),
	)
	return f
}

func (f *authFixture) accessToken(t *testing.T) string {
	t.Helper()
	token, err := f.jwtSvc.GenerateAccessToken(f.user)
	require.NoError(t, err)
	return token
}

func TestAuthenticateInternal(t *testing.T) {
	ctx := context.Background()

	t.Run("valid token resolves principal and tenant", func(t *testing.T) {
		f := newAuthFixture(t)
		p, err := f.svc.Authenticate(ctx, f.accessToken(t), "")
		require.NoError(t, err)
		assert.Equal(t, f.user.ID, p.UserID())
		assert.Equal(t, f.org.ID, p.OrganizationID())
	})

	t.Run("matching subdomain hint passes", func(t *testing.T) {
		f := newAuthFixture(t)
		_, err := f.svc.Authenticate(ctx, f.accessToken(t), "ACME")
		assert.NoError(t, err)
	})

	t.Run("mismatched subdomain is rejected", func(t *testing.T) {
		f := newAuthFixture(t)
		_, err := f.svc.Authenticate(ctx, f.accessToken(t), "other")
		assert.True(t, apperror.IsKind(err, apperror.KindTenantMismatch))
	})

	t.Run("tampered token is unauthorized", func(t *testing.T) {
		f := newAuthFixture(t)
		token := f.accessToken(t)
		_, err := f.svc.Authenticate(ctx, token[:len(token)-2]+"xx", "")
		assert.True(t, apperror.IsKind(err, apperror.KindUnauthorized))
	})

	t.Run("revocation precedes everything else", func(t *testing.T) {
		f := newAuthFixture(t)
		token := f.accessToken(t)

		require.NoError(t, f.userRepo.RotateRevocationMarker(ctx, f.user.ID, uuid.New().String()))

		_, err := f.svc.Authenticate(ctx, token, "")
		assert.True(t, apperror.IsKind(err, apperror.KindTokenRevoked))
	})

	t.Run("inactive tenant is rejected", func(t *testing.T) {
		f := newAuthFixture(t)
		token := f.accessToken(t)
		f.orgRepo.orgs[f.org.ID].Active = false

		_, err := f.svc.Authenticate(ctx, token, "")
		assert.True(t, apperror.IsKind(err, apperror.KindTenantInactive))
	})

	t.Run("inactive user is rejected", func(t *testing.T) {
		f := newAuthFixture(t)
		token := f.accessToken(t)
		f.userRepo.users[f.user.ID].Status = model.UserStatusInactive

		_, err := f.svc.Authenticate(ctx, token, "")
		assert.True(t, apperror.IsKind(err, apperror.KindUnauthorized))
	})

	t.Run("revocation outranks expiry", func(t *testing.T) {
		f := newAuthFixture(t)
		expiredSvc := pkgauth.NewJWTService(pkgauth.Config{
			Secret:        "test-secret",
			RefreshSecret: "test-refresh-secret",
			Expiry:        -time.Minute,
			RefreshExpiry: 24 * time.Hour,
			Issuer:        "booking-test",
		})
		token, err := expiredSvc.GenerateAccessToken(f.user)
		require.NoError(t, err)

		require.NoError(t, f.userRepo.RotateRevocationMarker(ctx, f.user.ID, uuid.New().String()))

		_, err = f.svc.Authenticate(ctx, token, "")
		assert.True(t, apperror.IsKind(err, apperror.KindTokenRevoked))
	})

	t.Run("expired token reports expiry", func(t *testing.T) {
		f := newAuthFixture(t)
		expiredSvc := pkgauth.NewJWTService(pkgauth.Config{
			Secret:        "test-secret",
			RefreshSecret: "test-refresh-secret",
			Expiry:        -time.Minute,
			RefreshExpiry: 24 * time.Hour,
			Issuer:        "booking-test",
		})
		token, err := expiredSvc.GenerateAccessToken(f.user)
		require.NoError(t, err)

		_, err = f.svc.Authenticate(ctx, token, "")
		assert.True(t, apperror.IsKind(err, apperror.KindTokenExpired))
	})
}

func TestAuthenticateExternal(t *testing.T) {
	ctx := context.Background()

	t.Run("known subject authenticates without a tenant hint", func(t *testing.T) {
		f := newAuthFixture(t)
		subject := "idp|12345"
		f.userRepo.users[f.user.ID].ExternalSubject = &subject
		f.verifier.ident = &identity.ExternalIdentity{Subject: subject, Email: f.user.Email, Name: f.user.Name}

		p, err := f.svc.Authenticate(ctx, "opaque-token", "")
		require.NoError(t, err)
		assert.Equal(t, f.user.ID, p.UserID())
	})

	t.Run("email match attaches the subject", func(t *testing.T) {
		f := newAuthFixture(t)
		f.verifier.ident = &identity.ExternalIdentity{Subject: "idp|777", Email: f.user.Email, Name: f.user.Name}

		p, err := f.svc.Authenticate(ctx, "opaque-token", "acme")
		require.NoError(t, err)
		assert.Equal(t, f.user.ID, p.UserID())

		stored := f.userRepo.users[f.user.ID]
		require.NotNil(t, stored.ExternalSubject)
		assert.Equal(t, "idp|777", *stored.ExternalSubject)
	})

	t.Run("unknown identity is provisioned as client", func(t *testing.T) {
		f := newAuthFixture(t)
		f.verifier.ident = &identity.ExternalIdentity{Subject: "idp|new", Email: "new@example.com", Name: "Newcomer"}

		p, err := f.svc.Authenticate(ctx, "opaque-token", "acme")
		require.NoError(t, err)
		assert.Equal(t, model.RoleClient, p.Role())
		assert.Equal(t, f.org.ID, p.OrganizationID())
		assert.Contains(t, f.emitter.events, event.TypeUserWelcome)

		// The provisioned account is stable across logins.
		again, err := f.svc.Authenticate(ctx, "opaque-token", "acme")
		require.NoError(t, err)
		assert.Equal(t, p.UserID(), again.UserID())
	})

	t.Run("no subject match and no tenant hint fails", func(t *testing.T) {
		f := newAuthFixture(t)
		f.verifier.ident = &identity.ExternalIdentity{Subject: "idp|new", Email: "new@example.com", Name: "Newcomer"}

		_, err := f.svc.Authenticate(ctx, "opaque-token", "")
		assert.True(t, apperror.IsKind(err, apperror.KindUnauthorized))
	})

	t.Run("verifier rejection is unauthorized", func(t *testing.T) {
		f := newAuthFixture(t)
		f.verifier.err = assert.AnError

		_, err := f.svc.Authenticate(ctx, "opaque-token", "acme")
		assert.True(t, apperror.IsKind(err, apperror.KindUnauthorized))
	})
}

func TestLoginLockout(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	for i := 0; i < maxLoginAttempts; i++ {
		_, err := f.svc.Login(ctx, "acme", f.user.Email, "wrong-password")
		assert.True(t, apperror.IsKind(err, apperror.KindUnauthorized))
	}

	assert.Equal(t, model.UserStatusLocked, f.userRepo.users[f.user.ID].Status)

	// Even the right password is refused while locked.
	_, err := f.svc.Login(ctx, "acme", f.user.Email, "correct-horse")
	assert.True(t, apperror.IsKind(err, apperror.KindUnauthorized))
}

func TestLoginAndRefresh(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	tokens, err := f.svc.Login(ctx, "acme", f.user.Email, "correct-horse")
	require.NoError(t, err)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)

	refreshed, err := f.svc.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
}

func TestLogoutInvalidatesTokens(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	tokens, err := f.svc.Login(ctx, "acme", f.user.Email, "correct-horse")
	require.NoError(t, err)

	p, err := f.svc.Authenticate(ctx, tokens.AccessToken, "")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, p))

	_, err = f.svc.Authenticate(ctx, tokens.AccessToken, "")
	assert.True(t, apperror.IsKind(err, apperror.KindTokenRevoked))

	_, err = f.svc.Refresh(ctx, tokens.RefreshToken)
	assert.True(t, apperror.IsKind(err, apperror.KindTokenRevoked))
}
