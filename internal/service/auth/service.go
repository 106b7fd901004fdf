package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/internal/repository"
	"github.com/practicedesk/booking-api/internal/service/audit"
	"github.com/practicedesk/booking-api/internal/service/event"
	"github.com/practicedesk/booking-api/internal/tenant"
	"github.com/practicedesk/booking-api/pkg/apperror"
	"github.com/practicedesk/booking-api/pkg/auth"
	"github.com/practicedesk/booking-api/pkg/identity"
	"github.com/practicedesk/booking-api/pkg/security"
)

const (
	maxLoginAttempts = 5
	lockoutDuration  = 15 * time.Minute
)

// Service resolves the acting principal for every operation. Two
// credential paths are tried in a fixed order: the internal signed
// format first, the external identity provider otherwise.
type Service struct {
	userRepo repository.UserRepository
	resolver *tenant.Resolver
	jwtSvc   auth.JWTService
	verifier identity.Verifier
	hasher   security.PasswordHasher
	emitter  event.Emitter
	auditor  *audit.Service
}

func NewService(
	userRepo repository.UserRepository,
	resolver *tenant.Resolver,
	jwtSvc auth.JWTService,
	verifier identity.Verifier,
	hasher security.PasswordHasher,
	emitter event.Emitter,
	auditor *audit.Service,
) *Service {
	return &Service{
		userRepo: userRepo,
		resolver: resolver,
		jwtSvc:   jwtSvc,
		verifier: verifier,
		hasher:   hasher,
		emitter:  emitter,
		auditor:  auditor,
	}
}

// Authenticate produces the request-scoped principal for a bearer
// credential. The subdomain hint is only authoritative when the
// credential carries no organization claim; a disagreement between the
// two is a hard failure, never a silent override.
func (s *Service) Authenticate(ctx context.Context, bearer, subdomain string) (*model.Principal, error) {
	if bearer == "" {
		return nil, apperror.Unauthorized("missing credentials")
	}

	if auth.IsInternalToken(bearer) {
		return s.authenticateInternal(ctx, bearer, subdomain)
	}
	return s.authenticateExternal(ctx, bearer, subdomain)
}

func (s *Service) authenticateInternal(ctx context.Context, bearer, subdomain string) (*model.Principal, error) {
	claims, err := s.jwtSvc.ValidateToken(bearer)
	if err != nil {
		if claims != nil && apperror.IsKind(err, apperror.KindTokenExpired) {
			return nil, s.rankExpiry(ctx, claims, err)
		}
		return nil, err
	}

	org, err := s.resolver.Resolve(ctx, tenant.Hint{
		Subdomain:  subdomain,
		ClaimOrgID: claims.OrganizationID,
	})
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.Get(ctx, claims.UserID)
	if err != nil {
		if apperror.IsKind(err, apperror.KindNotFound) {
			return nil, apperror.Unauthorized("principal not found")
		}
		return nil, err
	}

	if user.OrganizationID != org.ID {
		return nil, apperror.New(apperror.KindTenantMismatch, "credential does not belong to this organization")
	}
	if user.RevocationMarker != claims.RevocationMarker {
		return nil, apperror.New(apperror.KindTokenRevoked, "token has been revoked")
	}
	if user.Status != model.UserStatusActive {
		return nil, apperror.Unauthorized("account is not active")
	}

	return &model.Principal{User: user, Organization: org}, nil
}

func (s *Service) authenticateExternal(ctx context.Context, bearer, subdomain string) (*model.Principal, error) {
	ident, err := s.verifier.Verify(ctx, bearer)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindUnauthorized, "external identity verification failed", err)
	}

	// Match by external subject first; the subject binds across tenants.
	user, err := s.userRepo.GetByExternalSubject(ctx, ident.Subject)
	if err != nil && !apperror.IsKind(err, apperror.KindNotFound) {
		return nil, err
	}

	if user != nil {
		org, err := s.resolver.Resolve(ctx, tenant.Hint{
			Subdomain:  subdomain,
			ClaimOrgID: user.OrganizationID,
		})
		if err != nil {
			return nil, err
		}
		if user.Status != model.UserStatusActive {
			return nil, apperror.Unauthorized("account is not active")
		}
		return &model.Principal{User: user, Organization: org}, nil
	}

	// No subject match: a tenant must be established before we can look
	// up by email or provision a new account.
	org, err := s.resolver.Resolve(ctx, tenant.Hint{Subdomain: subdomain})
	if err != nil {
		return nil, apperror.Wrap(apperror.KindUnauthorized, "no tenant established for external identity", err)
	}

	user, err = s.userRepo.GetByEmail(ctx, org.ID, ident.Email)
	switch {
	case err == nil:
		subject := ident.Subject
		user.ExternalSubject = &subject
		if updateErr := s.userRepo.Update(ctx, user); updateErr != nil {
			return nil, fmt.Errorf("failed to attach external subject: %w", updateErr)
		}
	case apperror.IsKind(err, apperror.KindNotFound):
		user, err = s.provisionExternalUser(ctx, org, ident)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if user.Status != model.UserStatusActive {
		return nil, apperror.Unauthorized("account is not active")
	}
	return &model.Principal{User: user, Organization: org}, nil
}

// provisionExternalUser creates a user for a verified external identity.
// The generated local credential is random and never used for direct
// login; the revocation marker is fresh.
func (s *Service) provisionExternalUser(ctx context.Context, org *model.Organization, ident *identity.ExternalIdentity) (*model.User, error) {
	password, err := security.GeneratePassword()
	if err != nil {
		return nil, fmt.Errorf("failed to generate credential: %w", err)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash credential: %w", err)
	}

	subject := ident.Subject
	user := &model.User{
		OrganizationID:   org.ID,
		Email:            ident.Email,
		Name:             ident.Name,
		PasswordHash:     hash,
		Role:             model.RoleClient,
		Status:           model.UserStatusActive,
		RevocationMarker: uuid.New().String(),
		ExternalSubject:  &subject,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}

	if err := s.emitter.Emit(ctx, event.TypeUserWelcome, event.Payload{
		UserID: user.ID,
		Params: model.JSONMap{"email": user.Email, "name": user.Name},
	}); err != nil {
		// Emission failure must not block authentication.
		s.auditor.Log(ctx, user.ID, org.ID, "welcome_emit_failed", "user", user.ID, nil)
	}

	s.auditor.Log(ctx, user.ID, org.ID, "provision_external", "user", user.ID, &audit.LogOptions{
		Metadata: model.JSONMap{"email": user.Email},
	})
	return user, nil
}

// Login authenticates by email and password within the tenant resolved
// from the subdomain hint and issues a token pair.
func (s *Service) Login(ctx context.Context, subdomain, email, password string) (*model.TokenResponse, error) {
	org, err := s.resolver.Resolve(ctx, tenant.Hint{Subdomain: subdomain})
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, org.ID, email)
	if err != nil {
		return nil, apperror.Unauthorized("invalid credentials")
	}

	if user.Status == model.UserStatusLocked {
		if time.Since(user.LastLoginAttempt) < lockoutDuration {
			return nil, apperror.Unauthorized("account is locked, please try again later")
		}
		user.Status = model.UserStatusActive
		user.LoginAttempts = 0
	}
	if user.Status != model.UserStatusActive {
		return nil, apperror.Unauthorized("account is not active")
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		user.LoginAttempts++
		user.LastLoginAttempt = time.Now()
		if user.LoginAttempts >= maxLoginAttempts {
			user.Status = model.UserStatusLocked
		}
		if updateErr := s.userRepo.Update(ctx, user); updateErr != nil {
			return nil, fmt.Errorf("failed to update login attempts: %w", updateErr)
		}
		return nil, apperror.Unauthorized("invalid credentials")
	}

	user.LoginAttempts = 0
	user.LastLoginAttempt = time.Now()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update login timestamp: %w", err)
	}

	tokens, err := s.generateTokens(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	s.auditor.Log(ctx, user.ID, org.ID, "login", "auth", user.ID, &audit.LogOptions{
		Metadata: model.JSONMap{"email": user.Email},
	})
	return tokens, nil
}

// Logout rotates the user's revocation marker, invalidating every token
// issued before the rotation.
func (s *Service) Logout(ctx context.Context, p *model.Principal) error {
	marker := uuid.New().String()
	if err := s.userRepo.RotateRevocationMarker(ctx, p.UserID(), marker); err != nil {
		return fmt.Errorf("failed to rotate revocation marker: %w", err)
	}

	s.auditor.Log(ctx, p.UserID(), p.OrganizationID(), "logout", "auth", p.UserID(), nil)
	return nil
}

// Refresh exchanges a valid refresh token for a new token pair. The
// revocation marker is checked here too: a rotated marker invalidates
// outstanding refresh tokens as well.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	claims, err := s.jwtSvc.ValidateRefreshToken(refreshToken)
	if err != nil {
		if claims != nil && apperror.IsKind(err, apperror.KindTokenExpired) {
			return nil, s.rankExpiry(ctx, claims, err)
		}
		return nil, err
	}

	user, err := s.userRepo.Get(ctx, claims.UserID)
	if err != nil {
		return nil, apperror.Unauthorized("principal not found")
	}
	if user.RevocationMarker != claims.RevocationMarker {
		return nil, apperror.New(apperror.KindTokenRevoked, "token has been revoked")
	}
	if user.Status != model.UserStatusActive {
		return nil, apperror.Unauthorized("account is not active")
	}

	return s.generateTokens(user)
}

// rankExpiry ranks revocation above expiry: a token whose marker no
// longer matches answers token_revoked even when it has also expired.
func (s *Service) rankExpiry(ctx context.Context, claims *model.TokenClaims, expiredErr error) error {
	user, err := s.userRepo.Get(ctx, claims.UserID)
	if err != nil {
		return expiredErr
	}
	if user.RevocationMarker != claims.RevocationMarker {
		return apperror.New(apperror.KindTokenRevoked, "token has been revoked")
	}
	return expiredErr
}

func (s *Service) generateTokens(user *model.User) (*model.TokenResponse, error) {
	accessToken, err := s.jwtSvc.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.jwtSvc.GenerateRefreshToken(user)
	if err != nil {
		return nil, err
	}
	return &model.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}
