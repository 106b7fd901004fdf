package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/practicedesk/booking-api/internal/handler"
	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/internal/service/auth"
	"github.com/practicedesk/booking-api/internal/tenant"
	"github.com/practicedesk/booking-api/pkg/apperror"
)

const (
	// HeaderTenant carries the organization subdomain when the request
	// does not arrive on a tenant subdomain.
	HeaderTenant     = "X-Organization-Subdomain"
	contextPrincipal = "principal"
)

type AuthMiddleware struct {
	authSvc *auth.Service
}

func NewAuthMiddleware(authSvc *auth.Service) *AuthMiddleware {
	return &AuthMiddleware{authSvc: authSvc}
}

// Authenticate resolves the tenant and the acting principal for the
// request and binds both to the request context. The tenant value lives
// and dies with this request; nothing is stored process-wide.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			handler.Error(c, apperror.Unauthorized("missing authorization header"))
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			handler.Error(c, apperror.Unauthorized("invalid authorization format"))
			c.Abort()
			return
		}

		principal, err := m.authSvc.Authenticate(c.Request.Context(), parts[1], TenantHint(c))
		if err != nil {
			handler.Error(c, err)
			c.Abort()
			return
		}

		ctx := tenant.NewContext(c.Request.Context(), principal.Organization)
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextPrincipal, principal)
		c.Next()
	}
}

// TenantHint extracts the subdomain hint: the explicit header wins,
// otherwise the first label of the Host.
func TenantHint(c *gin.Context) string {
	if sub := c.GetHeader(HeaderTenant); sub != "" {
		return strings.ToLower(sub)
	}

	host := c.Request.Host
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	labels := strings.Split(host, ".")
	if len(labels) < 3 {
		return ""
	}
	return strings.ToLower(labels[0])
}

// Principal returns the principal bound by Authenticate.
func Principal(c *gin.Context) (*model.Principal, bool) {
	v, ok := c.Get(contextPrincipal)
	if !ok {
		return nil, false
	}
	p, ok := v.(*model.Principal)
	return p, ok
}
