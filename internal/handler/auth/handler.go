package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/practicedesk/booking-api/internal/handler"
	"github.com/practicedesk/booking-api/internal/middleware"
	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/internal/service/auth"
	"github.com/practicedesk/booking-api/pkg/apperror"
)

type Handler struct {
	authSvc *auth.Service
}

func NewHandler(authSvc *auth.Service) *Handler {
	return &Handler{authSvc: authSvc}
}

// RegisterPublicRoutes registers routes reachable without a credential.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.Login)
	r.POST("/refresh", h.Refresh)
}

// RegisterProtectedRoutes registers routes requiring an authenticated
// principal.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/logout", h.Logout)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Error(c, apperror.Validation(err.Error()))
		return
	}

	tokens, err := h.authSvc.Login(c.Request.Context(), middleware.TenantHint(c), req.Email, req.Password)
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.OK(c, tokens)
}

func (h *Handler) Logout(c *gin.Context) {
	p, ok := middleware.Principal(c)
	if !ok {
		handler.Error(c, apperror.Unauthorized("not authenticated"))
		return
	}

	if err := h.authSvc.Logout(c.Request.Context(), p); err != nil {
		handler.Error(c, err)
		return
	}
	handler.OK(c, gin.H{"message": "logged out"})
}

func (h *Handler) Refresh(c *gin.Context) {
	var req model.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Error(c, apperror.Validation(err.Error()))
		return
	}

	tokens, err := h.authSvc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.OK(c, tokens)
}
