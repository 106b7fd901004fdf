package organization

import (
	"github.com/gin-gonic/gin"

	"github.com/practicedesk/booking-api/internal/handler"
	"github.com/practicedesk/booking-api/internal/middleware"
	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/internal/service/organization"
	"github.com/practicedesk/booking-api/pkg/apperror"
)

type Handler struct {
	svc *organization.Service
}

func NewHandler(svc *organization.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes exposes the principal's own organization only; there is
// no cross-tenant path on this surface.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	org := r.Group("/organization")
	{
		org.GET("", h.Get)
		org.PATCH("", h.Update)
	}
}

func (h *Handler) Get(c *gin.Context) {
	p, ok := middleware.Principal(c)
	if !ok {
		handler.Error(c, apperror.Unauthorized("not authenticated"))
		return
	}

	org, err := h.svc.Get(c.Request.Context(), p)
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.OK(c, org)
}

func (h *Handler) Update(c *gin.Context) {
	p, ok := middleware.Principal(c)
	if !ok {
		handler.Error(c, apperror.Unauthorized("not authenticated"))
		return
	}

	var req model.UpdateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Error(c, apperror.Validation(err.Error()))
		return
	}

	org, err := h.svc.Update(c.Request.Context(), p, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.OK(c, org)
}
