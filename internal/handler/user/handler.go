package user

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/practicedesk/booking-api/internal/handler"
	"github.com/practicedesk/booking-api/internal/middleware"
	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/internal/service/user"
	"github.com/practicedesk/booking-api/pkg/apperror"
)

type Handler struct {
	svc *user.Service
}

func NewHandler(svc *user.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/users")
	{
		users.GET("", h.List)
		users.GET("/:id", h.Get)
		users.PATCH("/:id", h.Update)
	}
}

func (h *Handler) Get(c *gin.Context) {
	p, ok := middleware.Principal(c)
	if !ok {
		handler.Error(c, apperror.Unauthorized("not authenticated"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Error(c, apperror.Validation("invalid user id"))
		return
	}

	u, err := h.svc.Get(c.Request.Context(), p, id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.OK(c, u)
}

func (h *Handler) List(c *gin.Context) {
	p, ok := middleware.Principal(c)
	if !ok {
		handler.Error(c, apperror.Unauthorized("not authenticated"))
		return
	}

	filter := &model.UserFilter{
		Role:       model.Role(c.Query("role")),
		Status:     c.Query("status"),
		SearchTerm: c.Query("search"),
	}

	users, err := h.svc.List(c.Request.Context(), p, filter)
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.OK(c, users)
}

func (h *Handler) Update(c *gin.Context) {
	p, ok := middleware.Principal(c)
	if !ok {
		handler.Error(c, apperror.Unauthorized("not authenticated"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Error(c, apperror.Validation("invalid user id"))
		return
	}

	var req model.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Error(c, apperror.Validation(err.Error()))
		return
	}

	u, err := h.svc.Update(c.Request.Context(), p, id, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.OK(c, u)
}
