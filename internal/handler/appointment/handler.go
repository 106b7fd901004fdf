package appointment

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/practicedesk/booking-api/internal/handler"
	"github.com/practicedesk/booking-api/internal/middleware"
	"github.com/practicedesk/booking-api/internal/model"
	"github.com/practicedesk/booking-api/internal/service/appointment"
	"github.com/practicedesk/booking-api/pkg/apperror"
)

type Handler struct {
	svc *appointment.Service
}

func NewHandler(svc *appointment.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appts := r.Group("/appointments")
	{
		appts.POST("", h.Create)
		appts.GET("", h.List)
		appts.GET("/:id", h.Get)
		appts.POST("/:id/pre_confirm", h.transition(h.svc.PreConfirm))
		appts.POST("/:id/confirm", h.transition(h.svc.Confirm))
		appts.POST("/:id/execute", h.transition(h.svc.Execute))
		appts.POST("/:id/cancel", h.transition(h.svc.Cancel))
	}
}

func (h *Handler) Create(c *gin.Context) {
	p, ok := middleware.Principal(c)
	if !ok {
		handler.Error(c, apperror.Unauthorized("not authenticated"))
		return
	}

	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.Error(c, apperror.Validation(err.Error()))
		return
	}

	appt, err := h.svc.Create(c.Request.Context(), p, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.Created(c, appt)
}

func (h *Handler) Get(c *gin.Context) {
	p, ok := middleware.Principal(c)
	if !ok {
		handler.Error(c, apperror.Unauthorized("not authenticated"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Error(c, apperror.Validation("invalid appointment id"))
		return
	}

	appt, err := h.svc.Get(c.Request.Context(), p, id)
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.OK(c, appt)
}

func (h *Handler) List(c *gin.Context) {
	p, ok := middleware.Principal(c)
	if !ok {
		handler.Error(c, apperror.Unauthorized("not authenticated"))
		return
	}

	filter := &model.AppointmentFilter{
		Status: model.AppointmentStatus(c.Query("status")),
	}
	if v := c.Query("professional_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			handler.Error(c, apperror.Validation("invalid professional_id"))
			return
		}
		filter.ProfessionalID = &id
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			handler.Error(c, apperror.Validation("invalid from timestamp"))
			return
		}
		filter.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			handler.Error(c, apperror.Validation("invalid to timestamp"))
			return
		}
		filter.To = t
	}

	appts, err := h.svc.List(c.Request.Context(), p, filter)
	if err != nil {
		handler.Error(c, err)
		return
	}
	handler.OK(c, appts)
}

// transitionFunc is the shape shared by the four lifecycle methods.
type transitionFunc func(ctx context.Context, p *model.Principal, id uuid.UUID, note string) (*model.Appointment, error)

// transition adapts a service transition method into a gin handler. The
// request body is optional; an empty body means no note.
func (h *Handler) transition(apply transitionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := middleware.Principal(c)
		if !ok {
			handler.Error(c, apperror.Unauthorized("not authenticated"))
			return
		}

		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			handler.Error(c, apperror.Validation("invalid appointment id"))
			return
		}

		var req model.TransitionRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				handler.Error(c, apperror.Validation(err.Error()))
				return
			}
		}

		appt, err := apply(c.Request.Context(), p, id, req.Note)
		if err != nil {
			handler.Error(c, err)
			return
		}
		handler.OK(c, appt)
	}
}
