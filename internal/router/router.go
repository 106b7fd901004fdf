package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	appointmenthandler "github.com/practicedesk/booking-api/internal/handler/appointment"
	authhandler "github.com/practicedesk/booking-api/internal/handler/auth"
	organizationhandler "github.com/practicedesk/booking-api/internal/handler/organization"
	userhandler "github.com/practicedesk/booking-api/internal/handler/user"
	"github.com/practicedesk/booking-api/internal/middleware"
)

type Config struct {
	RequestTimeout time.Duration
	RateLimit      rate.Limit
	RateBurst      int
}

type Handlers struct {
	Auth         *authhandler.Handler
	Appointment  *appointmenthandler.Handler
	User         *userhandler.Handler
	Organization *organizationhandler.Handler
}

// Setup builds the HTTP surface. Every route under /api/v1 except the
// credential exchange endpoints runs behind the authentication
// middleware, so a principal and a tenant are always established before
// a handler sees the request.
func Setup(cfg Config, authMw *middleware.AuthMiddleware, h Handlers) *gin.Engine {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 100
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 200
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  cfg.RateLimit,
		Burst: cfg.RateBurst,
	})
	r.Use(limiter.RateLimit())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")

	public := v1.Group("/auth")
	h.Auth.RegisterPublicRoutes(public)

	protected := v1.Group("")
	protected.Use(authMw.Authenticate())

	h.Auth.RegisterProtectedRoutes(protected.Group("/auth"))
	h.Appointment.RegisterRoutes(protected)
	h.User.RegisterRoutes(protected)
	h.Organization.RegisterRoutes(protected)

	return r
}
