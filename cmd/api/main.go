package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/practicedesk/booking-api/internal/authz"
	"github.com/practicedesk/booking-api/internal/config"
	appointmenthandler "github.com/practicedesk/booking-api/internal/handler/appointment"
	authhandler "github.com/practicedesk/booking-api/internal/handler/auth"
	organizationhandler "github.com/practicedesk/booking-api/internal/handler/organization"
	userhandler "github.com/practicedesk/booking-api/internal/handler/user"
	"github.com/practicedesk/booking-api/internal/middleware"
	"github.com/practicedesk/booking-api/internal/repository/postgres"
	"github.com/practicedesk/booking-api/internal/router"
	"github.com/practicedesk/booking-api/internal/scheduler"
	appointmentsvc "github.com/practicedesk/booking-api/internal/service/appointment"
	"github.com/practicedesk/booking-api/internal/service/audit"
	authsvc "github.com/practicedesk/booking-api/internal/service/auth"
	"github.com/practicedesk/booking-api/internal/service/event"
	organizationsvc "github.com/practicedesk/booking-api/internal/service/organization"
	usersvc "github.com/practicedesk/booking-api/internal/service/user"
	"github.com/practicedesk/booking-api/internal/tenant"
	pkgauth "github.com/practicedesk/booking-api/pkg/auth"
	"github.com/practicedesk/booking-api/pkg/identity"
	"github.com/practicedesk/booking-api/pkg/logger"
	"github.com/practicedesk/booking-api/pkg/metrics"
	"github.com/practicedesk/booking-api/pkg/security"
)

func main() {
	log := logger.NewLogger(&logger.Config{
		Level:      logger.InfoLevel,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
	})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err, "Failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	base := postgres.NewBaseRepository(db)
	orgRepo := postgres.NewOrganizationRepository(base)
	userRepo := postgres.NewUserRepository(base)
	apptRepo := postgres.NewAppointmentRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)
	deadlineRepo := postgres.NewDeadlineRepository(base)
	auditRepo := postgres.NewAuditRepository(base)

	jwtSvc := pkgauth.NewJWTService(pkgauth.Config{
		Secret:        cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		Expiry:        time.Duration(cfg.JWT.ExpiryHours) * time.Hour,
		RefreshExpiry: time.Duration(cfg.JWT.RefreshExpiryHours) * time.Hour,
		Issuer:        cfg.JWT.Issuer,
	})
	verifier := identity.NewHTTPVerifier(
		cfg.Identity.UserinfoEndpoint,
		time.Duration(cfg.Identity.TimeoutSeconds)*time.Second,
	)
	hasher := security.NewBcryptHasher(bcrypt.DefaultCost)

	m := metrics.New("booking_api")
	resolver := tenant.NewResolver(orgRepo)
	engine := authz.NewEngine(m)
	auditor := audit.NewService(auditRepo, log)
	emitter := event.NewService(outboxRepo)
	deadlines := scheduler.NewScheduler(deadlineRepo)

	authService := authsvc.NewService(userRepo, resolver, jwtSvc, verifier, hasher, emitter, auditor)
	apptService := appointmentsvc.NewService(apptRepo, engine, emitter, deadlines, auditor, m)
	userService := usersvc.NewService(userRepo, engine, auditor)
	orgService := organizationsvc.NewService(orgRepo, engine, auditor)

	httpRouter := router.Setup(
		router.Config{
			RequestTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		},
		middleware.NewAuthMiddleware(authService),
		router.Handlers{
			Auth:         authhandler.NewHandler(authService),
			Appointment:  appointmenthandler.NewHandler(apptService),
			User:         userhandler.NewHandler(userService),
			Organization: organizationhandler.NewHandler(orgService),
		},
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: httpRouter,
	}

	go func() {
		log.Info("Starting API server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error(err, "Forced shutdown")
	}
	log.Info("Server stopped")
}
