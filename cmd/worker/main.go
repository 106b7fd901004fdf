package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/practicedesk/booking-api/internal/authz"
	"github.com/practicedesk/booking-api/internal/config"
	"github.com/practicedesk/booking-api/internal/email"
	"github.com/practicedesk/booking-api/internal/notifier"
	"github.com/practicedesk/booking-api/internal/repository/postgres"
	"github.com/practicedesk/booking-api/internal/scheduler"
	appointmentsvc "github.com/practicedesk/booking-api/internal/service/appointment"
	"github.com/practicedesk/booking-api/internal/service/audit"
	"github.com/practicedesk/booking-api/internal/service/event"
	"github.com/practicedesk/booking-api/pkg/logger"
	redisbroker "github.com/practicedesk/booking-api/pkg/messaging/redis"
	"github.com/practicedesk/booking-api/pkg/metrics"
	"github.com/practicedesk/booking-api/pkg/worker"
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
	workerCfg, err := config.LoadWorkerConfig()
	if err != nil {
		log.Fatal(err, "Failed to load worker configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &log.ZL)
	if err != nil {
		log.Fatal(err, "Failed to connect to broker")
	}
	defer broker.Close()

	base := postgres.NewBaseRepository(db)
	userRepo := postgres.NewUserRepository(base)
	apptRepo := postgres.NewAppointmentRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)
	deadlineRepo := postgres.NewDeadlineRepository(base)
	auditRepo := postgres.NewAuditRepository(base)

	m := metrics.New("booking_worker")
	auditor := audit.NewService(auditRepo, log)
	emitter := event.NewService(outboxRepo)
	deadlines := scheduler.NewScheduler(deadlineRepo)

	// The deadline handler is the appointment state machine itself; the
	// worker never reimplements lifecycle rules.
	apptService := appointmentsvc.NewService(apptRepo, authz.NewEngine(m), emitter, deadlines, auditor, m)

	outboxProcessor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		BatchSize:     workerCfg.BatchSize,
		PollInterval:  workerCfg.PollInterval,
		RetryAttempts: workerCfg.RetryAttempts,
		RetryDelay:    workerCfg.RetryDelay,
	}, log, m)

	deadlineProcessor := scheduler.NewProcessor(deadlineRepo, apptService.RunDeadlineCheck, scheduler.ProcessorConfig{
		BatchSize:     workerCfg.BatchSize,
		PollInterval:  workerCfg.DeadlinePoll,
		RetryAttempts: workerCfg.RetryAttempts,
		RetryDelay:    workerCfg.RetryDelay,
	}, log, m)

	notify := notifier.New(broker, email.NewSMTPService(email.Config{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	}), userRepo, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		outboxProcessor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		deadlineProcessor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := notify.Start(ctx); err != nil {
			log.Error(err, "Notifier stopped")
		}
	}()

	health := &http.Server{
		Addr: workerCfg.HealthListenAddr,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/health" {
				http.NotFound(w, r)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		}),
	}
	go func() {
		if err := health.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "Health endpoint failed")
		}
	}()

	log.Info("Worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down worker")
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = health.Shutdown(shutdownCtx)

	log.Info("Worker stopped")
}
