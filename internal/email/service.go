package email

import (
	"context"
	"fmt"

	gomail "gopkg.in/gomail.v2"
)

// Service delivers notification emails. The core only guarantees event
// emission; delivery success is this collaborator's concern.
type Service interface {
	SendWelcome(ctx context.Context, to, name string) error
	SendAppointmentNotice(ctx context.Context, to, subject, body string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPService(cfg Config) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendWelcome(ctx context.Context, to, name string) error {
	body := fmt.Sprintf("Hi %s,\n\nYour account is ready. You can sign in and manage your sessions now.", name)
	return s.send(to, "Welcome", body)
}

func (s *smtpService) SendAppointmentNotice(ctx context.Context, to, subject, body string) error {
	return s.send(to, subject, body)
}

func (s *smtpService) send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}
