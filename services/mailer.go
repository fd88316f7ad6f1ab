// backend/services/mailer.go
package services

import (
	"fmt"
	"log"

	"gopkg.in/gomail.v2"

	"github.com/roadsafety/silent-recall/backend/config"
)

type smtpMailer struct {
	cfg config.AlertConfig
}

// NewMailer builds the SMTP-backed Mailer. Missing credentials are a soft
// warning, not an error: the returned nil Mailer disables only the notify
// step.
func NewMailer(cfg config.AlertConfig) Mailer {
	if cfg.Sender == "" || cfg.Password == "" || len(cfg.Recipients) == 0 {
		log.Println("WARN Service: Email credentials not set")
		return nil
	}
	return &smtpMailer{cfg: cfg}
}

func (m *smtpMailer) Send(subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.cfg.Sender)
	msg.SetHeader("To", m.cfg.Recipients...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	dialer := gomail.NewDialer(m.cfg.SMTPHost, m.cfg.SMTPPort, m.cfg.Sender, m.cfg.Password)
	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	return nil
}
