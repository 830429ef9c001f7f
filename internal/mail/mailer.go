// Package mail delivers transactional email for account verification and
// password recovery.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/freelancebill/freelancebill/pkg/logger"
)

// Dispatcher sends a single transactional message.
type Dispatcher interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig configures the SMTP dispatcher.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPDispatcher sends mail through a plain-auth SMTP relay.
type SMTPDispatcher struct {
	cfg SMTPConfig
	log *logger.Logger
}

// NewSMTPDispatcher creates a dispatcher for the given relay.
func NewSMTPDispatcher(cfg SMTPConfig, log *logger.Logger) (*SMTPDispatcher, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("smtp host and from address are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if log == nil {
		log = logger.NewDefault("mail")
	}
	return &SMTPDispatcher{cfg: cfg, log: log}, nil
}

func (d *SMTPDispatcher) Send(_ context.Context, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)

	var auth smtp.Auth
	if d.cfg.Username != "" {
		auth = smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)
	}

	msg := strings.Join([]string{
		"From: " + d.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(addr, auth, d.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	d.log.WithField("to", to).WithField("subject", subject).Debug("mail sent")
	return nil
}

// LogDispatcher writes messages to the log instead of delivering them. Used
// when no relay is configured, and in tests.
type LogDispatcher struct {
	log *logger.Logger
}

// NewLogDispatcher creates a log-only dispatcher.
func NewLogDispatcher(log *logger.Logger) *LogDispatcher {
	if log == nil {
		log = logger.NewDefault("mail")
	}
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Send(_ context.Context, to, subject, body string) error {
	d.log.WithFields(map[string]interface{}{
		"to":      to,
		"subject": subject,
		"body":    body,
	}).Info("mail suppressed (no relay configured)")
	return nil
}
