package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"

	"github.com/sirupsen/logrus"
)

// Sender delivers a freshly issued or reissued passcode to an address.
// Implementations must be safe for concurrent use.
type Sender interface {
	SendCode(ctx context.Context, to, code string) error
}

// SMTPConfig carries the transport credentials, injected at startup and
// passed explicitly; nothing here is read from the environment.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Subject  string
}

// SMTPSender sends the passcode as a plain-text message over SMTP with
// PLAIN auth.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender describes the newsmtpsender operation and its observable behavior.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, errors.New("smtp host and port are required")
	}
	if cfg.From == "" {
		return nil, errors.New("smtp from address is required")
	}
	if cfg.Subject == "" {
		cfg.Subject = "Your verification code"
	}
	return &SMTPSender{cfg: cfg}, nil
}

// SendCode describes the sendcode operation and its observable behavior.
//
// SendCode may return an error when input validation, dependency calls, or security checks fail.
func (s *SMTPSender) SendCode(ctx context.Context, to, code string) error {
	if to == "" {
		return errors.New("empty recipient address")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\nYour verification code is %s. It expires in 10 minutes.\r\n",
		s.cfg.From, to, s.cfg.Subject, code)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg))
}

// LogSender logs the code instead of delivering it. Development use only.
type LogSender struct {
	logger *logrus.Logger
}

// NewLogSender describes the newlogsender operation and its observable behavior.
func NewLogSender(logger *logrus.Logger) *LogSender {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogSender{logger: logger}
}

// SendCode describes the sendcode operation and its observable behavior.
func (s *LogSender) SendCode(_ context.Context, to, code string) error {
	s.logger.WithFields(logrus.Fields{
		"to":   to,
		"code": code,
	}).Info("verification code issued (log sender)")
	return nil
}
