// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GlobalCart Contributors

// Package mail delivers transactional email over SMTP.
package mail

import (
	"context"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"

	"github.com/jordan-wright/email"
	"github.com/samber/oops"
)

// SMTPConfig holds the connection settings for an SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// Mailer sends plain-text email through an SMTP relay. It implements
// auth.Notifier.
type Mailer struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// NewMailer creates a Mailer for the given SMTP relay.
func NewMailer(cfg SMTPConfig) (*Mailer, error) {
	return NewMailerWithLogger(cfg, slog.Default())
}

// NewMailerWithLogger creates a Mailer with a custom logger.
func NewMailerWithLogger(cfg SMTPConfig, logger *slog.Logger) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, oops.Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, oops.Errorf("smtp from address is required")
	}
	if cfg.Port <= 0 {
		return nil, oops.With("port", cfg.Port).Errorf("smtp port is invalid")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Mailer{cfg: cfg, logger: logger}, nil
}

// Send delivers a plain-text message to a single recipient. The context is
// checked before dialing; the SMTP exchange itself is not cancellable.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("MAIL_SEND_FAILED").Wrap(err)
	}

	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := e.Send(addr, auth); err != nil {
		return oops.
			Code("MAIL_SEND_FAILED").
			With("host", m.cfg.Host).
			Wrapf(err, "sending mail")
	}

	m.logger.DebugContext(ctx, "mail sent", "to", to, "subject", subject)
	return nil
}
