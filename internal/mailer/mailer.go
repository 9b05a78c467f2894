// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

// Package mailer delivers composed digests over SMTP.
//
// Delivery is guarded two ways: a rate limiter keeps digest bursts inside
// the provider's send cap, and a circuit breaker stops hammering an SMTP
// server that is refusing connections. Both reject fast; the scheduler logs
// the failure and moves on.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/bantulink/affinity/internal/digest"
	"github.com/bantulink/affinity/internal/metrics"
)

// errRateLimited marks a send aborted while waiting on the rate limiter.
var errRateLimited = errors.New("rate limit wait aborted")

// Config holds SMTP transport settings.
type Config struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port" validate:"min=0,max=65535"`
	From     string `koanf:"from" validate:"omitempty,email"`
	FromName string `koanf:"from_name"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	UseTLS   bool   `koanf:"use_tls"`

	// Timeout bounds one SMTP conversation.
	Timeout time.Duration `koanf:"timeout"`

	// RatePerMinute caps outbound messages; zero disables the limiter.
	RatePerMinute int `koanf:"rate_per_minute"`
}

// DefaultConfig returns mailer defaults suitable for a local relay.
func DefaultConfig() Config {
	return Config{
		Port:          587,
		FromName:      "Bantulink",
		UseTLS:        true,
		Timeout:       30 * time.Second,
		RatePerMinute: 60,
	}
}

// SMTPMailer implements digest.Mailer over SMTP.
type SMTPMailer struct {
	cfg      Config
	renderer *renderer
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[struct{}]
	logger   zerolog.Logger

	// send is swapped in tests.
	send func(ctx context.Context, to, msg string) error
}

// New creates an SMTP mailer.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(cfg Config, logger zerolog.Logger) (*SMTPMailer, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	r, err := newRenderer()
	if err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), cfg.RatePerMinute)
	}

	m := &SMTPMailer{
		cfg:      cfg,
		renderer: r,
		limiter:  limiter,
		logger:   logger.With().Str("component", "mailer").Logger(),
	}
	m.send = m.sendSMTP

	m.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("SMTP circuit breaker state change")
		},
	})

	return m, nil
}

// Send renders and delivers one digest to its user's email address. Outcomes
// are counted per category, with failures labeled by kind.
func (m *SMTPMailer) Send(ctx context.Context, d *digest.Digest) error {
	if err := m.deliver(ctx, d); err != nil {
		metrics.EmailSendErrors.WithLabelValues(string(d.Category), errorKind(err)).Inc()
		return err
	}
	metrics.EmailsSentTotal.WithLabelValues(string(d.Category)).Inc()
	return nil
}

func (m *SMTPMailer) deliver(ctx context.Context, d *digest.Digest) error {
	to := strings.TrimSpace(d.User.Email)
	if _, err := mail.ParseAddress(to); err != nil {
		return fmt.Errorf("recipient %q: %w", to, err)
	}

	subject, html, text, err := m.renderer.render(d)
	if err != nil {
		return err
	}
	msg := m.buildMessage(to, subject, html, text)

	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", errRateLimited, err)
		}
	}

	_, err = m.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, m.send(ctx, to, msg)
	})
	if err != nil {
		return fmt.Errorf("deliver %s digest to %s: %w", d.Category, to, err)
	}

	m.logger.Debug().
		Str("user_id", d.User.ID).
		Str("category", string(d.Category)).
		Int("items", len(d.Items)).
		Msg("Digest delivered")
	return nil
}

// errorKind maps a delivery error onto the send error counter's kind label.
func errorKind(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.Is(err, errRateLimited):
		return "rate_limited"
	default:
		return "smtp"
	}
}

// buildMessage constructs the multipart MIME message.
func (m *SMTPMailer) buildMessage(to, subject, html, text string) string {
	var msg strings.Builder

	fromName := m.cfg.FromName
	if fromName == "" {
		fromName = "Bantulink"
	}

	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", fromName, m.cfg.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")

	boundary := fmt.Sprintf("boundary_%d", time.Now().UnixNano())
	msg.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n", boundary))
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(text)
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(html)
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	return msg.String()
}

// sendSMTP performs one SMTP conversation.
func (m *SMTPMailer) sendSMTP(ctx context.Context, to, msg string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	dialer := &net.Dialer{Timeout: m.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }() //nolint:errcheck // Best effort cleanup

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }() //nolint:errcheck // Best effort cleanup

	if m.cfg.UseTLS {
		tlsConfig := &tls.Config{
			ServerName: m.cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("start TLS: %w", err)
		}
	}

	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication: %w", err)
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("start message body: %w", err)
	}
	if _, err := writer.Write([]byte(msg)); err != nil {
		return fmt.Errorf("write message body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close message body: %w", err)
	}

	// Quit errors after a successful DATA are ignored: the message is sent.
	_ = client.Quit() //nolint:errcheck

	return nil
}
