// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

// Package api exposes the admin HTTP surface: health, scheduler status and
// manual runs, application score rankings, and Prometheus metrics.
//
// This surface is operational, not public: it sits behind the platform's
// gateway, which owns authentication.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Config holds HTTP server settings.
type Config struct {
	Addr string `koanf:"addr"`

	// RunRateLimit caps manual digest runs per client IP per minute.
	RunRateLimit int `koanf:"run_rate_limit"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DefaultConfig returns HTTP defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8085",
		RunRateLimit:    5,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server wraps the HTTP listener as a supervised service.
type Server struct {
	cfg    Config
	srv    *http.Server
	logger zerolog.Logger
}

// NewServer creates the admin HTTP server around a built router.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewServer(cfg Config, handler http.Handler, logger zerolog.Logger) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultConfig().ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}

	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// Serve runs the listener until the context is canceled. It implements
// suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("Starting admin HTTP server")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api: listen on %s: %w", s.cfg.Addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	return ctx.Err()
}
