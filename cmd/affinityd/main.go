// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

// affinityd is the digest notification daemon. It periodically scores
// connections, people and jobs for every user, composes per-category
// digests, and delivers them by email on each user's cadence. An admin HTTP
// surface exposes health, scheduler state, manual runs and score rankings.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bantulink/affinity/internal/api"
	"github.com/bantulink/affinity/internal/candidates"
	"github.com/bantulink/affinity/internal/config"
	"github.com/bantulink/affinity/internal/digest"
	"github.com/bantulink/affinity/internal/digest/scheduler"
	"github.com/bantulink/affinity/internal/logging"
	"github.com/bantulink/affinity/internal/mailer"
	"github.com/bantulink/affinity/internal/preferences"
	"github.com/bantulink/affinity/internal/profile"
	"github.com/bantulink/affinity/internal/scoring"
	"github.com/bantulink/affinity/internal/store/sqlstore"
	"github.com/bantulink/affinity/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "affinityd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := logging.Init(cfg.Logging); err != nil {
		return err
	}
	logger := logging.Logger()
	logger.Info().Msg("Starting affinityd")

	db, err := sqlstore.Open(cfg.Store, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("Database close failed")
		}
	}()

	profiles := profile.NewAggregator(db, logger)
	fetcher := candidates.NewFetcher(db, db, cfg.Candidates, logger)

	personScorer := scoring.NewPersonScorer()
	jobScorer := scoring.NewJobScorer(scoring.JobScorerConfig{
		JitterEnabled: cfg.Scoring.JitterEnabled,
		Seed:          cfg.Scoring.JitterSeed,
	})
	similarityScorer := scoring.NewSimilarityScorer(db, logger)

	composer := digest.NewComposer(profiles, fetcher, personScorer, jobScorer, cfg.Digest, logger)

	smtpMailer, err := mailer.New(cfg.Mailer, logger)
	if err != nil {
		return err
	}

	prefs := preferences.NewService(db, logger)
	sched, err := scheduler.New(db, prefs, composer, smtpMailer, cfg.Scheduler, logger)
	if err != nil {
		return err
	}

	handler := api.NewHandler(sched, db, profiles, similarityScorer, logger)
	server := api.NewServer(cfg.HTTP, handler.Router(cfg.HTTP), logger)

	tree := supervisor.NewTree(logging.NewSlogLogger(logger), supervisor.DefaultTreeConfig())
	tree.AddJobService(sched)
	tree.AddAPIService(server)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("addr", cfg.HTTP.Addr).
		Str("db", cfg.Store.Path).
		Bool("scheduler_enabled", cfg.Scheduler.Enabled).
		Msg("Service tree starting")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("Shutdown complete")
	return nil
}
