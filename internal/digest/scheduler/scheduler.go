// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

// scheduler.go - Cadence Scheduler
//
// One trigger per cadence (daily, weekly, monthly), each driven by a cron
// expression. A trigger selects its cohort (users whose cadence equals the
// trigger's, plus every auto user), then composes and delivers digests per
// user under a concurrency semaphore, a per-user timeout and panic recovery.
// A user's failure never aborts the cohort.
//
// The scheduler runs as a supervised service: Serve blocks until the context
// is canceled.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bantulink/affinity/internal/digest"
	"github.com/bantulink/affinity/internal/metrics"
	"github.com/bantulink/affinity/internal/models"
	"github.com/bantulink/affinity/internal/preferences"
)

// errCompositionPanic marks a user whose composition panicked; the recover
// in processUser wraps the panic value with it so the failure counter can
// label the reason.
var errCompositionPanic = errors.New("composition panicked")

// Lookback windows per cadence: a digest covers content created within the
// window ending at the run time.
const (
	LookbackDaily   = 24 * time.Hour
	LookbackWeekly  = 7 * 24 * time.Hour
	LookbackMonthly = 30 * 24 * time.Hour
)

// LookbackFor returns the content window for a trigger cadence.
func LookbackFor(cadence models.Cadence) time.Duration {
	switch cadence {
	case models.CadenceWeekly:
		return LookbackWeekly
	case models.CadenceMonthly:
		return LookbackMonthly
	default:
		return LookbackDaily
	}
}

// CohortStore defines the user reads the scheduler depends on.
type CohortStore interface {
	// DigestRecipients returns the ids of users whose stored cadence is any
	// of the given values. Users with no stored settings count as
	// DefaultCadence.
	DigestRecipients(ctx context.Context, cadences []models.Cadence) ([]string, error)

	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Config holds scheduler tunables.
type Config struct {
	// Cron expressions, 5-field, one per trigger cadence.
	CronDaily   string `koanf:"cron_daily"`
	CronWeekly  string `koanf:"cron_weekly"`
	CronMonthly string `koanf:"cron_monthly"`

	// Timezone for cron evaluation; empty means UTC.
	Timezone string `koanf:"timezone"`

	// MaxConcurrentUsers bounds parallel per-user compositions.
	MaxConcurrentUsers int `koanf:"max_concurrent_users"`

	// UserTimeout caps one user's composition and delivery.
	UserTimeout time.Duration `koanf:"user_timeout"`

	// Enabled controls whether cron triggers fire. RunNow works regardless.
	Enabled bool `koanf:"enabled"`
}

// DefaultConfig returns the default scheduler configuration: daily at 08:00,
// weekly Monday 08:00, monthly on the 1st at 08:00.
func DefaultConfig() Config {
	return Config{
		CronDaily:          "0 8 * * *",
		CronWeekly:         "0 8 * * 1",
		CronMonthly:        "0 8 1 * *",
		MaxConcurrentUsers: 8,
		UserTimeout:        30 * time.Second,
		Enabled:            true,
	}
}

// RunStatus describes the most recent run of one cadence.
type RunStatus struct {
	RunID      string    `json:"run_id,omitempty"`
	LastRunAt  time.Time `json:"last_run_at,omitempty"`
	NextRunAt  time.Time `json:"next_run_at,omitempty"`
	CohortSize int       `json:"cohort_size"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Running    bool      `json:"running"`
}

// Status is the full scheduler state exposed over the admin API.
type Status struct {
	Enabled  bool                         `json:"enabled"`
	Cadences map[models.Cadence]RunStatus `json:"cadences"`
}

// Scheduler owns the cadence triggers and the per-user digest pipeline.
type Scheduler struct {
	store    CohortStore
	prefs    *preferences.Service
	composer *digest.Composer
	mailer   digest.Mailer
	logger   zerolog.Logger
	cfg      Config
	loc      *time.Location

	schedules map[models.Cadence]*Schedule

	mu     sync.Mutex
	status map[models.Cadence]RunStatus
}

// New creates a scheduler. It fails if a cron expression or the timezone
// does not parse.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(store CohortStore, prefs *preferences.Service, composer *digest.Composer, mailer digest.Mailer, cfg Config, logger zerolog.Logger) (*Scheduler, error) {
	if cfg.MaxConcurrentUsers <= 0 {
		cfg.MaxConcurrentUsers = DefaultConfig().MaxConcurrentUsers
	}
	if cfg.UserTimeout <= 0 {
		cfg.UserTimeout = DefaultConfig().UserTimeout
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("scheduler timezone %q: %w", cfg.Timezone, err)
		}
	}

	exprs := map[models.Cadence]string{
		models.CadenceDaily:   cfg.CronDaily,
		models.CadenceWeekly:  cfg.CronWeekly,
		models.CadenceMonthly: cfg.CronMonthly,
	}
	schedules := make(map[models.Cadence]*Schedule, len(exprs))
	for cadence, expr := range exprs {
		sched, err := Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("scheduler %s: %w", cadence, err)
		}
		schedules[cadence] = sched
	}

	return &Scheduler{
		store:     store,
		prefs:     prefs,
		composer:  composer,
		mailer:    mailer,
		logger:    logger.With().Str("component", "digest-scheduler").Logger(),
		cfg:       cfg,
		loc:       loc,
		schedules: schedules,
		status:    make(map[models.Cadence]RunStatus, len(schedules)),
	}, nil
}

// Serve runs the cadence triggers until the context is canceled. It
// implements suture.Service.
func (s *Scheduler) Serve(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.logger.Info().Msg("Digest scheduler disabled, cron triggers inactive")
		<-ctx.Done()
		return ctx.Err()
	}

	s.logger.Info().
		Str("daily", s.cfg.CronDaily).
		Str("weekly", s.cfg.CronWeekly).
		Str("monthly", s.cfg.CronMonthly).
		Int("max_concurrent", s.cfg.MaxConcurrentUsers).
		Msg("Starting digest scheduler")

	var wg sync.WaitGroup
	for cadence := range s.schedules {
		wg.Add(1)
		go func(c models.Cadence) {
			defer wg.Done()
			s.runTrigger(ctx, c)
		}(cadence)
	}
	wg.Wait()
	return ctx.Err()
}

// runTrigger sleeps until the cadence's next cron time, runs the cohort, and
// repeats until the context is canceled.
func (s *Scheduler) runTrigger(ctx context.Context, cadence models.Cadence) {
	sched := s.schedules[cadence]
	for {
		next := sched.Next(time.Now(), s.loc)
		s.setNextRun(cadence, next)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.RunCadence(ctx, cadence, "cron")
	}
}

// RunNow triggers one cadence run asynchronously and returns its run id.
// It is the manual entry point behind the admin API.
func (s *Scheduler) RunNow(cadence models.Cadence) (string, error) {
	if _, ok := s.schedules[cadence]; !ok {
		return "", fmt.Errorf("no trigger for cadence %q", cadence)
	}
	runID := uuid.New().String()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()
		s.runCohort(ctx, cadence, "manual", runID)
	}()
	return runID, nil
}

// RunCadence runs one cadence cohort synchronously.
func (s *Scheduler) RunCadence(ctx context.Context, cadence models.Cadence, trigger string) {
	s.runCohort(ctx, cadence, trigger, uuid.New().String())
}

// runCohort selects the cohort for one trigger and processes every user.
func (s *Scheduler) runCohort(ctx context.Context, cadence models.Cadence, trigger, runID string) {
	start := time.Now()
	since := start.Add(-LookbackFor(cadence))
	logger := s.logger.With().
		Str("run_id", runID).
		Str("cadence", string(cadence)).
		Str("trigger", trigger).
		Logger()

	s.markRunning(cadence, runID, true)
	defer s.markRunning(cadence, runID, false)

	metrics.DigestRunsTotal.WithLabelValues(string(cadence), trigger).Inc()

	// Auto users join every trigger's cohort.
	userIDs, err := s.store.DigestRecipients(ctx, []models.Cadence{cadence, models.CadenceAuto})
	if err != nil {
		logger.Error().Err(err).Msg("Cohort selection failed")
		return
	}
	metrics.DigestCohortSize.WithLabelValues(string(cadence)).Set(float64(len(userIDs)))

	logger.Info().Int("cohort_size", len(userIDs)).Msg("Digest run started")

	var (
		wg           sync.WaitGroup
		sent, failed sync.Map
		sentCount    int
		failedCount  int
	)
	sem := make(chan struct{}, s.cfg.MaxConcurrentUsers)

	for _, userID := range userIDs {
		wg.Add(1)
		sem <- struct{}{}

		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()

			userCtx, cancel := context.WithTimeout(ctx, s.cfg.UserTimeout)
			defer cancel()

			n, err := s.processUser(userCtx, logger, id, since)
			if err != nil {
				failed.Store(id, err)
				reason := "error"
				switch {
				case errors.Is(err, errCompositionPanic):
					reason = "panic"
				case userCtx.Err() == context.DeadlineExceeded:
					reason = "timeout"
				}
				metrics.CompositionFailures.WithLabelValues(string(cadence), reason).Inc()
				logger.Warn().Err(err).Str("user_id", id).Msg("Digest composition failed for user")
				return
			}
			if n > 0 {
				sent.Store(id, n)
			}
		}(userID)
	}
	wg.Wait()

	sent.Range(func(_, v any) bool { sentCount += v.(int); return true })
	failed.Range(func(_, _ any) bool { failedCount++; return true })

	s.recordRun(cadence, runID, start, len(userIDs), sentCount, failedCount)
	metrics.DigestRunDuration.WithLabelValues(string(cadence)).Observe(time.Since(start).Seconds())

	logger.Info().
		Int("sent", sentCount).
		Int("failed_users", failedCount).
		Dur("duration", time.Since(start)).
		Msg("Digest run finished")
}

// processUser composes and delivers every enabled category for one user. It
// returns the number of digests delivered. Panics inside composition are
// recovered and reported as errors.
func (s *Scheduler) processUser(ctx context.Context, logger zerolog.Logger, userID string, since time.Time) (delivered int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w for %s: %v", errCompositionPanic, userID, r)
		}
	}()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load user %s: %w", userID, err)
	}

	settings, err := s.prefs.Resolve(ctx, userID)
	if err != nil {
		return 0, err
	}

	for _, category := range models.AllCategories() {
		if !settings.CategoryEnabled(category) {
			metrics.CompositionsTotal.WithLabelValues(string(category), "disabled").Inc()
			continue
		}

		d, err := s.composer.Compose(ctx, *user, category, since)
		if err != nil {
			metrics.CompositionsTotal.WithLabelValues(string(category), "failed").Inc()
			// One category failing does not block the others.
			logger.Warn().Err(err).
				Str("user_id", userID).
				Str("category", string(category)).
				Msg("Category composition failed")
			continue
		}
		if d == nil {
			metrics.CompositionsTotal.WithLabelValues(string(category), "empty").Inc()
			continue
		}

		// The mailer counts delivery outcomes per category and error kind.
		if err := s.mailer.Send(ctx, d); err != nil {
			logger.Warn().Err(err).
				Str("user_id", userID).
				Str("category", string(category)).
				Msg("Digest delivery failed")
			continue
		}
		metrics.CompositionsTotal.WithLabelValues(string(category), "sent").Inc()
		delivered++
	}
	return delivered, nil
}

// Status returns a copy of the per-cadence run state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Status{
		Enabled:  s.cfg.Enabled,
		Cadences: make(map[models.Cadence]RunStatus, len(s.status)),
	}
	for cadence := range s.schedules {
		out.Cadences[cadence] = s.status[cadence]
	}
	return out
}

func (s *Scheduler) setNextRun(cadence models.Cadence, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status[cadence]
	st.NextRunAt = next
	s.status[cadence] = st
}

func (s *Scheduler) markRunning(cadence models.Cadence, runID string, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status[cadence]
	st.Running = running
	if running {
		st.RunID = runID
	}
	s.status[cadence] = st
}

func (s *Scheduler) recordRun(cadence models.Cadence, runID string, start time.Time, cohort, sent, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status[cadence]
	st.RunID = runID
	st.LastRunAt = start
	st.CohortSize = cohort
	st.Sent = sent
	st.Failed = failed
	s.status[cadence] = st
}
