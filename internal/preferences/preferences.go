// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

// Package preferences resolves per-user notification settings.
//
// Resolution fails open: a missing settings row, malformed JSON, or an
// unknown cadence string all resolve to the defaults (daily cadence, every
// category enabled). A user is never dropped from digest delivery because
// their stored preferences cannot be read.
package preferences

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/bantulink/affinity/internal/models"
	"github.com/bantulink/affinity/internal/store"
)

// SettingsStore reads the raw stored settings document for a user.
type SettingsStore interface {
	// RawSettings returns the user's settings JSON as stored. It returns
	// store.ErrNotFound when the user has never saved settings.
	RawSettings(ctx context.Context, userID string) ([]byte, error)
}

// Service resolves notification preferences with fail-open semantics.
type Service struct {
	store  SettingsStore
	logger zerolog.Logger
}

// NewService creates a preference resolver.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewService(st SettingsStore, logger zerolog.Logger) *Service {
	return &Service{
		store:  st,
		logger: logger.With().Str("component", "preferences").Logger(),
	}
}

// Resolve returns the user's settings, substituting defaults for anything
// unreadable. The error return is reserved for infrastructure failures
// (store unreachable); data-quality problems never surface as errors.
func (s *Service) Resolve(ctx context.Context, userID string) (models.UserSettings, error) {
	raw, err := s.store.RawSettings(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return defaultSettings(), nil
		}
		return models.UserSettings{}, fmt.Errorf("settings for %s: %w", userID, err)
	}
	return s.parse(userID, raw), nil
}

// Cadence returns the user's digest cadence, defaulting to daily.
func (s *Service) Cadence(ctx context.Context, userID string) (models.Cadence, error) {
	settings, err := s.Resolve(ctx, userID)
	if err != nil {
		return "", err
	}
	return settings.Cadence, nil
}

// CategoryEnabled reports whether the user receives digests for the given
// notification category, defaulting to enabled.
func (s *Service) CategoryEnabled(ctx context.Context, userID string, category models.NotificationCategory) (bool, error) {
	settings, err := s.Resolve(ctx, userID)
	if err != nil {
		return false, err
	}
	return settings.CategoryEnabled(category), nil
}

// parse decodes the stored document, falling back to defaults per field.
func (s *Service) parse(userID string, raw []byte) models.UserSettings {
	if len(raw) == 0 {
		return defaultSettings()
	}

	var settings models.UserSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		s.logger.Warn().
			Err(err).
			Str("user_id", userID).
			Msg("malformed settings document, using defaults")
		return defaultSettings()
	}

	if _, ok := models.ParseCadence(string(settings.Cadence)); !ok {
		s.logger.Warn().
			Str("user_id", userID).
			Str("cadence", string(settings.Cadence)).
			Msg("unknown cadence, using default")
		settings.Cadence = models.DefaultCadence
	}
	return settings
}

func defaultSettings() models.UserSettings {
	return models.UserSettings{Cadence: models.DefaultCadence}
}
