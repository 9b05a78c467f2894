// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

// Package profile builds immutable snapshots of a user's declared taxonomy
// interests, goals and location — the "viewer defaults" consumed by the
// scoring engine.
//
// A snapshot is computed fresh on every call; nothing is cached across
// scheduler runs.
package profile

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/bantulink/affinity/internal/models"
	"github.com/bantulink/affinity/internal/store"
)

// TagSets holds a user's taxonomy tag ids grouped by axis and source.
// Interest tags were explicitly declared; attribute tags were derived from
// profile attributes. The job scorer weighs the two sources differently.
type TagSets struct {
	InterestCategories       []string
	InterestSubcategories    []string
	InterestSubsubCategories []string

	AttributeCategories    []string
	AttributeSubcategories []string

	Goals      []string
	Identities []string

	// Industry axes are only meaningful when scoring jobs.
	IndustryCategories       []string
	IndustrySubcategories    []string
	IndustrySubsubCategories []string
}

// Store is the read-only user data source the aggregator depends on.
type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	UserTagSets(ctx context.Context, id string) (TagSets, error)
}

// Snapshot is an immutable view of a user's viewer defaults.
type Snapshot struct {
	UserID string

	InterestCategoryIDs       []string
	InterestSubcategoryIDs    []string
	InterestSubsubCategoryIDs []string

	AttributeCategoryIDs    []string
	AttributeSubcategoryIDs []string

	GoalIDs     []string
	IdentityIDs []string

	IndustryCategoryIDs       []string
	IndustrySubcategoryIDs    []string
	IndustrySubsubCategoryIDs []string

	Country string
	City    string
}

// Empty reports whether the snapshot carries no scoring signal at all.
func (s Snapshot) Empty() bool {
	return len(s.InterestCategoryIDs) == 0 &&
		len(s.InterestSubcategoryIDs) == 0 &&
		len(s.InterestSubsubCategoryIDs) == 0 &&
		len(s.AttributeCategoryIDs) == 0 &&
		len(s.AttributeSubcategoryIDs) == 0 &&
		len(s.GoalIDs) == 0 &&
		len(s.IdentityIDs) == 0 &&
		s.Country == "" && s.City == ""
}

// Aggregator assembles viewer defaults from the user store.
type Aggregator struct {
	store  Store
	logger zerolog.Logger
}

// NewAggregator creates a profile aggregator.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewAggregator(st Store, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		store:  st,
		logger: logger.With().Str("component", "profile").Logger(),
	}
}

// ViewerDefaults builds the snapshot for a user. A missing user yields an
// all-empty snapshot and no error, so downstream scoring degrades to floor
// values instead of failing.
func (a *Aggregator) ViewerDefaults(ctx context.Context, userID string) (Snapshot, error) {
	snap := Snapshot{UserID: userID}

	user, err := a.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.logger.Debug().Str("user_id", userID).Msg("user not found, returning empty snapshot")
			return snap, nil
		}
		return snap, err
	}

	snap.Country = user.Country
	snap.City = user.City

	tags, err := a.store.UserTagSets(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return snap, nil
		}
		return snap, err
	}

	snap.InterestCategoryIDs = tags.InterestCategories
	snap.InterestSubcategoryIDs = tags.InterestSubcategories
	snap.InterestSubsubCategoryIDs = tags.InterestSubsubCategories
	snap.AttributeCategoryIDs = tags.AttributeCategories
	snap.AttributeSubcategoryIDs = tags.AttributeSubcategories
	snap.GoalIDs = tags.Goals
	snap.IdentityIDs = tags.Identities
	snap.IndustryCategoryIDs = tags.IndustryCategories
	snap.IndustrySubcategoryIDs = tags.IndustrySubcategories
	snap.IndustrySubsubCategoryIDs = tags.IndustrySubsubCategories

	return snap, nil
}
