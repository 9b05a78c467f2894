// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

// Package digest composes per-user notification digests. A digest is the
// ranked top slice of one category's candidate dataset: content from the
// user's connections, recommended people, or relevant job openings.
//
// Composition is pure read-and-rank; delivery is the Mailer's concern. An
// empty dataset produces a nil digest and the Mailer is never invoked for it.
package digest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/bantulink/affinity/internal/candidates"
	"github.com/bantulink/affinity/internal/models"
	"github.com/bantulink/affinity/internal/profile"
)

// DefaultTopN is the number of items kept per digest after ranking.
const DefaultTopN = 5

// Item is one entry of a composed digest.
type Item struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Author      string    `json:"author,omitempty"`
	Link        string    `json:"link"`
	CreatedAt   time.Time `json:"created_at,omitempty"`

	// Score is the affinity percentage for scored categories. Connection
	// updates are recency-ranked and carry no score.
	Score int `json:"score,omitempty"`
}

// Digest is a ready-to-deliver notification for one user and category.
type Digest struct {
	User        models.User                 `json:"user"`
	Category    models.NotificationCategory `json:"category"`
	Items       []Item                      `json:"items"`
	GeneratedAt time.Time                   `json:"generated_at"`
}

// Mailer delivers a composed digest. Implementations own retry, rate and
// breaker policy; the pipeline treats Send as fire-and-forget.
type Mailer interface {
	Send(ctx context.Context, d *Digest) error
}

// PersonScorer scores a candidate user against a viewer profile.
type PersonScorer interface {
	Score(viewer profile.Snapshot, candidate models.User, extraCategoryIDs, extraSubcategoryIDs []string) models.ScoreResult
}

// JobScorer scores a job posting against a viewer profile.
type JobScorer interface {
	Score(viewer profile.Snapshot, job models.ContentItem) models.ScoreResult
}

// Config holds composer tunables.
type Config struct {
	// TopN caps the items kept per digest. Zero means DefaultTopN.
	TopN int `koanf:"top_n"`
}

// Composer builds digests for one user and category at a time.
type Composer struct {
	profiles *profile.Aggregator
	fetcher  *candidates.Fetcher
	people   PersonScorer
	jobs     JobScorer
	topN     int
	logger   zerolog.Logger
}

// NewComposer creates a digest composer.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewComposer(profiles *profile.Aggregator, fetcher *candidates.Fetcher, people PersonScorer, jobs JobScorer, cfg Config, logger zerolog.Logger) *Composer {
	topN := cfg.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Composer{
		profiles: profiles,
		fetcher:  fetcher,
		people:   people,
		jobs:     jobs,
		topN:     topN,
		logger:   logger.With().Str("component", "digest").Logger(),
	}
}

// Compose builds the digest for one user and category over the lookback
// window starting at since. It returns (nil, nil) when the dataset is empty:
// no digest exists and nothing must be delivered.
func (c *Composer) Compose(ctx context.Context, user models.User, category models.NotificationCategory, since time.Time) (*Digest, error) {
	var (
		items []Item
		err   error
	)

	switch category {
	case models.CategoryConnectionUpdates:
		items, err = c.connectionUpdates(ctx, user, since)
	case models.CategoryConnectionRecommendations:
		items, err = c.connectionRecommendations(ctx, user)
	case models.CategoryJobOpportunities:
		items, err = c.jobOpportunities(ctx, user, since)
	default:
		return nil, fmt.Errorf("compose: unknown category %q", category)
	}
	if err != nil {
		return nil, fmt.Errorf("compose %s for %s: %w", category, user.ID, err)
	}

	if len(items) == 0 {
		return nil, nil
	}
	if len(items) > c.topN {
		items = items[:c.topN]
	}

	return &Digest{
		User:        user,
		Category:    category,
		Items:       items,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// connectionUpdates lists recent content from direct connections, newest
// first. The fetcher already returns them sorted.
func (c *Composer) connectionUpdates(ctx context.Context, user models.User, since time.Time) ([]Item, error) {
	updates, err := c.fetcher.ConnectionUpdatesSince(ctx, user.ID, since)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(updates))
	for _, u := range updates {
		items = append(items, Item{
			Title:       u.Title,
			Description: u.Description,
			Author:      u.Author,
			Link:        u.Link,
			CreatedAt:   u.CreatedAt,
		})
	}
	return items, nil
}

// connectionRecommendations ranks unconnected candidate users by person
// affinity score.
func (c *Composer) connectionRecommendations(ctx context.Context, user models.User) ([]Item, error) {
	viewer, err := c.profiles.ViewerDefaults(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	cands, err := c.fetcher.RecommendableUsers(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(cands))
	for _, cand := range cands {
		result := c.people.Score(viewer, cand, nil, nil)
		items = append(items, Item{
			Title: cand.Name,
			Link:  c.fetcher.ProfileLink(cand.ID),
			Score: result.Percentage,
		})
	}
	sortByScore(items)
	return items, nil
}

// jobOpportunities ranks recent jobs the user did not post by job affinity
// score.
func (c *Composer) jobOpportunities(ctx context.Context, user models.User, since time.Time) ([]Item, error) {
	viewer, err := c.profiles.ViewerDefaults(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	jobs, err := c.fetcher.RecentJobsExcludingSelf(ctx, user.ID, since, 0)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(jobs))
	for _, job := range jobs {
		result := c.jobs.Score(viewer, job)
		items = append(items, Item{
			Title:       job.Title,
			Description: job.Description,
			Author:      job.OwnerName,
			Link:        c.fetcher.Link(job.Type, job.ID),
			CreatedAt:   job.CreatedAt,
			Score:       result.Percentage,
		})
	}
	sortByScore(items)
	return items, nil
}

// sortByScore orders items by score descending, breaking ties by recency so
// equal-scored items keep a stable, explainable order.
func sortByScore(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
