// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

// Package candidates retrieves the three candidate sets that feed the
// scoring engine: content from direct connections since a cutoff,
// unconnected candidate users, and recent jobs not authored by the viewer.
//
// All operations are read-only. The per-user exclusion set (self plus
// connection ids, string-normalized) is computed once and reused so a user
// never sees themselves or an existing connection as a candidate.
package candidates

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bantulink/affinity/internal/models"
)

// Default fetch caps applied before scoring.
const (
	DefaultUserFetchLimit = 50
	DefaultJobFetchLimit  = 10
)

// UserStore is the read-only user data source the fetcher depends on.
type UserStore interface {
	// ConnectionIDs returns the ids of the user's direct connections.
	ConnectionIDs(ctx context.Context, userID string) ([]string, error)

	// RecommendableUsers returns verified, non-admin users whose ids are
	// not in excludeIDs, capped at limit.
	RecommendableUsers(ctx context.Context, excludeIDs []string, limit int) ([]models.User, error)
}

// ContentStore is the read-only content data source the fetcher depends on.
type ContentStore interface {
	// FindByAuthorsSince returns items of one type authored by any of the
	// given users, created after since, with taxonomy tags attached.
	FindByAuthorsSince(ctx context.Context, ctype models.ContentType, authorIDs []string, since time.Time) ([]models.ContentItem, error)

	// FindRecentExcluding returns items of one type created after since,
	// excluding the given author, capped at limit.
	FindRecentExcluding(ctx context.Context, ctype models.ContentType, excludeAuthorID string, since time.Time, limit int) ([]models.ContentItem, error)
}

// Update is a connection's content item normalized for digest display.
type Update struct {
	Type        models.ContentType `json:"type"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Author      string             `json:"author"`
	CreatedAt   time.Time          `json:"created_at"`
	Link        string             `json:"link"`
}

// Config holds fetcher limits and link building.
type Config struct {
	// BaseURL prefixes the links embedded in digest items.
	BaseURL string `koanf:"base_url"`

	// UserFetchLimit caps recommendable-user retrieval prior to scoring.
	UserFetchLimit int `koanf:"user_fetch_limit"`

	// JobFetchLimit caps recent-job retrieval prior to scoring.
	JobFetchLimit int `koanf:"job_fetch_limit"`
}

// Fetcher retrieves candidate sets for one user at a time.
type Fetcher struct {
	users   UserStore
	content ContentStore
	cfg     Config
	logger  zerolog.Logger
}

// NewFetcher creates a candidate fetcher, applying default limits for zero
// config values.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewFetcher(users UserStore, content ContentStore, cfg Config, logger zerolog.Logger) *Fetcher {
	if cfg.UserFetchLimit <= 0 {
		cfg.UserFetchLimit = DefaultUserFetchLimit
	}
	if cfg.JobFetchLimit <= 0 {
		cfg.JobFetchLimit = DefaultJobFetchLimit
	}
	return &Fetcher{
		users:   users,
		content: content,
		cfg:     cfg,
		logger:  logger.With().Str("component", "candidates").Logger(),
	}
}

// exclusion holds the per-user exclusion set, computed once and reused by
// every operation in a composition pass.
type exclusion struct {
	ids []string
	set map[string]struct{}
}

func (e exclusion) contains(id string) bool {
	_, ok := e.set[normalizeID(id)]
	return ok
}

func normalizeID(id string) string {
	return strings.TrimSpace(id)
}

// buildExclusion computes the exclusion set: the user's own id plus every
// direct-connection id.
func (f *Fetcher) buildExclusion(ctx context.Context, userID string) (exclusion, error) {
	connIDs, err := f.users.ConnectionIDs(ctx, userID)
	if err != nil {
		return exclusion{}, fmt.Errorf("connection ids for %s: %w", userID, err)
	}

	excl := exclusion{set: make(map[string]struct{}, len(connIDs)+1)}
	for _, id := range append([]string{userID}, connIDs...) {
		id = normalizeID(id)
		if id == "" {
			continue
		}
		if _, dup := excl.set[id]; dup {
			continue
		}
		excl.set[id] = struct{}{}
		excl.ids = append(excl.ids, id)
	}
	return excl, nil
}

// ConnectionUpdatesSince returns content of every type authored by the
// user's direct connections after the cutoff, newest first. The per-type
// store reads have no ordering dependency and fan out concurrently.
func (f *Fetcher) ConnectionUpdatesSince(ctx context.Context, userID string, since time.Time) ([]Update, error) {
	connIDs, err := f.users.ConnectionIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("connection ids for %s: %w", userID, err)
	}
	if len(connIDs) == 0 {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		updates []Update
	)

	for _, ctype := range models.AllContentTypes() {
		wg.Add(1)
		go func(ct models.ContentType) {
			defer wg.Done()

			items, err := f.content.FindByAuthorsSince(ctx, ct, connIDs, since)
			if err != nil {
				// One failed type degrades the digest, it does not fail it.
				f.logger.Warn().
					Err(err).
					Str("user_id", userID).
					Str("content_type", string(ct)).
					Msg("connection updates fetch failed for type")
				return
			}

			mu.Lock()
			for _, item := range items {
				updates = append(updates, f.normalizeUpdate(item))
			}
			mu.Unlock()
		}(ctype)
	}
	wg.Wait()

	sort.Slice(updates, func(i, j int) bool {
		return updates[i].CreatedAt.After(updates[j].CreatedAt)
	})
	return updates, nil
}

// RecommendableUsers returns verified, non-admin candidate users excluding
// the viewer and their connections, capped at the configured fetch limit.
func (f *Fetcher) RecommendableUsers(ctx context.Context, userID string) ([]models.User, error) {
	excl, err := f.buildExclusion(ctx, userID)
	if err != nil {
		return nil, err
	}

	fetched, err := f.users.RecommendableUsers(ctx, excl.ids, f.cfg.UserFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("recommendable users for %s: %w", userID, err)
	}

	// The store already filters; re-check against the exclusion set so a
	// stale store result can never surface a self- or connection-
	// recommendation.
	out := make([]models.User, 0, len(fetched))
	for _, u := range fetched {
		if excl.contains(u.ID) {
			continue
		}
		if !u.Verified || u.Admin {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

// RecentJobsExcludingSelf returns jobs created after the cutoff that the
// user did not author. A non-positive limit falls back to the configured
// job fetch limit.
func (f *Fetcher) RecentJobsExcludingSelf(ctx context.Context, userID string, since time.Time, limit int) ([]models.ContentItem, error) {
	if limit <= 0 {
		limit = f.cfg.JobFetchLimit
	}

	jobs, err := f.content.FindRecentExcluding(ctx, models.ContentTypeJob, userID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("recent jobs for %s: %w", userID, err)
	}

	out := make([]models.ContentItem, 0, len(jobs))
	for _, job := range jobs {
		if normalizeID(job.OwnerID) == normalizeID(userID) {
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

// normalizeUpdate maps a content item to its digest representation.
func (f *Fetcher) normalizeUpdate(item models.ContentItem) Update {
	return Update{
		Type:        item.Type,
		Title:       item.Title,
		Description: item.Description,
		Author:      item.OwnerName,
		CreatedAt:   item.CreatedAt,
		Link:        f.Link(item.Type, item.ID),
	}
}

// Link builds the platform URL for a content item.
func (f *Fetcher) Link(ctype models.ContentType, id string) string {
	base := strings.TrimRight(f.cfg.BaseURL, "/")
	return fmt.Sprintf("%s/%ss/%s", base, ctype, id)
}

// ProfileLink builds the platform URL for a user profile.
func (f *Fetcher) ProfileLink(userID string) string {
	base := strings.TrimRight(f.cfg.BaseURL, "/")
	return fmt.Sprintf("%s/profile/%s", base, userID)
}
