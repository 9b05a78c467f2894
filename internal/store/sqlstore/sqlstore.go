// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

// Package sqlstore implements every consumer-side store interface of the
// digest pipeline on embedded SQLite (modernc.org/sqlite, pure Go).
//
// The pipeline only reads; the write methods exist for seeding and for the
// platform-side sync process that mirrors users, connections and content
// into this database.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // database/sql driver "sqlite"

	"github.com/bantulink/affinity/internal/models"
	"github.com/bantulink/affinity/internal/profile"
	"github.com/bantulink/affinity/internal/store"
)

// Config holds database settings.
type Config struct {
	// Path is the database file path, or ":memory:".
	Path string `koanf:"path"`

	// BusyTimeoutMS is the SQLite busy_timeout pragma in milliseconds.
	BusyTimeoutMS int `koanf:"busy_timeout_ms"`
}

// DefaultConfig returns database defaults.
func DefaultConfig() Config {
	return Config{
		Path:          "affinity.db",
		BusyTimeoutMS: 10_000,
	}
}

// Store is the SQLite-backed data store.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens the database, applies production pragmas via Exec and ensures
// the schema exists.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Open(cfg Config, logger zerolog.Logger) (*Store, error) {
	if cfg.BusyTimeoutMS <= 0 {
		cfg.BusyTimeoutMS = DefaultConfig().BusyTimeoutMS
	}

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlstore: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeoutMS),
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlstore: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With().Str("component", "sqlstore").Logger(),
	}, nil
}

// OpenMemory opens an in-memory database for testing. MaxOpenConns is pinned
// to 1 so every query hits the same in-memory database; Close is registered
// via t.Cleanup.
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	s, err := Open(Config{Path: ":memory:"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("sqlstore.OpenMemory: %v", err)
	}
	s.db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetUser returns a user with their declared interest sets attached.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, country, city, verified, admin FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Country, &u.City, &u.Verified, &u.Admin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get user %s: %w", id, err)
	}

	if err := s.attachUserInterests(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// attachUserInterests fills the declared interest sets of a user.
func (s *Store) attachUserInterests(ctx context.Context, u *models.User) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tag_id, axis FROM user_tags WHERE user_id = ? AND source = ?`,
		u.ID, sourceInterest)
	if err != nil {
		return fmt.Errorf("sqlstore: user tags %s: %w", u.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var tagID, axis string
		if err := rows.Scan(&tagID, &axis); err != nil {
			return fmt.Errorf("sqlstore: scan user tag: %w", err)
		}
		switch axis {
		case axisCategory:
			u.InterestCategoryIDs = append(u.InterestCategoryIDs, tagID)
		case axisSubcategory:
			u.InterestSubcategoryIDs = append(u.InterestSubcategoryIDs, tagID)
		case axisGoal:
			u.GoalIDs = append(u.GoalIDs, tagID)
		case axisIdentity:
			u.IdentityIDs = append(u.IdentityIDs, tagID)
		}
	}
	return rows.Err()
}

// UserTagSets returns the full tag sets of a user grouped by axis and source.
func (s *Store) UserTagSets(ctx context.Context, id string) (profile.TagSets, error) {
	var ts profile.TagSets

	rows, err := s.db.QueryContext(ctx,
		`SELECT tag_id, axis, source FROM user_tags WHERE user_id = ?`, id)
	if err != nil {
		return ts, fmt.Errorf("sqlstore: tag sets %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var tagID, axis, source string
		if err := rows.Scan(&tagID, &axis, &source); err != nil {
			return ts, fmt.Errorf("sqlstore: scan tag set row: %w", err)
		}

		interest := source == sourceInterest
		switch axis {
		case axisCategory:
			if interest {
				ts.InterestCategories = append(ts.InterestCategories, tagID)
			} else {
				ts.AttributeCategories = append(ts.AttributeCategories, tagID)
			}
		case axisSubcategory:
			if interest {
				ts.InterestSubcategories = append(ts.InterestSubcategories, tagID)
			} else {
				ts.AttributeSubcategories = append(ts.AttributeSubcategories, tagID)
			}
		case axisSubsubCategory:
			ts.InterestSubsubCategories = append(ts.InterestSubsubCategories, tagID)
		case axisGoal:
			ts.Goals = append(ts.Goals, tagID)
		case axisIdentity:
			ts.Identities = append(ts.Identities, tagID)
		case axisIndustryCategory:
			ts.IndustryCategories = append(ts.IndustryCategories, tagID)
		case axisIndustrySubcategory:
			ts.IndustrySubcategories = append(ts.IndustrySubcategories, tagID)
		case axisIndustrySubsubCategory:
			ts.IndustrySubsubCategories = append(ts.IndustrySubsubCategories, tagID)
		}
	}
	return ts, rows.Err()
}

// ConnectionIDs returns the ids of the user's direct connections.
func (s *Store) ConnectionIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_b FROM connections WHERE user_a = ?
		 UNION
		 SELECT user_a FROM connections WHERE user_b = ?`,
		userID, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: connections %s: %w", userID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlstore: scan connection: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecommendableUsers returns verified, non-admin users excluding the given
// ids, with interest sets attached, capped at limit.
func (s *Store) RecommendableUsers(ctx context.Context, excludeIDs []string, limit int) ([]models.User, error) {
	query := `SELECT id, name, email, country, city, verified, admin FROM users
	          WHERE verified = 1 AND admin = 0`
	args := make([]any, 0, len(excludeIDs)+1)
	if len(excludeIDs) > 0 {
		query += ` AND id NOT IN (` + placeholders(len(excludeIDs)) + `)`
		for _, id := range excludeIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: recommendable users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Country, &u.City, &u.Verified, &u.Admin); err != nil {
			return nil, fmt.Errorf("sqlstore: scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range users {
		if err := s.attachUserInterests(ctx, &users[i]); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// FindByAuthorsSince returns items of one type authored by any of the given
// users after the cutoff, tags attached, newest first.
func (s *Store) FindByAuthorsSince(ctx context.Context, ctype models.ContentType, authorIDs []string, since time.Time) ([]models.ContentItem, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}

	query := `SELECT id, type, owner_id, owner_name, title, description, country, city, created_at
	          FROM content_items
	          WHERE type = ? AND created_at > ? AND owner_id IN (` + placeholders(len(authorIDs)) + `)
	          ORDER BY created_at DESC`
	args := make([]any, 0, len(authorIDs)+2)
	args = append(args, string(ctype), since)
	for _, id := range authorIDs {
		args = append(args, id)
	}

	return s.queryContent(ctx, query, args...)
}

// FindRecentExcluding returns items of one type after the cutoff not authored
// by the given user, tags attached, newest first, capped at limit.
func (s *Store) FindRecentExcluding(ctx context.Context, ctype models.ContentType, excludeAuthorID string, since time.Time, limit int) ([]models.ContentItem, error) {
	query := `SELECT id, type, owner_id, owner_name, title, description, country, city, created_at
	          FROM content_items
	          WHERE type = ? AND created_at > ? AND owner_id != ?
	          ORDER BY created_at DESC LIMIT ?`
	return s.queryContent(ctx, query, string(ctype), since, excludeAuthorID, limit)
}

// queryContent runs a content_items query and attaches tags to each row.
func (s *Store) queryContent(ctx context.Context, query string, args ...any) ([]models.ContentItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: content query: %w", err)
	}
	defer rows.Close()

	var items []models.ContentItem
	for rows.Next() {
		var (
			item  models.ContentItem
			ctype string
		)
		if err := rows.Scan(&item.ID, &ctype, &item.OwnerID, &item.OwnerName,
			&item.Title, &item.Description, &item.Country, &item.City, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlstore: scan content item: %w", err)
		}
		item.Type = models.ContentType(ctype)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range items {
		if err := s.attachContentTags(ctx, &items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// attachContentTags fills the tag set of a content item.
func (s *Store) attachContentTags(ctx context.Context, item *models.ContentItem) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tag_id, axis FROM content_tags WHERE content_id = ?`, item.ID)
	if err != nil {
		return fmt.Errorf("sqlstore: content tags %s: %w", item.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var tagID, axis string
		if err := rows.Scan(&tagID, &axis); err != nil {
			return fmt.Errorf("sqlstore: scan content tag: %w", err)
		}
		switch axis {
		case axisCategory:
			item.Tags.CategoryIDs = append(item.Tags.CategoryIDs, tagID)
		case axisSubcategory:
			item.Tags.SubcategoryIDs = append(item.Tags.SubcategoryIDs, tagID)
		case axisSubsubCategory:
			item.Tags.SubsubCategoryIDs = append(item.Tags.SubsubCategoryIDs, tagID)
		case axisIdentity:
			item.Tags.IdentityIDs = append(item.Tags.IdentityIDs, tagID)
		case axisIndustryCategory:
			item.Tags.IndustryCategoryIDs = append(item.Tags.IndustryCategoryIDs, tagID)
		case axisIndustrySubcategory:
			item.Tags.IndustrySubcategoryIDs = append(item.Tags.IndustrySubcategoryIDs, tagID)
		case axisIndustrySubsubCategory:
			item.Tags.IndustrySubsubCategoryIDs = append(item.Tags.IndustrySubsubCategoryIDs, tagID)
		}
	}
	return rows.Err()
}

// RawSettings returns a user's stored settings JSON, or store.ErrNotFound.
func (s *Store) RawSettings(ctx context.Context, userID string) ([]byte, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT settings_json FROM user_settings WHERE user_id = ?`, userID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: settings %s: %w", userID, err)
	}
	return []byte(raw), nil
}

// DigestRecipients returns the ids of users whose resolved cadence is any of
// the given values. Cadence is resolved in Go with the same fail-open rules
// as the preference service: missing row, malformed JSON or unknown cadence
// all count as the default.
func (s *Store) DigestRecipients(ctx context.Context, cadences []models.Cadence) ([]string, error) {
	want := make(map[models.Cadence]struct{}, len(cadences))
	for _, c := range cadences {
		want[c] = struct{}{}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, COALESCE(s.settings_json, '')
		 FROM users u LEFT JOIN user_settings s ON s.user_id = u.id
		 ORDER BY u.id`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: digest recipients: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var (
			id  string
			raw string
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("sqlstore: scan recipient: %w", err)
		}
		if _, ok := want[resolveCadence(raw)]; ok {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

// resolveCadence extracts the cadence from a raw settings document with
// fail-open defaults.
func resolveCadence(raw string) models.Cadence {
	if raw == "" {
		return models.DefaultCadence
	}
	var doc struct {
		Cadence string `json:"cadence"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return models.DefaultCadence
	}
	cadence, ok := models.ParseCadence(doc.Cadence)
	if !ok {
		return models.DefaultCadence
	}
	return cadence
}

// TagNames resolves tag ids to display names. Unknown ids are absent from
// the result.
func (s *Store) TagNames(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	query := `SELECT id, name FROM tags WHERE id IN (` + placeholders(len(ids)) + `)`
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: tag names: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string, len(ids))
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("sqlstore: scan tag name: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}

// ApplicationsForUser returns the content items of one type the user has
// applied or registered for, tags attached, newest application first.
func (s *Store) ApplicationsForUser(ctx context.Context, userID string, ctype models.ContentType) ([]models.ContentItem, error) {
	query := `SELECT c.id, c.type, c.owner_id, c.owner_name, c.title, c.description,
	                 c.country, c.city, c.created_at
	          FROM applications a
	          JOIN content_items c ON c.id = a.content_id
	          WHERE a.user_id = ? AND c.type = ?
	          ORDER BY a.created_at DESC`
	return s.queryContent(ctx, query, userID, string(ctype))
}

// --- write side (sync and seeding) ---

// UpsertUser writes a user row and replaces their tag rows.
func (s *Store) UpsertUser(ctx context.Context, u models.User, tags profile.TagSets) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin upsert user: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, name, email, country, city, verified, admin)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name, email = excluded.email, country = excluded.country,
		   city = excluded.city, verified = excluded.verified, admin = excluded.admin`,
		u.ID, u.Name, u.Email, u.Country, u.City, u.Verified, u.Admin); err != nil {
		return fmt.Errorf("sqlstore: upsert user %s: %w", u.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_tags WHERE user_id = ?`, u.ID); err != nil {
		return fmt.Errorf("sqlstore: clear user tags %s: %w", u.ID, err)
	}

	insert := func(tagIDs []string, axis, source string) error {
		for _, tagID := range tagIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO user_tags (user_id, tag_id, axis, source) VALUES (?, ?, ?, ?)`,
				u.ID, tagID, axis, source); err != nil {
				return fmt.Errorf("sqlstore: insert user tag: %w", err)
			}
		}
		return nil
	}

	for _, group := range []struct {
		ids    []string
		axis   string
		source string
	}{
		{tags.InterestCategories, axisCategory, sourceInterest},
		{tags.InterestSubcategories, axisSubcategory, sourceInterest},
		{tags.InterestSubsubCategories, axisSubsubCategory, sourceInterest},
		{tags.AttributeCategories, axisCategory, sourceAttribute},
		{tags.AttributeSubcategories, axisSubcategory, sourceAttribute},
		{tags.Goals, axisGoal, sourceInterest},
		{tags.Identities, axisIdentity, sourceInterest},
		{tags.IndustryCategories, axisIndustryCategory, sourceInterest},
		{tags.IndustrySubcategories, axisIndustrySubcategory, sourceInterest},
		{tags.IndustrySubsubCategories, axisIndustrySubsubCategory, sourceInterest},
	} {
		if err := insert(group.ids, group.axis, group.source); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// UpsertTag writes a taxonomy tag name.
func (s *Store) UpsertTag(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tags (id, name) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`, id, name)
	if err != nil {
		return fmt.Errorf("sqlstore: upsert tag %s: %w", id, err)
	}
	return nil
}

// AddConnection records a connection between two users. The pair is stored
// once, in the given order.
func (s *Store) AddConnection(ctx context.Context, userA, userB string, createdAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO connections (user_a, user_b, created_at) VALUES (?, ?, ?)`,
		userA, userB, createdAt)
	if err != nil {
		return fmt.Errorf("sqlstore: add connection %s-%s: %w", userA, userB, err)
	}
	return nil
}

// UpsertContentItem writes a content item and replaces its tag rows.
func (s *Store) UpsertContentItem(ctx context.Context, item models.ContentItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin upsert content: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO content_items (id, type, owner_id, owner_name, title, description, country, city, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   type = excluded.type, owner_id = excluded.owner_id, owner_name = excluded.owner_name,
		   title = excluded.title, description = excluded.description,
		   country = excluded.country, city = excluded.city, created_at = excluded.created_at`,
		item.ID, string(item.Type), item.OwnerID, item.OwnerName, item.Title,
		item.Description, item.Country, item.City, item.CreatedAt); err != nil {
		return fmt.Errorf("sqlstore: upsert content %s: %w", item.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM content_tags WHERE content_id = ?`, item.ID); err != nil {
		return fmt.Errorf("sqlstore: clear content tags %s: %w", item.ID, err)
	}

	insert := func(tagIDs []string, axis string) error {
		for _, tagID := range tagIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO content_tags (content_id, tag_id, axis) VALUES (?, ?, ?)`,
				item.ID, tagID, axis); err != nil {
				return fmt.Errorf("sqlstore: insert content tag: %w", err)
			}
		}
		return nil
	}

	for _, group := range []struct {
		ids  []string
		axis string
	}{
		{item.Tags.CategoryIDs, axisCategory},
		{item.Tags.SubcategoryIDs, axisSubcategory},
		{item.Tags.SubsubCategoryIDs, axisSubsubCategory},
		{item.Tags.IdentityIDs, axisIdentity},
		{item.Tags.IndustryCategoryIDs, axisIndustryCategory},
		{item.Tags.IndustrySubcategoryIDs, axisIndustrySubcategory},
		{item.Tags.IndustrySubsubCategoryIDs, axisIndustrySubsubCategory},
	} {
		if err := insert(group.ids, group.axis); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveSettings stores a user's raw settings document verbatim. The document
// is not validated here: fail-open parsing happens on read.
func (s *Store) SaveSettings(ctx context.Context, userID string, raw []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_settings (user_id, settings_json) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET settings_json = excluded.settings_json`,
		userID, string(raw))
	if err != nil {
		return fmt.Errorf("sqlstore: save settings %s: %w", userID, err)
	}
	return nil
}

// AddApplication records that a user applied or registered for a content
// item.
func (s *Store) AddApplication(ctx context.Context, id, userID, contentID string, createdAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO applications (id, user_id, content_id, created_at) VALUES (?, ?, ?, ?)`,
		id, userID, contentID, createdAt)
	if err != nil {
		return fmt.Errorf("sqlstore: add application %s: %w", id, err)
	}
	return nil
}

// placeholders returns n comma-separated SQL placeholders.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
