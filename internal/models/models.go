// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

// Package models defines the domain types shared across the affinity engine:
// users, connections, content items with their taxonomy tag sets, per-user
// notification settings, and the ephemeral score result produced by the
// scoring engine.
//
// All identifiers are opaque strings. Tag sets are unordered; callers must
// not rely on slice order.
package models

import (
	"strings"
	"time"
)

// ContentType identifies the kind of a content item.
type ContentType string

// Content types recognized by the platform.
const (
	ContentTypeJob     ContentType = "job"
	ContentTypeEvent   ContentType = "event"
	ContentTypeProduct ContentType = "product"
	ContentTypeService ContentType = "service"
	ContentTypeTourism ContentType = "tourism"
	ContentTypeFunding ContentType = "funding"
	ContentTypeMoment  ContentType = "moment"
)

// AllContentTypes returns every content type in a stable order.
func AllContentTypes() []ContentType {
	return []ContentType{
		ContentTypeJob,
		ContentTypeEvent,
		ContentTypeProduct,
		ContentTypeService,
		ContentTypeTourism,
		ContentTypeFunding,
		ContentTypeMoment,
	}
}

// ParseContentType parses a content type string. The second return value
// reports whether the input named a known type.
func ParseContentType(s string) (ContentType, bool) {
	ct := ContentType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllContentTypes() {
		if ct == known {
			return ct, true
		}
	}
	return "", false
}

// Cadence is a user's chosen digest frequency.
type Cadence string

// Supported cadences. CadenceAuto matches every trigger: an auto user
// receives output from the daily, weekly and monthly runs independently.
const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
	CadenceAuto    Cadence = "auto"
)

// DefaultCadence is applied when stored preference data is missing or
// malformed. The fail-open default is deliberate: a corrupt settings row
// must never silently suppress all notifications.
const DefaultCadence = CadenceDaily

// ParseCadence parses a cadence string. Unknown values return false.
func ParseCadence(s string) (Cadence, bool) {
	c := Cadence(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CadenceDaily, CadenceWeekly, CadenceMonthly, CadenceAuto:
		return c, true
	}
	return "", false
}

// TriggerCadences returns the cadences that own a scheduler trigger.
// CadenceAuto has no trigger of its own; auto users join every cohort.
func TriggerCadences() []Cadence {
	return []Cadence{CadenceDaily, CadenceWeekly, CadenceMonthly}
}

// NotificationCategory names one digest category gated by a per-user
// email-enabled flag.
type NotificationCategory string

// Digest categories composed by the engine.
const (
	CategoryConnectionUpdates         NotificationCategory = "connectionUpdates"
	CategoryConnectionRecommendations NotificationCategory = "connectionRecommendations"
	CategoryJobOpportunities          NotificationCategory = "jobOpportunities"
)

// AllCategories returns every digest category in composition order.
func AllCategories() []NotificationCategory {
	return []NotificationCategory{
		CategoryConnectionUpdates,
		CategoryConnectionRecommendations,
		CategoryJobOpportunities,
	}
}

// TemplateName returns the mail template identifier for the category.
func (c NotificationCategory) TemplateName() string {
	switch c {
	case CategoryConnectionUpdates:
		return "connection-updates"
	case CategoryConnectionRecommendations:
		return "connection-recommendations"
	case CategoryJobOpportunities:
		return "job-opportunities"
	default:
		return "digest"
	}
}

// User is a platform member with declared taxonomy interests.
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Country string `json:"country"`
	City    string `json:"city"`

	// Verified and Admin gate recommendation candidacy: only verified,
	// non-admin users are ever recommended.
	Verified bool `json:"verified"`
	Admin    bool `json:"admin"`

	// Declared interest sets (unordered opaque ids).
	InterestCategoryIDs    []string `json:"interest_category_ids,omitempty"`
	InterestSubcategoryIDs []string `json:"interest_subcategory_ids,omitempty"`
	GoalIDs                []string `json:"goal_ids,omitempty"`
	IdentityIDs            []string `json:"identity_ids,omitempty"`
}

// Connection is an unordered pair of user ids. Its existence implies mutual
// visibility and excludes the pair from recommendation candidates.
type Connection struct {
	UserA     string    `json:"user_a"`
	UserB     string    `json:"user_b"`
	CreatedAt time.Time `json:"created_at"`
}

// Other returns the peer of the given user in the connection, or "" if the
// user is not part of it.
func (c Connection) Other(userID string) string {
	switch userID {
	case c.UserA:
		return c.UserB
	case c.UserB:
		return c.UserA
	}
	return ""
}

// TagSet holds the taxonomy tags of a content item, one slice per axis.
// Industry axes exist only on jobs; they are empty for every other type.
type TagSet struct {
	CategoryIDs       []string `json:"category_ids,omitempty"`
	SubcategoryIDs    []string `json:"subcategory_ids,omitempty"`
	SubsubCategoryIDs []string `json:"subsub_category_ids,omitempty"`
	IdentityIDs       []string `json:"identity_ids,omitempty"`

	IndustryCategoryIDs       []string `json:"industry_category_ids,omitempty"`
	IndustrySubcategoryIDs    []string `json:"industry_subcategory_ids,omitempty"`
	IndustrySubsubCategoryIDs []string `json:"industry_subsub_category_ids,omitempty"`
}

// ContentItem is a job, event, product, service, tourism post, funding
// opportunity or moment, with its taxonomy tags eagerly attached.
type ContentItem struct {
	ID          string      `json:"id"`
	Type        ContentType `json:"type"`
	OwnerID     string      `json:"owner_id"`
	OwnerName   string      `json:"owner_name,omitempty"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Country     string      `json:"country,omitempty"`
	City        string      `json:"city,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	Tags        TagSet      `json:"tags"`
}

// UserSettings holds one user's notification preferences.
type UserSettings struct {
	UserID  string  `json:"user_id"`
	Cadence Cadence `json:"cadence"`

	// EmailNotifications maps a category name to its enabled flag.
	// A missing entry means enabled (fail open).
	EmailNotifications map[NotificationCategory]bool `json:"email_notifications"`
}

// CategoryEnabled reports whether email is enabled for a category,
// defaulting to true when the category has no stored flag.
func (s UserSettings) CategoryEnabled(category NotificationCategory) bool {
	if s.EmailNotifications == nil {
		return true
	}
	enabled, ok := s.EmailNotifications[category]
	if !ok {
		return true
	}
	return enabled
}

// ScoreResult is the ephemeral output of one scoring pass. It is never
// persisted; it exists only for the duration of one ranking.
type ScoreResult struct {
	// Score is the accumulated weighted score.
	Score float64 `json:"score"`

	// MaxScore is the maximum attainable score for the inputs. Never
	// negative.
	MaxScore float64 `json:"max_score"`

	// Percentage is the final clamped relevance score.
	Percentage int `json:"percentage"`

	// MatchedFactors counts the scoring buckets that contributed a
	// non-zero score.
	MatchedFactors int `json:"matched_factors"`

	// Breakdown maps a bucket name to the matched tag names, for display.
	Breakdown map[string][]string `json:"breakdown,omitempty"`
}
