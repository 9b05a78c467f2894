// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

package scoring

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/bantulink/affinity/internal/metrics"
	"github.com/bantulink/affinity/internal/models"
	"github.com/bantulink/affinity/internal/profile"
)

// Per-matched-id weights for the application/registration similarity
// scorer. Unlike the person and job scorers these are not ratio-based:
// every matched id contributes its full axis weight.
const (
	simWeightIdentity       = 4.0
	simWeightCategory       = 3.0
	simWeightSubcategory    = 2.0
	simWeightSubsubCategory = 1.0

	// Industry axes apply to jobs only.
	simWeightIndustryCategory       = 2.0
	simWeightIndustrySubcategory    = 1.5
	simWeightIndustrySubsubCategory = 1.0
)

// TagNameResolver resolves tag ids to display names for the matched
// breakdown shown to users. Implemented by the taxonomy store.
type TagNameResolver interface {
	TagNames(ctx context.Context, ids []string) (map[string]string, error)
}

// SimilarityScorer ranks a user's own job applications and event
// registrations by fit against their profile. Deterministic.
type SimilarityScorer struct {
	taxonomy TagNameResolver
	logger   zerolog.Logger
}

// NewSimilarityScorer creates a similarity scorer. The resolver may be nil,
// in which case raw tag ids appear in the breakdown.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSimilarityScorer(taxonomy TagNameResolver, logger zerolog.Logger) *SimilarityScorer {
	return &SimilarityScorer{
		taxonomy: taxonomy,
		logger:   logger.With().Str("component", "similarity-scorer").Logger(),
	}
}

// simAxis pairs one taxonomy axis of the user profile with the matching
// axis of the candidate content.
type simAxis struct {
	name   string
	user   []string
	cand   []string
	weight float64
}

// Score computes the similarity between a user profile and a content item.
// For every axis, maxScore accumulates min(|userSet|, |candidateSet|) x
// weight regardless of matches, and score accumulates |matched| x weight.
// The percentage is round(100 x score / maxScore), or 0 when maxScore is 0.
func (s *SimilarityScorer) Score(ctx context.Context, prof profile.Snapshot, item models.ContentItem) models.ScoreResult {
	defer metrics.ObserveScore("similarity", time.Now())

	axes := []simAxis{
		{name: "identities", user: prof.IdentityIDs, cand: item.Tags.IdentityIDs, weight: simWeightIdentity},
		{name: "categories", user: prof.InterestCategoryIDs, cand: item.Tags.CategoryIDs, weight: simWeightCategory},
		{name: "subcategories", user: prof.InterestSubcategoryIDs, cand: item.Tags.SubcategoryIDs, weight: simWeightSubcategory},
		{name: "subsubCategories", user: prof.InterestSubsubCategoryIDs, cand: item.Tags.SubsubCategoryIDs, weight: simWeightSubsubCategory},
	}
	if item.Type == models.ContentTypeJob {
		axes = append(axes,
			simAxis{name: "industryCategories", user: prof.IndustryCategoryIDs, cand: item.Tags.IndustryCategoryIDs, weight: simWeightIndustryCategory},
			simAxis{name: "industrySubcategories", user: prof.IndustrySubcategoryIDs, cand: item.Tags.IndustrySubcategoryIDs, weight: simWeightIndustrySubcategory},
			simAxis{name: "industrySubsubCategories", user: prof.IndustrySubsubCategoryIDs, cand: item.Tags.IndustrySubsubCategoryIDs, weight: simWeightIndustrySubsubCategory},
		)
	}

	var (
		score          float64
		maxScore       float64
		matchedFactors int
		matchedIDs     []string
	)
	matchedByAxis := make(map[string][]string)

	for _, axis := range axes {
		maxScore += float64(minLen(axis.user, axis.cand)) * axis.weight

		matched := intersectIDs(axis.user, axis.cand)
		if len(matched) == 0 {
			continue
		}
		score += float64(len(matched)) * axis.weight
		matchedFactors++
		matchedByAxis[axis.name] = matched
		matchedIDs = append(matchedIDs, matched...)
	}

	result := models.ScoreResult{
		Score:          score,
		MaxScore:       maxScore,
		Percentage:     similarityPercentage(score, maxScore),
		MatchedFactors: matchedFactors,
	}
	if len(matchedByAxis) > 0 {
		result.Breakdown = s.resolveBreakdown(ctx, matchedByAxis, matchedIDs)
	}
	return result
}

func similarityPercentage(score, maxScore float64) int {
	if maxScore <= 0 {
		return 0
	}
	return clampPercent(100*score/maxScore, 0, 100)
}

// resolveBreakdown swaps matched tag ids for display names. A resolver
// failure degrades to raw ids; it never fails the scoring pass.
func (s *SimilarityScorer) resolveBreakdown(ctx context.Context, matchedByAxis map[string][]string, ids []string) map[string][]string {
	if s.taxonomy == nil {
		return matchedByAxis
	}

	names, err := s.taxonomy.TagNames(ctx, ids)
	if err != nil {
		s.logger.Warn().Err(err).Msg("tag name resolution failed, falling back to ids")
		return matchedByAxis
	}

	resolved := make(map[string][]string, len(matchedByAxis))
	for axis, matched := range matchedByAxis {
		display := make([]string, 0, len(matched))
		for _, id := range matched {
			if name, ok := names[id]; ok && name != "" {
				display = append(display, name)
				continue
			}
			display = append(display, id)
		}
		resolved[axis] = display
	}
	return resolved
}
