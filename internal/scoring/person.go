// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

package scoring

import (
	"time"

	"github.com/bantulink/affinity/internal/metrics"
	"github.com/bantulink/affinity/internal/models"
	"github.com/bantulink/affinity/internal/profile"
)

// Person-to-person bucket weights. The four buckets sum to 100.
const (
	personWeightCategory    = 30.0
	personWeightSubcategory = 35.0
	personWeightGoal        = 25.0
	personWeightLocation    = 10.0

	personFloor   = 20
	personCeiling = 100
)

// Location fractions for the person scorer. Country and city contributions
// accumulate; the fraction is multiplied by the location bucket weight.
const (
	personCountryFraction     = 0.6
	personCityExactFraction   = 0.4
	personCityOverlapFraction = 0.2
)

// PersonScorer ranks unconnected candidate users against a viewer's declared
// interests, goals and location. It is deterministic and safe for
// concurrent use.
type PersonScorer struct{}

// NewPersonScorer creates a person-to-person scorer.
func NewPersonScorer() *PersonScorer {
	return &PersonScorer{}
}

// Score computes the affinity between a viewer and a candidate user.
// extraCategoryIDs and extraSubcategoryIDs widen the viewer's sets for the
// category and subcategory buckets (e.g. search-context tags); either may
// be nil. The percentage is clamped to [20, 100].
func (s *PersonScorer) Score(viewer profile.Snapshot, candidate models.User, extraCategoryIDs, extraSubcategoryIDs []string) models.ScoreResult {
	defer metrics.ObserveScore("person", time.Now())

	var (
		total          float64
		matchedFactors int
	)
	breakdown := make(map[string][]string)

	viewerCats := unionIDs(viewer.InterestCategoryIDs, extraCategoryIDs)
	if matched, ratio := overlapRatio(viewerCats, candidate.InterestCategoryIDs); len(matched) > 0 {
		total += personWeightCategory * ratio
		matchedFactors++
		breakdown["categories"] = matched
	}

	viewerSubs := unionIDs(viewer.InterestSubcategoryIDs, extraSubcategoryIDs)
	if matched, ratio := overlapRatio(viewerSubs, candidate.InterestSubcategoryIDs); len(matched) > 0 {
		total += personWeightSubcategory * ratio
		matchedFactors++
		breakdown["subcategories"] = matched
	}

	if matched, ratio := overlapRatio(viewer.GoalIDs, candidate.GoalIDs); len(matched) > 0 {
		total += personWeightGoal * ratio
		matchedFactors++
		breakdown["goals"] = matched
	}

	if fraction := personLocationFraction(viewer, candidate); fraction > 0 {
		total += fraction * personWeightLocation
		matchedFactors++
		breakdown["location"] = locationMatchNames(viewer, candidate)
	}

	total = scaleForFactors(total, matchedFactors)

	result := models.ScoreResult{
		Score:          total,
		MaxScore:       personWeightCategory + personWeightSubcategory + personWeightGoal + personWeightLocation,
		Percentage:     clampPercent(total, personFloor, personCeiling),
		MatchedFactors: matchedFactors,
	}
	if len(breakdown) > 0 {
		result.Breakdown = breakdown
	}
	return result
}

// personLocationFraction accumulates the location fraction: country match
// contributes 0.6 (case-sensitive id match), an exact case-insensitive city
// match adds 0.4, otherwise a city substring overlap adds 0.2.
func personLocationFraction(viewer profile.Snapshot, candidate models.User) float64 {
	var fraction float64
	if viewer.Country != "" && viewer.Country == candidate.Country {
		fraction += personCountryFraction
	}

	vc, cc := cityFold(viewer.City), cityFold(candidate.City)
	switch {
	case vc == "" || cc == "":
		// No city signal.
	case vc == cc:
		fraction += personCityExactFraction
	case citiesOverlap(viewer.City, candidate.City):
		fraction += personCityOverlapFraction
	}
	return fraction
}

// locationMatchNames describes which location components matched, for the
// breakdown shown to users.
func locationMatchNames(viewer profile.Snapshot, candidate models.User) []string {
	var names []string
	if viewer.Country != "" && viewer.Country == candidate.Country {
		names = append(names, "country")
	}
	vc, cc := cityFold(viewer.City), cityFold(candidate.City)
	switch {
	case vc == "" || cc == "":
	case vc == cc:
		names = append(names, "city")
	case citiesOverlap(viewer.City, candidate.City):
		names = append(names, "city-area")
	}
	return names
}
