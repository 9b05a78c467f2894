// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

package scoring

import (
	"math/rand"
	"sync"
	"time"

	"github.com/bantulink/affinity/internal/metrics"
	"github.com/bantulink/affinity/internal/models"
	"github.com/bantulink/affinity/internal/profile"
)

// Person-to-job bucket weights. Category and subcategory buckets split into
// an interest portion (declared tags, x1.5 of the bucket weight) and an
// attribute portion (profile-derived tags, x0.5); both can contribute.
const (
	jobWeightCategory       = 25.0
	jobWeightSubcategory    = 30.0
	jobWeightSubsubCategory = 20.0
	jobWeightIdentity       = 15.0
	jobWeightLocation       = 10.0

	jobInterestMultiplier  = 1.5
	jobAttributeMultiplier = 0.5

	jobFloor   = 10
	jobCeiling = 100

	// jobJitterBound is the exclusive upper bound of the random jitter
	// added after boosting.
	jobJitterBound = 5.0

	// jobBoostDivisor drives the multiplicative boost total *= 1 + total/50.
	jobBoostDivisor = 50.0
)

// Tiered, mutually exclusive location fractions for the job scorer,
// evaluated by priority: exact city, city overlap, same country.
const (
	jobCityExactFraction   = 0.8
	jobCityOverlapFraction = 0.4
	jobCountryFraction     = 0.5
)

// JobScorerConfig configures the job scorer's jitter source.
type JobScorerConfig struct {
	// JitterEnabled adds a bounded random jitter in [0, 5) to each score,
	// breaking ties between similarly ranked jobs. Disable for
	// reproducible output.
	JitterEnabled bool `koanf:"jitter_enabled"`

	// Seed seeds the jitter source. Zero selects a fixed default seed.
	Seed int64 `koanf:"seed"`
}

// JobScorer ranks recent jobs against a user's viewer defaults. The jitter
// source is owned by the scorer and protected for concurrent use; with
// jitter disabled the scorer is a pure function.
type JobScorer struct {
	rng *rand.Rand
	mu  sync.Mutex
}

// NewJobScorer creates a job scorer. With cfg.JitterEnabled false the
// returned scorer is fully deterministic.
func NewJobScorer(cfg JobScorerConfig) *JobScorer {
	s := &JobScorer{}
	if cfg.JitterEnabled {
		seed := cfg.Seed
		if seed == 0 {
			seed = 42
		}
		s.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // math/rand is fine for ranking jitter
	}
	return s
}

// Score computes the affinity between a user's defaults and a job. The
// percentage is clamped to [10, 100]; repeated calls on identical input may
// differ only by the jitter bound.
func (s *JobScorer) Score(defaults profile.Snapshot, job models.ContentItem) models.ScoreResult {
	defer metrics.ObserveScore("job", time.Now())

	var (
		total          float64
		matchedFactors int
	)
	breakdown := make(map[string][]string)

	// Category bucket: interest and attribute sources score independently.
	if matched, contribution := dualSourceScore(
		defaults.InterestCategoryIDs, defaults.AttributeCategoryIDs,
		job.Tags.CategoryIDs, jobWeightCategory,
	); len(matched) > 0 {
		total += contribution
		matchedFactors++
		breakdown["categories"] = matched
	}

	if matched, contribution := dualSourceScore(
		defaults.InterestSubcategoryIDs, defaults.AttributeSubcategoryIDs,
		job.Tags.SubcategoryIDs, jobWeightSubcategory,
	); len(matched) > 0 {
		total += contribution
		matchedFactors++
		breakdown["subcategories"] = matched
	}

	if matched, ratio := overlapRatio(defaults.InterestSubsubCategoryIDs, job.Tags.SubsubCategoryIDs); len(matched) > 0 {
		total += jobWeightSubsubCategory * ratio
		matchedFactors++
		breakdown["subsubCategories"] = matched
	}

	if matched, ratio := overlapRatio(defaults.IdentityIDs, job.Tags.IdentityIDs); len(matched) > 0 {
		total += jobWeightIdentity * ratio
		matchedFactors++
		breakdown["identities"] = matched
	}

	if fraction, name := jobLocationFraction(defaults, job); fraction > 0 {
		total += fraction * jobWeightLocation
		matchedFactors++
		breakdown["location"] = []string{name}
	}

	total = scaleForFactors(total, matchedFactors)
	total *= 1 + total/jobBoostDivisor
	total += s.jitter()

	result := models.ScoreResult{
		Score:          total,
		MaxScore:       jobWeightCategory + jobWeightSubcategory + jobWeightSubsubCategory + jobWeightIdentity + jobWeightLocation,
		Percentage:     clampPercent(total, jobFloor, jobCeiling),
		MatchedFactors: matchedFactors,
	}
	if len(breakdown) > 0 {
		result.Breakdown = breakdown
	}
	return result
}

// dualSourceScore scores a bucket whose tags come from two sources: the
// interest portion at weight x1.5 and the attribute portion at weight x0.5,
// summed independently against the same candidate set.
func dualSourceScore(interestIDs, attributeIDs, candidateIDs []string, weight float64) ([]string, float64) {
	var contribution float64

	interestMatched, interestRatio := overlapRatio(interestIDs, candidateIDs)
	if len(interestMatched) > 0 {
		contribution += weight * jobInterestMultiplier * interestRatio
	}

	attributeMatched, attributeRatio := overlapRatio(attributeIDs, candidateIDs)
	if len(attributeMatched) > 0 {
		contribution += weight * jobAttributeMultiplier * attributeRatio
	}

	return unionIDs(interestMatched, attributeMatched), contribution
}

// jobLocationFraction evaluates the tiered location rule. Tiers are
// mutually exclusive and checked by priority: exact city, city substring
// overlap, same country.
func jobLocationFraction(defaults profile.Snapshot, job models.ContentItem) (float64, string) {
	uc, jc := cityFold(defaults.City), cityFold(job.City)
	switch {
	case uc != "" && jc != "" && uc == jc:
		return jobCityExactFraction, "city"
	case citiesOverlap(defaults.City, job.City):
		return jobCityOverlapFraction, "city-area"
	case defaults.Country != "" && defaults.Country == job.Country:
		return jobCountryFraction, "country"
	}
	return 0, ""
}

// jitter returns a random value in [0, jobJitterBound), or 0 when jitter is
// disabled.
func (s *JobScorer) jitter() float64 {
	if s.rng == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() * jobJitterBound
}
