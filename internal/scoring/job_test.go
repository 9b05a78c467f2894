// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

package scoring

import (
	"testing"

	"github.com/bantulink/affinity/internal/models"
	"github.com/bantulink/affinity/internal/profile"
)

func jobWithTags(tags models.TagSet) models.ContentItem {
	return models.ContentItem{
		ID:   "j1",
		Type: models.ContentTypeJob,
		Tags: tags,
	}
}

func TestJobScorerFloorOnNoMatch(t *testing.T) {
	s := NewJobScorer(JobScorerConfig{})

	got := s.Score(profile.Snapshot{}, jobWithTags(models.TagSet{CategoryIDs: []string{"c1"}}))
	if got.Percentage != 10 {
		t.Errorf("no-match score = %d, want floor 10", got.Percentage)
	}
	if got.MatchedFactors != 0 {
		t.Errorf("matched factors = %d, want 0", got.MatchedFactors)
	}
}

func TestJobScorerAlwaysWithinRange(t *testing.T) {
	s := NewJobScorer(JobScorerConfig{JitterEnabled: true, Seed: 7})

	snapshots := []profile.Snapshot{
		{},
		{InterestCategoryIDs: []string{"c1"}},
		{
			InterestCategoryIDs:       []string{"c1", "c2"},
			AttributeCategoryIDs:      []string{"c1"},
			InterestSubcategoryIDs:    []string{"s1"},
			AttributeSubcategoryIDs:   []string{"s1"},
			InterestSubsubCategoryIDs: []string{"ss1"},
			IdentityIDs:               []string{"i1"},
			Country:                   "MZ",
			City:                      "Maputo",
		},
	}
	jobs := []models.ContentItem{
		jobWithTags(models.TagSet{}),
		jobWithTags(models.TagSet{CategoryIDs: []string{"c1"}}),
		{
			ID: "j2", Type: models.ContentTypeJob, Country: "MZ", City: "Maputo",
			Tags: models.TagSet{
				CategoryIDs:       []string{"c1", "c2"},
				SubcategoryIDs:    []string{"s1"},
				SubsubCategoryIDs: []string{"ss1"},
				IdentityIDs:       []string{"i1"},
			},
		},
	}

	for _, snap := range snapshots {
		for _, job := range jobs {
			for i := 0; i < 20; i++ {
				got := s.Score(snap, job)
				if got.Percentage < 10 || got.Percentage > 100 {
					t.Fatalf("score %d out of [10,100] for snapshot %+v", got.Percentage, snap)
				}
			}
		}
	}
}

func TestJobScorerJitterDisabledIsDeterministic(t *testing.T) {
	s := NewJobScorer(JobScorerConfig{})

	snap := profile.Snapshot{
		InterestCategoryIDs:    []string{"c1"},
		InterestSubcategoryIDs: []string{"s1"},
		IdentityIDs:            []string{"i1"},
	}
	job := jobWithTags(models.TagSet{
		CategoryIDs:    []string{"c1"},
		SubcategoryIDs: []string{"s1"},
		IdentityIDs:    []string{"i1"},
	})

	first := s.Score(snap, job)
	for i := 0; i < 10; i++ {
		if got := s.Score(snap, job); got.Percentage != first.Percentage {
			t.Fatalf("jitter-free scorer not deterministic: %d != %d", got.Percentage, first.Percentage)
		}
	}
}

func TestJobScorerJitterIsBounded(t *testing.T) {
	base := NewJobScorer(JobScorerConfig{})
	jittered := NewJobScorer(JobScorerConfig{JitterEnabled: true, Seed: 99})

	snap := profile.Snapshot{InterestCategoryIDs: []string{"c1"}, Country: "MZ"}
	job := models.ContentItem{
		ID: "j1", Type: models.ContentTypeJob, Country: "MZ",
		Tags: models.TagSet{CategoryIDs: []string{"c1"}},
	}

	want := base.Score(snap, job)
	for i := 0; i < 50; i++ {
		got := jittered.Score(snap, job)
		diff := got.Score - want.Score
		if diff < 0 || diff >= jobJitterBound {
			t.Fatalf("jitter %f out of [0,%f)", diff, jobJitterBound)
		}
	}
}

func TestJobScorerSeededJitterReproducible(t *testing.T) {
	a := NewJobScorer(JobScorerConfig{JitterEnabled: true, Seed: 1234})
	b := NewJobScorer(JobScorerConfig{JitterEnabled: true, Seed: 1234})

	snap := profile.Snapshot{InterestCategoryIDs: []string{"c1"}}
	job := jobWithTags(models.TagSet{CategoryIDs: []string{"c1"}})

	for i := 0; i < 10; i++ {
		if sa, sb := a.Score(snap, job), b.Score(snap, job); sa.Score != sb.Score {
			t.Fatalf("same seed diverged at call %d: %f != %f", i, sa.Score, sb.Score)
		}
	}
}

func TestJobScorerInterestOutweighsAttribute(t *testing.T) {
	s := NewJobScorer(JobScorerConfig{})
	job := jobWithTags(models.TagSet{CategoryIDs: []string{"c1"}})

	interest := s.Score(profile.Snapshot{InterestCategoryIDs: []string{"c1"}}, job)
	attribute := s.Score(profile.Snapshot{AttributeCategoryIDs: []string{"c1"}}, job)

	if interest.Score <= attribute.Score {
		t.Errorf("interest tags must outweigh attribute tags: interest=%f attribute=%f",
			interest.Score, attribute.Score)
	}
}

func TestJobScorerDualSourceSumsIndependently(t *testing.T) {
	s := NewJobScorer(JobScorerConfig{})
	job := jobWithTags(models.TagSet{CategoryIDs: []string{"c1"}})

	both := s.Score(profile.Snapshot{
		InterestCategoryIDs:  []string{"c1"},
		AttributeCategoryIDs: []string{"c1"},
	}, job)
	interestOnly := s.Score(profile.Snapshot{InterestCategoryIDs: []string{"c1"}}, job)

	if both.Score <= interestOnly.Score {
		t.Errorf("both sources should contribute: both=%f interestOnly=%f",
			both.Score, interestOnly.Score)
	}
	if both.MatchedFactors != 1 {
		t.Errorf("category bucket counts as a single factor, got %d", both.MatchedFactors)
	}
}

func TestJobLocationTiersAreExclusive(t *testing.T) {
	tests := []struct {
		name         string
		snap         profile.Snapshot
		job          models.ContentItem
		wantFraction float64
	}{
		{
			name:         "exact city wins over country",
			snap:         profile.Snapshot{Country: "MZ", City: "Maputo"},
			job:          models.ContentItem{Country: "MZ", City: "Maputo"},
			wantFraction: jobCityExactFraction,
		},
		{
			name:         "city overlap beats country",
			snap:         profile.Snapshot{Country: "MZ", City: "Matola"},
			job:          models.ContentItem{Country: "MZ", City: "Matola Rio"},
			wantFraction: jobCityOverlapFraction,
		},
		{
			name:         "country only",
			snap:         profile.Snapshot{Country: "MZ", City: "Maputo"},
			job:          models.ContentItem{Country: "MZ", City: "Beira"},
			wantFraction: jobCountryFraction,
		},
		{
			name:         "no location signal",
			snap:         profile.Snapshot{Country: "MZ", City: "Maputo"},
			job:          models.ContentItem{Country: "ZA", City: "Durban"},
			wantFraction: 0,
		},
		{
			name:         "empty city does not overlap",
			snap:         profile.Snapshot{Country: "ZA", City: ""},
			job:          models.ContentItem{Country: "MZ", City: "Beira"},
			wantFraction: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := jobLocationFraction(tt.snap, tt.job)
			if got != tt.wantFraction {
				t.Errorf("jobLocationFraction = %f, want %f", got, tt.wantFraction)
			}
		})
	}
}
