// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/bantulink/affinity/internal/models"
	"github.com/bantulink/affinity/internal/profile"
)

type fakeResolver struct {
	names map[string]string
	err   error
}

func (f *fakeResolver) TagNames(_ context.Context, ids []string) (map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if name, ok := f.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func TestSimilarityScorerZeroMaxScore(t *testing.T) {
	s := NewSimilarityScorer(nil, zerolog.Nop())

	got := s.Score(context.Background(), profile.Snapshot{}, models.ContentItem{Type: models.ContentTypeEvent})
	if got.Percentage != 0 || got.Score != 0 || got.MaxScore != 0 {
		t.Errorf("empty inputs should score 0/0/0, got %+v", got)
	}
}

func TestSimilarityScorerWeights(t *testing.T) {
	s := NewSimilarityScorer(nil, zerolog.Nop())

	prof := profile.Snapshot{
		IdentityIDs:            []string{"i1"},
		InterestCategoryIDs:    []string{"c1", "c2"},
		InterestSubcategoryIDs: []string{"s1"},
	}
	item := models.ContentItem{
		Type: models.ContentTypeEvent,
		Tags: models.TagSet{
			IdentityIDs:    []string{"i1"},
			CategoryIDs:    []string{"c1"},
			SubcategoryIDs: []string{"s9"},
		},
	}

	got := s.Score(context.Background(), prof, item)

	// identities: 1 matched x4; categories: 1 matched x3; subcategories: 0.
	if got.Score != 7 {
		t.Errorf("score = %f, want 7", got.Score)
	}
	// maxScore: min(1,1)x4 + min(2,1)x3 + min(1,1)x2 = 9.
	if got.MaxScore != 9 {
		t.Errorf("maxScore = %f, want 9", got.MaxScore)
	}
	// round(100 x 7/9) = 78.
	if got.Percentage != 78 {
		t.Errorf("percentage = %d, want 78", got.Percentage)
	}
	if got.MatchedFactors != 2 {
		t.Errorf("matched factors = %d, want 2", got.MatchedFactors)
	}
}

func TestSimilarityScorerIndustryAxesJobsOnly(t *testing.T) {
	s := NewSimilarityScorer(nil, zerolog.Nop())

	prof := profile.Snapshot{IndustryCategoryIDs: []string{"ind1"}}
	tags := models.TagSet{IndustryCategoryIDs: []string{"ind1"}}

	job := s.Score(context.Background(), prof, models.ContentItem{Type: models.ContentTypeJob, Tags: tags})
	event := s.Score(context.Background(), prof, models.ContentItem{Type: models.ContentTypeEvent, Tags: tags})

	if job.Score != simWeightIndustryCategory {
		t.Errorf("job industry score = %f, want %f", job.Score, simWeightIndustryCategory)
	}
	if event.Score != 0 || event.MaxScore != 0 {
		t.Errorf("industry axes must not apply to events, got %+v", event)
	}
}

// Adding one more matching tag id to the candidate content, all else equal,
// never decreases the resulting percentage.
func TestSimilarityScorerMonotonic(t *testing.T) {
	s := NewSimilarityScorer(nil, zerolog.Nop())

	prof := profile.Snapshot{
		InterestCategoryIDs:    []string{"c1", "c2", "c3"},
		InterestSubcategoryIDs: []string{"s1", "s2"},
		IdentityIDs:            []string{"i1"},
	}

	item := models.ContentItem{
		Type: models.ContentTypeEvent,
		Tags: models.TagSet{
			CategoryIDs:    []string{"c1"},
			SubcategoryIDs: []string{"s9"},
		},
	}

	prev := s.Score(context.Background(), prof, item).Percentage
	additions := []func(*models.TagSet){
		func(ts *models.TagSet) { ts.CategoryIDs = append(ts.CategoryIDs, "c2") },
		func(ts *models.TagSet) { ts.CategoryIDs = append(ts.CategoryIDs, "c3") },
		func(ts *models.TagSet) { ts.SubcategoryIDs = append(ts.SubcategoryIDs, "s1") },
		func(ts *models.TagSet) { ts.IdentityIDs = append(ts.IdentityIDs, "i1") },
	}

	for i, add := range additions {
		add(&item.Tags)
		got := s.Score(context.Background(), prof, item).Percentage
		if got < prev {
			t.Fatalf("percentage decreased after matching addition %d: %d -> %d", i, prev, got)
		}
		prev = got
	}
}

func TestSimilarityScorerResolvesTagNames(t *testing.T) {
	resolver := &fakeResolver{names: map[string]string{"c1": "Agriculture"}}
	s := NewSimilarityScorer(resolver, zerolog.Nop())

	prof := profile.Snapshot{InterestCategoryIDs: []string{"c1"}}
	item := models.ContentItem{Type: models.ContentTypeEvent, Tags: models.TagSet{CategoryIDs: []string{"c1"}}}

	got := s.Score(context.Background(), prof, item)
	if names := got.Breakdown["categories"]; len(names) != 1 || names[0] != "Agriculture" {
		t.Errorf("breakdown = %v, want resolved name Agriculture", got.Breakdown)
	}
}

func TestSimilarityScorerResolverFailureDegradesToIDs(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("taxonomy unavailable")}
	s := NewSimilarityScorer(resolver, zerolog.Nop())

	prof := profile.Snapshot{InterestCategoryIDs: []string{"c1"}}
	item := models.ContentItem{Type: models.ContentTypeEvent, Tags: models.TagSet{CategoryIDs: []string{"c1"}}}

	got := s.Score(context.Background(), prof, item)
	if names := got.Breakdown["categories"]; len(names) != 1 || names[0] != "c1" {
		t.Errorf("breakdown = %v, want raw id fallback", got.Breakdown)
	}
	if got.Percentage != 100 {
		t.Errorf("resolver failure must not change the score, got %d", got.Percentage)
	}
}
