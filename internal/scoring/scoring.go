// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

// Package scoring implements the three affinity scorers: person-to-person,
// person-to-job and application-to-content. Each scorer keeps its own weight
// table and clamp range; the overlap-ratio, required-factor scaling and
// clamping helpers are shared so the formulas are not triplicated.
//
// # Determinism
//
// PersonScorer and SimilarityScorer are pure functions of their inputs.
// JobScorer adds a bounded jitter from an injectable seeded source; a nil
// source disables jitter entirely, which is how tests obtain determinism.
package scoring

import (
	"math"
	"strings"
)

// requiredFactors is the matched-factor threshold shared by the person and
// job scorers. Totals with fewer matched buckets are scaled down.
const requiredFactors = 3

// minFactorScale is the floor of the required-factor scaling coefficient.
const minFactorScale = 0.3

// normalizeIDs trims whitespace and drops empty ids, deduplicating while
// preserving first-seen order. All scorers operate on normalized ids so that
// " a " and "a" never count as distinct tags.
func normalizeIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// unionIDs merges two id slices into one normalized set.
func unionIDs(a, b []string) []string {
	merged := make([]string, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	return normalizeIDs(merged)
}

// intersectIDs returns the ids present in both slices, in a's order.
func intersectIDs(a, b []string) []string {
	a = normalizeIDs(a)
	b = normalizeIDs(b)
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(b))
	for _, id := range b {
		set[id] = struct{}{}
	}
	var out []string
	for _, id := range a {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// overlapRatio computes the matched ids between two sets and the overlap
// ratio |overlap| / max(|a|, |b|). An empty side yields no matches and a
// zero ratio.
func overlapRatio(a, b []string) ([]string, float64) {
	a = normalizeIDs(a)
	b = normalizeIDs(b)
	matched := intersectIDs(a, b)
	if len(matched) == 0 {
		return nil, 0
	}
	denom := len(a)
	if len(b) > denom {
		denom = len(b)
	}
	return matched, float64(len(matched)) / float64(denom)
}

// scaleForFactors applies the required-factor scaling rule: totals backed by
// fewer than the required number of matched buckets are multiplied by
// max(minFactorScale, matched/required).
func scaleForFactors(total float64, matched int) float64 {
	if matched >= requiredFactors {
		return total
	}
	scale := float64(matched) / float64(requiredFactors)
	if scale < minFactorScale {
		scale = minFactorScale
	}
	return total * scale
}

// clampPercent rounds a raw total to the nearest integer and clamps it to
// the scorer's floor/ceiling range.
func clampPercent(total float64, floor, ceiling int) int {
	pct := int(math.Round(total))
	if pct < floor {
		return floor
	}
	if pct > ceiling {
		return ceiling
	}
	return pct
}

// minLen returns the smaller of the two set sizes after normalization.
func minLen(a, b []string) int {
	la, lb := len(normalizeIDs(a)), len(normalizeIDs(b))
	if la < lb {
		return la
	}
	return lb
}

// cityFold normalizes a city string for case-insensitive comparison.
func cityFold(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

// citiesOverlap reports whether one non-empty city string contains the
// other, case-insensitively. Equal strings also overlap; callers that need
// to distinguish exact matches must check equality first.
func citiesOverlap(a, b string) bool {
	a, b = cityFold(a), cityFold(b)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
