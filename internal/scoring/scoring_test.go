// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

package scoring

import (
	"reflect"
	"testing"
)

func TestNormalizeIDs(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "nil", input: nil, want: nil},
		{name: "trims and drops empties", input: []string{" a ", "", "b", "  "}, want: []string{"a", "b"}},
		{name: "deduplicates preserving order", input: []string{"b", "a", "b", " a"}, want: []string{"b", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeIDs(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("normalizeIDs(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestOverlapRatio(t *testing.T) {
	tests := []struct {
		name        string
		a, b        []string
		wantMatched int
		wantRatio   float64
	}{
		{name: "no overlap", a: []string{"x"}, b: []string{"y"}, wantMatched: 0, wantRatio: 0},
		{name: "empty side", a: nil, b: []string{"y"}, wantMatched: 0, wantRatio: 0},
		{name: "half by larger set", a: []string{"a", "b"}, b: []string{"a"}, wantMatched: 1, wantRatio: 0.5},
		{name: "full match", a: []string{"a", "b"}, b: []string{"b", "a"}, wantMatched: 2, wantRatio: 1},
		{name: "duplicates collapse", a: []string{"a", "a", "b"}, b: []string{"a"}, wantMatched: 1, wantRatio: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched, ratio := overlapRatio(tt.a, tt.b)
			if len(matched) != tt.wantMatched {
				t.Errorf("matched = %v, want %d ids", matched, tt.wantMatched)
			}
			if ratio != tt.wantRatio {
				t.Errorf("ratio = %f, want %f", ratio, tt.wantRatio)
			}
		})
	}
}

func TestScaleForFactors(t *testing.T) {
	tests := []struct {
		name    string
		total   float64
		matched int
		want    float64
	}{
		{name: "at threshold unscaled", total: 60, matched: 3, want: 60},
		{name: "above threshold unscaled", total: 60, matched: 4, want: 60},
		{name: "two of three", total: 60, matched: 2, want: 40},
		{name: "zero factors hits scale floor", total: 60, matched: 0, want: 18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scaleForFactors(tt.total, tt.matched); got != tt.want {
				t.Errorf("scaleForFactors(%f, %d) = %f, want %f", tt.total, tt.matched, got, tt.want)
			}
		})
	}
}

func TestClampPercent(t *testing.T) {
	tests := []struct {
		name  string
		total float64
		want  int
	}{
		{name: "below floor", total: 3.2, want: 20},
		{name: "rounds half up", total: 45.5, want: 46},
		{name: "rounds down", total: 45.4, want: 45},
		{name: "above ceiling", total: 140, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clampPercent(tt.total, 20, 100); got != tt.want {
				t.Errorf("clampPercent(%f) = %d, want %d", tt.total, got, tt.want)
			}
		})
	}
}

func TestCitiesOverlap(t *testing.T) {
	if citiesOverlap("", "Maputo") {
		t.Error("empty city must never overlap")
	}
	if !citiesOverlap("Matola", "matola rio") {
		t.Error("substring cities should overlap case-insensitively")
	}
	if citiesOverlap("Beira", "Maputo") {
		t.Error("unrelated cities should not overlap")
	}
}
