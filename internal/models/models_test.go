// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

package models

import "testing"

func TestParseCadence(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   Cadence
		wantOK bool
	}{
		{name: "daily", input: "daily", want: CadenceDaily, wantOK: true},
		{name: "weekly with whitespace", input: " weekly ", want: CadenceWeekly, wantOK: true},
		{name: "monthly uppercase", input: "MONTHLY", want: CadenceMonthly, wantOK: true},
		{name: "auto", input: "auto", want: CadenceAuto, wantOK: true},
		{name: "unknown", input: "fortnightly", wantOK: false},
		{name: "empty", input: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCadence(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseCadence(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseCadence(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseContentType(t *testing.T) {
	if ct, ok := ParseContentType("Job"); !ok || ct != ContentTypeJob {
		t.Errorf("ParseContentType(Job) = %q, %v", ct, ok)
	}
	if _, ok := ParseContentType("podcast"); ok {
		t.Error("ParseContentType(podcast) should not be recognized")
	}
}

func TestConnectionOther(t *testing.T) {
	c := Connection{UserA: "u1", UserB: "u2"}

	if got := c.Other("u1"); got != "u2" {
		t.Errorf("Other(u1) = %q, want u2", got)
	}
	if got := c.Other("u2"); got != "u1" {
		t.Errorf("Other(u2) = %q, want u1", got)
	}
	if got := c.Other("u3"); got != "" {
		t.Errorf("Other(u3) = %q, want empty", got)
	}
}

func TestUserSettingsCategoryEnabled(t *testing.T) {
	tests := []struct {
		name     string
		settings UserSettings
		category NotificationCategory
		want     bool
	}{
		{
			name:     "nil map defaults to enabled",
			settings: UserSettings{},
			category: CategoryJobOpportunities,
			want:     true,
		},
		{
			name: "missing entry defaults to enabled",
			settings: UserSettings{EmailNotifications: map[NotificationCategory]bool{
				CategoryConnectionUpdates: false,
			}},
			category: CategoryJobOpportunities,
			want:     true,
		},
		{
			name: "explicit false disables",
			settings: UserSettings{EmailNotifications: map[NotificationCategory]bool{
				CategoryJobOpportunities: false,
			}},
			category: CategoryJobOpportunities,
			want:     false,
		},
		{
			name: "explicit true enables",
			settings: UserSettings{EmailNotifications: map[NotificationCategory]bool{
				CategoryJobOpportunities: true,
			}},
			category: CategoryJobOpportunities,
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.settings.CategoryEnabled(tt.category); got != tt.want {
				t.Errorf("CategoryEnabled(%s) = %v, want %v", tt.category, got, tt.want)
			}
		})
	}
}

func TestCategoryTemplateName(t *testing.T) {
	for _, c := range AllCategories() {
		if c.TemplateName() == "" || c.TemplateName() == "digest" {
			t.Errorf("category %s has no dedicated template name", c)
		}
	}
}
