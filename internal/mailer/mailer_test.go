// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/bantulink/affinity/internal/digest"
	"github.com/bantulink/affinity/internal/metrics"
	"github.com/bantulink/affinity/internal/models"
)

func testDigest() *digest.Digest {
	return &digest.Digest{
		User:     models.User{ID: "u1", Name: "Ana", Email: "ana@example.com"},
		Category: models.CategoryJobOpportunities,
		Items: []digest.Item{
			{Title: "Agronomist", Author: "AgroMoz", Link: "https://bantulink.com/jobs/j1", Score: 85},
			{Title: "Field Technician", Link: "https://bantulink.com/jobs/j2", Score: 60},
		},
		GeneratedAt: time.Now(),
	}
}

func newTestMailer(t *testing.T, send func(ctx context.Context, to, msg string) error) *SMTPMailer {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Host = "smtp.example.com"
	cfg.From = "digest@bantulink.com"
	cfg.RatePerMinute = 0
	m, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.send = send
	return m
}

func TestSendBuildsMultipartMessage(t *testing.T) {
	var gotTo, gotMsg string
	m := newTestMailer(t, func(_ context.Context, to, msg string) error {
		gotTo, gotMsg = to, msg
		return nil
	})

	if err := m.Send(context.Background(), testDigest()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotTo != "ana@example.com" {
		t.Errorf("recipient = %q", gotTo)
	}
	for _, want := range []string{
		"From: Bantulink <digest@bantulink.com>",
		"Subject: Job opportunities picked for you",
		"multipart/alternative",
		"text/plain",
		"text/html",
		"Agronomist",
		"85% match",
		"https://bantulink.com/jobs/j1",
		"Hello Ana",
	} {
		if !strings.Contains(gotMsg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSendRejectsInvalidRecipient(t *testing.T) {
	m := newTestMailer(t, func(_ context.Context, _, _ string) error {
		t.Fatal("transport must not be reached for an invalid recipient")
		return nil
	})

	d := testDigest()
	d.User.Email = "not-an-address"
	if err := m.Send(context.Background(), d); err == nil {
		t.Fatal("invalid recipient must error")
	}
}

func TestSendBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	m := newTestMailer(t, func(_ context.Context, _, _ string) error {
		calls++
		return errors.New("connection refused")
	})

	category := string(models.CategoryJobOpportunities)
	smtpErrors := metrics.EmailSendErrors.WithLabelValues(category, "smtp")
	openErrors := metrics.EmailSendErrors.WithLabelValues(category, "breaker_open")
	smtpBefore := testutil.ToFloat64(smtpErrors)
	openBefore := testutil.ToFloat64(openErrors)

	for i := 0; i < 10; i++ {
		_ = m.Send(context.Background(), testDigest())
	}

	// The breaker trips after 5 consecutive failures; later sends are
	// rejected without touching the transport.
	if calls != 5 {
		t.Errorf("transport calls = %d, want 5 before the breaker opens", calls)
	}
	if got := testutil.ToFloat64(smtpErrors) - smtpBefore; got != 5 {
		t.Errorf("smtp error count = %v, want 5", got)
	}
	if got := testutil.ToFloat64(openErrors) - openBefore; got != 5 {
		t.Errorf("breaker_open error count = %v, want 5", got)
	}
}

func TestSendClassifiesRateLimitAborts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "smtp.example.com"
	cfg.From = "digest@bantulink.com"
	cfg.RatePerMinute = 1
	m, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.send = func(_ context.Context, _, _ string) error { return nil }

	// First send consumes the burst token.
	if err := m.Send(context.Background(), testDigest()); err != nil {
		t.Fatalf("first Send: %v", err)
	}

	category := string(models.CategoryJobOpportunities)
	limited := metrics.EmailSendErrors.WithLabelValues(category, "rate_limited")
	before := testutil.ToFloat64(limited)

	// The second token arrives a minute later; a short deadline aborts the
	// wait instead.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := m.Send(ctx, testDigest()); err == nil {
		t.Fatal("send past the rate cap with an expiring context must error")
	}
	if got := testutil.ToFloat64(limited) - before; got != 1 {
		t.Errorf("rate_limited error count = %v, want 1", got)
	}
}

func TestSendHTMLEscapesUserContent(t *testing.T) {
	var gotMsg string
	m := newTestMailer(t, func(_ context.Context, _, msg string) error {
		gotMsg = msg
		return nil
	})

	d := testDigest()
	d.Items[0].Title = `<script>alert("x")</script>`
	if err := m.Send(context.Background(), d); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if strings.Contains(gotMsg, "<script>") {
		t.Error("HTML body must escape user-supplied content")
	}
}

func TestTemplateCopyForEveryCategory(t *testing.T) {
	for _, category := range models.AllCategories() {
		meta, ok := templatesByName[category.TemplateName()]
		if !ok {
			t.Errorf("category %s: no copy registered for template %q", category, category.TemplateName())
			continue
		}
		if meta.Subject == "" || meta.Intro == "" {
			t.Errorf("template %q: incomplete copy %+v", category.TemplateName(), meta)
		}
	}
}

func TestRenderFallsBackForUnknownCategory(t *testing.T) {
	var gotMsg string
	m := newTestMailer(t, func(_ context.Context, _, msg string) error {
		gotMsg = msg
		return nil
	})

	d := testDigest()
	d.Category = models.NotificationCategory("somethingNew")
	if err := m.Send(context.Background(), d); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(gotMsg, "Subject: Your Bantulink digest") {
		t.Error("unknown category must use the generic subject")
	}
}

func TestSubjectPerCategory(t *testing.T) {
	var gotMsg string
	m := newTestMailer(t, func(_ context.Context, _, msg string) error {
		gotMsg = msg
		return nil
	})

	tests := []struct {
		category models.NotificationCategory
		want     string
	}{
		{models.CategoryConnectionUpdates, "New activity from your connections"},
		{models.CategoryConnectionRecommendations, "People you may want to connect with"},
		{models.CategoryJobOpportunities, "Job opportunities picked for you"},
	}
	for _, tt := range tests {
		d := testDigest()
		d.Category = tt.category
		if err := m.Send(context.Background(), d); err != nil {
			t.Fatalf("Send(%s): %v", tt.category, err)
		}
		if !strings.Contains(gotMsg, "Subject: "+tt.want) {
			t.Errorf("category %s missing subject %q", tt.category, tt.want)
		}
	}
}
