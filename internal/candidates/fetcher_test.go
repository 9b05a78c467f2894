// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

package candidates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bantulink/affinity/internal/models"
)

type fakeUserStore struct {
	connections map[string][]string
	users       []models.User
	connErr     error

	gotExclude []string
	gotLimit   int
}

func (f *fakeUserStore) ConnectionIDs(_ context.Context, userID string) ([]string, error) {
	if f.connErr != nil {
		return nil, f.connErr
	}
	return f.connections[userID], nil
}

func (f *fakeUserStore) RecommendableUsers(_ context.Context, excludeIDs []string, limit int) ([]models.User, error) {
	f.gotExclude = excludeIDs
	f.gotLimit = limit
	return f.users, nil
}

type fakeContentStore struct {
	byType map[models.ContentType][]models.ContentItem
	errFor map[models.ContentType]error
	recent []models.ContentItem

	gotLimit   int
	gotExclude string
}

func (f *fakeContentStore) FindByAuthorsSince(_ context.Context, ctype models.ContentType, _ []string, _ time.Time) ([]models.ContentItem, error) {
	if err := f.errFor[ctype]; err != nil {
		return nil, err
	}
	return f.byType[ctype], nil
}

func (f *fakeContentStore) FindRecentExcluding(_ context.Context, _ models.ContentType, excludeAuthorID string, _ time.Time, limit int) ([]models.ContentItem, error) {
	f.gotExclude = excludeAuthorID
	f.gotLimit = limit
	return f.recent, nil
}

func newTestFetcher(users *fakeUserStore, content *fakeContentStore) *Fetcher {
	return NewFetcher(users, content, Config{BaseURL: "https://bantulink.com/"}, zerolog.Nop())
}

func TestConnectionUpdatesSinceSortsNewestFirst(t *testing.T) {
	now := time.Now()
	users := &fakeUserStore{connections: map[string][]string{"u1": {"u2", "u3"}}}
	content := &fakeContentStore{byType: map[models.ContentType][]models.ContentItem{
		models.ContentTypeJob: {
			{ID: "j1", Type: models.ContentTypeJob, OwnerName: "Ana", Title: "Agronomist", CreatedAt: now.Add(-2 * time.Hour)},
		},
		models.ContentTypeEvent: {
			{ID: "e1", Type: models.ContentTypeEvent, OwnerName: "Berta", Title: "Agritech Expo", CreatedAt: now.Add(-1 * time.Hour)},
		},
		models.ContentTypeProduct: {
			{ID: "p1", Type: models.ContentTypeProduct, OwnerName: "Carlos", Title: "Maize seed", CreatedAt: now.Add(-3 * time.Hour)},
		},
	}}

	got, err := newTestFetcher(users, content).ConnectionUpdatesSince(context.Background(), "u1", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ConnectionUpdatesSince: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("updates = %d, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.After(got[i-1].CreatedAt) {
			t.Errorf("updates not sorted newest first at index %d", i)
		}
	}
	if got[0].Title != "Agritech Expo" {
		t.Errorf("newest update = %q, want Agritech Expo", got[0].Title)
	}
	if got[0].Link != "https://bantulink.com/events/e1" {
		t.Errorf("link = %q", got[0].Link)
	}
}

func TestConnectionUpdatesSinceNoConnections(t *testing.T) {
	users := &fakeUserStore{connections: map[string][]string{}}
	content := &fakeContentStore{}

	got, err := newTestFetcher(users, content).ConnectionUpdatesSince(context.Background(), "u1", time.Now())
	if err != nil {
		t.Fatalf("ConnectionUpdatesSince: %v", err)
	}
	if got != nil {
		t.Errorf("no connections should return nil, got %v", got)
	}
}

func TestConnectionUpdatesSinceTypeFailureDegrades(t *testing.T) {
	now := time.Now()
	users := &fakeUserStore{connections: map[string][]string{"u1": {"u2"}}}
	content := &fakeContentStore{
		byType: map[models.ContentType][]models.ContentItem{
			models.ContentTypeJob: {{ID: "j1", Type: models.ContentTypeJob, Title: "Driver", CreatedAt: now}},
		},
		errFor: map[models.ContentType]error{
			models.ContentTypeEvent: errors.New("events table locked"),
		},
	}

	got, err := newTestFetcher(users, content).ConnectionUpdatesSince(context.Background(), "u1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("one failed type must not fail the fetch: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Driver" {
		t.Errorf("surviving types should still be returned, got %v", got)
	}
}

func TestConnectionUpdatesSinceStoreError(t *testing.T) {
	users := &fakeUserStore{connErr: errors.New("db down")}

	_, err := newTestFetcher(users, &fakeContentStore{}).ConnectionUpdatesSince(context.Background(), "u1", time.Now())
	if err == nil {
		t.Fatal("connection lookup failure should propagate")
	}
}

func TestRecommendableUsersExcludesSelfAndConnections(t *testing.T) {
	users := &fakeUserStore{
		connections: map[string][]string{"u1": {"u2", " u2", "u3", ""}},
		users: []models.User{
			{ID: "u4", Verified: true},
			{ID: "u2", Verified: true},  // stale store result, still excluded
			{ID: "u5", Verified: false}, // unverified
			{ID: "u6", Verified: true, Admin: true},
			{ID: "u7", Verified: true},
		},
	}

	got, err := newTestFetcher(users, &fakeContentStore{}).RecommendableUsers(context.Background(), "u1")
	if err != nil {
		t.Fatalf("RecommendableUsers: %v", err)
	}

	wantExclude := []string{"u1", "u2", "u3"}
	if len(users.gotExclude) != len(wantExclude) {
		t.Errorf("exclusion set = %v, want %v", users.gotExclude, wantExclude)
	}
	if users.gotLimit != DefaultUserFetchLimit {
		t.Errorf("limit = %d, want %d", users.gotLimit, DefaultUserFetchLimit)
	}
	if len(got) != 2 || got[0].ID != "u4" || got[1].ID != "u7" {
		t.Errorf("candidates = %v, want u4 and u7", got)
	}
}

func TestRecentJobsExcludingSelf(t *testing.T) {
	content := &fakeContentStore{recent: []models.ContentItem{
		{ID: "j1", Type: models.ContentTypeJob, OwnerID: "u2"},
		{ID: "j2", Type: models.ContentTypeJob, OwnerID: "u1 "}, // own job slipped through
		{ID: "j3", Type: models.ContentTypeJob, OwnerID: "u3"},
	}}
	users := &fakeUserStore{connections: map[string][]string{}}

	got, err := newTestFetcher(users, content).RecentJobsExcludingSelf(context.Background(), "u1", time.Now(), 0)
	if err != nil {
		t.Fatalf("RecentJobsExcludingSelf: %v", err)
	}
	if content.gotLimit != DefaultJobFetchLimit {
		t.Errorf("limit = %d, want default %d", content.gotLimit, DefaultJobFetchLimit)
	}
	if content.gotExclude != "u1" {
		t.Errorf("exclude author = %q, want u1", content.gotExclude)
	}
	if len(got) != 2 || got[0].ID != "j1" || got[1].ID != "j3" {
		t.Errorf("jobs = %v, want j1 and j3", got)
	}
}

func TestLinkBuilding(t *testing.T) {
	f := newTestFetcher(&fakeUserStore{}, &fakeContentStore{})

	if got := f.Link(models.ContentTypeJob, "abc"); got != "https://bantulink.com/jobs/abc" {
		t.Errorf("Link = %q", got)
	}
	if got := f.ProfileLink("u9"); got != "https://bantulink.com/profile/u9" {
		t.Errorf("ProfileLink = %q", got)
	}
}
