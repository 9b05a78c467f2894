// Affinity - Bantulink Affinity Scoring and Digest Notification Engine
// Copyright 2026 Bantulink Lda
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bantulink/affinity

package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/bantulink/affinity/internal/digest/scheduler"
	"github.com/bantulink/affinity/internal/models"
	"github.com/bantulink/affinity/internal/profile"
)

// SchedulerControl is the scheduler surface the API depends on.
type SchedulerControl interface {
	Status() scheduler.Status
	RunNow(cadence models.Cadence) (string, error)
}

// ApplicationStore reads the content items a user has applied or registered
// for.
type ApplicationStore interface {
	ApplicationsForUser(ctx context.Context, userID string, ctype models.ContentType) ([]models.ContentItem, error)
}

// SimilarityScorer scores a content item against a viewer profile.
type SimilarityScorer interface {
	Score(ctx context.Context, viewer profile.Snapshot, item models.ContentItem) models.ScoreResult
}

// Handler owns the admin endpoints.
type Handler struct {
	sched      SchedulerControl
	apps       ApplicationStore
	profiles   *profile.Aggregator
	similarity SimilarityScorer
	logger     zerolog.Logger
}

// NewHandler creates the admin API handler.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHandler(sched SchedulerControl, apps ApplicationStore, profiles *profile.Aggregator, similarity SimilarityScorer, logger zerolog.Logger) *Handler {
	return &Handler{
		sched:      sched,
		apps:       apps,
		profiles:   profiles,
		similarity: similarity,
		logger:     logger.With().Str("component", "api").Logger(),
	}
}

// Router builds the chi router for the admin surface.
func (h *Handler) Router(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/scheduler/status", h.SchedulerStatus)

		runLimit := cfg.RunRateLimit
		if runLimit <= 0 {
			runLimit = DefaultConfig().RunRateLimit
		}
		r.With(httprate.LimitByIP(runLimit, time.Minute)).
			Post("/digests/run", h.RunDigests)

		r.Get("/users/{userID}/applications/scores", h.ApplicationScores)
	})

	return r
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	h.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SchedulerStatus returns the per-cadence run state.
func (h *Handler) SchedulerStatus(w http.ResponseWriter, _ *http.Request) {
	h.respond(w, http.StatusOK, h.sched.Status())
}

// RunDigests triggers a manual digest run for one cadence. The run is
// asynchronous; the response carries its id.
func (h *Handler) RunDigests(w http.ResponseWriter, r *http.Request) {
	cadence, ok := models.ParseCadence(r.URL.Query().Get("cadence"))
	if !ok {
		h.respondError(w, http.StatusBadRequest, "unknown cadence")
		return
	}

	runID, err := h.sched.RunNow(cadence)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info().Str("cadence", string(cadence)).Str("run_id", runID).Msg("Manual digest run triggered")
	h.respond(w, http.StatusAccepted, map[string]string{
		"run_id":  runID,
		"cadence": string(cadence),
	})
}

// applicationScore is one ranked application in the response.
type applicationScore struct {
	ContentID  string              `json:"content_id"`
	Title      string              `json:"title"`
	Percentage int                 `json:"percentage"`
	Matched    int                 `json:"matched_factors"`
	Breakdown  map[string][]string `json:"breakdown,omitempty"`
}

// ApplicationScores ranks the user's applications of one content type by
// profile similarity.
func (h *Handler) ApplicationScores(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	ctype, ok := models.ParseContentType(r.URL.Query().Get("type"))
	if !ok {
		h.respondError(w, http.StatusBadRequest, "unknown content type")
		return
	}

	viewer, err := h.profiles.ViewerDefaults(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Viewer profile load failed")
		h.respondError(w, http.StatusInternalServerError, "profile unavailable")
		return
	}

	items, err := h.apps.ApplicationsForUser(r.Context(), userID, ctype)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Applications load failed")
		h.respondError(w, http.StatusInternalServerError, "applications unavailable")
		return
	}

	scores := make([]applicationScore, 0, len(items))
	for _, item := range items {
		result := h.similarity.Score(r.Context(), viewer, item)
		scores = append(scores, applicationScore{
			ContentID:  item.ID,
			Title:      item.Title,
			Percentage: result.Percentage,
			Matched:    result.MatchedFactors,
			Breakdown:  result.Breakdown,
		})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Percentage > scores[j].Percentage
	})

	h.respond(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"type":    string(ctype),
		"scores":  scores,
	})
}

func (h *Handler) respond(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error().Err(err).Msg("Response encoding failed")
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, msg string) {
	h.respond(w, status, map[string]string{"error": msg})
}
