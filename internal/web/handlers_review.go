package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/johnahull/AthleteMetrics-sub002/internal/review"
	"github.com/johnahull/AthleteMetrics-sub002/internal/web/templates"
)

// handleListReview lists pending review items, optionally for one organization.
func (s *Server) handleListReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	org := strings.TrimSpace(r.URL.Query().Get("organizationId"))

	items, err := s.service.PendingReviews(r.Context(), org, actor)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

// handleGetReview returns one review item in any state.
func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	item, err := s.service.Review(r.Context(), chi.URLParam(r, "itemID"), actor)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleReviewDecision applies approve, reject or select_alternative to an
// item and returns the decided item with whatever the commit wrote.
func (s *Server) handleReviewDecision(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	var d review.Decision
	if err := decodeJSON(r, &d); err != nil {
		s.respondBadRequest(w, r, "decision", err)
		return
	}
	if strings.TrimSpace(d.ItemID) == "" {
		s.respondBadRequest(w, r, "decision", errors.New("itemId is required"))
		return
	}

	res, err := s.service.Decide(r.Context(), d, actor)
	if err != nil {
		if res != nil {
			// The decision stuck but the commit did not.
			slog.Warn("review decided but not committed",
				"item_id", res.Item.ID,
				"status", res.Item.Status,
				"error", err,
			)
		}
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleReviewPage renders the pending queue as HTML.
func (s *Server) handleReviewPage(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	org := strings.TrimSpace(r.URL.Query().Get("organizationId"))

	items, err := s.service.PendingReviews(r.Context(), org, actor)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ReviewPage(org, templates.NewReviewRows(items)).Render(r.Context(), w); err != nil {
		slog.Error("render review page", "error", err)
	}
}
