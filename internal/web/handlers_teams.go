package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/johnahull/AthleteMetrics-sub002/internal/importer"
)

// handleListTeams lists an organization's teams.
func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	org := organizationParam(r, actor)
	if org == "" {
		s.respondError(w, r, importer.ErrOrganizationRequired)
		return
	}

	teams, err := s.service.Teams(r.Context(), org, actor)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"teams": teams})
}

// handleTeamMembers lists the athletes on a team.
func (s *Server) handleTeamMembers(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	members, err := s.service.TeamMembers(r.Context(), chi.URLParam(r, "teamID"), actor)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"athletes": members})
}

type addMembersRequest struct {
	AthleteIDs []string `json:"athleteIds"`
}

// handleAddTeamMembers adds athletes to a team. All memberships are written
// or none are.
func (s *Server) handleAddTeamMembers(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	teamID := chi.URLParam(r, "teamID")

	var req addMembersRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondBadRequest(w, r, "body", err)
		return
	}
	if len(req.AthleteIDs) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"teamId": teamID, "added": 0})
		return
	}

	if err := s.service.AddTeamMembers(r.Context(), teamID, req.AthleteIDs, actor); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"teamId": teamID, "added": len(req.AthleteIDs)})
}
