package web

// handlers_common.go holds helpers shared by the handlers.

import (
	"net/http"
	"strings"

	"github.com/johnahull/AthleteMetrics-sub002/internal/core"
	"github.com/johnahull/AthleteMetrics-sub002/internal/model"
)

// requireActor returns the request's actor, or writes a 401 and reports false.
func (s *Server) requireActor(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, ok := core.ActorFromContext(r.Context())
	if !ok {
		s.respondError(w, r, core.ErrUnauthenticated)
		return model.Actor{}, false
	}
	return actor, true
}

// organizationParam returns ?organizationId, defaulting to the actor's only
// organization.
func organizationParam(r *http.Request, actor model.Actor) string {
	if org := strings.TrimSpace(r.URL.Query().Get("organizationId")); org != "" {
		return org
	}
	if len(actor.OrganizationIDs) == 1 {
		return actor.OrganizationIDs[0]
	}
	return ""
}
