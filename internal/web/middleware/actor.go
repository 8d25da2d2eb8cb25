package middleware

import (
	"net/http"
	"strings"

	"github.com/johnahull/AthleteMetrics-sub002/internal/core"
	"github.com/johnahull/AthleteMetrics-sub002/internal/logging"
	"github.com/johnahull/AthleteMetrics-sub002/internal/model"
)

// Identity headers set by the upstream session layer.
const (
	HeaderUserID          = "X-User-ID"
	HeaderUserRole        = "X-User-Role"
	HeaderOrganizationIDs = "X-Organization-IDs"
)

// Actor reads the identity headers into the request context along with the
// client IP. Requests without X-User-ID pass through anonymous; handlers
// that need an actor reject them.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.ContextWithIPAddress(r.Context(), extractIPString(r.RemoteAddr))

		if id := strings.TrimSpace(r.Header.Get(HeaderUserID)); id != "" {
			actor := model.Actor{
				ID:              id,
				Role:            model.ParseRole(r.Header.Get(HeaderUserRole)),
				OrganizationIDs: splitList(r.Header.Get(HeaderOrganizationIDs)),
			}
			ctx = core.ContextWithActor(ctx, actor)
			ctx = logging.ContextWithAttrs(ctx, "actor", actor.ID, "role", string(actor.Role))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
