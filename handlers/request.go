package handlers

import (
	"net/http"

	abac "github.com/fieldops/accessctl/internal/policy"
	"github.com/fieldops/accessctl/middleware"
	policysvc "github.com/fieldops/accessctl/services/policy"
)

// actorFromRequest returns the evaluated actor of the request. A principal
// without a profile keeps its subject but has no company.
func actorFromRequest(r *http.Request) abac.Actor {
	ctx := r.Context()
	actor := abac.ActorFromProfile(middleware.GetProfileFromContext(ctx))
	if actor.PrincipalID == "" {
		if claims := middleware.GetClaimsFromContext(ctx); claims != nil {
			actor.PrincipalID = claims.Subject
		}
	}
	return actor
}

// callerFromRequest describes the request's principal for the audit trail
func callerFromRequest(r *http.Request) policysvc.Caller {
	actor := actorFromRequest(r)
	return policysvc.Caller{
		PrincipalID: actor.PrincipalID,
		ProfileID:   actor.ProfileID,
		CompanyID:   actor.CompanyID,
		RequestID:   middleware.GetRequestIDFromContext(r.Context()),
		IPAddress:   r.RemoteAddr,
		UserAgent:   r.UserAgent(),
	}
}
