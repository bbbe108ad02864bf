package middleware

import (
	"context"

	"github.com/fieldops/accessctl/auth"
	"github.com/fieldops/accessctl/models"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Context key type to avoid collisions
type contextKey string

const (
	// ClaimsKey is the context key for validated token claims
	ClaimsKey contextKey = "claims"

	// ProfileKey is the context key for the caller's actor profile
	ProfileKey contextKey = "profile"

	// SitecKey is the context key for the secondary tenant unit
	SitecKey contextKey = "sitec_id"

	// ActionKey is the context key for the handler's action hint
	ActionKey contextKey = "action"
)

// GetRequestIDFromContext returns the id assigned by chi's RequestID
// middleware, or "" outside of it
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// GetClaimsFromContext retrieves token claims from context
func GetClaimsFromContext(ctx context.Context) *auth.ParsedClaims {
	claims, _ := ctx.Value(ClaimsKey).(*auth.ParsedClaims)
	return claims
}

// WithClaims adds token claims to the context
func WithClaims(ctx context.Context, claims *auth.ParsedClaims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetProfileFromContext retrieves the caller's profile. Nil means the
// principal has no profile.
func GetProfileFromContext(ctx context.Context) *models.ActorProfile {
	profile, _ := ctx.Value(ProfileKey).(*models.ActorProfile)
	return profile
}

// WithProfile adds the caller's profile to the context
func WithProfile(ctx context.Context, profile *models.ActorProfile) context.Context {
	return context.WithValue(ctx, ProfileKey, profile)
}

// GetSitecFromContext retrieves the sitec id, or "" when none was sent
func GetSitecFromContext(ctx context.Context) string {
	sitec, _ := ctx.Value(SitecKey).(string)
	return sitec
}

// WithSitec adds the sitec id to the context
func WithSitec(ctx context.Context, sitecID string) context.Context {
	return context.WithValue(ctx, SitecKey, sitecID)
}

// GetActionHint retrieves the explicit action name set by Action
func GetActionHint(ctx context.Context) string {
	action, _ := ctx.Value(ActionKey).(string)
	return action
}

// WithActionHint sets the explicit action name of the handler
func WithActionHint(ctx context.Context, action string) context.Context {
	return context.WithValue(ctx, ActionKey, action)
}
