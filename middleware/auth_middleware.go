package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/fieldops/accessctl/auth"
	"github.com/fieldops/accessctl/models"
	"github.com/fieldops/accessctl/utils"
	"go.uber.org/zap"
)

// TokenValidator defines the interface for validating JWT tokens
type TokenValidator interface {
	// ValidateToken validates a JWT token and returns claims
	ValidateToken(ctx context.Context, token string) (*auth.ParsedClaims, error)
}

// ProfileFinder resolves the actor profile of a principal
type ProfileFinder interface {
	FindByPrincipal(ctx context.Context, principalID string) (*models.ActorProfile, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator TokenValidator
	profiles  ProfileFinder
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(validator TokenValidator, profiles ProfileFinder, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		profiles:  profiles,
		logger:    logger,
	}
}

// Cookie names checked when no Authorization header is sent
const (
	authTokenCookieName = "auth_token"
	sessionCookieName   = "session"
)

// RequireAuth is a middleware that requires a valid JWT token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractToken(r)
		if token == "" {
			m.logger.Warn("missing token",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		claims, err := m.validator.ValidateToken(ctx, token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", claims.Subject))

		next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
	})
}

// LoadProfile attaches the caller's actor profile. A principal without a
// profile continues with none and is treated as having no company.
// This should be called after RequireAuth.
func (m *AuthMiddleware) LoadProfile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		claims := GetClaimsFromContext(ctx)
		if claims == nil {
			m.logger.Error("claims not found in context",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		profile, err := m.profiles.FindByPrincipal(ctx, claims.Subject)
		if err != nil {
			m.logger.Error("failed to load actor profile",
				zap.String("request_id", requestID),
				zap.String("sub", claims.Subject),
				zap.Error(err))
			_ = utils.WriteInternalServerError(w, "")
			return
		}

		if profile == nil {
			m.logger.Debug("principal has no profile",
				zap.String("request_id", requestID),
				zap.String("sub", claims.Subject))
		} else {
			ctx = WithProfile(ctx, profile)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken extracts the JWT from the Authorization header ("Bearer TOKEN")
// or, failing that, the auth_token or session cookie
func extractToken(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		return token
	}
	for _, name := range []string{authTokenCookieName, sessionCookieName} {
		if cookie, err := r.Cookie(name); err == nil && cookie.Value != "" {
			return cookie.Value
		}
	}
	return ""
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
