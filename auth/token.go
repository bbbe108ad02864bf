package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrMissingSubject is returned when the token carries no principal
	ErrMissingSubject = errors.New("missing sub claim")
)

// Claims represents the claims of an access token
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// ParsedClaims represents validated claims
type ParsedClaims struct {
	Subject   string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Config holds configuration for TokenValidator
type Config struct {
	Secret   string
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// TokenValidator validates HS256 access tokens issued by the identity provider
type TokenValidator struct {
	secret   []byte
	issuer   string
	audience string
	parser   *jwt.Parser
}

// NewTokenValidator creates a validator for tokens signed with cfg.Secret
func NewTokenValidator(cfg Config) *TokenValidator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &TokenValidator{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		parser:   jwt.NewParser(opts...),
	}
}

// ValidateToken validates a JWT token and returns parsed claims
func (v *TokenValidator) ValidateToken(_ context.Context, tokenString string) (*ParsedClaims, error) {
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	parsed := &ParsedClaims{
		Subject: claims.Subject,
		Email:   claims.Email,
	}
	if claims.IssuedAt != nil {
		parsed.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		parsed.ExpiresAt = claims.ExpiresAt.Time
	}

	return parsed, nil
}

// IssueToken signs a token for subject valid for ttl. Used by tooling and
// tests; production tokens come from the identity provider.
func (v *TokenValidator) IssueToken(subject, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
