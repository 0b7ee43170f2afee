// Package auth validates and issues the HS256 session tokens that identify the
// acting user on every API request.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultSessionIssuer = "tauth"
	bearerPrefix         = "Bearer "
)

var (
	ErrMissingSessionSigningKey = errors.New("session validator: signing key required")
	ErrMissingSessionCookieName = errors.New("session validator: cookie name required")
	ErrMissingSessionToken      = errors.New("session validator: token required")
	ErrInvalidSessionToken      = errors.New("session validator: invalid token")
	ErrExpiredSessionToken      = errors.New("session validator: token expired")
	ErrMissingSessionSubject    = errors.New("session validator: subject required")
)

// SessionClaims is the JWT payload carried by the session cookie.
type SessionClaims struct {
	UserID          string   `json:"user_id"`
	UserEmail       string   `json:"user_email"`
	UserDisplayName string   `json:"user_display_name"`
	UserRoles       []string `json:"user_roles,omitempty"`
	jwt.RegisteredClaims
}

// SessionValidatorConfig describes how session tokens are checked. An empty
// Issuer accepts tokens minted by the default issuer.
type SessionValidatorConfig struct {
	SigningSecret []byte
	Issuer        string
	CookieName    string
	Clock         func() time.Time
}

// SessionValidator checks HS256 session tokens from a cookie or bearer header.
type SessionValidator struct {
	signingSecret []byte
	issuer        string
	cookieName    string
	clock         func() time.Time
}

func NewSessionValidator(cfg SessionValidatorConfig) (*SessionValidator, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSessionSigningKey
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		return nil, ErrMissingSessionCookieName
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultSessionIssuer
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SessionValidator{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		cookieName:    cookieName,
		clock:         clock,
	}, nil
}

// CookieName returns the cookie consulted by ValidateRequest.
func (v *SessionValidator) CookieName() string {
	return v.cookieName
}

// ValidateToken parses tokenString and returns its claims when the signature,
// issuer, expiry and subject all check out.
func (v *SessionValidator) ValidateToken(tokenString string) (SessionClaims, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return SessionClaims{}, ErrMissingSessionToken
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(*jwt.Token) (interface{}, error) {
			return v.signingSecret, nil
		},
		jwt.WithTimeFunc(v.clock),
		jwt.WithIssuer(v.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return SessionClaims{}, ErrExpiredSessionToken
	case err != nil:
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	case parsed == nil || !parsed.Valid:
		return SessionClaims{}, ErrInvalidSessionToken
	}
	if strings.TrimSpace(claims.Subject) == "" && strings.TrimSpace(claims.UserID) == "" {
		return SessionClaims{}, ErrMissingSessionSubject
	}
	return *claims, nil
}

// ValidateRequest reads the session cookie, falling back to an
// "Authorization: Bearer" header, and validates the token it carries.
func (v *SessionValidator) ValidateRequest(r *http.Request) (SessionClaims, error) {
	if r == nil {
		return SessionClaims{}, ErrMissingSessionToken
	}
	if cookie, err := r.Cookie(v.cookieName); err == nil && cookie.Value != "" {
		return v.ValidateToken(cookie.Value)
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, bearerPrefix) {
		return v.ValidateToken(strings.TrimPrefix(header, bearerPrefix))
	}
	return SessionClaims{}, ErrMissingSessionToken
}
